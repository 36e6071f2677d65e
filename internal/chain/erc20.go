package chain

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

func mustSelector(id string) []byte {
	b, err := hex.DecodeString(id)
	if err != nil || len(b) != 4 {
		panic(fmt.Sprintf("bad method selector %q", id))
	}
	return b
}

var (
	erc20TransferSelector  = mustSelector(config.ERC20TransferMethodID)
	erc20BalanceOfSelector = mustSelector(config.ERC20BalanceOfMethodID)
	erc20DecimalsSelector  = mustSelector(config.ERC20DecimalsMethodID)
	erc20SymbolSelector    = mustSelector(config.ERC20SymbolMethodID)

	transferEventTopic = common.HexToHash(config.ERC20TransferEventTopic)
)

// EncodeERC20Transfer encodes a transfer(address,uint256) call.
// Returns 68 bytes: 4-byte selector + 32-byte padded address + 32-byte padded amount.
func EncodeERC20Transfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 68)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// EncodeERC20BalanceOf encodes a balanceOf(address) call.
func EncodeERC20BalanceOf(owner common.Address) []byte {
	data := make([]byte, 0, 36)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// DecodeUint256 reads the first 32-byte word of a call result.
func DecodeUint256(result []byte) (*big.Int, error) {
	if len(result) < 32 {
		return nil, fmt.Errorf("%w: got %d bytes, expected 32", config.ErrMalformedResult, len(result))
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// DecodeABIString decodes a dynamic ABI string return value. Older tokens return a
// right-padded bytes32 instead, which is accepted too.
func DecodeABIString(result []byte) (string, error) {
	if len(result) == 32 {
		s := string(bytes.TrimRight(result, "\x00"))
		if s == "" || !utf8.ValidString(s) {
			return "", fmt.Errorf("%w: empty bytes32 string", config.ErrMalformedResult)
		}
		return s, nil
	}

	if len(result) < 64 {
		return "", fmt.Errorf("%w: string result of %d bytes", config.ErrMalformedResult, len(result))
	}

	offset := new(big.Int).SetBytes(result[:32])
	if !offset.IsUint64() || offset.Uint64()+32 > uint64(len(result)) {
		return "", fmt.Errorf("%w: string offset %s out of range", config.ErrMalformedResult, offset)
	}
	start := offset.Uint64()

	length := new(big.Int).SetBytes(result[start : start+32])
	if !length.IsUint64() || start+32+length.Uint64() > uint64(len(result)) {
		return "", fmt.Errorf("%w: string length %s out of range", config.ErrMalformedResult, length)
	}

	s := string(result[start+32 : start+32+length.Uint64()])
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: string is not utf-8", config.ErrMalformedResult)
	}
	return strings.TrimSpace(s), nil
}

// DecodeTransferLog extracts an incoming transfer from a Transfer(address,address,uint256) log.
func DecodeTransferLog(l types.Log) (models.TransferEvent, bool) {
	if len(l.Topics) != 3 || l.Topics[0] != transferEventTopic || len(l.Data) < 32 {
		return models.TransferEvent{}, false
	}
	return models.TransferEvent{
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		Amount:      new(big.Int).SetBytes(l.Data[:32]),
	}, true
}
