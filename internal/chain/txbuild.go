package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Fantasim/fcfsweep/internal/models"
)

// BuildTransfer builds an unsigned transaction. On networks with a base fee it is
// an EIP-1559 dynamic fee transaction; otherwise a legacy transaction priced at
// the bid's MaxFeePerGas.
func BuildTransfer(
	chainID *big.Int,
	dynamicFee bool,
	nonce uint64,
	to common.Address,
	value *big.Int,
	gas uint64,
	data []byte,
	bid models.FeeBid,
) *types.Transaction {
	toAddr := to
	if value == nil {
		value = big.NewInt(0)
	}

	if !dynamicFee {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &toAddr,
			Value:    value,
			Gas:      gas,
			GasPrice: bid.MaxFeePerGas,
			Data:     data,
		})
	}

	tip := bid.MaxPriorityFeePerGas
	if tip == nil || tip.Cmp(bid.MaxFeePerGas) > 0 {
		tip = bid.MaxFeePerGas
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: bid.MaxFeePerGas,
		Gas:       gas,
		To:        &toAddr,
		Value:     value,
		Data:      data,
	})
}
