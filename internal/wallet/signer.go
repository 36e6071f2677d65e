package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the single signing key used for the lifetime of the process.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// SignerFromHex parses a 64-character hex private key, with or without 0x.
func SignerFromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err)
	}
	return newSigner(key), nil
}

// SignerFromMnemonicFile derives the key at m/44'/60'/0'/0/index from a BIP-39 mnemonic file.
func SignerFromMnemonicFile(path string, index uint32) (*Signer, error) {
	masterKey, err := loadMasterKey(path)
	if err != nil {
		return nil, err
	}

	privKey, err := DeriveEVMPrivateKey(masterKey, index)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %s", ErrDerivation, index, err)
	}

	raw := privKey.Serialize()
	privKey.Zero()
	key, err := crypto.ToECDSA(raw)
	clear(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %s", ErrDerivation, index, err)
	}

	return newSigner(key), nil
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	s := &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
	slog.Info("signer loaded", "address", s.address.Hex())
	return s
}

// Address returns the account controlled by this signer.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKey returns the ECDSA key for transaction signing.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}
