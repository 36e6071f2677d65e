package wallet

import (
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/Fantasim/fcfsweep/internal/config"
)

// DeriveEVMPrivateKey walks m/44'/60'/0'/0/N and returns the private key.
// The caller owns the key and should Zero it when no longer needed.
func DeriveEVMPrivateKey(masterKey *hdkeychain.ExtendedKey, index uint32) (*btcec.PrivateKey, error) {
	// m/44'
	purpose, err := masterKey.Derive(hdkeychain.HardenedKeyStart + uint32(config.BIP44Purpose))
	if err != nil {
		return nil, fmt.Errorf("derive purpose key: %w", err)
	}

	// m/44'/60'
	coin, err := purpose.Derive(hdkeychain.HardenedKeyStart + uint32(config.EVMCoinType))
	if err != nil {
		return nil, fmt.Errorf("derive coin key: %w", err)
	}

	// m/44'/60'/0'
	account, err := coin.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, fmt.Errorf("derive account key: %w", err)
	}

	// m/44'/60'/0'/0
	change, err := account.Derive(0)
	if err != nil {
		return nil, fmt.Errorf("derive change key: %w", err)
	}

	// m/44'/60'/0'/0/N
	child, err := change.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("derive child key at index %d: %w", index, err)
	}

	privKey, err := child.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("extract private key at index %d: %w", index, err)
	}

	slog.Debug("derived EVM private key", "path", fmt.Sprintf("m/44'/60'/0'/0/%d", index))
	return privKey, nil
}
