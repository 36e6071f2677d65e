package wallet

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"
)

// loadMasterKey reads the mnemonic file at path and returns its BIP-32 root
// key. The intermediate seed is wiped before returning.
func loadMasterKey(path string) (*hdkeychain.ExtendedKey, error) {
	mnemonic, err := readMnemonic(path)
	if err != nil {
		return nil, err
	}

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("mnemonic file %q: %w", path, ErrInvalidMnemonic)
	}
	defer clear(seed)

	// Version bytes only; EVM derivation ignores the network params.
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("%w: master key: %s", ErrDerivation, err)
	}
	return master, nil
}

// readMnemonic loads a mnemonic that may be split across lines or padded with
// whitespace. Errors never echo the file contents.
func readMnemonic(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("read mnemonic file %q: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		slog.Warn("mnemonic file is readable by other users",
			"path", path,
			"mode", info.Mode().Perm().String(),
		)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read mnemonic file %q: %w", path, err)
	}
	defer clear(data)

	mnemonic := strings.Join(strings.Fields(string(data)), " ")
	if mnemonic == "" {
		return "", fmt.Errorf("mnemonic file %q is empty: %w", path, ErrInvalidMnemonic)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("mnemonic file %q: %w", path, ErrInvalidMnemonic)
	}
	return mnemonic, nil
}
