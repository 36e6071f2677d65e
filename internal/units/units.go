// Package units converts between human-readable decimal amounts and on-chain base units.
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/Fantasim/fcfsweep/internal/config"
)

// ToBaseUnits parses a decimal string and scales it by 10^decimals.
// Digits beyond the asset's precision are truncated.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %s", config.ErrInvalidAmount, amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q is negative", config.ErrInvalidAmount, amount)
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FromBaseUnits renders a base-unit amount with the given precision, trailing zeros trimmed.
func FromBaseUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// GweiToWei parses an optional gwei amount. An empty string yields nil.
func GweiToWei(gwei string) (*big.Int, error) {
	if gwei == "" {
		return nil, nil
	}
	return ToBaseUnits(gwei, config.GweiDecimals)
}

// FormatGwei renders a wei amount as gwei.
func FormatGwei(wei *big.Int) string {
	return FromBaseUnits(wei, config.GweiDecimals)
}
