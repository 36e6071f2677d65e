package sweep

import (
	"math/big"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

// Allowance is the evaluator's verdict on how much can be moved.
// Reason is empty when Amount is sendable, otherwise it is a skip reason.
type Allowance struct {
	Amount *big.Int
	Reason string
}

// Sendable reports whether Amount should be submitted.
func (a Allowance) Sendable() bool {
	return a.Reason == ""
}

// ComputeSendable returns max(0, balance − reserve − projectedFee·(100+margin)/100).
// It is 0 whenever balance ≤ reserve.
func ComputeSendable(balance, reserve, projectedFee *big.Int, marginPercent int64) *big.Int {
	out := new(big.Int).Sub(balance, reserve)
	if out.Sign() <= 0 {
		return new(big.Int)
	}
	out.Sub(out, WithMargin(projectedFee, marginPercent))
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}

// WithMargin returns fee·(100+marginPercent)/100, rounded up.
func WithMargin(fee *big.Int, marginPercent int64) *big.Int {
	out := new(big.Int).Mul(fee, big.NewInt(100+marginPercent))
	out.Add(out, big.NewInt(99))
	return out.Quo(out, big.NewInt(100))
}

// NativeTransferFee is the most a plain transfer can cost at bid.
func NativeTransferFee(bid models.FeeBid) *big.Int {
	return new(big.Int).Mul(big.NewInt(config.NativeTransferGas), orZero(bid.MaxFeePerGas))
}

// PaddedGas pads a node gas estimate by 20%.
func PaddedGas(estimated uint64) uint64 {
	return estimated * config.TokenGasPadNumerator / config.TokenGasPadDenominator
}

// RequiredGasBalance is the native balance a token transfer needs at bid:
// padded gas · max fee, plus the safety margin.
func RequiredGasBalance(estimatedGas uint64, bid models.FeeBid, marginPercent int64) *big.Int {
	cost := new(big.Int).Mul(new(big.Int).SetUint64(PaddedGas(estimatedGas)), orZero(bid.MaxFeePerGas))
	return WithMargin(cost, marginPercent)
}

// EvaluateNative sizes a native sweep.
func EvaluateNative(balance, reserve, dust *big.Int, bid models.FeeBid, marginPercent int64) Allowance {
	amount := ComputeSendable(balance, reserve, NativeTransferFee(bid), marginPercent)
	return Allowance{Amount: amount, Reason: dustReason(amount, dust)}
}

// EvaluateToken sizes a token sweep and checks the account can pay for gas.
func EvaluateToken(tokenBalance, tokenReserve, tokenDust, nativeBalance *big.Int, estimatedGas uint64, bid models.FeeBid, marginPercent int64) Allowance {
	amount := ComputeSendable(tokenBalance, tokenReserve, new(big.Int), 0)
	if reason := dustReason(amount, tokenDust); reason != "" {
		return Allowance{Amount: amount, Reason: reason}
	}
	if nativeBalance.Cmp(RequiredGasBalance(estimatedGas, bid, marginPercent)) < 0 {
		return Allowance{Amount: amount, Reason: models.SkipInsufficientGas}
	}
	return Allowance{Amount: amount}
}

func dustReason(amount, dust *big.Int) string {
	if amount.Sign() == 0 {
		return models.SkipInsufficient
	}
	if dust != nil && amount.Cmp(dust) < 0 {
		return models.SkipBelowDust
	}
	return ""
}
