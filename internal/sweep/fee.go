package sweep

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/units"
)

// FeeEstimator turns current network fee conditions into a bid.
type FeeEstimator struct {
	net       Network
	minTip    *big.Int
	minMaxFee *big.Int
}

// NewFeeEstimator creates an estimator. Either floor may be nil.
func NewFeeEstimator(net Network, minPriorityFee, minMaxFee *big.Int) *FeeEstimator {
	return &FeeEstimator{net: net, minTip: minPriorityFee, minMaxFee: minMaxFee}
}

// EstimateBid never fails. Floors are applied before the bump. When the node
// gives no fee data and no floor is set, the bid comes back zero and must not
// be submitted.
func (e *FeeEstimator) EstimateBid(ctx context.Context, bumpPercent int64) models.FeeBid {
	maxFee, tip := new(big.Int), new(big.Int)

	sample, err := e.net.FeeSample(ctx)
	if err != nil {
		slog.Warn("fee sample unavailable, starting from zero", "error", err)
	} else {
		maxFee, tip = normalizeSample(sample)
	}

	if tip.Sign() == 0 {
		tip = new(big.Int).Div(maxFee, big.NewInt(config.DefaultTipDivisor))
	}
	if e.minTip != nil && tip.Cmp(e.minTip) < 0 {
		tip = new(big.Int).Set(e.minTip)
	}

	baseFee := new(big.Int)
	if block, err := e.net.LatestBlock(ctx); err != nil {
		slog.Warn("latest block unavailable, bidding without base fee", "error", err)
	} else if block.BaseFee != nil {
		baseFee = block.BaseFee
	}

	if floor := new(big.Int).Add(baseFee, tip); maxFee.Cmp(floor) < 0 {
		maxFee = floor
	}
	if e.minMaxFee != nil && maxFee.Cmp(e.minMaxFee) < 0 {
		maxFee = new(big.Int).Set(e.minMaxFee)
	}

	bid := models.FeeBid{
		MaxFeePerGas:         applyBump(maxFee, bumpPercent),
		MaxPriorityFeePerGas: applyBump(tip, bumpPercent),
	}

	slog.Debug("fee bid estimated",
		"bumpPercent", bumpPercent,
		"baseFeeGwei", units.FormatGwei(baseFee),
		"maxFeeGwei", units.FormatGwei(bid.MaxFeePerGas),
		"priorityFeeGwei", units.FormatGwei(bid.MaxPriorityFeePerGas),
	)
	return bid
}

func normalizeSample(s models.FeeSample) (maxFee, tip *big.Int) {
	switch v := s.(type) {
	case models.EIP1559Sample:
		return orZero(v.MaxFee), orZero(v.PriorityFee)
	case models.LegacySample:
		return orZero(v.GasPrice), orZero(v.GasPrice)
	}
	return new(big.Int), new(big.Int)
}

// applyBump returns v·(100+bumpPercent)/100.
func applyBump(v *big.Int, bumpPercent int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(100+bumpPercent))
	return out.Quo(out, big.NewInt(100))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
