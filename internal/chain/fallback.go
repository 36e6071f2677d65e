package chain

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/core/types"
)

// FallbackEthClient wraps a primary and fallback EthClient.
// SendTransaction tries the primary first, then falls back to the secondary.
// All other methods go to the primary client only.
type FallbackEthClient struct {
	EthClient
	fallback EthClient
}

// NewFallbackEthClient creates a client that falls back on broadcast failure.
// If fallback is nil, behaves identically to primary.
func NewFallbackEthClient(primary, fallback EthClient) *FallbackEthClient {
	slog.Info("fallback eth client created",
		"hasFallback", fallback != nil,
	)
	return &FallbackEthClient{
		EthClient: primary,
		fallback:  fallback,
	}
}

// SendTransaction tries the primary RPC first, falls back on failure.
// A failed primary send may still have reached the pool; the fallback then
// answers "already known", which counts as success.
func (f *FallbackEthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	err := f.EthClient.SendTransaction(ctx, tx)
	if err == nil {
		return nil
	}

	if f.fallback == nil {
		return err
	}

	slog.Warn("primary broadcast failed, trying fallback RPC",
		"txHash", tx.Hash().Hex(),
		"primaryError", err,
	)

	fallbackErr := f.fallback.SendTransaction(ctx, tx)
	if IsAlreadyKnown(fallbackErr) {
		slog.Info("fallback already holds transaction", "txHash", tx.Hash().Hex())
		return nil
	}
	if fallbackErr == nil {
		slog.Info("fallback broadcast succeeded", "txHash", tx.Hash().Hex())
		return nil
	}

	slog.Error("fallback broadcast also failed",
		"txHash", tx.Hash().Hex(),
		"primaryError", err,
		"fallbackError", fallbackErr,
	)

	// The primary error is usually the more informative one.
	return err
}
