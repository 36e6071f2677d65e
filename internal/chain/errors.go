package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"

	"github.com/Fantasim/fcfsweep/internal/config"
)

// Submission failure classes, used for logging only.
const (
	SubmitErrNonce             = "nonce"
	SubmitErrUnderpriced       = "underpriced"
	SubmitErrInsufficientFunds = "insufficient funds"
	SubmitErrReverted          = "reverted"
	SubmitErrOther             = "other"
)

// ClassifySubmitError maps a node rejection to a coarse class.
// Different nodes return different error strings for the same condition.
func ClassifySubmitError(err error) string {
	if err == nil {
		return ""
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "nonce too low"),
		strings.Contains(lower, "nonce is too low"),
		strings.Contains(lower, "nonce too high"),
		strings.Contains(lower, "already known"),
		strings.Contains(lower, "known transaction"):
		return SubmitErrNonce
	case strings.Contains(lower, "underpriced"),
		strings.Contains(lower, "less than block base fee"),
		strings.Contains(lower, "max fee per gas less than"),
		strings.Contains(lower, "fee cap less than"),
		strings.Contains(lower, "tip too low"):
		return SubmitErrUnderpriced
	case strings.Contains(lower, "insufficient funds"):
		return SubmitErrInsufficientFunds
	case strings.Contains(lower, "execution reverted"),
		strings.Contains(lower, "reverted"):
		return SubmitErrReverted
	default:
		return SubmitErrOther
	}
}

// IsAlreadyKnown reports whether the node rejected a broadcast because it
// already holds that exact transaction.
func IsAlreadyKnown(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "already known") || strings.Contains(lower, "known transaction")
}

// classifyRPCError marks transport-level failures as transient so the circuit
// breaker can count them. Node-level rejections and NotFound pass through unchanged.
func classifyRPCError(err error) error {
	if err == nil || errors.Is(err, ethereum.NotFound) || errors.Is(err, context.Canceled) {
		return err
	}
	if config.IsTransient(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return config.NewTransientError(fmt.Errorf("%w: %s", config.ErrProviderTimeout, err))
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "429"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "rate limit"):
		return config.NewTransientError(fmt.Errorf("%w: %s", config.ErrProviderRateLimit, err))
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "connection reset"),
		strings.Contains(lower, "no such host"),
		strings.Contains(lower, "eof"),
		strings.Contains(lower, "502 bad gateway"),
		strings.Contains(lower, "503 service unavailable"):
		return config.NewTransientError(err)
	}
	return err
}
