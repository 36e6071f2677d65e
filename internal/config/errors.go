package config

import (
	"errors"
	"time"
)

// Sentinel errors for internal use.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrInvalidRPCURL      = errors.New("invalid rpc url")
	ErrInvalidKey         = errors.New("invalid signing key")
	ErrInvalidDestination = errors.New("invalid destination address")
	ErrInvalidContract    = errors.New("invalid token contract address")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidMnemonic    = errors.New("invalid mnemonic")
	ErrKeyDerivation      = errors.New("key derivation failed")

	ErrChainIDMismatch  = errors.New("chain id mismatch")
	ErrRetriesExhausted = errors.New("submission retries exhausted")
	ErrTxReverted       = errors.New("transaction reverted")
	ErrReceiptTimeout   = errors.New("receipt polling timeout")
	ErrMalformedResult  = errors.New("malformed contract call result")

	// Sweep
	ErrZeroFeeBid      = errors.New("fee bid is zero")
	ErrBelowDust       = errors.New("amount below dust threshold")
	ErrInsufficientGas = errors.New("insufficient native balance for gas")

	// Circuit Breaker
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// Provider
	ErrProviderRateLimit = errors.New("provider rate limit exceeded")
	ErrProviderTimeout   = errors.New("provider request timeout")
)

// TransientError wraps an error that should be retried.
type TransientError struct {
	Err        error
	RetryAfter time.Duration // 0 = use default backoff
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient (retriable).
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// NewTransientErrorWithRetry wraps with explicit retry delay.
func NewTransientErrorWithRetry(err error, retryAfter time.Duration) error {
	return &TransientError{Err: err, RetryAfter: retryAfter}
}

// IsTransient returns true if the error is transient (retriable).
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// GetRetryAfter returns the retry delay if set, or 0.
func GetRetryAfter(err error) time.Duration {
	var te *TransientError
	if errors.As(err, &te) {
		return te.RetryAfter
	}
	return 0
}

// Error codes returned by the status API.
const (
	ErrorDatabase       = "ERROR_DATABASE"
	ErrorInvalidRequest = "ERROR_INVALID_REQUEST"
	ErrorJournalOff     = "ERROR_JOURNAL_DISABLED"
)
