package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/Fantasim/fcfsweep/internal/chain"
	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

// SendFunc signs and broadcasts one attempt at bid. attempt is 1-based.
type SendFunc func(ctx context.Context, bid models.FeeBid, attempt int) (common.Hash, error)

// RebidFunc recomputes a bid from fresh network conditions.
type RebidFunc func(ctx context.Context, bumpPercent int64) models.FeeBid

// RetryObserver is told about every failed attempt that will be retried.
type RetryObserver func(ctx context.Context, attempt int, bumpPercent int64, bid models.FeeBid, err error)

// Submission is a successful broadcast.
type Submission struct {
	TxHash      common.Hash
	Bid         models.FeeBid
	BumpPercent int64
	Attempts    int
}

// Controller retries failed submissions with a rising fee bump.
type Controller struct {
	maxAttempts int
	step        int64
	delay       time.Duration
	clock       clockwork.Clock
	onRetry     RetryObserver
}

// NewController creates a controller. onRetry may be nil.
func NewController(maxAttempts int, step int64, delay time.Duration, clock clockwork.Clock, onRetry RetryObserver) *Controller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Controller{
		maxAttempts: maxAttempts,
		step:        step,
		delay:       delay,
		clock:       clock,
		onRetry:     onRetry,
	}
}

// EffectiveBump is the bump used by attempt k (1-based).
func EffectiveBump(basePercent, step int64, attempt int) int64 {
	return basePercent + int64(attempt-1)*step
}

// SubmitWithRetry sends first, then on each failure rebids at a higher bump and
// sends again, up to maxAttempts sends in total. Every failure is handled the
// same way; its class only shows up in the log.
func (c *Controller) SubmitWithRetry(ctx context.Context, first models.FeeBid, basePercent int64, rebid RebidFunc, send SendFunc) (Submission, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		bump := EffectiveBump(basePercent, c.step, attempt)
		bid := first
		if attempt > 1 {
			bid = rebid(ctx, bump)
		}

		var err error
		if bid.IsZero() {
			err = config.ErrZeroFeeBid
		} else {
			var txHash common.Hash
			txHash, err = send(ctx, bid, attempt)
			if err == nil {
				return Submission{TxHash: txHash, Bid: bid, BumpPercent: bump, Attempts: attempt}, nil
			}
		}
		lastErr = err

		slog.Warn("sweep submission failed",
			"attempt", attempt,
			"maxAttempts", c.maxAttempts,
			"bumpPercent", bump,
			"class", chain.ClassifySubmitError(err),
			"error", err,
		)

		if attempt == c.maxAttempts {
			break
		}
		if c.onRetry != nil {
			c.onRetry(ctx, attempt, bump, bid, err)
		}
		if err := c.wait(ctx); err != nil {
			return Submission{Attempts: attempt}, fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
		}
	}

	return Submission{Attempts: c.maxAttempts}, fmt.Errorf("%w after %d attempts: %w", config.ErrRetriesExhausted, c.maxAttempts, lastErr)
}

func (c *Controller) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(c.delay):
		return nil
	}
}
