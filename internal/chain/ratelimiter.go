package chain

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// rpcLimiter caps the sustained request rate against the node. One sweep
// attempt issues a handful of reads back to back, so the burst equals the
// per-second rate: an attempt goes through unthrottled and only steady
// polling is spread out.
type rpcLimiter struct {
	limiter *rate.Limiter
}

func newRPCLimiter(perSecond int) *rpcLimiter {
	return &rpcLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), max(perSecond, 1))}
}

// Wait blocks until a request may go out and returns how long that took.
func (l *rpcLimiter) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := l.limiter.Wait(ctx)
	return time.Since(start), err
}
