package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/units"
)

var errSubscriptionClosed = errors.New("subscription closed")

// Multiplexer merges the startup signal, new blocks, incoming token transfers
// and the poll timer into one trigger channel. It does not deduplicate; the
// Guard does.
type Multiplexer struct {
	net          Network
	account      common.Address
	contract     common.Address
	tokenMeta    models.TokenMeta
	watchTokens  bool
	pollInterval time.Duration
	clock        clockwork.Clock
}

// NewMultiplexer creates a multiplexer for a validated cfg.
func NewMultiplexer(net Network, cfg Config) *Multiplexer {
	return &Multiplexer{
		net:          net,
		account:      cfg.Account,
		contract:     cfg.TokenContract,
		tokenMeta:    cfg.Token,
		watchTokens:  cfg.Asset == models.AssetToken,
		pollInterval: cfg.PollInterval,
		clock:        cfg.Clock,
	}
}

// Run emits a startup trigger and then feeds out until ctx is cancelled.
func (m *Multiplexer) Run(ctx context.Context, out chan<- models.Trigger) error {
	if !m.emit(ctx, out, models.TriggerStartup) {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m.watchBlocks(ctx, out)
		return nil
	})
	if m.watchTokens {
		g.Go(func() error {
			m.watchTransfers(ctx, out)
			return nil
		})
	}
	if m.pollInterval > 0 {
		g.Go(func() error {
			m.pollTimer(ctx, out)
			return nil
		})
	}

	slog.Info("trigger sources started",
		"newBlocks", true,
		"incomingTransfers", m.watchTokens,
		"pollInterval", m.pollInterval,
	)
	return g.Wait()
}

func (m *Multiplexer) emit(ctx context.Context, out chan<- models.Trigger, reason models.TriggerReason) bool {
	select {
	case out <- models.Trigger{Reason: reason, At: m.clock.Now()}:
		return true
	case <-ctx.Done():
		return false
	}
}

// watchBlocks keeps a new-block subscription alive, resubscribing with
// backoff when it fails or ends.
func (m *Multiplexer) watchBlocks(ctx context.Context, out chan<- models.Trigger) {
	delay := config.ResubscribeDelay
	for {
		blocks := make(chan models.BlockInfo, config.SubscriptionBufferLen)
		sub, err := m.net.SubscribeNewBlocks(ctx, blocks)
		if err != nil {
			slog.Warn("new block subscription failed", "error", err, "retryIn", delay)
			if !m.sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, config.MaxResubscribeDelay)
			continue
		}
		delay = config.ResubscribeDelay

		err = forward(ctx, sub, blocks, func(b models.BlockInfo) bool {
			slog.Debug("new block", "number", b.Number)
			return m.emit(ctx, out, models.TriggerNewBlock)
		})
		sub.Unsubscribe()
		if ctx.Err() != nil {
			return
		}

		slog.Warn("new block subscription ended, resubscribing", "error", err, "retryIn", delay)
		if !m.sleep(ctx, delay) {
			return
		}
	}
}

// watchTransfers is best-effort: if the endpoint cannot filter logs the
// sweeper relies on blocks and the poll timer alone.
func (m *Multiplexer) watchTransfers(ctx context.Context, out chan<- models.Trigger) {
	for {
		transfers := make(chan models.TransferEvent, config.SubscriptionBufferLen)
		sub, err := m.net.SubscribeIncomingTransfers(ctx, m.contract, m.account, transfers)
		if err != nil {
			slog.Debug("incoming transfer subscription unavailable, relying on blocks and polling", "error", err)
			return
		}

		err = forward(ctx, sub, transfers, func(ev models.TransferEvent) bool {
			slog.Info("incoming transfer detected",
				"from", ev.From.Hex(),
				"amount", units.FromBaseUnits(ev.Amount, m.tokenMeta.Decimals),
				"symbol", m.tokenMeta.Symbol,
				"txHash", ev.TxHash.Hex(),
				"block", ev.BlockNumber,
			)
			return m.emit(ctx, out, models.TriggerIncomingTransfer)
		})
		sub.Unsubscribe()
		if ctx.Err() != nil {
			return
		}

		slog.Debug("incoming transfer subscription ended, resubscribing", "error", err)
		if !m.sleep(ctx, config.ResubscribeDelay) {
			return
		}
	}
}

func (m *Multiplexer) pollTimer(ctx context.Context, out chan<- models.Trigger) {
	ticker := m.clock.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !m.emit(ctx, out, models.TriggerPollTimer) {
				return
			}
		}
	}
}

func (m *Multiplexer) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(d):
		return true
	}
}

// forward calls handle for every item until the subscription fails, handle
// returns false, or ctx is cancelled.
func forward[T any](ctx context.Context, sub ethereum.Subscription, items <-chan T, handle func(T) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return err
		case item := <-items:
			if !handle(item) {
				return ctx.Err()
			}
		}
	}
}
