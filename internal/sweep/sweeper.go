package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/report"
	"github.com/Fantasim/fcfsweep/internal/units"
)

// Sweeper moves everything above the reserve from one account to the
// destination as soon as it shows up. It owns the guard, the pending
// submission and the run counters.
type Sweeper struct {
	cfg      Config
	net      Network
	fees     *FeeEstimator
	retry    *Controller
	guard    *Guard
	triggers *Multiplexer
	reporter report.Reporter
	clock    clockwork.Clock

	startedAt time.Time
	counters  counters

	lastMu sync.Mutex
	last   *models.SweepResult

	// Confirmation monitors outlive the attempt that started them but not the sweeper.
	monitorCtx   context.Context
	stopMonitors context.CancelFunc
	wg           sync.WaitGroup
}

type counters struct {
	attempts  atomic.Int64
	submitted atomic.Int64
	skipped   atomic.Int64
	failed    atomic.Int64
	confirmed atomic.Int64
	reverted  atomic.Int64
	dropped   atomic.Int64
}

// New validates cfg and creates a Sweeper. A nil reporter discards events.
func New(cfg Config, net Network, reporter report.Reporter) (*Sweeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = report.Nop{}
	}

	monitorCtx, stopMonitors := context.WithCancel(context.Background())
	s := &Sweeper{
		cfg:          cfg,
		net:          net,
		fees:         NewFeeEstimator(net, cfg.MinPriorityFee, cfg.MinMaxFee),
		guard:        NewGuard(),
		triggers:     NewMultiplexer(net, cfg),
		reporter:     reporter,
		clock:        cfg.Clock,
		startedAt:    cfg.Clock.Now(),
		monitorCtx:   monitorCtx,
		stopMonitors: stopMonitors,
	}
	s.retry = NewController(cfg.MaxAttempts, cfg.EscalationStep, cfg.RetryDelay, cfg.Clock, s.reportRetry)

	slog.Info("sweeper initialized",
		"account", cfg.Account.Hex(),
		"destination", cfg.Destination.Hex(),
		"asset", cfg.Asset,
		"symbol", cfg.Token.Symbol,
		"reserve", s.display(cfg.Reserve),
		"pollInterval", cfg.PollInterval,
		"feeBumpPercent", cfg.FeeBumpPercent,
		"safetyMarginPercent", cfg.SafetyMarginPercent,
		"maxAttempts", cfg.MaxAttempts,
	)
	return s, nil
}

// Guard exposes the submission guard for status reporting.
func (s *Sweeper) Guard() *Guard {
	return s.guard
}

// Run reports startup, then dispatches every trigger to AttemptSweep in its own
// goroutine until ctx is cancelled. It waits for in-flight attempts before returning.
func (s *Sweeper) Run(ctx context.Context) error {
	s.reportStartup()

	triggers := make(chan models.Trigger, config.TriggerBufferLen)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.triggers.Run(ctx, triggers)
	})
	g.Go(func() error {
		s.heartbeat(ctx)
		return nil
	})
	g.Go(func() error {
		s.dispatch(ctx, triggers)
		return nil
	})

	err := g.Wait()
	s.Shutdown()

	slog.Info("sweeper stopped",
		"attempts", s.counters.attempts.Load(),
		"submitted", s.counters.submitted.Load(),
		"uptime", s.clock.Since(s.startedAt).Round(time.Second),
	)
	return err
}

func (s *Sweeper) dispatch(ctx context.Context, triggers <-chan models.Trigger) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-triggers:
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.AttemptSweep(ctx, t.Reason)
			}()
		}
	}
}

// Wait blocks until in-flight attempts and confirmation monitors finish.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

// Shutdown stops confirmation monitors and waits for everything to finish.
func (s *Sweeper) Shutdown() {
	s.stopMonitors()
	s.wg.Wait()
}

// AttemptSweep runs one sweep cycle. It never panics and never returns with
// the guard held; every result is reported.
func (s *Sweeper) AttemptSweep(ctx context.Context, reason models.TriggerReason) (res models.SweepResult) {
	res = models.SweepResult{
		AttemptID: uuid.New().String(),
		Trigger:   reason,
		StartedAt: s.clock.Now(),
	}
	defer func() {
		res.FinishedAt = s.clock.Now()
		s.finish(res)
	}()

	if !s.guard.Begin() {
		skip(&res, models.SkipBusy, nil)
		return res
	}
	defer s.guard.Release()
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = models.OutcomeFailed
			res.Err = fmt.Errorf("sweep attempt panicked: %v", r)
			slog.Error("sweep attempt panicked",
				"attemptID", res.AttemptID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx = withAttemptID(ctx, res.AttemptID)

	s.guard.advance(StatePendingCheck)
	check, err := s.guard.CheckPending(ctx, s.net, s.cfg.Account)
	if check.Cleared != nil {
		s.reportCleared(check)
	}
	if !check.Clear {
		if err != nil {
			slog.Debug("pending lookup failed, treating as still pending", "error", err)
		}
		skip(&res, models.SkipPendingExists, err)
		return res
	}
	s.guard.advance(StateClearToSend)

	nativeBalance, err := s.net.BalanceAt(ctx, s.cfg.Account)
	if err != nil {
		skip(&res, models.SkipBalanceUnavailable, err)
		return res
	}
	sweepBalance := nativeBalance
	if s.cfg.Asset == models.AssetToken {
		sweepBalance, err = s.net.TokenBalanceAt(ctx, s.cfg.TokenContract, s.cfg.Account)
		if err != nil {
			skip(&res, models.SkipBalanceUnavailable, err)
			return res
		}
	}

	// Nothing above the reserve: skip before spending RPC calls on fees.
	if sweepBalance.Cmp(s.cfg.Reserve) <= 0 {
		res.Amount = new(big.Int)
		skip(&res, models.SkipInsufficient, nil)
		return res
	}

	bid := s.fees.EstimateBid(ctx, s.cfg.FeeBumpPercent)
	res.Bid = bid
	if bid.IsZero() {
		skip(&res, models.SkipFeeUnavailable, config.ErrZeroFeeBid)
		return res
	}

	var (
		allowance Allowance
		tokenGas  uint64
	)
	if s.cfg.Asset == models.AssetToken {
		tokenAmount := ComputeSendable(sweepBalance, s.cfg.Reserve, new(big.Int), 0)
		tokenGas = s.estimateTokenGas(ctx, tokenAmount)
		allowance = EvaluateToken(sweepBalance, s.cfg.Reserve, s.cfg.Dust, nativeBalance, tokenGas, bid, s.cfg.SafetyMarginPercent)
	} else {
		allowance = EvaluateNative(nativeBalance, s.cfg.Reserve, s.cfg.Dust, bid, s.cfg.SafetyMarginPercent)
	}
	res.Amount = allowance.Amount
	if !allowance.Sendable() {
		skip(&res, allowance.Reason, nil)
		return res
	}

	s.guard.advance(StateSubmitting)

	var (
		sent       models.TransferRequest
		nonce      uint64
		pinned     bool
		unresolved *models.PendingSubmission
	)
	send := func(ctx context.Context, bid models.FeeBid, attempt int) (common.Hash, error) {
		req, err := s.buildRequest(nativeBalance, sweepBalance, tokenGas, bid)
		if err != nil {
			return common.Hash{}, err
		}
		// All attempts share the first nonce: a retry replaces an earlier
		// broadcast and can never queue a second transfer behind it.
		if !pinned {
			if nonce, err = s.net.NonceAt(ctx, s.cfg.Account, models.NoncePending); err != nil {
				return common.Hash{}, fmt.Errorf("get pending nonce: %w", err)
			}
			pinned = true
		}
		req.Nonce = nonce

		txHash, err := s.submit(ctx, req)
		if err != nil {
			if txHash == (common.Hash{}) {
				return common.Hash{}, err
			}
			known, lookupErr := s.knownToNode(ctx, txHash)
			if !known {
				if lookupErr != nil {
					unresolved = &models.PendingSubmission{
						TxHash:    txHash,
						Nonce:     req.Nonce,
						Amount:    req.Amount,
						Bid:       bid,
						AttemptID: res.AttemptID,
					}
				}
				return common.Hash{}, err
			}
			slog.Warn("broadcast returned an error but the node holds the transaction",
				"txHash", txHash.Hex(),
				"nonce", req.Nonce,
				"attempt", attempt,
				"error", err,
			)
		}
		sent = req
		unresolved = nil
		return txHash, nil
	}

	sub, err := s.retry.SubmitWithRetry(ctx, bid, s.cfg.FeeBumpPercent, s.fees.EstimateBid, send)
	res.Attempts = sub.Attempts
	if err != nil {
		res.Outcome = models.OutcomeFailed
		res.Err = err
		if unresolved != nil {
			// The last broadcast may be live. Hold the guard on it so the
			// next trigger resolves it before sending anything new.
			unresolved.SubmittedAt = s.clock.Now()
			slog.Warn("recording broadcast with unknown status",
				"txHash", unresolved.TxHash.Hex(),
				"nonce", unresolved.Nonce,
			)
			s.guard.Record(*unresolved)
			s.watch(*unresolved)
			res.TxHash = unresolved.TxHash
		}
		return res
	}

	pending := models.PendingSubmission{
		TxHash:      sub.TxHash,
		Nonce:       sent.Nonce,
		Amount:      sent.Amount,
		Bid:         sub.Bid,
		AttemptID:   res.AttemptID,
		SubmittedAt: s.clock.Now(),
	}
	s.guard.Record(pending)
	s.watch(pending)

	res.Outcome = models.OutcomeSubmitted
	res.TxHash = sub.TxHash
	res.Amount = sent.Amount
	res.Bid = sub.Bid
	return res
}

// buildRequest sizes one submission at bid. Native sweeps shrink as the bid
// grows; token sweeps must still afford gas at the new bid.
func (s *Sweeper) buildRequest(nativeBalance, sweepBalance *big.Int, tokenGas uint64, bid models.FeeBid) (models.TransferRequest, error) {
	req := models.TransferRequest{To: s.cfg.Destination, Bid: bid}

	if s.cfg.Asset == models.AssetToken {
		if need := RequiredGasBalance(tokenGas, bid, s.cfg.SafetyMarginPercent); nativeBalance.Cmp(need) < 0 {
			return req, fmt.Errorf("%w: have %s, need %s wei", config.ErrInsufficientGas, nativeBalance, need)
		}
		req.Amount = ComputeSendable(sweepBalance, s.cfg.Reserve, new(big.Int), 0)
		req.GasLimit = PaddedGas(tokenGas)
	} else {
		allowance := EvaluateNative(nativeBalance, s.cfg.Reserve, s.cfg.Dust, bid, s.cfg.SafetyMarginPercent)
		if !allowance.Sendable() {
			return req, fmt.Errorf("%w: %s at max fee %s gwei", config.ErrBelowDust, allowance.Reason, units.FormatGwei(bid.MaxFeePerGas))
		}
		req.Amount = allowance.Amount
		req.GasLimit = config.NativeTransferGas
	}
	return req, nil
}

func (s *Sweeper) submit(ctx context.Context, req models.TransferRequest) (common.Hash, error) {
	if s.cfg.Asset == models.AssetToken {
		return s.net.SubmitTokenTransfer(ctx, s.cfg.TokenContract, req)
	}
	return s.net.SubmitNativeTransfer(ctx, req)
}

// knownToNode reports whether a broadcast that returned an error reached the
// node anyway.
func (s *Sweeper) knownToNode(ctx context.Context, txHash common.Hash) (bool, error) {
	status, err := s.net.TransactionStatus(ctx, txHash)
	if err != nil {
		slog.Warn("status lookup after failed broadcast failed",
			"txHash", txHash.Hex(),
			"error", err,
		)
		return false, err
	}
	return status == models.TxPending || status == models.TxMined, nil
}

func (s *Sweeper) estimateTokenGas(ctx context.Context, amount *big.Int) uint64 {
	gas, err := s.net.EstimateTokenTransferGas(ctx, s.cfg.TokenContract, s.cfg.Account, s.cfg.Destination, amount)
	if err != nil || gas == 0 {
		slog.Warn("token transfer gas estimate failed, using fallback",
			"fallback", config.TokenTransferGasFallback,
			"error", err,
		)
		return config.TokenTransferGasFallback
	}
	return gas
}

func (s *Sweeper) heartbeat(ctx context.Context) {
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.reporter.Report(s.heartbeatEvent())
		}
	}
}

func skip(res *models.SweepResult, reason string, err error) {
	res.Outcome = models.OutcomeSkipped
	res.Reason = reason
	res.Err = err
}

func (s *Sweeper) finish(res models.SweepResult) {
	s.counters.attempts.Add(1)
	switch res.Outcome {
	case models.OutcomeSubmitted:
		s.counters.submitted.Add(1)
	case models.OutcomeSkipped:
		s.counters.skipped.Add(1)
	case models.OutcomeFailed:
		s.counters.failed.Add(1)
	}

	if res.Reason != models.SkipBusy {
		s.lastMu.Lock()
		s.last = &res
		s.lastMu.Unlock()
	}

	s.reporter.Report(s.resultEvent(res))
}

type attemptIDKey struct{}

func withAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey{}, id)
}

func attemptIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(attemptIDKey{}).(string)
	return id
}
