package sweep

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/report"
	"github.com/Fantasim/fcfsweep/internal/units"
)

// Snapshot is a point-in-time view of the sweeper for the status API.
type Snapshot struct {
	Account       string                    `json:"account"`
	Destination   string                    `json:"destination"`
	Asset         models.AssetKind          `json:"asset"`
	TokenContract string                    `json:"tokenContract,omitempty"`
	Token         models.TokenMeta          `json:"token"`
	Reserve       string                    `json:"reserve"`
	GuardState    GuardState                `json:"guardState"`
	Pending       *models.PendingSubmission `json:"pending,omitempty"`
	LastAttempt   *AttemptSummary           `json:"lastAttempt,omitempty"`
	Counters      Counters                  `json:"counters"`
	StartedAt     time.Time                 `json:"startedAt"`
	UptimeSeconds int64                     `json:"uptimeSeconds"`
}

// AttemptSummary is the last non-busy attempt.
type AttemptSummary struct {
	AttemptID  string    `json:"attemptId"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	TxHash     string    `json:"txHash,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Counters are totals since start.
type Counters struct {
	Attempts  int64 `json:"attempts"`
	Submitted int64 `json:"submitted"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Confirmed int64 `json:"confirmed"`
	Reverted  int64 `json:"reverted"`
	Dropped   int64 `json:"dropped"`
}

// Snapshot returns the current state.
func (s *Sweeper) Snapshot() Snapshot {
	snap := Snapshot{
		Account:       s.cfg.Account.Hex(),
		Destination:   s.cfg.Destination.Hex(),
		Asset:         s.cfg.Asset,
		Token:         s.cfg.Token,
		Reserve:       s.display(s.cfg.Reserve),
		GuardState:    s.guard.State(),
		Pending:       s.guard.Pending(),
		Counters:      s.countersSnapshot(),
		StartedAt:     s.startedAt,
		UptimeSeconds: int64(s.clock.Since(s.startedAt).Seconds()),
	}
	if s.cfg.Asset == models.AssetToken {
		snap.TokenContract = s.cfg.TokenContract.Hex()
	}

	s.lastMu.Lock()
	last := s.last
	s.lastMu.Unlock()
	if last != nil {
		summary := &AttemptSummary{
			AttemptID:  last.AttemptID,
			Trigger:    string(last.Trigger),
			Outcome:    string(last.Outcome),
			Reason:     last.Reason,
			FinishedAt: last.FinishedAt,
		}
		if last.TxHash != (common.Hash{}) {
			summary.TxHash = last.TxHash.Hex()
		}
		if last.Amount != nil {
			summary.Amount = s.display(last.Amount)
		}
		if last.Err != nil {
			summary.Error = last.Err.Error()
		}
		snap.LastAttempt = summary
	}
	return snap
}

func (s *Sweeper) countersSnapshot() Counters {
	return Counters{
		Attempts:  s.counters.attempts.Load(),
		Submitted: s.counters.submitted.Load(),
		Skipped:   s.counters.skipped.Load(),
		Failed:    s.counters.failed.Load(),
		Confirmed: s.counters.confirmed.Load(),
		Reverted:  s.counters.reverted.Load(),
		Dropped:   s.counters.dropped.Load(),
	}
}

func (s *Sweeper) display(amount *big.Int) string {
	return units.FromBaseUnits(amount, s.cfg.Token.Decimals) + " " + s.cfg.Token.Symbol
}

func (s *Sweeper) resultEvent(res models.SweepResult) report.Event {
	ev := report.Event{
		Time:      res.FinishedAt,
		Kind:      report.KindAttempt,
		AttemptID: res.AttemptID,
		Trigger:   string(res.Trigger),
		Outcome:   string(res.Outcome),
		Reason:    res.Reason,
		Attempt:   res.Attempts,
	}
	if res.TxHash != (common.Hash{}) {
		ev.TxHash = res.TxHash.Hex()
	}
	if res.Amount != nil {
		ev.Amount = res.Amount.String()
		ev.AmountDisplay = s.display(res.Amount)
	}
	setBid(&ev, res.Bid)
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	if res.Reason != models.SkipBusy {
		ev.DurationMS = res.FinishedAt.Sub(res.StartedAt).Milliseconds()
	}
	return ev
}

func (s *Sweeper) pendingEvent(p models.PendingSubmission) report.Event {
	ev := report.Event{
		Time:      s.clock.Now(),
		AttemptID: p.AttemptID,
		TxHash:    p.TxHash.Hex(),
	}
	if p.Amount != nil {
		ev.Amount = p.Amount.String()
		ev.AmountDisplay = s.display(p.Amount)
	}
	setBid(&ev, p.Bid)
	return ev
}

func (s *Sweeper) reportRetry(ctx context.Context, attempt int, bumpPercent int64, bid models.FeeBid, err error) {
	ev := report.Event{
		Time:      s.clock.Now(),
		Kind:      report.KindRetry,
		AttemptID: attemptIDFrom(ctx),
		Attempt:   attempt,
		Error:     err.Error(),
		Message:   fmt.Sprintf("bump %d%% failed", bumpPercent),
	}
	setBid(&ev, bid)
	s.reporter.Report(ev)
}

func (s *Sweeper) reportStartup() {
	msg := fmt.Sprintf("sweeping %s %s from %s to %s above reserve %s",
		s.cfg.Asset, s.cfg.Token.Symbol, s.cfg.Account.Hex(), s.cfg.Destination.Hex(), s.display(s.cfg.Reserve))
	if s.cfg.Asset == models.AssetToken {
		msg += fmt.Sprintf(" (contract %s, %d decimals)", s.cfg.TokenContract.Hex(), s.cfg.Token.Decimals)
	}
	s.reporter.Report(report.Event{
		Time:    s.clock.Now(),
		Kind:    report.KindStartup,
		Message: msg,
	})
}

func (s *Sweeper) heartbeatEvent() report.Event {
	c := s.countersSnapshot()
	msg := fmt.Sprintf("uptime %s, attempts %d, submitted %d, confirmed %d, guard %s",
		s.clock.Since(s.startedAt).Round(time.Second), c.Attempts, c.Submitted, c.Confirmed, s.guard.State())
	ev := report.Event{
		Time:    s.clock.Now(),
		Kind:    report.KindHeartbeat,
		Message: msg,
	}
	if p := s.guard.Pending(); p != nil {
		ev.TxHash = p.TxHash.Hex()
	}
	return ev
}

func setBid(ev *report.Event, bid models.FeeBid) {
	if bid.MaxFeePerGas != nil {
		ev.MaxFeePerGas = bid.MaxFeePerGas.String()
	}
	if bid.MaxPriorityFeePerGas != nil {
		ev.MaxPriorityFeePerGas = bid.MaxPriorityFeePerGas.String()
	}
}
