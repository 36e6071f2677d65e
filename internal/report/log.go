package report

import (
	"context"
	"log/slog"

	"github.com/Fantasim/fcfsweep/internal/models"
)

// LogReporter writes each event as a status line on a slog.Logger.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter creates a LogReporter. A nil logger uses slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs ev at a level chosen by its kind and outcome.
func (r *LogReporter) Report(ev Event) {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}

	level, msg := describe(ev)
	logger.Log(context.Background(), level, msg, ev.attrs()...)
}

func describe(ev Event) (slog.Level, string) {
	switch ev.Kind {
	case KindStartup:
		return slog.LevelInfo, "sweeper started"
	case KindHeartbeat:
		return slog.LevelInfo, "heartbeat"
	case KindRetry:
		return slog.LevelWarn, "submission failed, retrying with higher bid"
	case KindConfirmed:
		return slog.LevelInfo, "sweep confirmed"
	case KindReverted:
		return slog.LevelError, "sweep reverted"
	case KindDropped:
		return slog.LevelWarn, "pending sweep dropped"
	case KindError:
		return slog.LevelError, "sweeper error"
	case KindAttempt:
		switch models.Outcome(ev.Outcome) {
		case models.OutcomeSubmitted:
			return slog.LevelInfo, "sweep submitted"
		case models.OutcomeFailed:
			return slog.LevelError, "sweep failed"
		}
		// Busy and pending skips fire on every trigger while a sweep is in flight.
		if ev.Reason == models.SkipBusy || ev.Reason == models.SkipPendingExists {
			return slog.LevelDebug, "sweep skipped"
		}
		return slog.LevelInfo, "sweep skipped"
	}
	return slog.LevelInfo, string(ev.Kind)
}

func (ev Event) attrs() []any {
	attrs := []any{"kind", string(ev.Kind)}
	add := func(key, val string) {
		if val != "" {
			attrs = append(attrs, key, val)
		}
	}

	add("attemptID", ev.AttemptID)
	add("trigger", ev.Trigger)
	add("outcome", ev.Outcome)
	add("reason", ev.Reason)
	add("txHash", ev.TxHash)
	if ev.AmountDisplay != "" {
		add("amount", ev.AmountDisplay)
	} else {
		add("amount", ev.Amount)
	}
	add("maxFeePerGas", ev.MaxFeePerGas)
	add("maxPriorityFeePerGas", ev.MaxPriorityFeePerGas)
	if ev.Attempt > 0 {
		attrs = append(attrs, "attempt", ev.Attempt)
	}
	if ev.DurationMS > 0 {
		attrs = append(attrs, "durationMs", ev.DurationMS)
	}
	add("error", ev.Error)
	add("message", ev.Message)
	return attrs
}
