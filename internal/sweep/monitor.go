package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/report"
)

// watch waits for p in the background. Its only effects are clearing the
// guard's pending submission and reporting; nothing it does reaches an attempt.
func (s *Sweeper) watch(p models.PendingSubmission) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("confirmation monitor panicked", "txHash", p.TxHash.Hex(), "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(s.monitorCtx, s.cfg.ConfirmTimeout)
		defer cancel()

		conf, err := s.net.WaitMined(ctx, p.TxHash)
		ev := s.pendingEvent(p)

		switch {
		case err == nil:
			s.guard.ClearIf(p.TxHash)
			s.counters.confirmed.Add(1)
			ev.Kind = report.KindConfirmed
			ev.Message = fmt.Sprintf("mined in block %d, gas used %d", conf.BlockNumber, conf.GasUsed)
		case errors.Is(err, config.ErrTxReverted):
			s.guard.ClearIf(p.TxHash)
			s.counters.reverted.Add(1)
			ev.Kind = report.KindReverted
			ev.Message = fmt.Sprintf("reverted in block %d", conf.BlockNumber)
			ev.Error = err.Error()
		case s.monitorCtx.Err() != nil:
			slog.Debug("confirmation monitor stopped", "txHash", p.TxHash.Hex())
			return
		default:
			// Left pending: the next attempt's pending check decides.
			ev.Kind = report.KindError
			ev.Message = "confirmation not observed"
			ev.Error = err.Error()
		}

		s.reporter.Report(ev)
	}()
}

// reportCleared reports a pending submission the guard just forgot.
func (s *Sweeper) reportCleared(check PendingCheck) {
	switch check.Status {
	case models.TxAbsent:
		s.counters.dropped.Add(1)
		ev := s.pendingEvent(*check.Cleared)
		ev.Kind = report.KindDropped
		ev.Message = "transaction no longer known to the node"
		s.reporter.Report(ev)
	case models.TxMined:
		slog.Debug("pending submission mined", "txHash", check.Cleared.TxHash.Hex())
	default:
		slog.Debug("pending submission cleared", "txHash", check.Cleared.TxHash.Hex())
	}
}
