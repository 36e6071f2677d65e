package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/sweep"
)

// Sweeper is the part of *sweep.Sweeper the API uses.
type Sweeper interface {
	Snapshot() sweep.Snapshot
	AttemptSweep(ctx context.Context, reason models.TriggerReason) models.SweepResult
}

// GetStatus handles GET /api/status.
func GetStatus(s Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.APIResponse{Data: s.Snapshot()})
	}
}

type sweepResultResponse struct {
	AttemptID            string `json:"attemptId"`
	Trigger              string `json:"trigger"`
	Outcome              string `json:"outcome"`
	Reason               string `json:"reason,omitempty"`
	TxHash               string `json:"txHash,omitempty"`
	Amount               string `json:"amount,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
	Attempts             int    `json:"attempts,omitempty"`
	Error                string `json:"error,omitempty"`
	DurationMS           int64  `json:"durationMs"`
}

// TriggerSweep handles POST /api/sweep: one manual attempt, answered with its result.
// The attempt is not cancelled if the client goes away mid-submission.
func TriggerSweep(s Sweeper) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("manual sweep requested", "remoteAddr", r.RemoteAddr)

		res := s.AttemptSweep(context.WithoutCancel(r.Context()), models.TriggerManual)
		writeJSON(w, http.StatusOK, models.APIResponse{Data: toSweepResultResponse(res)})
	}
}

func toSweepResultResponse(res models.SweepResult) sweepResultResponse {
	out := sweepResultResponse{
		AttemptID:  res.AttemptID,
		Trigger:    string(res.Trigger),
		Outcome:    string(res.Outcome),
		Reason:     res.Reason,
		Attempts:   res.Attempts,
		DurationMS: res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	}
	if res.TxHash != (common.Hash{}) {
		out.TxHash = res.TxHash.Hex()
	}
	if res.Amount != nil {
		out.Amount = res.Amount.String()
	}
	if res.Bid.MaxFeePerGas != nil {
		out.MaxFeePerGas = res.Bid.MaxFeePerGas.String()
	}
	if res.Bid.MaxPriorityFeePerGas != nil {
		out.MaxPriorityFeePerGas = res.Bid.MaxPriorityFeePerGas.String()
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
