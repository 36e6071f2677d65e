package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/report"
)

// ListEvents handles GET /api/events?kind=attempt&limit=50.
func ListEvents(src report.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if src == nil {
			writeError(w, http.StatusServiceUnavailable, config.ErrorJournalOff, "event history is not enabled")
			return
		}

		kind := report.Kind(r.URL.Query().Get("kind"))
		if kind != "" && !kind.Valid() {
			writeError(w, http.StatusBadRequest, config.ErrorInvalidRequest,
				fmt.Sprintf("unknown event kind %q", kind))
			return
		}

		limit := parseIntParam(r, "limit", config.DefaultEventsLimit)
		if limit < 1 {
			limit = config.DefaultEventsLimit
		}
		if limit > config.MaxEventsLimit {
			limit = config.MaxEventsLimit
		}

		events, err := src.RecentEvents(r.Context(), kind, limit)
		if err != nil {
			slog.Error("failed to list events", "kind", kind, "error", err)
			writeError(w, http.StatusInternalServerError, config.ErrorDatabase, "failed to list events")
			return
		}
		if events == nil {
			events = []report.Event{}
		}

		slog.Debug("events listed", "kind", kind, "limit", limit, "count", len(events))

		writeJSON(w, http.StatusOK, models.APIResponse{
			Data: events,
			Meta: &models.APIMeta{Total: len(events), Limit: limit},
		})
	}
}
