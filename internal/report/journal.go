package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/Fantasim/fcfsweep/internal/db"
)

// Journal persists events to the SQLite journal. Write failures are logged
// and never reach the sweeper.
type Journal struct {
	db *db.DB
}

// NewJournal wraps an opened, migrated journal database.
func NewJournal(d *db.DB) *Journal {
	return &Journal{db: d}
}

// Report inserts ev into sweep_events. Write failures are logged and dropped.
func (j *Journal) Report(ev Event) {
	if _, err := j.db.InsertEvent(toRow(ev)); err != nil {
		slog.Error("journal write failed",
			"kind", ev.Kind,
			"attemptID", ev.AttemptID,
			"error", err,
		)
	}
}

// RecentEvents reads events back from the journal, newest first.
func (j *Journal) RecentEvents(_ context.Context, kind Kind, limit int) ([]Event, error) {
	rows, err := j.db.ListEvents(string(kind), limit)
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromRow(row))
	}
	return events, nil
}

func toRow(ev Event) db.EventRow {
	return db.EventRow{
		CreatedAt:            ev.Time.UTC().Format(time.RFC3339Nano),
		Kind:                 string(ev.Kind),
		AttemptID:            ev.AttemptID,
		Trigger:              ev.Trigger,
		Outcome:              ev.Outcome,
		Reason:               ev.Reason,
		TxHash:               ev.TxHash,
		Amount:               ev.Amount,
		AmountDisplay:        ev.AmountDisplay,
		MaxFeePerGas:         ev.MaxFeePerGas,
		MaxPriorityFeePerGas: ev.MaxPriorityFeePerGas,
		Attempt:              ev.Attempt,
		DurationMS:           ev.DurationMS,
		Error:                ev.Error,
		Message:              ev.Message,
	}
}

func fromRow(row db.EventRow) Event {
	t, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		slog.Warn("journal row has unparseable time", "id", row.ID, "createdAt", row.CreatedAt)
	}
	return Event{
		Time:                 t,
		Kind:                 Kind(row.Kind),
		AttemptID:            row.AttemptID,
		Trigger:              row.Trigger,
		Outcome:              row.Outcome,
		Reason:               row.Reason,
		TxHash:               row.TxHash,
		Amount:               row.Amount,
		AmountDisplay:        row.AmountDisplay,
		MaxFeePerGas:         row.MaxFeePerGas,
		MaxPriorityFeePerGas: row.MaxPriorityFeePerGas,
		Attempt:              row.Attempt,
		DurationMS:           row.DurationMS,
		Error:                row.Error,
		Message:              row.Message,
	}
}
