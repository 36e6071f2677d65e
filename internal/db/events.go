package db

import (
	"fmt"
	"log/slog"
)

// EventRow is one row of the sweep_events table.
type EventRow struct {
	ID                   int64
	CreatedAt            string
	Kind                 string
	AttemptID            string
	Trigger              string
	Outcome              string
	Reason               string
	TxHash               string
	Amount               string
	AmountDisplay        string
	MaxFeePerGas         string
	MaxPriorityFeePerGas string
	Attempt              int
	DurationMS           int64
	Error                string
	Message              string
}

// InsertEvent appends an event and returns its ID.
func (d *DB) InsertEvent(ev EventRow) (int64, error) {
	result, err := d.conn.Exec(
		`INSERT INTO sweep_events (created_at, kind, attempt_id, trigger_reason, outcome, reason, tx_hash,
		                           amount, amount_display, max_fee_per_gas, max_priority_fee_per_gas,
		                           attempt, duration_ms, error, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.CreatedAt,
		ev.Kind,
		ev.AttemptID,
		ev.Trigger,
		ev.Outcome,
		ev.Reason,
		ev.TxHash,
		ev.Amount,
		ev.AmountDisplay,
		ev.MaxFeePerGas,
		ev.MaxPriorityFeePerGas,
		ev.Attempt,
		ev.DurationMS,
		ev.Error,
		ev.Message,
	)
	if err != nil {
		return 0, fmt.Errorf("insert %s event: %w", ev.Kind, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	slog.Debug("event journaled", "id", id, "kind", ev.Kind, "attemptID", ev.AttemptID)
	return id, nil
}

// ListEvents returns up to limit events, newest first. An empty kind
// returns every kind.
func (d *DB) ListEvents(kind string, limit int) ([]EventRow, error) {
	where := "1=1"
	var args []interface{}
	if kind != "" {
		where = "kind = ?"
		args = append(args, kind)
	}
	args = append(args, limit)

	rows, err := d.conn.Query(
		`SELECT id, created_at, kind, attempt_id, trigger_reason, outcome, reason, tx_hash,
		        amount, amount_display, max_fee_per_gas, max_priority_fee_per_gas, attempt, duration_ms,
		        error, message
		 FROM sweep_events WHERE `+where+` ORDER BY id DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var ev EventRow
		if err := rows.Scan(
			&ev.ID, &ev.CreatedAt, &ev.Kind, &ev.AttemptID, &ev.Trigger, &ev.Outcome, &ev.Reason,
			&ev.TxHash, &ev.Amount, &ev.AmountDisplay, &ev.MaxFeePerGas, &ev.MaxPriorityFeePerGas,
			&ev.Attempt, &ev.DurationMS, &ev.Error, &ev.Message,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	slog.Debug("events listed", "kind", kind, "returned", len(events))
	return events, nil
}

// CountEventsByKind returns the number of journaled events per kind.
func (d *DB) CountEventsByKind() (map[string]int64, error) {
	rows, err := d.conn.Query(`SELECT kind, COUNT(*) FROM sweep_events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}
