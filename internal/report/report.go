package report

import (
	"context"
	"time"
)

// Kind classifies an Event.
type Kind string

const (
	KindStartup   Kind = "startup"
	KindAttempt   Kind = "attempt"
	KindRetry     Kind = "retry"
	KindConfirmed Kind = "confirmed"
	KindReverted  Kind = "reverted"
	KindDropped   Kind = "dropped"
	KindHeartbeat Kind = "heartbeat"
	KindError     Kind = "error"
)

// Kinds lists every event kind.
var Kinds = []Kind{KindStartup, KindAttempt, KindRetry, KindConfirmed, KindReverted, KindDropped, KindHeartbeat, KindError}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Event is one reported occurrence. Amounts and fees are decimal strings in
// base units (wei or token base units); AmountDisplay is the human form.
type Event struct {
	Time                 time.Time `json:"time"`
	Kind                 Kind      `json:"kind"`
	AttemptID            string    `json:"attemptId,omitempty"`
	Trigger              string    `json:"trigger,omitempty"`
	Outcome              string    `json:"outcome,omitempty"`
	Reason               string    `json:"reason,omitempty"`
	TxHash               string    `json:"txHash,omitempty"`
	Amount               string    `json:"amount,omitempty"`
	AmountDisplay        string    `json:"amountDisplay,omitempty"`
	MaxFeePerGas         string    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string    `json:"maxPriorityFeePerGas,omitempty"`
	Attempt              int       `json:"attempt,omitempty"`
	DurationMS           int64     `json:"durationMs,omitempty"`
	Error                string    `json:"error,omitempty"`
	Message              string    `json:"message,omitempty"`
}

// Reporter receives every event the sweeper emits. Report must not block for long.
type Reporter interface {
	Report(ev Event)
}

// Source serves recently reported events, newest first.
type Source interface {
	RecentEvents(ctx context.Context, kind Kind, limit int) ([]Event, error)
}

// Multi fans an event out to several reporters in order.
type Multi []Reporter

// Report forwards ev to each non-nil reporter in order.
func (m Multi) Report(ev Event) {
	for _, r := range m {
		if r != nil {
			r.Report(ev)
		}
	}
}

// Nop discards events.
type Nop struct{}

// Report does nothing.
func (Nop) Report(Event) {}
