package report

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Fantasim/fcfsweep/internal/db"
	"github.com/Fantasim/fcfsweep/internal/metrics"
)

type captureReporter struct {
	events []Event
}

func (c *captureReporter) Report(ev Event) { c.events = append(c.events, ev) }

func TestMulti(t *testing.T) {
	a, b := &captureReporter{}, &captureReporter{}
	m := Multi{a, nil, b}

	m.Report(Event{Kind: KindHeartbeat})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("expected both reporters to receive the event, got %d and %d", len(a.events), len(b.events))
	}
}

func TestRecent_EvictsOldest(t *testing.T) {
	r := NewRecent(3)
	for i := 1; i <= 5; i++ {
		r.Report(Event{Kind: KindAttempt, Attempt: i})
	}

	events, err := r.RecentEvents(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, want := range []int{5, 4, 3} {
		if events[i].Attempt != want {
			t.Errorf("events[%d].Attempt = %d, want %d", i, events[i].Attempt, want)
		}
	}
}

func TestRecent_FilterAndLimit(t *testing.T) {
	r := NewRecent(10)
	r.Report(Event{Kind: KindStartup})
	r.Report(Event{Kind: KindAttempt, AttemptID: "a"})
	r.Report(Event{Kind: KindHeartbeat})
	r.Report(Event{Kind: KindAttempt, AttemptID: "b"})

	events, _ := r.RecentEvents(context.Background(), KindAttempt, 1)
	if len(events) != 1 || events[0].AttemptID != "b" {
		t.Errorf("expected newest attempt only, got %+v", events)
	}
}

func TestLogReporter_Levels(t *testing.T) {
	tests := []struct {
		name      string
		ev        Event
		wantLevel string
		wantMsg   string
	}{
		{"submitted", Event{Kind: KindAttempt, Outcome: "submitted", TxHash: "0xabc"}, "INFO", "sweep submitted"},
		{"failed", Event{Kind: KindAttempt, Outcome: "failed", Error: "boom"}, "ERROR", "sweep failed"},
		{"busy skip", Event{Kind: KindAttempt, Outcome: "skipped", Reason: "busy"}, "DEBUG", "sweep skipped"},
		{"insufficient skip", Event{Kind: KindAttempt, Outcome: "skipped", Reason: "insufficient balance"}, "INFO", "sweep skipped"},
		{"retry", Event{Kind: KindRetry, Attempt: 2}, "WARN", "submission failed, retrying with higher bid"},
		{"reverted", Event{Kind: KindReverted}, "ERROR", "sweep reverted"},
		{"dropped", Event{Kind: KindDropped}, "WARN", "pending sweep dropped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			NewLogReporter(logger).Report(tt.ev)

			var line map[string]any
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("invalid log line %q: %v", buf.String(), err)
			}
			if line["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", line["level"], tt.wantLevel)
			}
			if line["msg"] != tt.wantMsg {
				t.Errorf("msg = %v, want %s", line["msg"], tt.wantMsg)
			}
		})
	}
}

func TestLogReporter_PrefersDisplayAmount(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	NewLogReporter(logger).Report(Event{
		Kind:          KindAttempt,
		Outcome:       "submitted",
		Amount:        "998724000000000000",
		AmountDisplay: "0.998724 ETH",
	})

	if !strings.Contains(buf.String(), `"amount":"0.998724 ETH"`) {
		t.Errorf("expected display amount in %s", buf.String())
	}
	if strings.Contains(buf.String(), `"error"`) {
		t.Errorf("empty fields should be omitted: %s", buf.String())
	}
}

func TestJournal_RoundTrip(t *testing.T) {
	d, err := db.New(filepath.Join(t.TempDir(), "journal.sqlite"))
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	defer d.Close()
	if err := d.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}

	j := NewJournal(d)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.Report(Event{
		Time:         at,
		Kind:         KindConfirmed,
		AttemptID:    "attempt-1",
		TxHash:       "0xfeed",
		Amount:       "1000",
		MaxFeePerGas: "50000000000",
	})
	j.Report(Event{
		Time:       at.Add(time.Second),
		Kind:       KindAttempt,
		AttemptID:  "attempt-2",
		Outcome:    "submitted",
		DurationMS: 312,
	})

	attempts, err := j.RecentEvents(context.Background(), KindAttempt, 10)
	if err != nil {
		t.Fatalf("RecentEvents(attempt) error = %v", err)
	}
	if len(attempts) != 1 || attempts[0].DurationMS != 312 {
		t.Errorf("attempt events = %+v, want one with a 312ms duration", attempts)
	}

	events, err := j.RecentEvents(context.Background(), KindConfirmed, 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	got := events[0]
	if !got.Time.Equal(at) || got.TxHash != "0xfeed" || got.MaxFeePerGas != "50000000000" || got.AttemptID != "attempt-1" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMetrics(t *testing.T) {
	submitted := metrics.AttemptsTotal.WithLabelValues("submitted")
	skippedDust := metrics.SkipsTotal.WithLabelValues("below dust threshold")
	confirmed := metrics.ConfirmationsTotal.WithLabelValues("confirmed")

	beforeSubmitted := counterValue(t, submitted)
	beforeDust := counterValue(t, skippedDust)
	beforeConfirmed := counterValue(t, confirmed)
	beforeRetries := counterValue(t, metrics.SubmitRetriesTotal)

	var m Metrics
	m.Report(Event{Kind: KindAttempt, Outcome: "submitted", DurationMS: 120})
	m.Report(Event{Kind: KindAttempt, Outcome: "skipped", Reason: "below dust threshold"})
	m.Report(Event{Kind: KindRetry})
	m.Report(Event{Kind: KindConfirmed})

	if got := counterValue(t, submitted) - beforeSubmitted; got != 1 {
		t.Errorf("submitted attempts delta = %v, want 1", got)
	}
	if got := counterValue(t, skippedDust) - beforeDust; got != 1 {
		t.Errorf("dust skips delta = %v, want 1", got)
	}
	if got := counterValue(t, metrics.SubmitRetriesTotal) - beforeRetries; got != 1 {
		t.Errorf("retries delta = %v, want 1", got)
	}
	if got := counterValue(t, confirmed) - beforeConfirmed; got != 1 {
		t.Errorf("confirmations delta = %v, want 1", got)
	}
}
