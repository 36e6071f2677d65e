package report

import (
	"time"

	"github.com/Fantasim/fcfsweep/internal/metrics"
	"github.com/Fantasim/fcfsweep/internal/models"
)

// Metrics updates the Prometheus collectors from events.
type Metrics struct{}

// Report updates the sweep counters and histograms for ev.
func (Metrics) Report(ev Event) {
	switch ev.Kind {
	case KindAttempt:
		metrics.AttemptsTotal.WithLabelValues(ev.Outcome).Inc()
		switch models.Outcome(ev.Outcome) {
		case models.OutcomeSkipped:
			metrics.SkipsTotal.WithLabelValues(ev.Reason).Inc()
		case models.OutcomeSubmitted:
			metrics.PendingSubmission.Set(1)
		}
		if ev.DurationMS > 0 {
			metrics.AttemptDuration.Observe((time.Duration(ev.DurationMS) * time.Millisecond).Seconds())
		}
	case KindRetry:
		metrics.SubmitRetriesTotal.Inc()
	case KindConfirmed, KindReverted, KindDropped:
		metrics.ConfirmationsTotal.WithLabelValues(string(ev.Kind)).Inc()
		metrics.PendingSubmission.Set(0)
	case KindError:
		metrics.ErrorsTotal.Inc()
	case KindHeartbeat:
		metrics.LastHeartbeat.Set(float64(ev.Time.Unix()))
	}
}
