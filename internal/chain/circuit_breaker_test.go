package chain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Fantasim/fcfsweep/internal/config"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, clockwork.NewFakeClock())

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != config.CircuitClosed {
		t.Errorf("expected closed after 2 failures, got %s", cb.State())
	}
	if !cb.Allow() {
		t.Error("expected Allow() = true while closed")
	}

	cb.RecordFailure()
	if cb.State() != config.CircuitOpen {
		t.Errorf("expected open after 3 failures, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("expected Allow() = false while open")
	}
	if cb.ConsecutiveFailures() != 3 {
		t.Errorf("expected 3 consecutive failures, got %d", cb.ConsecutiveFailures())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(1, 10*time.Second, clock)

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("expected Allow() = false before cooldown")
	}

	clock.Advance(10 * time.Second)

	if !cb.Allow() {
		t.Fatal("expected one probe after cooldown")
	}
	if cb.State() != config.CircuitHalfOpen {
		t.Fatalf("expected half_open, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("expected second probe to be blocked")
	}

	cb.RecordSuccess()
	if cb.State() != config.CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
	if cb.ConsecutiveFailures() != 0 {
		t.Errorf("expected failures reset, got %d", cb.ConsecutiveFailures())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cb := NewCircuitBreaker(1, 10*time.Second, clock)

	cb.RecordFailure()
	clock.Advance(10 * time.Second)
	cb.Allow()

	cb.RecordFailure()
	if cb.State() != config.CircuitOpen {
		t.Errorf("expected open after failed probe, got %s", cb.State())
	}
	if cb.Allow() {
		t.Error("expected cooldown to restart")
	}
}
