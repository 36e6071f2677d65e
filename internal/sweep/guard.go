package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/fcfsweep/internal/models"
)

// GuardState is where the current attempt is in its cycle.
type GuardState string

const (
	StateIdle         GuardState = "idle"
	StateAcquiring    GuardState = "acquiring"
	StatePendingCheck GuardState = "pendingCheck"
	StateClearToSend  GuardState = "clearToSend"
	StateSubmitting   GuardState = "submitting"
)

// Guard serializes sweep attempts and tracks the one submission awaiting
// confirmation. The check-then-set in Begin is atomic under mu.
type Guard struct {
	mu      sync.Mutex
	busy    bool
	state   GuardState
	pending *models.PendingSubmission
}

// NewGuard returns an idle guard with nothing pending.
func NewGuard() *Guard {
	return &Guard{state: StateIdle}
}

// Begin acquires the single-flight flag. It returns false if another attempt holds it.
func (g *Guard) Begin() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return false
	}
	g.busy = true
	g.state = StateAcquiring
	return true
}

// Release frees the flag. It must run on every exit path of an attempt.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.busy = false
	g.state = StateIdle
}

func (g *Guard) advance(s GuardState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		g.state = s
	}
}

// State returns the current cycle state.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Record remembers a broadcast transaction, replacing any previous one.
func (g *Guard) Record(p models.PendingSubmission) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = &p
}

// Pending returns a copy of the tracked submission, or nil.
func (g *Guard) Pending() *models.PendingSubmission {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return nil
	}
	p := *g.pending
	return &p
}

// ClearIf forgets the tracked submission if it is txHash. A newer submission
// is left alone.
func (g *Guard) ClearIf(txHash common.Hash) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil || g.pending.TxHash != txHash {
		return false
	}
	g.pending = nil
	return true
}

// PendingCheck is the outcome of CheckPending. Cleared is the submission that
// was just forgotten, if any, and Status what the node said about it.
type PendingCheck struct {
	Clear   bool
	Status  models.TxStatus
	Cleared *models.PendingSubmission
}

// CheckPending asks the node about the tracked submission. A mined or unknown
// transaction is cleared. When the lookup fails, the submission is cleared only
// if the confirmed nonce has moved past it; otherwise it counts as still pending.
func (g *Guard) CheckPending(ctx context.Context, net Network, account common.Address) (PendingCheck, error) {
	p := g.Pending()
	if p == nil {
		return PendingCheck{Clear: true}, nil
	}

	status, err := net.TransactionStatus(ctx, p.TxHash)
	if err != nil {
		nonce, nonceErr := net.NonceAt(ctx, account, models.NonceConfirmed)
		if nonceErr == nil && nonce > p.Nonce {
			g.ClearIf(p.TxHash)
			slog.Info("pending submission superseded by confirmed nonce",
				"txHash", p.TxHash.Hex(),
				"nonce", p.Nonce,
				"confirmedNonce", nonce,
			)
			return PendingCheck{Clear: true, Cleared: p}, nil
		}
		return PendingCheck{}, fmt.Errorf("look up pending tx %s: %w", p.TxHash.Hex(), err)
	}

	if status == models.TxPending {
		return PendingCheck{Status: status}, nil
	}

	g.ClearIf(p.TxHash)
	return PendingCheck{Clear: true, Status: status, Cleared: p}, nil
}
