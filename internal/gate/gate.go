package gate

import (
	"errors"
	"sync"
	"time"
)

// Decision is the terminal answer recorded by an approval gate.
type Decision string

const (
	Granted  Decision = "granted"
	Rejected Decision = "rejected"
)

// State tracks where a gate is in its lifecycle. Transitions out of
// StatePending are one-directional; a settled gate only changes again
// through Reset.
type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateGranted  State = "granted"
	StateRejected State = "rejected"
	StateTimedOut State = "timed_out"
)

// ErrPending is returned when Open or Reset is called while a decision is
// still outstanding. This is a programming error in correct operation.
var ErrPending = errors.New("approval gate already pending")

// Outcome describes how a pending gate settled.
type Outcome struct {
	Decision Decision
	// TimedOut is set when the deadline expired with no explicit resolve
	// and the configured default decision was applied.
	TimedOut bool
	// By is the actor of an explicit resolve; empty on timeout.
	By string
}

// Gate is a single-slot synchronization point for one out-of-band human
// decision per run. Exactly one settle wins, whether it comes from an
// explicit Resolve or from deadline expiry; the loser observes the
// already-terminal state and has no effect.
type Gate struct {
	defaultDecision Decision

	mu       sync.Mutex
	state    State
	deadline time.Time
	outcome  Outcome
	done     chan struct{}
	timer    *time.Timer
}

// New returns an idle gate. timeoutDefault is the decision recorded when
// the deadline passes without an explicit resolve.
func New(timeoutDefault Decision) *Gate {
	if timeoutDefault == "" {
		timeoutDefault = Granted
	}
	return &Gate{defaultDecision: timeoutDefault, state: StateIdle}
}

// Open arms the gate with a deadline of now+timeout. Opening a gate that is
// already pending is a misuse and fails with ErrPending.
func (g *Gate) Open(timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StatePending {
		return ErrPending
	}
	g.state = StatePending
	g.deadline = time.Now().Add(timeout)
	g.outcome = Outcome{}
	done := make(chan struct{})
	g.done = done
	// The timer callback is bound to this arming's done channel so a
	// stale timer from a previous run can never settle a re-armed gate.
	g.timer = time.AfterFunc(timeout, func() {
		g.settle(done, StateTimedOut, Outcome{Decision: g.defaultDecision, TimedOut: true})
	})
	return nil
}

// Resolve settles a pending gate with an explicit decision. Once the gate
// is terminal further calls change nothing: the recorded outcome is
// returned and settled is false.
func (g *Gate) Resolve(d Decision, by string) (out Outcome, settled bool) {
	to := StateGranted
	if d == Rejected {
		to = StateRejected
	}
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	return g.settle(done, to, Outcome{Decision: d, By: by})
}

func (g *Gate) settle(done chan struct{}, to State, out Outcome) (Outcome, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StatePending || done == nil || g.done != done {
		return g.outcome, false
	}
	g.state = to
	g.outcome = out
	if g.timer != nil {
		g.timer.Stop()
	}
	close(done)
	return out, true
}

// Wait blocks until the gate is no longer pending and returns the settled
// outcome. It is guaranteed to return within the Open timeout plus
// scheduling slack, whether or not a resolve ever arrives. Waiting on an
// idle gate returns the zero Outcome immediately.
func (g *Gate) Wait() Outcome {
	g.mu.Lock()
	done := g.done
	g.mu.Unlock()
	if done != nil {
		<-done
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outcome
}

// State reports the current lifecycle state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Deadline reports the absolute deadline of the current or most recent
// arming.
func (g *Gate) Deadline() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deadline
}

// Status is the snapshot served to approval-status queries: whether a
// decision is outstanding, and whether the last settled decision granted.
func (g *Gate) Status() (pending, granted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pending = g.state == StatePending
	granted = !pending && g.state != StateIdle && g.outcome.Decision == Granted
	return pending, granted
}

// Reset returns a settled (or idle) gate to idle for the next run.
// Resetting a pending gate fails with ErrPending.
func (g *Gate) Reset() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StatePending {
		return ErrPending
	}
	g.state = StateIdle
	g.outcome = Outcome{}
	g.deadline = time.Time{}
	g.done = nil
	g.timer = nil
	return nil
}
