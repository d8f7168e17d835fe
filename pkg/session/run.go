package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/rescp17/codedrop/pkg/wormhole"
)

// run is the bookkeeping of one session. Collaborator callbacks may arrive
// on other goroutines; hooksMu serialises them before they reach the caller.
type run struct {
	o     *Orchestrator
	hooks Hooks
	gate  progressGate

	hooksMu sync.Mutex
	transit wormhole.TransitInfo
}

type nopHooks struct{}

func (nopHooks) OnConnected(wormhole.TransitInfo) {}
func (nopHooks) OnProgress(int64, int64)          {}

func (o *Orchestrator) newRun(hooks Hooks) *run {
	if hooks == nil {
		hooks = nopHooks{}
	}
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
	return &run{o: o, hooks: hooks}
}

// transition moves the orchestrator to next if the move is legal.
func (r *run) transition(next State) bool {
	r.o.mu.Lock()
	cur := r.o.state
	if !cur.CanTransitionTo(next) {
		r.o.mu.Unlock()
		slog.Debug("Ignoring state transition", "from", cur, "to", next)
		return false
	}
	r.o.state = next
	r.o.mu.Unlock()

	slog.Debug("Session state changed", "from", cur, "to", next)
	if l, ok := r.hooks.(StateListener); ok {
		r.hooksMu.Lock()
		l.OnState(next)
		r.hooksMu.Unlock()
	}
	return true
}

func (r *run) code(code wormhole.Code) {
	if l, ok := r.hooks.(CodeListener); ok {
		r.hooksMu.Lock()
		l.OnCode(code)
		r.hooksMu.Unlock()
	}
}

// transferHooks adapts the caller's hooks for the collaborator. On the
// send side the connected callback marks the start of the transfer.
func (r *run) transferHooks(connectedStartsTransfer bool) wormhole.TransferHooks {
	return wormhole.TransferHooks{
		OnConnected: func(info wormhole.TransitInfo) {
			if connectedStartsTransfer {
				r.transition(StateTransferring)
			}
			r.hooksMu.Lock()
			defer r.hooksMu.Unlock()
			r.transit = info
			r.hooks.OnConnected(info)
		},
		OnProgress: func(done, total int64) {
			sent, ok := r.gate.admit(done, total)
			if !ok {
				return
			}
			r.hooksMu.Lock()
			defer r.hooksMu.Unlock()
			r.hooks.OnProgress(sent, total)
		},
	}
}

func (r *run) transitInfo() wormhole.TransitInfo {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	return r.transit
}

// finish emits the final progress call if the collaborator did not, then
// completes the session.
func (r *run) finish(total int64) {
	if r.gate.finish(total) {
		r.hooksMu.Lock()
		r.hooks.OnProgress(total, total)
		r.hooksMu.Unlock()
	}
	// A collaborator that never reported the connection still moved bytes.
	r.transition(StateTransferring)
	r.transition(StateCompleted)
}

// fail classifies err against the current state and ends the session.
func (r *run) fail(err error) error {
	return r.failKind(Classify(err, r.o.State()), err)
}

func (r *run) failKind(kind Kind, err error) error {
	r.gate.close()
	state := r.o.State()
	r.transition(StateFailed)

	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr
	}
	slog.Error("Session failed", "kind", kind, "state", state, "error", err)
	return &Error{Kind: kind, State: state, Err: err}
}
