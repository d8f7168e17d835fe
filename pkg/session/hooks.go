package session

import (
	"sync"

	"github.com/rescp17/codedrop/pkg/wormhole"
)

// Hooks receives connection and progress events of one session.
type Hooks interface {
	OnConnected(info wormhole.TransitInfo)
	OnProgress(sent, total int64)
}

// CodeListener is implemented by hooks that want the pairing code as soon
// as it exists.
type CodeListener interface {
	OnCode(code wormhole.Code)
}

// StateListener is implemented by hooks that observe state transitions.
type StateListener interface {
	OnState(state State)
}

// HookFuncs adapts plain functions to Hooks. Nil fields are skipped.
type HookFuncs struct {
	Connected func(info wormhole.TransitInfo)
	Progress  func(sent, total int64)
	Code      func(code wormhole.Code)
	State     func(state State)
}

func (h HookFuncs) OnConnected(info wormhole.TransitInfo) {
	if h.Connected != nil {
		h.Connected(info)
	}
}

func (h HookFuncs) OnProgress(sent, total int64) {
	if h.Progress != nil {
		h.Progress(sent, total)
	}
}

func (h HookFuncs) OnCode(code wormhole.Code) {
	if h.Code != nil {
		h.Code(code)
	}
}

func (h HookFuncs) OnState(state State) {
	if h.State != nil {
		h.State(state)
	}
}

// progressGate forwards only non-decreasing progress and remembers whether
// the final count has been reported.
type progressGate struct {
	mu     sync.Mutex
	last   int64
	seen   bool
	closed bool
}

// admit clamps sent to [0, total] and reports whether it may be forwarded.
func (g *progressGate) admit(sent, total int64) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, false
	}
	sent = max(0, min(sent, total))
	if g.seen && sent < g.last {
		return 0, false
	}
	g.last, g.seen = sent, true
	return sent, true
}

// finish closes the gate and reports whether a final (total, total) call
// is still owed.
func (g *progressGate) finish(total int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	owed := !g.closed && (!g.seen || g.last != total)
	g.closed = true
	return owed
}

// close stops all further progress, as after a failure.
func (g *progressGate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}
