package session

// State is the position of a session in its life cycle.
type State int

const (
	// StateIdle is the state before any code exists.
	StateIdle State = iota
	// StateCodeReady means a pairing code is known.
	StateCodeReady
	// StateConnected means the peer has been authenticated.
	StateConnected
	// StateNegotiating covers the transit capability exchange.
	StateNegotiating
	// StateTransferring means bytes are moving.
	StateTransferring
	// StateCompleted is the terminal success state.
	StateCompleted
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCodeReady:
		return "code-ready"
	case StateConnected:
		return "connected"
	case StateNegotiating:
		return "negotiating"
	case StateTransferring:
		return "transferring"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state is final (completed or failed)
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransitionTo checks if a state transition is valid
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}

	switch s {
	case StateIdle:
		return next == StateCodeReady
	case StateCodeReady:
		return next == StateConnected
	case StateConnected:
		return next == StateNegotiating
	case StateNegotiating:
		return next == StateTransferring
	case StateTransferring:
		return next == StateCompleted
	default:
		return false
	}
}
