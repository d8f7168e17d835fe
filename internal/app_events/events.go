package appevents

import (
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// AppEvent is a marker interface for events sent from the TUI to the App's logic controller.
// It uses an unexported method so that only types embedding Event satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded in event types to satisfy the AppEvent interface.
type Event struct{}

func (Event) isAppEvent() {}

// --- App Events (from TUI to App) ---

// CancelEvent aborts the running session.
type CancelEvent struct {
	Event
}

// --- Messages shared by both directions (from App to TUI) ---

// Error carries a failure the UI should display.
type Error struct {
	Err error
}

// CodeReadyMsg announces the pairing code of the session.
type CodeReadyMsg struct {
	Code wormhole.Code
}

// StateMsg mirrors a session state transition.
type StateMsg struct {
	State session.State
}

// ConnectedMsg reports that the transit link is up.
type ConnectedMsg struct {
	Info wormhole.TransitInfo
}

// ProgressMsg reports bytes moved so far.
type ProgressMsg struct {
	Sent  int64
	Total int64
}

// Percent returns the completed fraction in [0, 1].
func (p ProgressMsg) Percent() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Sent) / float64(p.Total)
}

var _ AppEvent = CancelEvent{}
