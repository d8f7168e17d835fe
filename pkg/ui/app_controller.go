package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/codedrop/internal/app_events"
)

// AppController defines the contract between the UI and the backend application logic.
// Both Sender and Receiver apps implement this interface.
type AppController interface {
	// Run starts the event loop and blocks until ctx is done.
	Run(ctx context.Context) error

	// UIMessages returns a read-only channel for receiving messages from the backend to the UI.
	UIMessages() <-chan tea.Msg

	// AppEvents returns a write-only channel for the UI to send events to the backend.
	AppEvents() chan<- appevents.AppEvent
}
