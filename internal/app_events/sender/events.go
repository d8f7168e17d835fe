package sender

import (
	appevents "github.com/rescp17/codedrop/internal/app_events"
	"github.com/rescp17/codedrop/pkg/fileInfo"
)

// --- App Events (from TUI to App) ---

// SendFileEvent starts a send session for the chosen file. Code is empty
// unless the user asked to reuse an existing code.
type SendFileEvent struct {
	appevents.Event
	File fileInfo.FileNode
	Code string
}

var _ appevents.AppEvent = SendFileEvent{}

// --- UI Messages (from App to TUI) ---

// StatusUpdateMsg is a free-form status line.
type StatusUpdateMsg struct {
	Message string
}

// TransferCompleteMsg reports a finished send.
type TransferCompleteMsg struct {
	Name  string
	Bytes int64
}
