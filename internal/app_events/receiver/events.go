package receiver

import (
	appevents "github.com/rescp17/codedrop/internal/app_events"
	"github.com/rescp17/codedrop/pkg/transfer"
)

// --- UI to App Events ---

// ReceiveEvent starts a receive session with the code the user typed.
type ReceiveEvent struct {
	appevents.Event
	Code string
}

// AcceptFileRequestEvent is sent when the user agrees to receive the file.
type AcceptFileRequestEvent struct {
	appevents.Event
}

// RejectFileRequestEvent is sent when the user rejects the file transfer.
type RejectFileRequestEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = ReceiveEvent{}
	_ appevents.AppEvent = AcceptFileRequestEvent{}
	_ appevents.AppEvent = RejectFileRequestEvent{}
)

// --- App to UI Messages ---

// FileOfferMsg asks the user to confirm an incoming file.
type FileOfferMsg struct {
	Descriptor transfer.Descriptor
}

// TransferFinishedMsg reports where the received file was written.
type TransferFinishedMsg struct {
	Path     string
	Name     string
	Size     int64
	MimeType string
}
