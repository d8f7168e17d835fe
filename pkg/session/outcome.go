package session

import (
	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// Outcome is the result of a successful session.
type Outcome struct {
	Direction  transfer.Direction
	Code       wormhole.Code
	Descriptor transfer.Descriptor
	Transit    wormhole.TransitInfo
	// BytesSent is set on the send side.
	BytesSent int64
	// File is set on the receive side.
	File *ReceivedFile
}

// ReceivedFile is a file buffered in memory by a receive session.
type ReceivedFile struct {
	Data     []byte
	Name     string
	Size     int64
	MimeType string
}
