package transfer

import (
	"github.com/rescp17/codedrop/pkg/fileInfo"
)

// Direction says which side of a transfer this process is on.
type Direction int

const (
	DirectionSend Direction = iota
	DirectionReceive
)

func (d Direction) String() string {
	switch d {
	case DirectionSend:
		return "send"
	case DirectionReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Descriptor is the immutable description of the file being moved.
type Descriptor struct {
	Name      string    `json:"filename"`
	Size      int64     `json:"filesize"`
	Direction Direction `json:"-"`
	MimeType  string    `json:"mime_type,omitempty"`
	Checksum  string    `json:"sha256,omitempty"`
}

// DescriptorFromNode builds the send-side descriptor for a file on disk.
func DescriptorFromNode(node fileInfo.FileNode) Descriptor {
	return Descriptor{
		Name:      node.Name,
		Size:      node.Size,
		Direction: DirectionSend,
		MimeType:  node.MimeType,
		Checksum:  node.Checksum,
	}
}
