package wormhole

import "github.com/rescp17/codedrop/pkg/transfer"

// Phase names a mailbox message kind. Each phase is sealed under its own key.
type Phase string

const (
	PhaseVersion Phase = "version"
	PhaseTransit Phase = "transit"
	PhaseOffer   Phase = "offer"
	PhaseAnswer  Phase = "answer"
	PhaseError   Phase = "error"
	// PhaseClose is sent unsealed when a side leaves.
	PhaseClose Phase = "close"
)

const (
	abilityRelay = "relay-v1"
	abilityLZ4   = "lz4-v1"

	modeSend    = "send"
	modeReceive = "receive"
)

// Version is reported to the peer in the version phase.
const Version = "codedrop/1"

type versionMessage struct {
	AppVersion string `json:"app_version"`
}

type transitMessage struct {
	Mode      string   `json:"mode"`
	Abilities []string `json:"abilities"`
}

type offerMessage struct {
	File transfer.Descriptor `json:"file"`
}

type answerMessage struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
}

// ackMessage is the final transit record, sent by the receiver.
type ackMessage struct {
	Received int64  `json:"received"`
	SHA256   string `json:"sha256"`
}
