package session

import (
	"errors"
	"fmt"

	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// Kind classifies why a session failed.
type Kind int

const (
	// KindConnection means rendezvous or code exchange failed.
	KindConnection Kind = iota
	// KindNegotiation means the sides share no transit.
	KindNegotiation
	// KindTransfer is an I/O failure while streaming.
	KindTransfer
	// KindNoTransferOffered means the peer connected but offered nothing.
	KindNoTransferOffered
	// KindConcurrentRead is a reentrant read on the chunk reader.
	KindConcurrentRead
	// KindSourceRead means a chunk fetch failed.
	KindSourceRead
	// KindDeclined means one of the users refused the offer.
	KindDeclined
	// KindBusy means the orchestrator is already running a session.
	KindBusy
)

var (
	ErrConnection        = errors.New("connection failed")
	ErrNegotiation       = errors.New("transit negotiation failed")
	ErrTransfer          = errors.New("transfer failed")
	ErrNoTransferOffered = errors.New("no transfer offered")
	ErrConcurrentRead    = transfer.ErrConcurrentRead
	ErrSourceRead        = errors.New("source read failed")
	ErrDeclined          = errors.New("transfer declined")
	ErrBusy              = errors.New("a session is already running")

	ErrTooLarge           = errors.New("offered file exceeds the receive limit")
	ErrDescriptorMismatch = errors.New("descriptor size does not match source")
	ErrIncomplete         = errors.New("received byte count does not match descriptor")
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindNegotiation:
		return "negotiation"
	case KindTransfer:
		return "transfer"
	case KindNoTransferOffered:
		return "no-transfer-offered"
	case KindConcurrentRead:
		return "concurrent-read"
	case KindSourceRead:
		return "source-read"
	case KindDeclined:
		return "declined"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindNegotiation:
		return ErrNegotiation
	case KindTransfer:
		return ErrTransfer
	case KindNoTransferOffered:
		return ErrNoTransferOffered
	case KindConcurrentRead:
		return ErrConcurrentRead
	case KindSourceRead:
		return ErrSourceRead
	case KindDeclined:
		return ErrDeclined
	case KindBusy:
		return ErrBusy
	default:
		return nil
	}
}

// Error is the failure outcome of a session.
type Error struct {
	Kind  Kind
	State State // the state the session was in when it failed
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error in state %s", e.Kind, e.State)
	}
	return fmt.Sprintf("%s error in state %s: %v", e.Kind, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can write
// errors.Is(err, session.ErrNoTransferOffered).
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Classify determines the kind of a collaborator failure. Typed errors
// decide first; otherwise the state the session had reached does.
func Classify(err error, state State) Kind {
	var srcErr *transfer.SourceReadError
	var sessErr *Error

	switch {
	case errors.As(err, &sessErr):
		return sessErr.Kind
	case errors.Is(err, transfer.ErrConcurrentRead):
		return KindConcurrentRead
	case errors.As(err, &srcErr):
		return KindSourceRead
	case errors.Is(err, wormhole.ErrNegotiation):
		return KindNegotiation
	case errors.Is(err, wormhole.ErrRejected):
		return KindDeclined
	case errors.Is(err, wormhole.ErrBadCode),
		errors.Is(err, wormhole.ErrInvalidCode),
		errors.Is(err, wormhole.ErrRendezvous):
		return KindConnection
	}

	if state < StateConnected {
		return KindConnection
	}
	return KindTransfer
}
