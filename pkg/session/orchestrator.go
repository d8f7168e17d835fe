// Package session drives one pairing-code session from code exchange to a
// finished transfer.
package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rescp17/codedrop/pkg/concurrency"
	"github.com/rescp17/codedrop/pkg/fileInfo"
	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// relayOnly is the fixed transit request of every session.
var relayOnly = wormhole.Abilities{Relay: true}

// Orchestrator runs at most one session at a time against a Rendezvous.
type Orchestrator struct {
	rv    wormhole.Rendezvous
	guard *concurrency.ConcurrencyGuard

	mu    sync.Mutex
	state State
}

func NewOrchestrator(rv wormhole.Rendezvous) *Orchestrator {
	return &Orchestrator{
		rv:    rv,
		guard: concurrency.NewConcurrencyGuard(),
	}
}

// State reports the state of the current or most recent session.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

type sendOptions struct {
	code wormhole.Code
}

// SendOption customises InitiateSend.
type SendOption func(*sendOptions)

// WithCode rejoins an existing code instead of generating one.
func WithCode(code wormhole.Code) SendOption {
	return func(o *sendOptions) { o.code = code }
}

type receiveOptions struct {
	approve func(ctx context.Context, desc transfer.Descriptor) (bool, error)
	maxSize int64
}

// ReceiveOption customises InitiateReceive.
type ReceiveOption func(*receiveOptions)

// WithApproval asks approve before accepting an offer. A false answer
// rejects the offer and fails the session with KindDeclined.
func WithApproval(approve func(ctx context.Context, desc transfer.Descriptor) (bool, error)) ReceiveOption {
	return func(o *receiveOptions) { o.approve = approve }
}

// WithMaxSize rejects offers larger than limit bytes. Zero disables the check.
func WithMaxSize(limit int64) ReceiveOption {
	return func(o *receiveOptions) { o.maxSize = limit }
}

// exclusive runs fn unless another session is in progress.
func (o *Orchestrator) exclusive(fn func() (*Outcome, error)) (*Outcome, error) {
	var (
		out    *Outcome
		runErr error
	)
	if err := o.guard.Execute(func() error {
		out, runErr = fn()
		return nil
	}); err != nil {
		slog.Warn("Session rejected, orchestrator is busy")
		return nil, &Error{Kind: KindBusy, State: o.State(), Err: err}
	}
	return out, runErr
}

// InitiateSend pairs with a peer and streams src to it.
func (o *Orchestrator) InitiateSend(ctx context.Context, cfg wormhole.Config, src transfer.ChunkSource, desc transfer.Descriptor, hooks Hooks, opts ...SendOption) (*Outcome, error) {
	var so sendOptions
	for _, opt := range opts {
		opt(&so)
	}
	return o.exclusive(func() (*Outcome, error) {
		return o.send(ctx, cfg, src, desc, o.newRun(hooks), so)
	})
}

func (o *Orchestrator) send(ctx context.Context, cfg wormhole.Config, src transfer.ChunkSource, desc transfer.Descriptor, r *run, so sendOptions) (*Outcome, error) {
	if src.Size() != desc.Size {
		return nil, r.failKind(KindTransfer, fmt.Errorf("%w: source has %d bytes, descriptor %d", ErrDescriptorMismatch, src.Size(), desc.Size))
	}
	desc.Direction = transfer.DirectionSend

	var (
		code    = so.code
		pending wormhole.Pending
		err     error
	)
	if code != "" {
		pending, err = o.rv.ConnectWithCode(ctx, cfg, code)
	} else {
		code, pending, err = o.rv.GenerateCode(ctx, cfg, cfg.PassphraseComponents)
	}
	if err != nil {
		return nil, r.fail(err)
	}
	r.transition(StateCodeReady)
	r.code(code)

	conn, err := pending.Wait(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	r.transition(StateConnected)

	reader := transfer.NewChunkReader(src)
	r.transition(StateNegotiating)
	err = conn.SendFile(ctx, cfg.TransitRelay(), reader.BoundTo(ctx), desc, relayOnly, r.transferHooks(true))
	if err != nil {
		return nil, r.fail(err)
	}

	r.finish(desc.Size)
	slog.Info("Send session completed", "name", desc.Name, "size", desc.Size)
	return &Outcome{
		Direction:  transfer.DirectionSend,
		Code:       code,
		Descriptor: desc,
		Transit:    r.transitInfo(),
		BytesSent:  desc.Size,
	}, nil
}

// maxPrealloc bounds the receive buffer reserved before any data arrives;
// the offered size is the peer's claim.
const maxPrealloc = 16 * transfer.DefaultChunkSize

func initialCapacity(size int64) int {
	return int(min(max(size, 0), maxPrealloc))
}

// InitiateReceive joins the session named by code and buffers the offered
// file in memory.
func (o *Orchestrator) InitiateReceive(ctx context.Context, cfg wormhole.Config, code wormhole.Code, hooks Hooks, opts ...ReceiveOption) (*Outcome, error) {
	ro := receiveOptions{maxSize: transfer.DefaultMaxReceiveSize}
	for _, opt := range opts {
		opt(&ro)
	}
	return o.exclusive(func() (*Outcome, error) {
		return o.receive(ctx, cfg, code, o.newRun(hooks), ro)
	})
}

func (o *Orchestrator) receive(ctx context.Context, cfg wormhole.Config, code wormhole.Code, r *run, ro receiveOptions) (*Outcome, error) {
	r.transition(StateCodeReady)

	pending, err := o.rv.ConnectWithCode(ctx, cfg, code)
	if err != nil {
		return nil, r.fail(err)
	}
	conn, err := pending.Wait(ctx)
	if err != nil {
		return nil, r.fail(err)
	}
	r.transition(StateConnected)

	r.transition(StateNegotiating)
	offer, err := conn.RequestFile(ctx, cfg.TransitRelay(), relayOnly)
	if err != nil {
		return nil, r.fail(err)
	}
	if offer == nil {
		return nil, r.failKind(KindNoTransferOffered, ErrNoTransferOffered)
	}

	desc := offer.Descriptor()
	if desc.Size < 0 {
		o.reject(ctx, offer, "invalid size")
		return nil, r.failKind(KindTransfer, fmt.Errorf("%w: negative size %d", ErrIncomplete, desc.Size))
	}
	if ro.maxSize > 0 && desc.Size > ro.maxSize {
		o.reject(ctx, offer, "file too large")
		return nil, r.failKind(KindTransfer, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, desc.Size, ro.maxSize))
	}
	if ro.approve != nil {
		ok, err := ro.approve(ctx, desc)
		if err != nil {
			o.reject(ctx, offer, "receiver aborted")
			return nil, r.fail(err)
		}
		if !ok {
			o.reject(ctx, offer, "declined by receiver")
			return nil, r.failKind(KindDeclined, ErrDeclined)
		}
	}

	r.transition(StateTransferring)
	var buf bytes.Buffer
	buf.Grow(initialCapacity(desc.Size))
	if err := offer.Accept(ctx, r.transferHooks(false), &buf); err != nil {
		return nil, r.fail(err)
	}
	data := buf.Bytes()
	if int64(len(data)) != desc.Size {
		return nil, r.failKind(KindTransfer, fmt.Errorf("%w: got %d of %d bytes", ErrIncomplete, len(data), desc.Size))
	}
	if desc.Checksum != "" && fileInfo.ChecksumBytes(data) != desc.Checksum {
		return nil, r.failKind(KindTransfer, wormhole.ErrChecksumMismatch)
	}

	mime := desc.MimeType
	if mime == "" {
		mime = fileInfo.DetectMimeType(data)
	}
	r.finish(desc.Size)
	slog.Info("Receive session completed", "name", desc.Name, "size", desc.Size)
	return &Outcome{
		Direction:  transfer.DirectionReceive,
		Code:       code,
		Descriptor: desc,
		Transit:    r.transitInfo(),
		File: &ReceivedFile{
			Data:     data,
			Name:     desc.Name,
			Size:     desc.Size,
			MimeType: mime,
		},
	}, nil
}

func (o *Orchestrator) reject(ctx context.Context, offer wormhole.Offer, reason string) {
	if err := offer.Reject(ctx, reason); err != nil {
		slog.Warn("Failed to reject offer", "error", err)
	}
}
