package wormhole

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/rescp17/codedrop/pkg/crypto"
	"github.com/rescp17/codedrop/pkg/transfer"
)

func deadline() time.Time {
	return time.Now().Add(time.Second)
}

type connection struct {
	cfg  Config
	keys *crypto.KeySchedule
	mb   *mailbox
	used atomic.Bool
}

func (c *connection) consume() error {
	if !c.used.CompareAndSwap(false, true) {
		return ErrConnectionConsumed
	}
	return nil
}

func (c *connection) Close() error {
	return c.mb.Close()
}

func (c *connection) info(relay string, plan transitPlan) TransitInfo {
	return TransitInfo{
		Relay:       relay,
		Verifier:    c.keys.Verifier(),
		Compression: plan.compression(),
		PeerSide:    c.mb.peerSide(),
	}
}

// exchangeTransit posts our abilities and reads the peer's.
func (c *connection) exchangeTransit(ctx context.Context, mode string, abilities Abilities, extra ...Phase) (*transitMessage, error) {
	ours := transitMessage{Mode: mode, Abilities: abilityList(abilities, c.cfg)}
	if err := c.mb.send(PhaseTransit, ours); err != nil {
		return nil, err
	}
	msg, err := c.mb.next(ctx, append([]Phase{PhaseTransit}, extra...)...)
	if err != nil {
		return nil, err
	}
	if Phase(msg.Phase) != PhaseTransit {
		return nil, nil
	}
	var theirs transitMessage
	if err := c.mb.open(msg, &theirs); err != nil {
		return nil, err
	}
	return &theirs, nil
}

// SendFile offers desc to the peer and streams r once it accepts.
func (c *connection) SendFile(ctx context.Context, relay string, r io.Reader, desc transfer.Descriptor, abilities Abilities, hooks TransferHooks) (err error) {
	if err := c.consume(); err != nil {
		return err
	}
	defer c.mb.Close()
	tellPeer := true
	defer func() {
		if err != nil && tellPeer && ctx.Err() == nil {
			c.mb.fail(err)
		}
	}()

	theirs, err := c.exchangeTransit(ctx, modeSend, abilities)
	if err != nil {
		return err
	}
	if theirs.Mode == modeSend {
		return fmt.Errorf("%w: both sides are sending", ErrNegotiation)
	}
	plan, err := negotiate(abilityList(abilities, c.cfg), theirs.Abilities)
	if err != nil {
		return err
	}
	plan = plan.forSize(desc.Size)

	if err := c.mb.send(PhaseOffer, offerMessage{File: desc}); err != nil {
		return err
	}
	msg, err := c.mb.next(ctx, PhaseAnswer)
	if err != nil {
		return err
	}
	var answer answerMessage
	if err := c.mb.open(msg, &answer); err != nil {
		return err
	}
	if !answer.Accepted {
		tellPeer = false
		return fmt.Errorf("%w: %s", ErrRejected, answer.Reason)
	}

	link, err := dialTransit(ctx, relay, c.mb.side, c.keys, crypto.Initiator)
	if err != nil {
		return err
	}
	defer link.Close()
	hooks.connected(c.info(relay, plan))

	sum, err := streamOut(ctx, link, r, desc.Size, plan, hooks)
	if err != nil {
		return ctxErr(ctx, err)
	}

	rec, err := link.sc.ReadRecord()
	if err != nil {
		return ctxErr(ctx, fmt.Errorf("no acknowledgement from peer: %w", err))
	}
	var ack ackMessage
	if err := json.Unmarshal(rec, &ack); err != nil {
		return fmt.Errorf("malformed acknowledgement: %w", err)
	}
	if ack.Received != desc.Size || ack.SHA256 != sum {
		return fmt.Errorf("%w: peer received %d bytes", ErrChecksumMismatch, ack.Received)
	}
	slog.Info("File sent", "name", desc.Name, "size", desc.Size, "compression", plan.compression())
	return nil
}

func streamOut(ctx context.Context, link *transitLink, r io.Reader, size int64, plan transitPlan, hooks TransferHooks) (string, error) {
	rw := &recordWriter{sc: link.sc}
	var (
		out io.Writer = rw
		zw  *lz4.Writer
	)
	if plan.compress {
		zw = newCompressor(rw)
		out = zw
	}

	h := sha256.New()
	buf := make([]byte, transfer.DefaultChunkSize)
	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if done+int64(n) > size {
				return "", fmt.Errorf("%w: source has more than %d bytes", ErrSizeMismatch, size)
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("failed to write transit record: %w", werr)
			}
			h.Write(buf[:n])
			done += int64(n)
			hooks.progress(done, size)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	if done != size {
		return "", fmt.Errorf("%w: source ended after %d of %d bytes", ErrSizeMismatch, done, size)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return "", fmt.Errorf("failed to finish compressed stream: %w", err)
		}
	}
	if err := rw.finish(); err != nil {
		return "", fmt.Errorf("failed to end transit stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// RequestFile announces that this side wants to receive and waits for the
// peer's offer.
func (c *connection) RequestFile(ctx context.Context, relay string, abilities Abilities) (Offer, error) {
	if err := c.consume(); err != nil {
		return nil, err
	}

	theirs, err := c.exchangeTransit(ctx, modeReceive, abilities, PhaseClose)
	if err != nil {
		c.mb.Close()
		return nil, err
	}
	if theirs == nil || theirs.Mode == modeReceive {
		slog.Info("Peer has nothing to offer")
		c.mb.Close()
		return nil, nil
	}
	plan, err := negotiate(abilityList(abilities, c.cfg), theirs.Abilities)
	if err != nil {
		c.mb.fail(err)
		c.mb.Close()
		return nil, err
	}

	msg, err := c.mb.next(ctx, PhaseOffer, PhaseClose)
	if err != nil {
		c.mb.Close()
		return nil, err
	}
	if Phase(msg.Phase) == PhaseClose {
		c.mb.Close()
		return nil, nil
	}
	var o offerMessage
	if err := c.mb.open(msg, &o); err != nil {
		c.mb.Close()
		return nil, err
	}
	desc := o.File
	desc.Direction = transfer.DirectionReceive
	return &offer{conn: c, relay: relay, plan: plan.forSize(desc.Size), desc: desc}, nil
}

type offer struct {
	conn  *connection
	relay string
	plan  transitPlan
	desc  transfer.Descriptor

	mu       sync.Mutex
	answered bool
}

func (o *offer) Descriptor() transfer.Descriptor {
	return o.desc
}

func (o *offer) answer() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.answered {
		return ErrOfferConsumed
	}
	o.answered = true
	return nil
}

// Reject declines the offer.
func (o *offer) Reject(ctx context.Context, reason string) error {
	if err := o.answer(); err != nil {
		return err
	}
	defer o.conn.mb.Close()
	return o.conn.mb.send(PhaseAnswer, answerMessage{Accepted: false, Reason: reason})
}

// Accept takes the file and writes it to sink.
func (o *offer) Accept(ctx context.Context, hooks TransferHooks, sink io.Writer) (err error) {
	if err := o.answer(); err != nil {
		return err
	}
	c := o.conn
	defer c.mb.Close()
	defer func() {
		if err != nil && ctx.Err() == nil && !errors.Is(err, ErrChecksumMismatch) {
			c.mb.fail(err)
		}
	}()

	if err := c.mb.send(PhaseAnswer, answerMessage{Accepted: true}); err != nil {
		return err
	}
	link, err := dialTransit(ctx, o.relay, c.mb.side, c.keys, crypto.Responder)
	if err != nil {
		return err
	}
	defer link.Close()
	hooks.connected(c.info(o.relay, o.plan))

	h := sha256.New()
	received, err := streamIn(link, io.MultiWriter(sink, h), o.desc.Size, o.plan, hooks)
	if err != nil {
		return ctxErr(ctx, err)
	}
	sum := hex.EncodeToString(h.Sum(nil))

	ack, _ := json.Marshal(ackMessage{Received: received, SHA256: sum})
	if err := link.sc.WriteRecord(ack); err != nil {
		return ctxErr(ctx, fmt.Errorf("failed to acknowledge transfer: %w", err))
	}
	if o.desc.Checksum != "" && o.desc.Checksum != sum {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, o.desc.Checksum, sum)
	}
	slog.Info("File received", "name", o.desc.Name, "size", received)
	return nil
}

// streamIn copies the peer's stream into sink until the end record. The
// stream must carry exactly size bytes.
func streamIn(link *transitLink, sink io.Writer, size int64, plan transitPlan, hooks TransferHooks) (int64, error) {
	rr := &recordReader{sc: link.sc}
	var in io.Reader = rr
	if plan.compress {
		in = lz4.NewReader(rr)
	}

	buf := make([]byte, transfer.DefaultChunkSize)
	var done int64
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if done+int64(n) > size {
				return done, fmt.Errorf("%w: peer sent more than %d bytes", ErrSizeMismatch, size)
			}
			if _, werr := sink.Write(buf[:n]); werr != nil {
				return done, fmt.Errorf("failed to store received data: %w", werr)
			}
			done += int64(n)
			hooks.progress(done, size)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return done, err
		}
	}
	if done != size {
		return done, fmt.Errorf("%w: stream ended after %d of %d bytes", ErrSizeMismatch, done, size)
	}
	if plan.compress {
		// The end record follows the lz4 end mark.
		if n, err := io.Copy(io.Discard, rr); err != nil {
			return done, err
		} else if n > 0 {
			return done, fmt.Errorf("%w: %d bytes after the compressed frame", ErrSizeMismatch, n)
		}
	}
	return done, nil
}

// ctxErr prefers the context's error when the failure was caused by
// cancellation closing the link.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
