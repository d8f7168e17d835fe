package wormhole

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/pierrec/lz4/v4"
	"github.com/rescp17/codedrop/api"
	"github.com/rescp17/codedrop/pkg/crypto"
	"github.com/rescp17/codedrop/pkg/transfer"
)

// recordSize is the plaintext capacity of one transit record.
var recordSize = min(int(transfer.DefaultChunkSize), crypto.MaxRecordSize)

// transitPlan is the outcome of comparing both sides' abilities.
type transitPlan struct {
	compress bool
}

// forSize drops compression for empty files, which have no frame to carry.
func (p transitPlan) forSize(size int64) transitPlan {
	if size == 0 {
		p.compress = false
	}
	return p
}

func (p transitPlan) compression() string {
	if p.compress {
		return "lz4"
	}
	return "none"
}

func abilityList(a Abilities, cfg Config) []string {
	var out []string
	if a.Relay {
		out = append(out, abilityRelay)
	}
	if !cfg.DisableCompression {
		out = append(out, abilityLZ4)
	}
	return out
}

// negotiate picks the transit both sides support. Only relay transit is
// implemented, so a side that does not offer it cannot be served.
func negotiate(ours, theirs []string) (transitPlan, error) {
	if !slices.Contains(ours, abilityRelay) {
		return transitPlan{}, fmt.Errorf("%w: relay transit not enabled locally", ErrNegotiation)
	}
	if !slices.Contains(theirs, abilityRelay) {
		return transitPlan{}, fmt.Errorf("%w: peer offers no common transport", ErrNegotiation)
	}
	return transitPlan{
		compress: slices.Contains(ours, abilityLZ4) && slices.Contains(theirs, abilityLZ4),
	}, nil
}

// wsConn adapts a websocket to crypto.MessageConn.
type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) WriteMessage(msg []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, msg)
}

func (c wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// transitLink is an encrypted, paired connection through the relay.
type transitLink struct {
	ws   *websocket.Conn
	sc   *crypto.SecureConn
	stop func() bool
}

func dialTransit(ctx context.Context, relay, side string, keys *crypto.KeySchedule, role crypto.Role) (*transitLink, error) {
	ws, err := api.NewClient(relay, side).DialTransit(ctx, keys.TransitChannel())
	if err != nil {
		return nil, fmt.Errorf("failed to reach transit relay: %w", err)
	}
	// The websocket has no context of its own; closing it unblocks any
	// pending read or write once ctx ends.
	stop := context.AfterFunc(ctx, func() { ws.Close() })

	sc, err := crypto.Handshake(wsConn{ws}, role, keys.TransitPSK())
	if err != nil {
		stop()
		ws.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("transit handshake failed: %w", err)
	}
	return &transitLink{ws: ws, sc: sc, stop: stop}, nil
}

func (l *transitLink) Close() error {
	l.stop()
	_ = l.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline())
	return l.ws.Close()
}

// recordWriter splits a byte stream into encrypted records.
type recordWriter struct {
	sc *crypto.SecureConn
}

func (w *recordWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), recordSize)
		if err := w.sc.WriteRecord(p[:n]); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// finish writes the empty record that ends the stream.
func (w *recordWriter) finish() error {
	return w.sc.WriteRecord(nil)
}

// recordReader joins encrypted records back into a byte stream. An empty
// record ends the stream with io.EOF.
type recordReader struct {
	sc    *crypto.SecureConn
	left  []byte
	ended bool
}

func (r *recordReader) Read(p []byte) (int, error) {
	for len(r.left) == 0 {
		if r.ended {
			return 0, io.EOF
		}
		rec, err := r.sc.ReadRecord()
		if err != nil {
			return 0, err
		}
		if len(rec) == 0 {
			r.ended = true
			return 0, io.EOF
		}
		r.left = rec
	}
	n := copy(p, r.left)
	r.left = r.left[n:]
	return n, nil
}

func newCompressor(w *recordWriter) *lz4.Writer {
	zw := lz4.NewWriter(w)
	// Keep compressed blocks close to one record.
	_ = zw.Apply(lz4.BlockSizeOption(lz4.Block64Kb), lz4.ChecksumOption(false))
	return zw
}
