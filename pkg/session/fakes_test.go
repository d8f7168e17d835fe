package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// fakeRendezvous hands out a scripted pending connection.
type fakeRendezvous struct {
	code       wormhole.Code
	genErr     error
	connectErr error
	pending    *fakePending

	mu            sync.Mutex
	generated     int
	components    int
	connectedWith wormhole.Code
}

func (f *fakeRendezvous) GenerateCode(ctx context.Context, cfg wormhole.Config, components int) (wormhole.Code, wormhole.Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated++
	f.components = components
	if f.genErr != nil {
		return "", nil, f.genErr
	}
	return f.code, f.pending, nil
}

func (f *fakeRendezvous) ConnectWithCode(ctx context.Context, cfg wormhole.Config, code wormhole.Code) (wormhole.Pending, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectedWith = code
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.pending, nil
}

type fakePending struct {
	conn    *fakeConn
	err     error
	release chan struct{} // when set, Wait blocks until closed
}

func (p *fakePending) Wait(ctx context.Context) (wormhole.Connection, error) {
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.conn, nil
}

type fakeConn struct {
	// send replaces the default SendFile behaviour when set.
	send       func(ctx context.Context, r io.Reader, desc transfer.Descriptor, hooks wormhole.TransferHooks) error
	sendErr    error
	offer      *fakeOffer
	requestErr error

	mu        sync.Mutex
	received  []byte
	relay     string
	abilities wormhole.Abilities
	calls     int
}

func (c *fakeConn) SendFile(ctx context.Context, relay string, r io.Reader, desc transfer.Descriptor, abilities wormhole.Abilities, hooks wormhole.TransferHooks) error {
	c.mu.Lock()
	c.calls++
	c.relay, c.abilities = relay, abilities
	c.mu.Unlock()

	if c.send != nil {
		return c.send(ctx, r, desc, hooks)
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	hooks.OnConnected(wormhole.TransitInfo{Relay: relay, Verifier: "feedface"})
	var buf bytes.Buffer
	chunk := make([]byte, 4)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if n > 0 {
			hooks.OnProgress(int64(buf.Len()), desc.Size)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.received = buf.Bytes()
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) RequestFile(ctx context.Context, relay string, abilities wormhole.Abilities) (wormhole.Offer, error) {
	c.mu.Lock()
	c.calls++
	c.relay, c.abilities = relay, abilities
	c.mu.Unlock()
	if c.requestErr != nil {
		return nil, c.requestErr
	}
	if c.offer == nil {
		return nil, nil
	}
	return c.offer, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeOffer struct {
	desc      transfer.Descriptor
	data      []byte
	acceptErr error

	mu       sync.Mutex
	accepted bool
	rejected string
	sinkCap  int
}

func (o *fakeOffer) Descriptor() transfer.Descriptor { return o.desc }

func (o *fakeOffer) Accept(ctx context.Context, hooks wormhole.TransferHooks, sink io.Writer) error {
	o.mu.Lock()
	o.accepted = true
	if b, ok := sink.(*bytes.Buffer); ok {
		o.sinkCap = b.Cap()
	}
	o.mu.Unlock()
	hooks.OnConnected(wormhole.TransitInfo{Relay: "fake"})
	for i := 0; i < len(o.data); i += 2 {
		end := min(i+2, len(o.data))
		if _, err := sink.Write(o.data[i:end]); err != nil {
			return err
		}
		hooks.OnProgress(int64(end), o.desc.Size)
	}
	return o.acceptErr
}

func (o *fakeOffer) Reject(ctx context.Context, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = reason
	return nil
}

// recorder captures every hook call in order.
type recorder struct {
	mu        sync.Mutex
	events    []string
	states    []State
	progress  [][2]int64
	code      wormhole.Code
	connected []wormhole.TransitInfo
}

func (r *recorder) OnConnected(info wormhole.TransitInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "connected")
	r.connected = append(r.connected, info)
}

func (r *recorder) OnProgress(sent, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "progress")
	r.progress = append(r.progress, [2]int64{sent, total})
}

func (r *recorder) OnCode(code wormhole.Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "code")
	r.code = code
}

func (r *recorder) OnState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "state:"+state.String())
	r.states = append(r.states, state)
}

// blockingSource never completes a fetch until release is closed.
type blockingSource struct {
	size    int64
	issued  chan struct{}
	release chan struct{}
}

func (s *blockingSource) Size() int64 { return s.size }

func (s *blockingSource) Fetch(start, end int64) <-chan transfer.FetchResult {
	ch := make(chan transfer.FetchResult, 1)
	s.issued <- struct{}{}
	go func() {
		<-s.release
		ch <- transfer.FetchResult{Data: make([]byte, end-start)}
	}()
	return ch
}

// failingSource fails every fetch.
type failingSource struct {
	size int64
}

func (s failingSource) Size() int64 { return s.size }

func (s failingSource) Fetch(start, end int64) <-chan transfer.FetchResult {
	ch := make(chan transfer.FetchResult, 1)
	ch <- transfer.FetchResult{Err: errors.New("device removed")}
	return ch
}
