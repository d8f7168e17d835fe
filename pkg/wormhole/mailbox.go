package wormhole

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rescp17/codedrop/api"
	"github.com/rescp17/codedrop/pkg/crypto"
)

// mailbox is one side's view of a relay mailbox. A background goroutine
// queues every message from the peer; next hands them out by phase.
type mailbox struct {
	ws   *websocket.Conn
	side string
	keys *crypto.KeySchedule

	writeMu sync.Mutex

	mu     sync.Mutex
	queue  []api.Message
	peer   string
	closed bool
	err    error
	notify chan struct{}
	done   chan struct{}

	closeOnce sync.Once
}

func openMailbox(ws *websocket.Conn, side string, keys *crypto.KeySchedule) *mailbox {
	m := &mailbox{
		ws:     ws,
		side:   side,
		keys:   keys,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go m.readLoop()
	return m
}

func (m *mailbox) readLoop() {
	var err error
	for {
		var msg api.Message
		if err = m.ws.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Side == m.side {
			continue
		}
		m.mu.Lock()
		if m.peer == "" {
			m.peer = msg.Side
		}
		m.queue = append(m.queue, msg)
		m.mu.Unlock()
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}

	m.mu.Lock()
	m.closed = true
	m.err = fmt.Errorf("%w: %v", ErrMailboxClosed, err)
	m.mu.Unlock()
	close(m.done)
}

// send seals v under this side's key for phase and posts it.
func (m *mailbox) send(phase Phase, v any) error {
	plain, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", phase, err)
	}
	body, err := crypto.Seal(m.keys.PhaseKey(m.side, string(phase)), plain)
	if err != nil {
		return err
	}
	return m.write(api.Message{Side: m.side, Phase: string(phase), Body: body})
}

func (m *mailbox) write(msg api.Message) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := m.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to post %s message: %w", msg.Phase, err)
	}
	return nil
}

// next returns the first queued message in one of phases. A queued error
// or close message from the peer ends the wait unless the caller asked
// for it.
func (m *mailbox) next(ctx context.Context, phases ...Phase) (api.Message, error) {
	for {
		m.mu.Lock()
		for i, msg := range m.queue {
			p := Phase(msg.Phase)
			if slices.Contains(phases, p) || p == PhaseError || p == PhaseClose {
				m.queue = slices.Delete(m.queue, i, i+1)
				m.mu.Unlock()
				return m.check(msg, phases)
			}
		}
		if m.closed {
			err := m.err
			m.mu.Unlock()
			return api.Message{}, err
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-m.done:
		case <-ctx.Done():
			return api.Message{}, ctx.Err()
		}
	}
}

func (m *mailbox) check(msg api.Message, phases []Phase) (api.Message, error) {
	p := Phase(msg.Phase)
	if slices.Contains(phases, p) {
		return msg, nil
	}
	if p == PhaseClose {
		return api.Message{}, ErrPeerClosed
	}
	var e errorMessage
	if err := m.open(msg, &e); err != nil {
		return api.Message{}, ErrPeerError
	}
	return api.Message{}, fmt.Errorf("%w: %s", ErrPeerError, e.Error)
}

// open authenticates and decodes a peer message.
func (m *mailbox) open(msg api.Message, v any) error {
	plain, err := crypto.Open(m.keys.PhaseKey(msg.Side, msg.Phase), msg.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("malformed %s message: %w", msg.Phase, err)
	}
	return nil
}

func (m *mailbox) peerSide() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peer
}

// fail tells the peer why this side is giving up.
func (m *mailbox) fail(cause error) {
	if err := m.send(PhaseError, errorMessage{Error: cause.Error()}); err != nil {
		slog.Debug("Could not report error to peer", "error", err)
	}
}

// Close announces the departure and closes the websocket.
func (m *mailbox) Close() error {
	var err error
	m.closeOnce.Do(func() {
		_ = m.write(api.Message{Side: m.side, Phase: string(PhaseClose)})
		m.writeMu.Lock()
		_ = m.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		err = m.ws.Close()
	})
	return err
}
