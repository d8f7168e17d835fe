package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxMailboxMessages = 64

// Message is one mailbox entry. The relay fills in Side from the
// connection that wrote it; Body is opaque to the relay.
type Message struct {
	Side  string `json:"side"`
	Phase string `json:"phase"`
	Body  []byte `json:"body,omitempty"`
}

// mailbox holds the messages exchanged under one nameplate. It admits two
// sides.
type mailbox struct {
	nameplate    int
	joined       map[string]bool
	conns        map[string]*peerConn
	messages     []Message
	lastActivity time.Time
}

func newMailbox(nameplate int) *mailbox {
	return &mailbox{
		nameplate:    nameplate,
		joined:       make(map[string]bool),
		conns:        make(map[string]*peerConn),
		lastActivity: time.Now(),
	}
}

// peerConn serialises writes to a websocket.
type peerConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (p *peerConn) writeJSON(msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteJSON(msg)
}

// MailboxHandler upgrades to a websocket bound to one side of a mailbox.
// Earlier messages from the other side are replayed first.
func (s *Server) MailboxHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("nameplate"))
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, ErrInvalidNameplate)
		return
	}
	side := r.Header.Get(SideIDHeader)
	if side == "" {
		writeError(w, http.StatusBadRequest, ErrMissingSide)
		return
	}
	create := r.URL.Query().Get("create") != "0"

	mb, status, err := s.reserveSide(n, side, create)
	if err != nil {
		slog.Warn("Mailbox join refused", "nameplate", n, "side", side, "error", err)
		writeError(w, status, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade error", "error", err)
		s.releaseSide(mb, side)
		return
	}
	ws.SetReadLimit(maxMessageSize)
	pc := &peerConn{ws: ws}

	// Hold the write lock until the backlog is out so forwarded messages
	// cannot overtake replayed ones.
	pc.mu.Lock()
	s.mu.Lock()
	mb.conns[side] = pc
	var backlog []Message
	for _, m := range mb.messages {
		if m.Side != side {
			backlog = append(backlog, m)
		}
	}
	s.mu.Unlock()
	for _, m := range backlog {
		if err := ws.WriteJSON(m); err != nil {
			slog.Warn("Mailbox replay failed", "nameplate", n, "error", err)
			break
		}
	}
	pc.mu.Unlock()

	slog.Info("Side joined mailbox", "nameplate", n, "side", side, "replayed", len(backlog))
	s.serveSide(mb, side, pc)
}

func (s *Server) reserveSide(n int, side string, create bool) (*mailbox, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[n]
	if !ok {
		if !create {
			return nil, http.StatusNotFound, ErrNameplateNotFound
		}
		mb = newMailbox(n)
		s.mailboxes[n] = mb
	}
	if _, connected := mb.conns[side]; connected {
		return nil, http.StatusConflict, ErrCrowded
	}
	if !mb.joined[side] && len(mb.joined) >= 2 {
		return nil, http.StatusConflict, ErrCrowded
	}
	mb.joined[side] = true
	mb.conns[side] = nil
	mb.lastActivity = time.Now()
	return mb, 0, nil
}

func (s *Server) releaseSide(mb *mailbox, side string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(mb.conns, side)
	mb.lastActivity = time.Now()
	if len(mb.conns) == 0 && len(mb.joined) >= 2 {
		slog.Info("Mailbox released", "nameplate", mb.nameplate)
		if s.mailboxes[mb.nameplate] == mb {
			delete(s.mailboxes, mb.nameplate)
		}
	}
}

// serveSide reads messages from one side, records them and forwards them
// to the other side until the connection ends.
func (s *Server) serveSide(mb *mailbox, side string, pc *peerConn) {
	defer func() {
		pc.ws.Close()
		s.releaseSide(mb, side)
		slog.Info("Side left mailbox", "nameplate", mb.nameplate, "side", side)
	}()

	for {
		var msg Message
		if err := pc.ws.ReadJSON(&msg); err != nil {
			if !isExpectedClose(err) {
				slog.Debug("Mailbox read ended", "nameplate", mb.nameplate, "side", side, "error", err)
			}
			return
		}
		if msg.Phase == "" {
			continue
		}
		msg.Side = side

		s.mu.Lock()
		if len(mb.messages) >= maxMailboxMessages {
			s.mu.Unlock()
			slog.Warn("Mailbox full, dropping side", "nameplate", mb.nameplate, "side", side)
			return
		}
		mb.messages = append(mb.messages, msg)
		mb.lastActivity = time.Now()
		var targets []*peerConn
		for other, conn := range mb.conns {
			if other != side && conn != nil {
				targets = append(targets, conn)
			}
		}
		s.mu.Unlock()

		for _, t := range targets {
			if err := t.writeJSON(msg); err != nil {
				slog.Warn("Mailbox forward failed", "nameplate", mb.nameplate, "error", err)
			}
		}
	}
}
