package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// TransitReady is the text frame sent to both peers once they are paired.
const TransitReady = "ok"

type transitWaiter struct {
	paired chan *websocket.Conn
}

// TransitHandler pairs the first two websockets presenting the same channel
// token and pipes frames between them.
func (s *Server) TransitHandler(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	if !validChannel(channel) {
		writeError(w, http.StatusBadRequest, ErrInvalidChannel)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade error", "error", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	s.mu.Lock()
	if waiter, ok := s.transit[channel]; ok {
		delete(s.transit, channel)
		s.mu.Unlock()
		waiter.paired <- ws
		return
	}
	waiter := &transitWaiter{paired: make(chan *websocket.Conn, 1)}
	s.transit[channel] = waiter
	s.mu.Unlock()

	select {
	case peer := <-waiter.paired:
		slog.Info("Transit paired", "channel", shortChannel(channel))
		if err := pipe(ws, peer); err != nil && !isExpectedClose(err) {
			slog.Debug("Transit pipe ended", "channel", shortChannel(channel), "error", err)
		}
	case <-time.After(s.cfg.TransitWait):
		s.mu.Lock()
		if s.transit[channel] == waiter {
			delete(s.transit, channel)
		}
		s.mu.Unlock()
		// A peer may have arrived between the timeout and the delete.
		select {
		case peer := <-waiter.paired:
			if err := pipe(ws, peer); err != nil && !isExpectedClose(err) {
				slog.Debug("Transit pipe ended", "channel", shortChannel(channel), "error", err)
			}
			return
		default:
		}
		slog.Warn("Transit peer never arrived", "channel", shortChannel(channel))
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ErrTransitTimeout.Error()),
			time.Now().Add(time.Second))
		ws.Close()
	}
}

// pipe announces readiness to both ends and copies frames in both
// directions until either side closes.
func pipe(a, b *websocket.Conn) error {
	defer a.Close()
	defer b.Close()

	for _, c := range []*websocket.Conn{a, b} {
		if err := c.WriteMessage(websocket.TextMessage, []byte(TransitReady)); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(context.Background())
	stop := context.AfterFunc(ctx, func() {
		a.Close()
		b.Close()
	})
	defer stop()

	g.Go(func() error { return copyFrames(b, a) })
	g.Go(func() error { return copyFrames(a, b) })
	return g.Wait()
}

func copyFrames(dst, src *websocket.Conn) error {
	for {
		mt, data, err := src.ReadMessage()
		if err != nil {
			// Pass the close on so the peer sees a clean end.
			if ce, ok := err.(*websocket.CloseError); ok {
				_ = dst.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(ce.Code, ce.Text), time.Now().Add(time.Second))
			}
			return err
		}
		if err := dst.WriteMessage(mt, data); err != nil {
			return err
		}
	}
}

func validChannel(channel string) bool {
	if len(channel) == 0 || len(channel) > 128 {
		return false
	}
	for _, c := range channel {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func shortChannel(channel string) string {
	if len(channel) > 8 {
		return channel[:8]
	}
	return channel
}
