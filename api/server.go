package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	visitorExpungeAfter = 30 * time.Minute
	maxMessageSize      = 2 << 20
)

// ServerConfig tunes the rendezvous and transit relay.
type ServerConfig struct {
	// AllocateRate limits nameplate allocations per client IP.
	AllocateRate  rate.Limit
	AllocateBurst int
	// IdleTimeout reclaims mailboxes nobody is connected to.
	IdleTimeout time.Duration
	// TransitWait bounds how long a transit connection waits for its peer.
	TransitWait time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		AllocateRate:  rate.Every(time.Second),
		AllocateBurst: 10,
		IdleTimeout:   10 * time.Minute,
		TransitWait:   2 * time.Minute,
	}
}

// Server is the rendezvous and transit relay. It never sees plaintext:
// mailbox bodies are sealed by the clients and transit frames are Noise
// records.
type Server struct {
	cfg      ServerConfig
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu        sync.Mutex
	mailboxes map[int]*mailbox
	transit   map[string]*transitWaiter
	visitors  map[string]*visitor
}

// visitor is an API user and its allocation limiter.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewServer creates a relay with its routes registered.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mailboxes: make(map[int]*mailbox),
		transit:   make(map[string]*transitWaiter),
		visitors:  make(map[string]*visitor),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP allows the Server struct to satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("POST /v1/nameplates", s.RateLimitMiddleware(http.HandlerFunc(s.AllocateHandler)))
	s.mux.HandleFunc("GET /v1/mailbox/{nameplate}", s.MailboxHandler)
	s.mux.HandleFunc("GET /v1/transit/{channel}", s.TransitHandler)
	s.mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// RateLimitMiddleware rejects clients that exceed the allocation rate.
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := s.getVisitor(r.RemoteAddr)
		if !v.limiter.Allow() {
			slog.Warn("Allocation rate limited", "remote", r.RemoteAddr)
			writeError(w, http.StatusTooManyRequests, ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getVisitor(remoteAddr string) *visitor {
	s.mu.Lock()
	defer s.mu.Unlock()

	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	for key, v := range s.visitors {
		if time.Since(v.lastSeen) > visitorExpungeAfter {
			delete(s.visitors, key)
		}
	}

	v, exists := s.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(s.cfg.AllocateRate, s.cfg.AllocateBurst)}
		s.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v
}

// AllocateResponse is the body of a successful nameplate allocation.
type AllocateResponse struct {
	Nameplate int `json:"nameplate"`
}

// AllocateHandler reserves the lowest free nameplate.
func (s *Server) AllocateHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.pruneIdleLocked()
	n := 1
	for {
		if _, used := s.mailboxes[n]; !used {
			break
		}
		n++
	}
	s.mailboxes[n] = newMailbox(n)
	s.mu.Unlock()

	slog.Info("Nameplate allocated", "nameplate", n, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, AllocateResponse{Nameplate: n})
}

func (s *Server) pruneIdleLocked() {
	for n, mb := range s.mailboxes {
		if len(mb.conns) == 0 && time.Since(mb.lastActivity) > s.cfg.IdleTimeout {
			slog.Info("Reclaiming idle mailbox", "nameplate", n)
			delete(s.mailboxes, n)
		}
	}
}

// Stats reports the number of live mailboxes and waiting transit peers.
func (s *Server) Stats() (mailboxes, waiting int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mailboxes), len(s.transit)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// isExpectedClose reports whether err is a normal websocket shutdown.
func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
