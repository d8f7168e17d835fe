package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T, cfg ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(cfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

func readMessage(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestAllocateNameplate(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	client := NewClient(ts.URL, "side-a")
	ctx := context.Background()

	first, err := client.AllocateNameplate(ctx)
	require.NoError(t, err)
	second, err := client.AllocateNameplate(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestAllocateNameplate_RateLimited(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.AllocateRate = rate.Every(time.Hour)
	cfg.AllocateBurst = 1
	_, ts := newTestServer(t, cfg)
	client := NewClient(ts.URL, "side-a")

	_, err := client.AllocateNameplate(context.Background())
	require.NoError(t, err)
	_, err = client.AllocateNameplate(context.Background())
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestMailbox_ReplayAndForward(t *testing.T) {
	srv, ts := newTestServer(t, DefaultServerConfig())
	ctx := context.Background()
	a := NewClient(ts.URL, "side-a")
	b := NewClient(ts.URL, "side-b")

	n, err := a.AllocateNameplate(ctx)
	require.NoError(t, err)

	wsA, err := a.DialMailbox(ctx, n, true)
	require.NoError(t, err)
	defer wsA.Close()
	require.NoError(t, wsA.WriteJSON(Message{Side: "spoofed", Phase: "version", Body: []byte("sealed")}))

	// Give the relay a moment to record the message before B joins.
	time.Sleep(50 * time.Millisecond)

	wsB, err := b.DialMailbox(ctx, n, false)
	require.NoError(t, err)
	defer wsB.Close()

	replayed := readMessage(t, wsB)
	assert.Equal(t, "side-a", replayed.Side, "relay must stamp the writing side")
	assert.Equal(t, "version", replayed.Phase)
	assert.Equal(t, []byte("sealed"), replayed.Body)

	require.NoError(t, wsB.WriteJSON(Message{Phase: "version", Body: []byte("reply")}))
	forwarded := readMessage(t, wsA)
	assert.Equal(t, "side-b", forwarded.Side)
	assert.Equal(t, []byte("reply"), forwarded.Body)

	t.Run("third side is crowded out", func(t *testing.T) {
		_, err := NewClient(ts.URL, "side-c").DialMailbox(ctx, n, false)
		assert.ErrorIs(t, err, ErrCrowded)
	})

	wsA.Close()
	wsB.Close()
	assert.Eventually(t, func() bool {
		mailboxes, _ := srv.Stats()
		return mailboxes == 0
	}, 2*time.Second, 10*time.Millisecond, "mailbox should be released once both sides leave")
}

func TestMailbox_UnknownNameplate(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	_, err := NewClient(ts.URL, "side-a").DialMailbox(context.Background(), 42, false)
	assert.ErrorIs(t, err, ErrNameplateNotFound)
}

func TestMailbox_RequiresSide(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	resp, err := http.Get(ts.URL + "/v1/mailbox/1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransit_Pairing(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type dialResult struct {
		ws  *websocket.Conn
		err error
	}
	results := make(chan dialResult, 2)
	for _, side := range []string{"side-a", "side-b"} {
		go func(side string) {
			ws, err := NewClient(ts.URL, side).DialTransit(ctx, "abcdef0123")
			results <- dialResult{ws, err}
		}(side)
	}

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	defer first.ws.Close()
	defer second.ws.Close()

	require.NoError(t, first.ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	require.NoError(t, second.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := second.ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, mt)
	assert.Equal(t, []byte{1, 2, 3}, data)
}

func TestTransit_PeerNeverArrives(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.TransitWait = 50 * time.Millisecond
	srv, ts := newTestServer(t, cfg)

	_, err := NewClient(ts.URL, "side-a").DialTransit(context.Background(), "feed")
	assert.Error(t, err)
	_, waiting := srv.Stats()
	assert.Equal(t, 0, waiting)
}

func TestTransit_InvalidChannel(t *testing.T) {
	_, ts := newTestServer(t, DefaultServerConfig())
	_, err := NewClient(ts.URL, "side-a").DialTransit(context.Background(), "not-hex!")
	assert.Error(t, err)
}
