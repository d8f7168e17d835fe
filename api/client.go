package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const SideIDHeader = "X-Side-ID"

// sideIDInjector is a custom http.RoundTripper that injects the side ID into each request.
type sideIDInjector struct {
	sideID string
	next   http.RoundTripper
}

// RoundTrip intercepts the request, adds the side ID header, and passes it to the next transport.
func (t *sideIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(SideIDHeader, t.sideID)
	return t.next.RoundTrip(req)
}

// Client talks to a relay on behalf of one side.
type Client struct {
	HttpClient *http.Client
	baseURL    string
	sideID     string
	dialer     *websocket.Dialer
}

// NewClient creates a relay client that identifies itself with sideID on
// every request.
func NewClient(baseURL, sideID string) *Client {
	return &Client{
		HttpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &sideIDInjector{
				sideID: sideID,
				next:   http.DefaultTransport,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		sideID:  sideID,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
	}
}

func (c *Client) SideID() string {
	return c.sideID
}

// AllocateNameplate asks the relay for a free nameplate.
func (c *Client) AllocateNameplate(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/nameplates", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create allocate request: %w", err)
	}
	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach rendezvous server: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("allocate responded with non-OK status: %s", resp.Status)
	}
	var out AllocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode allocate response: %w", err)
	}
	return out.Nameplate, nil
}

// DialMailbox opens the websocket of a mailbox. With create false an
// unknown nameplate fails with ErrNameplateNotFound.
func (c *Client) DialMailbox(ctx context.Context, nameplate int, create bool) (*websocket.Conn, error) {
	u, err := c.wsURL("/v1/mailbox/" + strconv.Itoa(nameplate))
	if err != nil {
		return nil, err
	}
	if !create {
		u.RawQuery = "create=0"
	}
	return c.dial(ctx, u)
}

// DialTransit opens a transit connection and waits until the relay has
// paired it with the other side.
func (c *Client) DialTransit(ctx context.Context, channel string) (*websocket.Conn, error) {
	u, err := c.wsURL("/v1/transit/" + channel)
	if err != nil {
		return nil, err
	}
	ws, err := c.dial(ctx, u)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()
	mt, data, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("transit relay closed before pairing: %w", err)
	}
	if mt != websocket.TextMessage || string(data) != TransitReady {
		ws.Close()
		return nil, fmt.Errorf("unexpected transit greeting %q", data)
	}
	return ws, nil
}

func (c *Client) dial(ctx context.Context, u *url.URL) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set(SideIDHeader, c.sideID)
	ws, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if serr := statusError(resp.StatusCode); serr != nil {
				return nil, serr
			}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", u.Path, err)
	}
	return ws, nil
}

func (c *Client) wsURL(path string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported relay url scheme %q", u.Scheme)
	}
	return u, nil
}

func statusError(code int) error {
	switch code {
	case http.StatusConflict:
		return ErrCrowded
	case http.StatusNotFound:
		return ErrNameplateNotFound
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	default:
		return nil
	}
}
