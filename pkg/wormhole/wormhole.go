// Package wormhole provides code-authenticated file transfer between two
// peers that meet on a rendezvous relay. The Rendezvous, Pending,
// Connection and Offer interfaces are what session orchestration consumes;
// Client is the implementation backed by the relay in package api.
package wormhole

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/rescp17/codedrop/pkg/transfer"
)

const (
	DefaultAppID                = "github.com/rescp17/codedrop/v1"
	DefaultRendezvousURL        = "http://localhost:4000"
	DefaultPassphraseComponents = 2
)

var (
	// ErrRendezvous wraps refusals from the rendezvous relay.
	ErrRendezvous         = errors.New("rendezvous failed")
	ErrBadCode            = errors.New("bad code: peer could not be authenticated")
	ErrInvalidCode        = errors.New("invalid pairing code")
	ErrNegotiation        = errors.New("transit negotiation failed")
	ErrConnectionConsumed = errors.New("connection already used for a transfer")
	ErrOfferConsumed      = errors.New("offer already answered")
	ErrRejected           = errors.New("peer rejected the transfer")
	ErrPeerError          = errors.New("peer reported an error")
	ErrPeerClosed         = errors.New("peer closed the session")
	ErrMailboxClosed      = errors.New("mailbox connection closed")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrSizeMismatch       = errors.New("stream size does not match descriptor")
)

// Code is a pairing code of the form <nameplate>-<word>-<word>.
type Code string

func (c Code) String() string {
	return string(c)
}

// Config selects the relay and application namespace of a session.
type Config struct {
	AppID                string `mapstructure:"app_id"`
	RendezvousURL        string `mapstructure:"rendezvous_url"`
	TransitRelayURL      string `mapstructure:"transit_relay_url"`
	PassphraseComponents int    `mapstructure:"code_length"`
	DisableCompression   bool   `mapstructure:"disable_compression"`
}

func DefaultConfig() Config {
	return Config{
		AppID:                DefaultAppID,
		RendezvousURL:        DefaultRendezvousURL,
		PassphraseComponents: DefaultPassphraseComponents,
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("app id must not be empty")
	}
	if err := validateURL(c.RendezvousURL); err != nil {
		return fmt.Errorf("rendezvous url: %w", err)
	}
	if c.TransitRelayURL != "" {
		if err := validateURL(c.TransitRelayURL); err != nil {
			return fmt.Errorf("transit relay url: %w", err)
		}
	}
	if c.PassphraseComponents < 1 || c.PassphraseComponents > 8 {
		return fmt.Errorf("code length must be between 1 and 8 words, got %d", c.PassphraseComponents)
	}
	return nil
}

// TransitRelay returns the relay used for bulk data, which defaults to the
// rendezvous server.
func (c Config) TransitRelay() string {
	if c.TransitRelayURL != "" {
		return c.TransitRelayURL
	}
	return c.RendezvousURL
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Abilities lists the transit kinds a side is willing to use.
type Abilities struct {
	Direct bool
	Relay  bool
}

// TransitInfo describes the established data path.
type TransitInfo struct {
	Relay       string
	Verifier    string
	Compression string
	PeerSide    string
}

// TransferHooks are invoked from the goroutine running the transfer.
type TransferHooks struct {
	OnConnected func(TransitInfo)
	OnProgress  func(done, total int64)
}

func (h TransferHooks) connected(info TransitInfo) {
	if h.OnConnected != nil {
		h.OnConnected(info)
	}
}

func (h TransferHooks) progress(done, total int64) {
	if h.OnProgress != nil {
		h.OnProgress(done, total)
	}
}

// Rendezvous creates or joins sessions.
type Rendezvous interface {
	// GenerateCode allocates a fresh code of the given number of words.
	GenerateCode(ctx context.Context, cfg Config, components int) (Code, Pending, error)
	ConnectWithCode(ctx context.Context, cfg Config, code Code) (Pending, error)
}

// Pending is a session waiting for its peer.
type Pending interface {
	Wait(ctx context.Context) (Connection, error)
}

// Connection is an authenticated session. It carries exactly one transfer.
type Connection interface {
	SendFile(ctx context.Context, relay string, r io.Reader, desc transfer.Descriptor, abilities Abilities, hooks TransferHooks) error
	// RequestFile waits for the peer's offer. A nil Offer with a nil error
	// means the peer offered nothing.
	RequestFile(ctx context.Context, relay string, abilities Abilities) (Offer, error)
	Close() error
}

// Offer is a file the peer proposes to send.
type Offer interface {
	Descriptor() transfer.Descriptor
	Accept(ctx context.Context, hooks TransferHooks, sink io.Writer) error
	Reject(ctx context.Context, reason string) error
}
