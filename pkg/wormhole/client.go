package wormhole

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rescp17/codedrop/api"
	"github.com/rescp17/codedrop/pkg/crypto"
)

// Client is the Rendezvous implementation that talks to an api.Server.
type Client struct{}

func NewClient() *Client {
	return &Client{}
}

// GenerateCode allocates a nameplate, picks random words and claims the
// mailbox so the peer can join with the returned code.
func (c *Client) GenerateCode(ctx context.Context, cfg Config, components int) (Code, Pending, error) {
	if components <= 0 {
		components = DefaultPassphraseComponents
	}
	cfg.PassphraseComponents = components
	if err := cfg.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid session config: %w", err)
	}

	side := uuid.NewString()
	rc := api.NewClient(cfg.RendezvousURL, side)
	nameplate, err := rc.AllocateNameplate(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to allocate nameplate: %w", ErrRendezvous, err)
	}
	words, err := randomWords(components)
	if err != nil {
		return "", nil, err
	}
	code := FormatCode(nameplate, words)

	p, err := c.join(ctx, cfg, rc, code, nameplate, true)
	if err != nil {
		return "", nil, err
	}
	slog.Info("Code generated", "nameplate", nameplate)
	return code, p, nil
}

// ConnectWithCode joins the mailbox named by an existing code.
func (c *Client) ConnectWithCode(ctx context.Context, cfg Config, code Code) (Pending, error) {
	if cfg.PassphraseComponents == 0 {
		cfg.PassphraseComponents = DefaultPassphraseComponents
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	normalized, nameplate, err := ParseCode(string(code))
	if err != nil {
		return nil, err
	}
	rc := api.NewClient(cfg.RendezvousURL, uuid.NewString())
	return c.join(ctx, cfg, rc, normalized, nameplate, false)
}

func (c *Client) join(ctx context.Context, cfg Config, rc *api.Client, code Code, nameplate int, create bool) (*pending, error) {
	keys, err := crypto.NewKeySchedule(cfg.AppID, string(code))
	if err != nil {
		return nil, err
	}
	ws, err := rc.DialMailbox(ctx, nameplate, create)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open mailbox %d: %w", ErrRendezvous, nameplate, err)
	}
	return &pending{
		cfg:  cfg,
		keys: keys,
		mb:   openMailbox(ws, rc.SideID(), keys),
	}, nil
}

type pending struct {
	cfg  Config
	keys *crypto.KeySchedule
	mb   *mailbox

	mu     sync.Mutex
	waited bool
}

// Wait exchanges sealed version messages. A peer whose version cannot be
// opened holds a different code.
func (p *pending) Wait(ctx context.Context) (Connection, error) {
	p.mu.Lock()
	if p.waited {
		p.mu.Unlock()
		return nil, ErrConnectionConsumed
	}
	p.waited = true
	p.mu.Unlock()

	if err := p.mb.send(PhaseVersion, versionMessage{AppVersion: Version}); err != nil {
		p.mb.Close()
		return nil, err
	}
	msg, err := p.mb.next(ctx, PhaseVersion)
	if err != nil {
		p.mb.Close()
		return nil, err
	}
	var v versionMessage
	if err := p.mb.open(msg, &v); err != nil {
		p.mb.Close()
		return nil, ErrBadCode
	}
	slog.Info("Peer authenticated", "peer", msg.Side, "version", v.AppVersion)
	return &connection{cfg: p.cfg, keys: p.keys, mb: p.mb}, nil
}
