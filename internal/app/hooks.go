package app

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/codedrop/internal/app_events"
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// Notifier delivers app messages to the UI channel.
type Notifier struct {
	ctx context.Context
	ch  chan<- tea.Msg
}

func NewNotifier(ctx context.Context, ch chan<- tea.Msg) Notifier {
	return Notifier{ctx: ctx, ch: ch}
}

// Send blocks until the UI takes msg or the context ends.
func (n Notifier) Send(msg tea.Msg) {
	select {
	case n.ch <- msg:
	case <-n.ctx.Done():
	}
}

// TrySend drops msg when the UI is behind.
func (n Notifier) TrySend(msg tea.Msg) {
	select {
	case n.ch <- msg:
	default:
	}
}

// UIHooks turns session callbacks into UI messages.
type UIHooks struct {
	Notifier
}

var (
	_ session.Hooks         = UIHooks{}
	_ session.CodeListener  = UIHooks{}
	_ session.StateListener = UIHooks{}
)

func (h UIHooks) OnCode(code wormhole.Code) {
	h.Send(appevents.CodeReadyMsg{Code: code})
}

func (h UIHooks) OnState(state session.State) {
	slog.Debug("Session state", "state", state)
	h.Send(appevents.StateMsg{State: state})
}

func (h UIHooks) OnConnected(info wormhole.TransitInfo) {
	h.Send(appevents.ConnectedMsg{Info: info})
}

// OnProgress never blocks the transfer; the completion message carries
// the final count anyway.
func (h UIHooks) OnProgress(sent, total int64) {
	h.TrySend(appevents.ProgressMsg{Sent: sent, Total: total})
}
