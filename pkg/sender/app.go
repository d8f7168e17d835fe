package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/codedrop/internal/app"
	appevents "github.com/rescp17/codedrop/internal/app_events"
	"github.com/rescp17/codedrop/internal/app_events/sender"
	"github.com/rescp17/codedrop/internal/history"
	"github.com/rescp17/codedrop/pkg/concurrency"
	"github.com/rescp17/codedrop/pkg/fileInfo"
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// Recorder stores finished sessions.
type Recorder interface {
	Add(r history.Record) (history.Record, error)
}

// Config configures a sender App.
type Config struct {
	Wormhole wormhole.Config
	History  Recorder
}

// App is the main application logic controller for the sender.
type App struct {
	cfg          Config
	orchestrator *session.Orchestrator
	uiMessages   chan tea.Msg            // App -> TUI
	appEvents    chan appevents.AppEvent // TUI -> App

	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// NewApp creates a new sender application instance.
func NewApp(rv wormhole.Rendezvous, cfg Config) *App {
	return &App{
		cfg:          cfg,
		orchestrator: session.NewOrchestrator(rv),
		uiMessages:   make(chan tea.Msg, 64),
		appEvents:    make(chan appevents.AppEvent),
	}
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run starts the application's main event loop. Sessions started from it
// are waited for before Run returns.
func (a *App) Run(ctx context.Context) error {
	var sessions errgroup.Group
	defer func() { _ = sessions.Wait() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-a.appEvents:
			switch e := event.(type) {
			case sender.SendFileEvent:
				sessionCtx := a.newSession(ctx)
				sessions.Go(func() error {
					if _, err := a.Send(sessionCtx, e.File, e.Code); err != nil {
						a.reportError(sessionCtx, err)
					}
					return nil
				})
			case appevents.CancelEvent:
				a.cancel()
			default:
				slog.Warn("Received unhandled app event", "event", event)
			}
		}
	}
}

func (a *App) newSession(ctx context.Context) context.Context {
	sessionCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()
	return sessionCtx
}

func (a *App) cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
}

func (a *App) reportError(ctx context.Context, err error) {
	if errors.Is(err, session.ErrBusy) || errors.Is(err, concurrency.ErrBusy) {
		a.sendAndLogError(ctx, "A transfer is already in progress", err)
		return
	}
	a.sendAndLogError(ctx, "Transfer failed", err)
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	app.NewNotifier(ctx, a.uiMessages).Send(appevents.Error{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// Send offers file to the peer that joins the session. An empty code
// allocates a new one.
func (a *App) Send(ctx context.Context, file fileInfo.FileNode, code string) (*session.Outcome, error) {
	var opts []session.SendOption
	if code != "" {
		parsed, _, err := wormhole.ParseCode(code)
		if err != nil {
			return nil, err
		}
		opts = append(opts, session.WithCode(parsed))
	}

	src, err := transfer.NewFileSourceFromFileNode(&file)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("Failed to close source file", "error", err)
		}
	}()

	// The file may have changed since it was picked; describe what is open.
	desc := transfer.DescriptorFromNode(file)
	desc.Size = src.Size()
	if desc.Checksum, err = src.Checksum(); err != nil {
		return nil, err
	}

	notify := app.NewNotifier(ctx, a.uiMessages)
	notify.Send(sender.StatusUpdateMsg{Message: "Allocating a code..."})

	start := time.Now()
	out, err := a.orchestrator.InitiateSend(ctx, a.cfg.Wormhole, src, desc, app.UIHooks{Notifier: notify}, opts...)
	rec := history.Record{
		Direction: transfer.DirectionSend.String(),
		Name:      desc.Name,
		Size:      desc.Size,
		Path:      file.Path,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	}
	if err != nil {
		rec.Status, rec.Error = history.StatusFailed, err.Error()
		a.record(rec)
		return nil, err
	}
	rec.Status, rec.Verifier = history.StatusCompleted, out.Transit.Verifier
	a.record(rec)

	notify.Send(sender.TransferCompleteMsg{Name: desc.Name, Bytes: out.BytesSent})
	return out, nil
}

func (a *App) record(r history.Record) {
	if a.cfg.History == nil {
		return
	}
	if _, err := a.cfg.History.Add(r); err != nil {
		slog.Warn("Failed to record history", "error", err)
	}
}
