package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/codedrop/internal/app"
	appevents "github.com/rescp17/codedrop/internal/app_events"
	"github.com/rescp17/codedrop/internal/app_events/receiver"
	"github.com/rescp17/codedrop/internal/history"
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// Recorder stores finished sessions.
type Recorder interface {
	Add(r history.Record) (history.Record, error)
}

// Config configures a receiver App.
type Config struct {
	Wormhole       wormhole.Config
	OutputDir      string
	MaxReceiveSize int64
	// AutoAccept skips the confirmation prompt.
	AutoAccept bool
	History    Recorder
}

// App is the main application logic controller for the receiver.
type App struct {
	cfg          Config
	orchestrator *session.Orchestrator
	fileReceiver *FileReceiver
	stateManager *app.StateManager
	uiMessages   chan tea.Msg            // App -> TUI
	appEvents    chan appevents.AppEvent // TUI -> App

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	sessionWG  sync.WaitGroup
}

// NewApp creates a new receiver application instance.
func NewApp(rv wormhole.Rendezvous, cfg Config) *App {
	return &App{
		cfg:          cfg,
		orchestrator: session.NewOrchestrator(rv),
		fileReceiver: NewFileReceiver(cfg.OutputDir),
		stateManager: app.NewStateManager(),
		uiMessages:   make(chan tea.Msg, 64),
		appEvents:    make(chan appevents.AppEvent),
	}
}

func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run starts the application's main event loop.
func (a *App) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.sessionWG.Wait()
			return nil
		case event := <-a.appEvents:
			switch e := event.(type) {
			case receiver.ReceiveEvent:
				a.startReceive(ctx, e.Code)
			case receiver.AcceptFileRequestEvent:
				a.decide(app.Accepted)
			case receiver.RejectFileRequestEvent:
				slog.Info("User rejected file transfer.")
				a.decide(app.Rejected)
			case appevents.CancelEvent:
				a.cancel()
			default:
				slog.Warn("Received unhandled app event", "event", event)
			}
		}
	}
}

func (a *App) decide(d app.Decision) {
	if err := a.stateManager.SetDecision(d); err != nil {
		slog.Warn("Decision without a pending offer", "error", err)
	}
}

func (a *App) startReceive(ctx context.Context, code string) {
	sessionCtx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancelFunc = cancel
	a.mu.Unlock()

	a.sessionWG.Add(1)
	go func() {
		defer a.sessionWG.Done()
		defer cancel()
		if _, err := a.Receive(sessionCtx, code); err != nil {
			a.sendAndLogError(sessionCtx, "Receive failed", err)
		}
	}()
}

func (a *App) cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	app.NewNotifier(ctx, a.uiMessages).Send(appevents.Error{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// approve asks the UI about desc and waits for the user.
func (a *App) approve(notify app.Notifier) func(ctx context.Context, desc transfer.Descriptor) (bool, error) {
	return func(ctx context.Context, desc transfer.Descriptor) (bool, error) {
		d, err := a.stateManager.Await(ctx, desc, func(offer transfer.Descriptor) {
			notify.Send(receiver.FileOfferMsg{Descriptor: offer})
		})
		return d == app.Accepted, err
	}
}

// Receive runs one receive session for code and saves the file. It returns
// the path the file was written to.
func (a *App) Receive(ctx context.Context, code string) (string, error) {
	parsed, _, err := wormhole.ParseCode(code)
	if err != nil {
		return "", err
	}
	notify := app.NewNotifier(ctx, a.uiMessages)
	opts := []session.ReceiveOption{session.WithMaxSize(a.cfg.MaxReceiveSize)}
	if !a.cfg.AutoAccept {
		opts = append(opts, session.WithApproval(a.approve(notify)))
	}

	start := time.Now()
	out, err := a.orchestrator.InitiateReceive(ctx, a.cfg.Wormhole, parsed, app.UIHooks{Notifier: notify}, opts...)
	if err != nil {
		a.record(history.Record{Direction: transfer.DirectionReceive.String(), Status: history.StatusFailed, Error: err.Error()})
		return "", err
	}

	path, err := a.fileReceiver.Save(out.File, out.Descriptor.Checksum)
	if err != nil {
		a.record(history.Record{Direction: transfer.DirectionReceive.String(), Name: out.File.Name, Size: out.File.Size, Status: history.StatusFailed, Error: err.Error()})
		return "", fmt.Errorf("failed to save %s: %w", out.File.Name, err)
	}
	a.record(history.Record{
		Direction: transfer.DirectionReceive.String(),
		Name:      out.File.Name,
		Size:      out.File.Size,
		Path:      path,
		Verifier:  out.Transit.Verifier,
		Status:    history.StatusCompleted,
		Duration:  time.Since(start).Round(time.Millisecond).String(),
	})

	notify.Send(receiver.TransferFinishedMsg{
		Path:     path,
		Name:     out.File.Name,
		Size:     out.File.Size,
		MimeType: out.File.MimeType,
	})
	return path, nil
}

func (a *App) record(r history.Record) {
	if a.cfg.History == nil {
		return
	}
	if _, err := a.cfg.History.Add(r); err != nil {
		slog.Warn("Failed to record history", "error", err)
	}
}
