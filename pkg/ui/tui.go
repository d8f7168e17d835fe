package ui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/codedrop/internal/app_events"
	"github.com/rescp17/codedrop/internal/style"
	"github.com/rescp17/codedrop/pkg/fileInfo"
)

type Mode int

const (
	None Mode = iota
	Sender
	Receiver
)

// Options preset what the user already gave on the command line.
type Options struct {
	// File skips the picker when set.
	File *fileInfo.FileNode
	// Code is reused by the sender or typed for the receiver.
	Code string
	// StartDir is where the picker opens.
	StartDir string
}

type appStoppedMsg struct {
	err error
}

var quitKey = key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))

type model struct {
	mode          Mode
	appController AppController
	ctx           context.Context
	cancel        context.CancelFunc
	sender        senderModel
	receiver      receiverModel
	width         int
	quitting      bool
}

// InitialModel builds the root model for mode, driving ctrl.
func InitialModel(m Mode, ctrl AppController, opts Options) model {
	ctx, cancel := context.WithCancel(context.Background())
	mdl := model{
		mode:          m,
		appController: ctrl,
		ctx:           ctx,
		cancel:        cancel,
	}
	switch m {
	case Sender:
		mdl.sender = initSenderModel(opts)
	case Receiver:
		mdl.receiver = initReceiverModel(opts)
	}
	return mdl
}

// Run starts a full-screen program for mode and returns once it exits.
func Run(m Mode, ctrl AppController, opts Options) error {
	mdl := InitialModel(m, ctrl, opts)
	defer mdl.cancel()
	p := tea.NewProgram(mdl)
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(model); ok {
		return fm.err()
	}
	return nil
}

func (m model) Init() tea.Cmd {
	runApp := func() tea.Msg {
		return appStoppedMsg{err: m.appController.Run(m.ctx)}
	}
	switch m.mode {
	case Sender:
		return tea.Batch(runApp, m.initSender())
	case Receiver:
		return tea.Batch(runApp, m.initReceiver())
	default:
		return runApp
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m model) listenForAppMessages() tea.Cmd {
	ui := m.appController.UIMessages()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case msg := <-ui:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

// dispatch hands ev to the app without blocking the update loop.
func (m model) dispatch(ev appevents.AppEvent) tea.Cmd {
	events := m.appController.AppEvents()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
		return nil
	}
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

// err is the failure the program ended with, if any.
func (m model) err() error {
	switch m.mode {
	case Sender:
		return m.sender.lastError
	case Receiver:
		return m.receiver.lastError
	}
	return nil
}

func (m model) View() string {
	var s string
	switch m.mode {
	case Sender:
		s += m.senderView()
	case Receiver:
		s += m.receiverView()
	default:
		return ""
	}
	if !m.quitting {
		s += "\n" + style.HelpStyle.Render("Press ctrl + c to quit")
	}
	return style.DocStyle.Render(s)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKey) {
			return m.quit()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case appStoppedMsg:
		if msg.err != nil {
			slog.Error("App stopped", "error", msg.err)
		}
		return m, nil
	}

	switch m.mode {
	case Sender:
		return m.updateSender(msg)
	case Receiver:
		return m.updateReceiver(msg)
	}
	return m, nil
}
