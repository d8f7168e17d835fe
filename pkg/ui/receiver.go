package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/codedrop/internal/app_events"
	receiverEvent "github.com/rescp17/codedrop/internal/app_events/receiver"
	"github.com/rescp17/codedrop/internal/style"
	"github.com/rescp17/codedrop/internal/util"
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/transfer"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// receiverState defines the different states of the receiver UI
type receiverState int

const (
	enteringCode receiverState = iota
	connecting
	awaitingConfirmation
	receivingFile
	receiveComplete
	receiveFailed
	offerDeclined
)

type receiverModel struct {
	state     receiverState
	spinner   spinner.Model
	progress  progress.Model
	input     textinput.Model
	inputErr  error
	code      string
	session   session.State
	verifier  string
	offer     transfer.Descriptor
	sent      int64
	total     int64
	started   time.Time
	elapsed   time.Duration
	savedPath string
	lastError error
}

type KeyMap struct {
	Accept key.Binding
	Reject key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Accept: key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "Accept")),
	Reject: key.NewBinding(key.WithKeys("n", "N"), key.WithHelp("n", "Reject")),
}

func initReceiverModel(opts Options) receiverModel {
	m := receiverModel{
		spinner:  style.NewSpinner(),
		progress: style.NewProgress(),
		input:    style.NewTextInput("e.g. 7-acid-acorn"),
		code:     opts.Code,
		state:    enteringCode,
	}
	if opts.Code != "" {
		m.state = connecting
		m.input.Blur()
	}
	return m
}

func (m model) initReceiver() tea.Cmd {
	cmds := []tea.Cmd{m.receiver.spinner.Tick, m.listenForAppMessages()}
	if m.receiver.state == connecting {
		cmds = append(cmds, m.dispatch(receiverEvent.ReceiveEvent{Code: m.receiver.code}))
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

func (m model) updateReceiver(msg tea.Msg) (tea.Model, tea.Cmd) {
	if next, cmd, processed := m.handleReceiverAppEvent(msg); processed {
		return next, cmd
	}

	switch m.receiver.state {
	case enteringCode:
		return m.updateEnteringCode(msg)
	case awaitingConfirmation:
		return m.handleAwaitingConfirmation(msg)
	case receiveComplete, receiveFailed, offerDeclined:
		return m.handleReceiveFinishedOrFailed(msg)
	}

	var cmd tea.Cmd
	m.receiver.spinner, cmd = m.receiver.spinner.Update(msg)
	return m, cmd
}

func (m model) handleReceiverAppEvent(msg tea.Msg) (tea.Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case appevents.StateMsg:
		m.receiver.session = msg.State
		if msg.State == session.StateTransferring {
			m.receiver.state = receivingFile
			m.receiver.started = time.Now()
		}
	case appevents.ConnectedMsg:
		m.receiver.verifier = msg.Info.Verifier
	case receiverEvent.FileOfferMsg:
		m.receiver.offer = msg.Descriptor
		m.receiver.state = awaitingConfirmation
	case appevents.ProgressMsg:
		m.receiver.sent, m.receiver.total = msg.Sent, msg.Total
	case receiverEvent.TransferFinishedMsg:
		m.receiver.state = receiveComplete
		m.receiver.savedPath = msg.Path
		m.receiver.sent, m.receiver.total = msg.Size, msg.Size
		if !m.receiver.started.IsZero() {
			m.receiver.elapsed = time.Since(m.receiver.started)
		}
	case appevents.Error:
		// A declined offer ends the session with an error we already expect.
		if m.receiver.state != offerDeclined {
			m.receiver.state = receiveFailed
			m.receiver.lastError = msg.Err
		}
	default:
		return m, nil, false
	}
	return m, m.listenForAppMessages(), true
}

func (m model) updateEnteringCode(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		code, _, err := wormhole.ParseCode(m.receiver.input.Value())
		if err != nil {
			m.receiver.inputErr = err
			return m, nil
		}
		m.receiver.inputErr = nil
		m.receiver.code = code.String()
		m.receiver.state = connecting
		m.receiver.input.Blur()
		return m, tea.Batch(m.receiver.spinner.Tick, m.dispatch(receiverEvent.ReceiveEvent{Code: m.receiver.code}))
	}
	var cmd tea.Cmd
	m.receiver.input, cmd = m.receiver.input.Update(msg)
	return m, cmd
}

func (m model) handleAwaitingConfirmation(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, DefaultKeyMap.Accept):
			m.receiver.state = receivingFile
			m.receiver.started = time.Now()
			return m, tea.Batch(m.receiver.spinner.Tick, m.dispatch(receiverEvent.AcceptFileRequestEvent{}))
		case key.Matches(keyMsg, DefaultKeyMap.Reject):
			m.receiver.state = offerDeclined
			return m, m.dispatch(receiverEvent.RejectFileRequestEvent{})
		}
	}
	return m, nil
}

func (m model) handleReceiveFinishedOrFailed(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		if m.receiver.state == receiveFailed {
			m.receiver = initReceiverModel(Options{})
			return m, textinput.Blink
		}
		return m.quit()
	}
	// Ignore all other messages in final states.
	return m, nil
}

func (m model) offerView() string {
	o := m.receiver.offer
	rows := [][2]string{
		{"Name", o.Name},
		{"Size", util.FormatSize(o.Size)},
		{"Type", o.MimeType},
		{"SHA-256", o.Checksum},
	}
	var s string
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		s += style.LabelStyle.Render(util.PadRight(r[0], 9)) + r[1] + "\n"
	}
	return style.BaseStyle.Render(s)
}

func (m model) receiverView() string {
	r := m.receiver
	switch r.state {
	case enteringCode:
		s := fmt.Sprintf("%s\n\n%s", style.TitleStyle.Render("Enter the code shown by the sender"), r.input.View())
		if r.inputErr != nil {
			s += "\n" + style.ErrorStyle.Render(r.inputErr.Error())
		}
		return s
	case connecting:
		return fmt.Sprintf("%s Connecting with %s (%s)...", r.spinner.View(), style.HighlightFontStyle.Render(r.code), r.session)
	case awaitingConfirmation:
		help := fmt.Sprintf("  %s/%s  %s/%s \n",
			DefaultKeyMap.Accept.Help().Key, DefaultKeyMap.Accept.Help().Desc,
			DefaultKeyMap.Reject.Help().Key, DefaultKeyMap.Reject.Help().Desc,
		)
		return fmt.Sprintf("Incoming file:\n%s\n%s\n%s", m.offerView(), verifierLine(r.verifier), style.HelpStyle.Render(help))
	case receivingFile:
		return fmt.Sprintf("Receiving %s\n%s\n\n%s\n%s / %s",
			style.HighlightFontStyle.Render(r.offer.Name),
			verifierLine(r.verifier),
			r.progress.ViewAs(percent(r.sent, r.total)),
			util.FormatSize(r.sent), util.FormatSize(r.total))
	case receiveComplete:
		return fmt.Sprintf("%s\n%s\n\nPress Enter to exit.",
			style.SuccessStyle.Render(fmt.Sprintf("Received %s (%s)", util.FormatSize(r.sent), util.FormatRate(r.sent, r.elapsed))),
			style.LabelStyle.Render("Saved to: ")+r.savedPath)
	case receiveFailed:
		return fmt.Sprintf("An error occurred: %v\n\nPress Enter to try another code.", style.ErrorStyle.Render(errString(r.lastError)))
	case offerDeclined:
		return "You declined the file.\n\nPress Enter to exit."
	default:
		return "Internal error: unknown receiver state"
	}
}
