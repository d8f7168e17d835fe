package ui

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/codedrop/internal/app_events"
	senderEvent "github.com/rescp17/codedrop/internal/app_events/sender"
	"github.com/rescp17/codedrop/internal/style"
	"github.com/rescp17/codedrop/internal/util"
	"github.com/rescp17/codedrop/pkg/fileInfo"
	"github.com/rescp17/codedrop/pkg/filePicker"
	"github.com/rescp17/codedrop/pkg/session"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// senderState defines the different states of the sender UI.
type senderState int

const (
	selectingFile senderState = iota
	allocatingCode
	waitingForPeer
	sendingFile
	transferComplete
	transferFailed
)

type senderModel struct {
	state     senderState
	spinner   spinner.Model
	progress  progress.Model
	fp        filePicker.Model
	file      fileInfo.FileNode
	code      string // reused for the first attempt only
	shownCode wormhole.Code
	status    string
	session   session.State
	verifier  string
	sent      int64
	total     int64
	started   time.Time
	elapsed   time.Duration
	lastError error
}

var retryKey = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry"))

func initSenderModel(opts Options) senderModel {
	m := senderModel{
		spinner:  style.NewSpinner(),
		progress: style.NewProgress(),
		code:     opts.Code,
		state:    selectingFile,
	}
	if opts.File != nil {
		m.file = *opts.File
		m.state = allocatingCode
	} else {
		m.fp = filePicker.New(opts.StartDir)
	}
	return m
}

func (m model) initSender() tea.Cmd {
	cmds := []tea.Cmd{m.sender.spinner.Tick, m.listenForAppMessages()}
	if m.sender.state == allocatingCode {
		cmds = append(cmds, m.sendFile())
	}
	return tea.Batch(cmds...)
}

func (m model) sendFile() tea.Cmd {
	return m.dispatch(senderEvent.SendFileEvent{File: m.sender.file, Code: m.sender.code})
}

func (m model) updateSender(msg tea.Msg) (tea.Model, tea.Cmd) {
	if next, cmd, processed := m.handleSenderAppEvent(msg); processed {
		return next, cmd
	}

	var cmd tea.Cmd
	switch m.sender.state {
	case selectingFile:
		return m.updateSelectingFileState(msg)
	case transferComplete:
		if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
			return m.quit()
		}
		return m, nil
	case transferFailed:
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch {
			case key.Matches(msg, retryKey):
				m.sender = m.sender.retry()
				return m, tea.Batch(m.sender.spinner.Tick, m.sendFile())
			case msg.Type == tea.KeyEnter:
				return m.quit()
			}
		}
		return m, nil
	}

	m.sender.spinner, cmd = m.sender.spinner.Update(msg)
	return m, cmd
}

// retry keeps the chosen file but asks for a fresh code.
func (s senderModel) retry() senderModel {
	next := initSenderModel(Options{File: &s.file})
	next.spinner = s.spinner
	return next
}

func (m model) handleSenderAppEvent(msg tea.Msg) (tea.Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case senderEvent.StatusUpdateMsg:
		m.sender.status = msg.Message
	case appevents.CodeReadyMsg:
		m.sender.shownCode = msg.Code
		m.sender.state = waitingForPeer
	case appevents.StateMsg:
		m.sender.session = msg.State
		if msg.State == session.StateTransferring && m.sender.state == waitingForPeer {
			m.sender.state = sendingFile
			m.sender.started = time.Now()
		}
	case appevents.ConnectedMsg:
		m.sender.verifier = msg.Info.Verifier
	case appevents.ProgressMsg:
		m.sender.sent, m.sender.total = msg.Sent, msg.Total
	case senderEvent.TransferCompleteMsg:
		slog.Info("Transfer complete", "file", msg.Name, "bytes", msg.Bytes)
		m.sender.state = transferComplete
		m.sender.sent, m.sender.total = msg.Bytes, msg.Bytes
		if !m.sender.started.IsZero() {
			m.sender.elapsed = time.Since(m.sender.started)
		}
		m.sender.lastError = nil
		return m, m.listenForAppMessages(), true
	case appevents.Error:
		m.sender.state = transferFailed
		m.sender.lastError = msg.Err
		return m, m.listenForAppMessages(), true
	default:
		return m, nil, false
	}
	return m, m.listenForAppMessages(), true
}

func (m model) updateSelectingFileState(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case filePicker.SelectedFileMsg:
		m.sender.file = msg.File
		m.sender.state = allocatingCode
		return m, tea.Batch(m.sender.spinner.Tick, m.sendFile())
	case filePicker.CancelledMsg:
		return m.quit()
	}
	var cmd tea.Cmd
	m.sender.fp, cmd = m.sender.fp.Update(msg)
	return m, cmd
}

func (m model) senderFileLine() string {
	return fmt.Sprintf("%s %s (%s)",
		style.LabelStyle.Render("File:"),
		style.HighlightFontStyle.Render(m.sender.file.Name),
		util.FormatSize(m.sender.file.Size))
}

func (m model) senderView() string {
	s := m.sender
	switch s.state {
	case selectingFile:
		return s.fp.View()
	case allocatingCode:
		status := s.status
		if status == "" {
			status = "Preparing..."
		}
		return fmt.Sprintf("%s\n\n%s %s", m.senderFileLine(), s.spinner.View(), status)
	case waitingForPeer:
		return fmt.Sprintf("%s\n\nOn the other computer run:\n\n%s\n\n%s Waiting for the receiver (%s)...",
			m.senderFileLine(),
			style.CodeStyle.Render("codedrop receive "+s.shownCode.String()),
			s.spinner.View(), s.session)
	case sendingFile:
		return fmt.Sprintf("%s\n%s\n\n%s\n%s / %s",
			m.senderFileLine(),
			verifierLine(s.verifier),
			s.progress.ViewAs(percent(s.sent, s.total)),
			util.FormatSize(s.sent), util.FormatSize(s.total))
	case transferComplete:
		return fmt.Sprintf("%s\n\n%s\n\nPress Enter to exit.",
			m.senderFileLine(),
			style.SuccessStyle.Render(fmt.Sprintf("Sent %s (%s)", util.FormatSize(s.sent), util.FormatRate(s.sent, s.elapsed))))
	case transferFailed:
		return fmt.Sprintf("%s\n\n%s\n\n%s",
			m.senderFileLine(),
			style.ErrorStyle.Render("Transfer failed: "+errString(s.lastError)),
			style.HelpStyle.Render(fmt.Sprintf("'%s' %s, 'enter' quit", retryKey.Help().Key, retryKey.Help().Desc)))
	default:
		return "Internal error: unknown sender state"
	}
}

func verifierLine(v string) string {
	if v == "" {
		return ""
	}
	return style.LabelStyle.Render("Verifier: ") + v
}

func percent(sent, total int64) float64 {
	return appevents.ProgressMsg{Sent: sent, Total: total}.Percent()
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
