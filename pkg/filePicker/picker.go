// Package filePicker is a bubbletea component for choosing the file to send.
package filePicker

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gabriel-vasile/mimetype"

	"github.com/rescp17/codedrop/internal/style"
	"github.com/rescp17/codedrop/internal/util"
	"github.com/rescp17/codedrop/pkg/fileInfo"
)

type mode int

const (
	modeBrowse mode = iota
	modeInput
)

// SelectedFileMsg is emitted when the user confirms a regular file.
type SelectedFileMsg struct {
	File fileInfo.FileNode
}

// CancelledMsg is emitted when the user leaves the picker without a choice.
type CancelledMsg struct{}

// --- Key Map ---
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Parent      key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	ToggleInput key.Binding
	Confirm     key.Binding
	Quit        key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
	Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
	Parent:      key.NewBinding(key.WithKeys("backspace", "h"), key.WithHelp("⌫/h", "parent dir")),
	PageUp:      key.NewBinding(key.WithKeys("pgup", "left"), key.WithHelp("←", "page up")),
	PageDown:    key.NewBinding(key.WithKeys("pgdown", "right"), key.WithHelp("→", "page down")),
	ToggleInput: key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "type a path")),
	Confirm:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/choose")),
	Quit:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
}

// --- Model ---
type Model struct {
	path     string
	items    []fs.DirEntry
	cursor   int
	offset   int // first visible row
	height   int
	keys     KeyMap
	mode     mode
	input    textinput.Model
	inputErr error
}

// New opens the picker in dir, or the working directory when dir is empty.
func New(dir string) Model {
	m := Model{
		keys:  DefaultKeyMap,
		mode:  modeBrowse,
		input: style.NewTextInput("path to a file or directory"),
	}
	m.input.Blur()
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			slog.Warn("Could not get working directory", "error", err)
			wd = "."
		}
		dir = wd
	}
	if err := m.SetPath(dir); err != nil {
		m.inputErr = err
		m.mode = modeInput
		m.input.Focus()
	}
	return m
}

// Path is the directory being browsed.
func (m Model) Path() string {
	return m.path
}

// --- Bubble Tea Methods ---
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.mode == modeInput && m.path != "" {
				m.mode = modeBrowse
				m.input.Blur()
				m.input.Reset()
				m.inputErr = nil
				return m, nil
			}
			return m, func() tea.Msg { return CancelledMsg{} }
		}
		if m.mode == modeInput {
			return m.updateInput(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (Model, tea.Cmd) {
	visible := m.visibleItems()
	switch {
	case key.Matches(msg, m.keys.ToggleInput):
		m.mode = modeInput
		m.input.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.PageDown):
		m.cursor = min(m.cursor+visible, max(len(m.items)-1, 0))

	case key.Matches(msg, m.keys.PageUp):
		m.cursor = max(m.cursor-visible, 0)

	case key.Matches(msg, m.keys.Parent):
		parent := filepath.Dir(m.path)
		if parent != m.path {
			m.setPathOrReport(parent)
		}
		return m, nil

	case key.Matches(msg, m.keys.Confirm):
		if len(m.items) == 0 {
			return m, nil
		}
		return m.open(filepath.Join(m.path, m.items[m.cursor].Name()))
	}
	m.scrollToCursor(visible)
	return m, nil
}

func (m *Model) scrollToCursor(visible int) {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// open descends into directories and selects regular files.
func (m Model) open(path string) (Model, tea.Cmd) {
	info, err := os.Stat(path)
	if err != nil {
		m.inputErr = fmt.Errorf("path does not exist: %s", path)
		return m, nil
	}
	if info.IsDir() {
		m.setPathOrReport(path)
		return m, nil
	}
	node, err := fileInfo.CreateNode(path)
	if err != nil {
		m.inputErr = fmt.Errorf("cannot send %s: %w", filepath.Base(path), err)
		return m, nil
	}
	m.inputErr = nil
	return m, func() tea.Msg { return SelectedFileMsg{File: node} }
}

func (m *Model) setPathOrReport(path string) {
	if err := m.SetPath(path); err != nil {
		m.inputErr = err
	}
}

func (m Model) updateInput(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Confirm) {
		path := strings.TrimSpace(m.input.Value())
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.path, path)
		}
		m.input.Reset()
		m.input.Blur()
		m.mode = modeBrowse
		return m.open(path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(style.TitleStyle.Render("Choose a file to send") + " " + m.helpView() + "\n\n")
	if m.mode == modeInput {
		s.WriteString(m.input.View() + "\n")
	}
	if m.inputErr != nil {
		s.WriteString(style.ErrorStyle.Render(m.inputErr.Error()) + "\n")
	}
	if m.path == "" {
		return s.String()
	}
	s.WriteString(fmt.Sprintf("Browsing: %s\n\n", m.path))

	const (
		nameWidth = 36
		timeWidth = 20
		sizeWidth = 12
		typeWidth = 28
	)
	s.WriteString(style.HeaderStyle.Render(
		util.PadRight("", 2)+
			util.PadRight("Name", nameWidth)+" "+
			util.PadRight("Last Modified", timeWidth)+" "+
			util.PadRight("Size", sizeWidth)+" "+
			util.PadRight("Type", typeWidth)) + "\n")

	visible := m.visibleItems()
	end := min(m.offset+visible, len(m.items))
	for i := m.offset; i < end; i++ {
		item := m.items[i]
		if m.cursor == i {
			s.WriteString(style.CursorStyle.String())
		} else {
			s.WriteString(style.NoCursorStyle.String())
		}

		var modTime, size, typ string
		if info, err := item.Info(); err == nil {
			modTime = info.ModTime().Format("2006-01-02 15:04:05")
			if info.IsDir() {
				size = "<DIR>"
			} else {
				size = util.FormatSize(info.Size())
			}
		}
		name := item.Name()
		if item.IsDir() {
			name += "/"
		} else if mime, err := mimetype.DetectFile(filepath.Join(m.path, item.Name())); err == nil {
			typ = mime.String()
		}

		nameCell := util.PadRight(name, nameWidth)
		if item.IsDir() {
			nameCell = style.DirStyle.Render(nameCell)
		} else {
			nameCell = style.FileStyle.Render(nameCell)
		}
		s.WriteString(nameCell + " " +
			util.PadRight(modTime, timeWidth) + " " +
			util.PadRight(size, sizeWidth) + " " +
			util.PadRight(typ, typeWidth) + "\n")
	}

	if len(m.items) > visible {
		s.WriteString(fmt.Sprintf("\n... %d/%d ...\n", m.cursor+1, len(m.items)))
	}
	return s.String()
}

func (m Model) helpView() string {
	return style.HelpStyle.Render(
		fmt.Sprintf("'%s' %s, '%s' %s, '%s' %s, '%s' %s",
			m.keys.Confirm.Help().Key, m.keys.Confirm.Help().Desc,
			m.keys.Parent.Help().Key, m.keys.Parent.Help().Desc,
			m.keys.ToggleInput.Help().Key, m.keys.ToggleInput.Help().Desc,
			m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc),
	)
}

// SetPath loads the entries of dir, directories first.
func (m *Model) SetPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	exists, isDir, err := util.CheckDirectory(absPath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("path does not exist: %s", absPath)
	}
	if !isDir {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}
	items, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("could not read directory: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return items[i].Name() < items[j].Name()
	})
	m.path = absPath
	m.items = items
	m.cursor = 0
	m.offset = 0
	m.inputErr = nil
	m.mode = modeBrowse
	return nil
}

func (m Model) visibleItems() int {
	const headerHeight = 8
	visible := m.height - headerHeight
	if visible < 1 {
		visible = 15
	}
	return visible
}
