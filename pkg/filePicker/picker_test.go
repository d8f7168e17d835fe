package filePicker

import (
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("bravo"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "inner.txt"), []byte("inner"), 0o644))
	return dir
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		m, cmd = m.Update(keyMsg(k))
	}
	return m, cmd
}

func TestSetPath_DirectoriesFirst(t *testing.T) {
	dir := setupDir(t)
	m := New(dir)

	require.Len(t, m.items, 3)
	assert.Equal(t, "sub", m.items[0].Name())
	assert.Equal(t, "a.txt", m.items[1].Name())
	assert.Equal(t, "b.txt", m.items[2].Name())
	assert.Equal(t, dir, m.Path())
}

func TestSetPath_Errors(t *testing.T) {
	dir := setupDir(t)
	var m Model
	assert.Error(t, m.SetPath(filepath.Join(dir, "missing")))
	assert.Error(t, m.SetPath(filepath.Join(dir, "a.txt")))
}

func TestNew_BadDirFallsBackToInput(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, modeInput, m.mode)
	assert.Error(t, m.inputErr)
}

func TestUpdate_EnterDescendsAndParentReturns(t *testing.T) {
	dir := setupDir(t)
	m := New(dir)

	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, filepath.Join(dir, "sub"), m.Path())
	require.Len(t, m.items, 1)

	m, _ = press(t, m, "backspace")
	assert.Equal(t, dir, m.Path())
}

func TestUpdate_SelectFile(t *testing.T) {
	dir := setupDir(t)
	m := New(dir)

	_, cmd := press(t, m, "down", "down", "enter")
	require.NotNil(t, cmd)
	msg, ok := cmd().(SelectedFileMsg)
	require.True(t, ok)
	assert.Equal(t, "b.txt", msg.File.Name)
	assert.Equal(t, int64(5), msg.File.Size)
	assert.NotEmpty(t, msg.File.Checksum)
}

func TestUpdate_CursorStaysInRange(t *testing.T) {
	m := New(setupDir(t))
	m, _ = press(t, m, "k", "k")
	assert.Equal(t, 0, m.cursor)
	m, _ = press(t, m, "j", "j", "j", "j")
	assert.Equal(t, 2, m.cursor)
}

func TestUpdate_TypedPath(t *testing.T) {
	dir := setupDir(t)
	m := New(dir)

	m, _ = press(t, m, "ctrl+p")
	assert.Equal(t, modeInput, m.mode)
	m, _ = press(t, m, "sub/inner.txt")
	_, cmd := press(t, m, "enter")
	require.NotNil(t, cmd)
	msg, ok := cmd().(SelectedFileMsg)
	require.True(t, ok)
	assert.Equal(t, "inner.txt", msg.File.Name)
}

func TestUpdate_TypedMissingPath(t *testing.T) {
	m := New(setupDir(t))
	m, _ = press(t, m, "ctrl+p", "nope.bin")
	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd)
	assert.ErrorContains(t, m.inputErr, "does not exist")
	assert.Contains(t, m.View(), "does not exist")
}

func TestUpdate_EscCancels(t *testing.T) {
	m := New(setupDir(t))

	m, cmd := press(t, m, "ctrl+p", "esc")
	assert.Nil(t, cmd, "esc leaves input mode first")
	assert.Equal(t, modeBrowse, m.mode)

	_, cmd = press(t, m, "esc")
	require.NotNil(t, cmd)
	assert.IsType(t, CancelledMsg{}, cmd())
}

func TestView_ListsEntries(t *testing.T) {
	m := New(setupDir(t))
	view := m.View()
	assert.Contains(t, view, "sub/")
	assert.Contains(t, view, "a.txt")
	assert.Contains(t, view, "<DIR>")
}
