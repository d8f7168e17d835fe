package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/codedrop/internal/config"
	"github.com/rescp17/codedrop/internal/history"
	"github.com/rescp17/codedrop/pkg/discovery"
	"github.com/rescp17/codedrop/pkg/wormhole"
)

// testEnv isolates a command run from the user's config and logs.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CODEDROP_LOG_FILE", filepath.Join(dir, "codedrop.log"))
	t.Setenv("CODEDROP_HISTORY_PATH", filepath.Join(dir, "history"))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHistoryCmd(t *testing.T) {
	dir := testEnv(t)

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No transfers yet.")

	store, err := history.Open(filepath.Join(dir, "history"), 0)
	require.NoError(t, err)
	_, err = store.Add(history.Record{Direction: "send", Name: "notes.txt", Size: 2048, Status: history.StatusCompleted, Path: "/tmp/notes.txt"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "2 KB")

	out, err = execute(t, "history", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "notes.txt"`)

	out, err = execute(t, "history", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "History cleared.")

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No transfers yet.")
}

func TestSendCmd_NeedsFileWithoutTerminal(t *testing.T) {
	testEnv(t)
	_, err := execute(t, "send", "--plain")
	assert.ErrorIs(t, err, errFileRequired)
}

func TestSendCmd_RejectsBadCode(t *testing.T) {
	testEnv(t)
	_, err := execute(t, "send", "--plain", "--code", "x-acid", "file.txt")
	assert.ErrorIs(t, err, wormhole.ErrInvalidCode)
}

func TestReceiveCmd_RejectsBadCode(t *testing.T) {
	testEnv(t)
	_, err := execute(t, "receive", "--plain", "1-notaword")
	assert.ErrorIs(t, err, wormhole.ErrInvalidCode)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	testEnv(t)
	_, err := execute(t, "--log-format", "xml", "history")
	assert.ErrorContains(t, err, "log_format")
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	testEnv(t)
	c := &cli{v: config.New()}
	root := c.rootCmd()
	root.SetArgs([]string{"--rendezvous-url", "http://relay.lan:4000", "history", "--limit", "1"})
	root.SetOut(&bytes.Buffer{})
	require.NoError(t, root.ExecuteContext(context.Background()))

	assert.Equal(t, "http://relay.lan:4000", c.cfg.Wormhole.RendezvousURL)
	assert.Equal(t, "http://relay.lan:4000", c.cfg.Wormhole.TransitRelay())
}

func TestRelayService(t *testing.T) {
	plain := relayService(4000, false)
	assert.Equal(t, discovery.DefaultServiceType, plain.Type)
	assert.Equal(t, 4000, plain.Port)
	assert.Equal(t, version, plain.Text["version"])
	assert.NotContains(t, plain.Text, discovery.TextTLS)

	secure := relayService(4443, true)
	assert.Equal(t, "1", secure.Text[discovery.TextTLS])
	secure.Addr = []byte{10, 0, 0, 1}
	assert.Equal(t, "https://10.0.0.1:4443", secure.URL())
}
