// Package startup performs process-wide setup once per process.
package startup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	dnssdlog "github.com/brutella/dnssd/log"
	"github.com/joho/godotenv"
)

// Options selects where and how logs are written.
type Options struct {
	LogFile   string // empty logs to stderr
	LogLevel  slog.Level
	LogFormat string // "text" or "json"
	EnvFiles  []string
}

var (
	once    sync.Once
	initErr error
	logFile *os.File
)

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// Init installs the default slog logger. Only the first call has an effect;
// later calls return the first call's error.
func Init(opts Options) error {
	once.Do(func() {
		initErr = setupLogging(opts)
	})
	return initErr
}

// Close flushes and closes the log file opened by Init.
func Close() {
	if logFile == nil {
		return
	}
	if err := logFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}

func setupLogging(opts Options) error {
	var w io.Writer = os.Stderr
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		w = f
	}

	slog.SetDefault(slog.New(NewHandler(w, opts)))
	log.SetOutput(w)

	// dnssd logs through the standard logger on its own; keep it out of the TUI.
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)
	return nil
}

// NewHandler builds the slog handler for opts.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: opts.LogLevel}
	if opts.LogFormat == "json" {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}
