// Package system samples process resource usage for periodic logging.
package system

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/rescp17/codedrop/internal/util"
)

// Snapshot is a point-in-time view of the process.
type Snapshot struct {
	Goroutines int
	HeapAlloc  uint64 // bytes allocated and still in use
	Sys        uint64 // bytes obtained from the OS
	NumGC      uint32
	LastPause  time.Duration
	Uptime     time.Duration
}

// Monitor samples the Go runtime.
type Monitor struct {
	start time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{start: time.Now()}
}

// Snapshot reads the current memory statistics.
func (m *Monitor) Snapshot() Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	s := Snapshot{
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		Sys:        ms.Sys,
		NumGC:      ms.NumGC,
		Uptime:     time.Since(m.start),
	}
	if ms.NumGC > 0 {
		s.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("goroutines", s.Goroutines),
		slog.String("heap", util.FormatSize(int64(s.HeapAlloc))),
		slog.String("sys", util.FormatSize(int64(s.Sys))),
		slog.Uint64("gc", uint64(s.NumGC)),
		slog.Duration("lastPause", s.LastPause),
		slog.Duration("uptime", s.Uptime.Round(time.Second)),
	)
}
