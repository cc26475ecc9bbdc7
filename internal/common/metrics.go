package common

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks how far a decoding pass has got through its data. The
// decoder updates it while a progress printer reads snapshots.
type Metrics struct {
	bytes   atomic.Int64
	total   atomic.Int64
	frames  atomic.Int64
	failed  atomic.Int64
	skipped atomic.Int64
	resyncs atomic.Int64

	mu         sync.Mutex
	start, end time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Start stamps the first pass. Later passes keep the original start.
func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
	}
	m.end = time.Time{}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

// AddFrame records an emitted frame of size bytes.
func (m *Metrics) AddFrame(size int64) {
	m.frames.Add(1)
	m.AddBytes(size)
}

// AddSkipped records bytes discarded while searching for a frame.
func (m *Metrics) AddSkipped(n int64) {
	if n > 0 {
		m.skipped.Add(n)
		m.bytes.Add(n)
	}
}

// AddBytes records consumed bytes that produced no frame.
func (m *Metrics) AddBytes(n int64) {
	if n > 0 {
		m.bytes.Add(n)
	}
}

func (m *Metrics) IncFailed() { m.failed.Add(1) }
func (m *Metrics) IncResync() { m.resyncs.Add(1) }

func (m *Metrics) SetTotalBytes(total int64) {
	m.total.Store(max(total, 0))
}

type MetricsSnapshot struct {
	Elapsed    time.Duration
	Bytes      int64
	TotalBytes int64
	Frames     int64
	Failed     int64
	Skipped    int64
	Resyncs    int64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	var elapsed time.Duration
	switch {
	case m.start.IsZero():
	case m.end.IsZero():
		elapsed = time.Since(m.start)
	default:
		elapsed = m.end.Sub(m.start)
	}
	m.mu.Unlock()
	return MetricsSnapshot{
		Elapsed:    elapsed,
		Bytes:      m.bytes.Load(),
		TotalBytes: m.total.Load(),
		Frames:     m.frames.Load(),
		Failed:     m.failed.Load(),
		Skipped:    m.skipped.Load(),
		Resyncs:    m.resyncs.Load(),
	}
}

// String renders the snapshot as one progress line.
func (s MetricsSnapshot) String() string {
	var b strings.Builder
	if s.TotalBytes > 0 {
		pct := 100 * float64(min(s.Bytes, s.TotalBytes)) / float64(s.TotalBytes)
		fmt.Fprintf(&b, "%5.1f%% of %s", pct, FormatBytes(s.TotalBytes))
	} else {
		fmt.Fprintf(&b, "%s read", FormatBytes(s.Bytes))
	}
	fmt.Fprintf(&b, ", %d frames", s.Frames)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failed)
	}
	if s.Resyncs > 0 {
		fmt.Fprintf(&b, ", %d resyncs over %s", s.Resyncs, FormatBytes(s.Skipped))
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(&b, ", %.2f MiB/s", float64(s.Bytes)/secs/(1<<20))
	}
	return b.String()
}

func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n)
	for _, unit := range []string{"KiB", "MiB", "GiB", "TiB"} {
		v /= 1024
		if v < 1024 || unit == "TiB" {
			return fmt.Sprintf("%.2f %s", v, unit)
		}
	}
	return ""
}

// StartProgressPrinter redraws m on w every interval until the returned stop
// function is called.
func StartProgressPrinter(w io.Writer, m *Metrics, interval time.Duration) (stop func()) {
	if m == nil || w == nil {
		return func() {}
	}
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		width := 0
		for {
			select {
			case <-ticker.C:
				line := m.Snapshot().String()
				fmt.Fprintf(w, "\r%-*s", width, line)
				width = max(width, len(line))
			case <-done:
				if width > 0 {
					fmt.Fprintf(w, "\r%s\r\n", strings.Repeat(" ", width))
				}
				return
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}
