package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"example.com/bblgate/internal/blackbox"
	"example.com/bblgate/internal/samples"
)

func TestRecordCorruptFlight(t *testing.T) {
	data, err := samples.BuildCorrupt()
	if err != nil {
		t.Fatalf("BuildCorrupt: %v", err)
	}
	p, err := blackbox.NewParser(data, blackbox.Options{})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	start := time.Now()
	if _, err := p.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	events, err := p.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	st := p.Stats()

	m := NewDecodeMetrics()
	m.Record(st, events)
	m.ObserveDecode(start)

	counts := samples.CorruptCounts()
	if got := testutil.ToFloat64(m.Frames.WithLabelValues("P", "decoded")); got != float64(counts[blackbox.FrameInter]) {
		t.Fatalf("inter decoded = %v, want %d", got, counts[blackbox.FrameInter])
	}
	if got := testutil.ToFloat64(m.Frames.WithLabelValues("P", "rejected")); got != float64(st.ByType[blackbox.FrameInter].Rejected) || got == 0 {
		t.Fatalf("inter rejected = %v, want %d", got, st.ByType[blackbox.FrameInter].Rejected)
	}
	if got := testutil.ToFloat64(m.Resyncs); got != float64(st.Resyncs) {
		t.Fatalf("resyncs = %v, want %d", got, st.Resyncs)
	}
	if got := testutil.ToFloat64(m.BytesSkipped); got != float64(st.BytesSkipped) {
		t.Fatalf("bytes skipped = %v, want %d", got, st.BytesSkipped)
	}
	if got := testutil.ToFloat64(m.Events.WithLabelValues("LOG_END")); got != 1 {
		t.Fatalf("LOG_END events = %v", got)
	}
	if got := testutil.ToFloat64(m.EndOfLog); got != 1 {
		t.Fatalf("end of log gauge = %v", got)
	}
	if n := testutil.CollectAndCount(m.DecodeTime); n != 1 {
		t.Fatalf("histogram series = %d", n)
	}

	path := filepath.Join(t.TempDir(), "bblctl.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	for _, want := range []string{
		`bbl_frames_total{outcome="decoded",type="I"} 8`,
		"bbl_resyncs_total 3",
		"# TYPE bbl_decode_duration_seconds histogram",
	} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("textfile missing %q:\n%s", want, out)
		}
	}
}
