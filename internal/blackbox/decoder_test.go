package blackbox

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"example.com/bblgate/internal/common"
)

const counterHeader = "H Product:Blackbox flight data recorder by Nicholas Sherlock\n" +
	"H Data version:2\n" +
	"H Field I name:loopIteration\n" +
	"H Field I signed:0\n" +
	"H Field I predictor:6\n" +
	"H Field I encoding:1\n" +
	"H Field P predictor:1\n" +
	"H Field P encoding:0\n"

func newTestParser(t *testing.T, body []byte, opts Options) *Parser {
	t.Helper()
	p, err := NewParser(append([]byte(counterHeader), body...), opts)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func loopIterations(t *testing.T, p *Parser) []int64 {
	t.Helper()
	frames, err := p.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	out := make([]int64, len(frames))
	for i, f := range frames {
		v, ok := f.Value("loopIteration")
		if !ok {
			t.Fatalf("frame %d has no loopIteration", i)
		}
		out[i] = v
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIntraThenInterPrevious(t *testing.T) {
	p := newTestParser(t, []byte{'I', 100, 'P', 0x0A}, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 105}) {
		t.Fatalf("loopIteration = %v, want [100 105]", got)
	}
	st := p.Stats()
	if st.FramesDecoded != 2 || st.FramesFailed != 0 || st.BytesSkipped != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.ByType[FrameIntra].Decoded != 1 || st.ByType[FrameInter].Decoded != 1 {
		t.Fatalf("per-type stats = %+v", st.ByType)
	}
}

func TestLogEndStopsDecoding(t *testing.T) {
	body := []byte{'I', 100, 'E', byte(EventLogEnd)}
	body = append(body, EndOfLogMessage...)
	body = append(body, 'P', 0x0A, 0xDE, 0xAD, 'I')
	p := newTestParser(t, body, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100}) {
		t.Fatalf("loopIteration = %v, want [100]", got)
	}
	events, err := p.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].Kind != EventLogEnd {
		t.Fatalf("events = %+v, want one LOG_END", events)
	}
	if events[0].Iteration != 100 {
		t.Fatalf("LOG_END iteration = %d, want 100", events[0].Iteration)
	}
	if st := p.Stats(); !st.EndOfLog || st.Truncated {
		t.Fatalf("stats = %+v, want EndOfLog without truncation", st)
	}
	if _, err := p.Next(); err != io.EOF {
		t.Fatalf("Next after end = %v, want io.EOF", err)
	}
}

func TestLogEndWithoutMessageIsMalformed(t *testing.T) {
	body := []byte{'I', 100, 'E', byte(EventLogEnd), 'x', 'P', 0x0A, 'I', 120}
	p := newTestParser(t, body, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 120}) {
		t.Fatalf("loopIteration = %v, want [100 120]", got)
	}
	st := p.Stats()
	if st.EndOfLog || st.EventsFailed != 1 {
		t.Fatalf("stats = %+v, want one failed event and no end of log", st)
	}
	if st.FramesRejected != 1 {
		t.Fatalf("FramesRejected = %d, want the inter frame after the bad event", st.FramesRejected)
	}
}

func TestUnknownEventIsSkipped(t *testing.T) {
	p := newTestParser(t, []byte{'I', 100, 'E', 99, 'P', 0x0A}, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 105}) {
		t.Fatalf("loopIteration = %v, want [100 105]", got)
	}
	st := p.Stats()
	if st.EventsFailed != 1 || st.EventsDecoded != 0 {
		t.Fatalf("event stats = %d failed %d decoded", st.EventsFailed, st.EventsDecoded)
	}
	if st.BytesSkipped != 0 || st.Resyncs != 0 {
		t.Fatalf("skipped %d bytes in %d resyncs, want none", st.BytesSkipped, st.Resyncs)
	}

	// Without a marker after the kind byte the payload length is unknown.
	p = newTestParser(t, []byte{'I', 100, 'E', 99, 0x01, 'P', 0x0A, 'I', 120}, Options{})
	got = loopIterations(t, p)
	if !equalInts(got, []int64{100, 120}) {
		t.Fatalf("loopIteration = %v, want [100 120]", got)
	}
	if st := p.Stats(); st.Resyncs != 1 || st.BytesSkipped != 3 {
		t.Fatalf("stats = %+v, want 3 bytes skipped in one resync", st)
	}
}

func TestEventsPendingUntilDrained(t *testing.T) {
	p := newTestParser(t, []byte{'I', 100, 'P', 0x0A}, Options{})
	if _, err := p.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := p.Events(); !errors.Is(err, ErrFramesPending) {
		t.Fatalf("expected ErrFramesPending, got %v", err)
	}
}

func TestTruncatedTrailingFrame(t *testing.T) {
	p := newTestParser(t, []byte{'I', 100, 'P', 0x80}, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100}) {
		t.Fatalf("loopIteration = %v, want [100]", got)
	}
	st := p.Stats()
	if st.FramesFailed != 1 || st.BytesSkipped != 2 {
		t.Fatalf("stats = %+v, want one failed frame and 2 skipped bytes", st)
	}
	if st.Truncated {
		t.Fatalf("reaching the end of data is not truncation")
	}
}

func TestResyncWindowExhausted(t *testing.T) {
	body := []byte{'I', 100, 'I', 101}
	body = append(body, bytes.Repeat([]byte{0x00}, 100)...)
	body = append(body, 'I', 7)
	p := newTestParser(t, body, Options{ResyncWindow: 16})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100}) {
		t.Fatalf("loopIteration = %v, want [100]", got)
	}
	st := p.Stats()
	if !st.Truncated || st.FramesFailed != 1 {
		t.Fatalf("expected truncated pass, stats = %+v", st)
	}
	if st.BytesSkipped != 17 {
		t.Fatalf("BytesSkipped = %d, want 17", st.BytesSkipped)
	}
}

func TestImplausibleInterFrameRejected(t *testing.T) {
	jump := AppendSignedVB(nil, 6000)
	body := append([]byte{'I', 100, 'P'}, jump...)
	body = append(body, 'P', 0x0A)
	p := newTestParser(t, body, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 105}) {
		t.Fatalf("loopIteration = %v, want [100 105]", got)
	}
	if st := p.Stats(); st.FramesRejected != 1 || st.ByType[FrameInter].Rejected != 1 {
		t.Fatalf("stats = %+v, want one rejected inter frame", st)
	}

	p = newTestParser(t, body, Options{MaxIterationJump: -1})
	got = loopIterations(t, p)
	if !equalInts(got, []int64{100, 6100, 6105}) {
		t.Fatalf("with check disabled loopIteration = %v", got)
	}
}

func TestFailedInterFrameWaitsForIntra(t *testing.T) {
	body := []byte{'I', 100, 'P', 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 'P', 0x0A, 'I', 120, 'P', 0x02}
	p := newTestParser(t, body, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 120, 121}) {
		t.Fatalf("loopIteration = %v, want [100 120 121]", got)
	}
	st := p.Stats()
	if st.FramesFailed != 1 || st.FramesRejected != 1 {
		t.Fatalf("stats = %+v, want one failed and one rejected frame", st)
	}
	if st.BytesSkipped != 7 {
		t.Fatalf("BytesSkipped = %d, want 7", st.BytesSkipped)
	}
}

func TestLostMarkerDropsInterFramesUntilIntra(t *testing.T) {
	// The second inter frame lost its marker. Its payload byte and the frame
	// ahead of it, which is no longer followed by a marker, go with it.
	body := []byte{'I', 100, 'P', 0x0A, 0x00, 0x02, 'P', 0x02, 'P', 0x02, 'I', 120, 'P', 0x02}
	p := newTestParser(t, body, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 120, 121}) {
		t.Fatalf("loopIteration = %v, want [100 120 121]", got)
	}
	st := p.Stats()
	if st.FramesFailed != 1 || st.FramesRejected != 2 || st.Resyncs != 1 {
		t.Fatalf("stats = %+v, want 1 failed, 2 rejected, 1 resync", st)
	}
	if st.BytesSkipped != 4 {
		t.Fatalf("BytesSkipped = %d, want 4", st.BytesSkipped)
	}
}

func TestGarbageStartingWithMarkerIsNotAFrame(t *testing.T) {
	body := []byte{'I', 100, 'P', 0x0A, 'P', 0x00, 0x00, 'P', 0x02, 'I', 120}
	p := newTestParser(t, body, Options{})
	got := loopIterations(t, p)
	if !equalInts(got, []int64{100, 105, 120}) {
		t.Fatalf("loopIteration = %v, want [100 105 120]", got)
	}
	st := p.Stats()
	if st.FramesFailed != 1 || st.FramesRejected != 1 {
		t.Fatalf("stats = %+v, want the spliced frame failed and the next inter rejected", st)
	}
}

const slowHeader = counterHeader +
	"H Field S name:mode\n" +
	"H Field S signed:0\n" +
	"H Field S predictor:1\n" +
	"H Field S encoding:1\n"

func TestFailedSlowFrameInvalidatesSlowHistory(t *testing.T) {
	body := []byte{'I', 100, 'S', 5, 'S', 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 'I', 101, 'S', 1}
	p, err := NewParser(append([]byte(slowHeader), body...), Options{})
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	frames, err := p.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var kinds []FrameType
	for _, f := range frames {
		kinds = append(kinds, f.Type)
	}
	if len(frames) != 3 || kinds[0] != FrameIntra || kinds[1] != FrameSlow || kinds[2] != FrameIntra {
		t.Fatalf("frame types = %v, want [intra slow intra]", kinds)
	}
	if v, _ := frames[1].Value("mode"); v != 5 {
		t.Fatalf("slow mode = %d, want 5", v)
	}
	st := p.Stats()
	if st.ByType[FrameSlow].Failed != 1 || st.ByType[FrameSlow].Rejected != 1 {
		t.Fatalf("slow stats = %+v, want one failed and one rejected", st.ByType[FrameSlow])
	}
}

func TestRejectedFrameBytesReachMetrics(t *testing.T) {
	m := common.NewMetrics()
	jump := AppendSignedVB(nil, 6000)
	body := append([]byte{'I', 100, 'P'}, jump...)
	body = append(body, 'P', 0x0A)
	p := newTestParser(t, body, Options{Metrics: m})
	if _, err := p.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if st := p.Stats(); st.FramesRejected != 1 {
		t.Fatalf("FramesRejected = %d, want 1", st.FramesRejected)
	}
	snap := m.Snapshot()
	if snap.Bytes != snap.TotalBytes || snap.Frames != 2 {
		t.Fatalf("metrics = %+v, want every byte accounted and 2 frames", snap)
	}
}

func TestResetRestartsPass(t *testing.T) {
	p := newTestParser(t, []byte{'I', 100, 'P', 0x0A}, Options{})
	first := loopIterations(t, p)
	p.Reset()
	second := loopIterations(t, p)
	if !equalInts(first, second) {
		t.Fatalf("second pass %v differs from first %v", second, first)
	}
	if st := p.Stats(); st.FramesDecoded != 2 {
		t.Fatalf("stats not reset: %+v", st)
	}
}
