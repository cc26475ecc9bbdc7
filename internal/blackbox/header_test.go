package blackbox

import (
	"errors"
	"strings"
	"testing"
)

const minimalHeader = "H Product:Blackbox flight data recorder by Nicholas Sherlock\n" +
	"H Data version:2\n" +
	"H I interval:32\n" +
	"H P interval:1/2\n" +
	"H minthrottle:1070\n" +
	"H vbatref:420\n" +
	"H motorOutput:48,2047\n" +
	"H gyro_scale:0x3d79c190\n" +
	"H Field I name:loopIteration,time,motor[0],motor[1]\n" +
	"H Field I signed:0,0,0,0\n" +
	"H Field I predictor:0,0,11,5\n" +
	"H Field I encoding:1,1,1,0\n" +
	"H Field P predictor:6,2,1,1\n" +
	"H Field P encoding:9,0,6,6\n" +
	"H Field S name:flightModeFlags\n" +
	"H Field S predictor:0\n" +
	"H Field S encoding:1\n"

func TestParseHeader(t *testing.T) {
	data := []byte(minimalHeader + "I\x01\x02")
	h, err := ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.DataStart != len(minimalHeader) {
		t.Fatalf("DataStart = %d, want %d", h.DataStart, len(minimalHeader))
	}
	meta := h.Metadata
	if meta.DataVersion != 2 {
		t.Fatalf("DataVersion = %d, want 2", meta.DataVersion)
	}
	if meta.IInterval != 32 || meta.PIntervalNum != 1 || meta.PIntervalDenom != 2 {
		t.Fatalf("intervals = %d %d/%d", meta.IInterval, meta.PIntervalNum, meta.PIntervalDenom)
	}
	if v, ok := meta.Value("minthrottle"); !ok || v != 1070 {
		t.Fatalf("minthrottle = %d, %v", v, ok)
	}
	if v, ok := meta.Value("gyro_scale"); !ok || v != 0x3d79c190 {
		t.Fatalf("gyro_scale = %#x, %v", v, ok)
	}
	if out, ok := meta.List("motorOutput"); !ok || len(out) != 2 || out[0] != 48 {
		t.Fatalf("motorOutput = %v, %v", out, ok)
	}
	if _, ok := meta.Value("motorOutput"); ok {
		t.Fatalf("list header should not be a scalar value")
	}
	if got := meta.Keys()[0]; got != "Product" {
		t.Fatalf("first key = %q, want Product", got)
	}

	inter := h.Schemas[FrameInter]
	if inter == nil {
		t.Fatalf("inter schema missing")
	}
	if got := strings.Join(inter.Names(), ","); got != "loopIteration,time,motor[0],motor[1]" {
		t.Fatalf("inter names = %s", got)
	}
	if len(inter.steps) != 3 {
		t.Fatalf("inter steps = %d, want 3 (two tag8 fields share one step)", len(inter.steps))
	}
	if inter.Fields[2].Group != inter.Fields[3].Group {
		t.Fatalf("motor fields in different groups: %d and %d", inter.Fields[2].Group, inter.Fields[3].Group)
	}
	intra := h.Schemas[FrameIntra]
	if intra.plans[2].constant != 48 {
		t.Fatalf("minmotor constant = %d, want 48", intra.plans[2].constant)
	}
	if intra.plans[3].sibling != 2 {
		t.Fatalf("motor0 sibling = %d, want 2", intra.plans[3].sibling)
	}
	if _, ok := h.Schemas[FrameSlow]; !ok {
		t.Fatalf("slow schema missing")
	}
	if _, ok := h.Schemas[FrameGPS]; ok {
		t.Fatalf("gps schema should be absent")
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	base := "H Product:x\nH Data version:2\nH minthrottle:1000\n"
	tests := []struct {
		name   string
		header string
	}{
		{name: "no header lines", header: "I\x00"},
		{name: "no intra fields", header: base + "H Field S name:a\nH Field S predictor:0\nH Field S encoding:1\n"},
		{name: "predictor count mismatch", header: base + "H Field I name:a,b\nH Field I predictor:0\nH Field I encoding:1,1\n"},
		{name: "signed count mismatch", header: base + "H Field I name:a,b\nH Field I signed:0\nH Field I predictor:0,0\nH Field I encoding:1,1\n"},
		{name: "unknown encoding", header: base + "H Field I name:a\nH Field I predictor:0\nH Field I encoding:10\n"},
		{name: "unknown predictor", header: base + "H Field I name:a\nH Field I predictor:12\nH Field I encoding:1\n"},
		{name: "non numeric list", header: base + "H Field I name:a\nH Field I predictor:zero\nH Field I encoding:1\n"},
		{name: "missing sysconfig", header: base + "H Field I name:a\nH Field I predictor:9\nH Field I encoding:1\n"},
		{name: "sibling after field", header: base + "H Field I name:motor[1],motor[0]\nH Field I predictor:5,0\nH Field I encoding:0,0\n"},
		{name: "short tag2 group", header: base + "H Field I name:a,b\nH Field I predictor:0,0\nH Field I encoding:7,7\n"},
		{name: "broken tag8_4 group", header: base + "H Field I name:a,b,c,d\nH Field I predictor:0,0,0,0\nH Field I encoding:8,8,1,8\n"},
		{name: "tag8_4 on version 1", header: "H Product:x\nH Data version:1\nH Field I name:a,b,c,d\nH Field I predictor:0,0,0,0\nH Field I encoding:8,8,8,8\n"},
		{name: "gps attributes without names", header: base + "H Field I name:a\nH Field I predictor:0\nH Field I encoding:1\nH Field G predictor:0\nH Field G encoding:1\n"},
		{name: "inter length mismatch", header: base + "H Field I name:a,b\nH Field I predictor:0,0\nH Field I encoding:1,1\nH Field P predictor:1\nH Field P encoding:0\n"},
		{name: "last main time without time field", header: base + "H Field I name:a\nH Field I predictor:0\nH Field I encoding:1\nH Field G name:t\nH Field G predictor:10\nH Field G encoding:1\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseHeader([]byte(tc.header))
			if !errors.Is(err, ErrHeaderMalformed) {
				t.Fatalf("expected ErrHeaderMalformed, got %v", err)
			}
		})
	}
}

func TestSkippedFrames(t *testing.T) {
	meta := newMetadata()
	meta.set("I interval", "32")
	meta.set("P interval", "1/4")
	if !meta.shouldHaveFrame(0) {
		t.Fatalf("iteration 0 should be logged")
	}
	if got := meta.skippedFrames(0); got != 3 {
		t.Fatalf("skippedFrames(0) = %d, want 3", got)
	}
	meta.set("P interval", "1/1")
	if got := meta.skippedFrames(10); got != 0 {
		t.Fatalf("skippedFrames with full rate = %d, want 0", got)
	}
}

func TestSplitLogs(t *testing.T) {
	log := minimalHeader + "I\x00\x00\x00\x00\x00"
	data := []byte("# exported by a ground station\n#second\n" + log + log + log)
	comments, spans, err := splitLogs(data)
	if err != nil {
		t.Fatalf("splitLogs: %v", err)
	}
	if len(comments) != 2 || comments[0] != "exported by a ground station" {
		t.Fatalf("comments = %q", comments)
	}
	if len(spans) != 3 {
		t.Fatalf("spans = %d, want 3", len(spans))
	}
	for i, sp := range spans {
		if sp.end-sp.start != len(log) {
			t.Fatalf("span %d length = %d, want %d", i, sp.end-sp.start, len(log))
		}
	}
	if _, _, err := splitLogs([]byte("garbage")); !errors.Is(err, ErrNoLog) {
		t.Fatalf("expected ErrNoLog, got %v", err)
	}
}
