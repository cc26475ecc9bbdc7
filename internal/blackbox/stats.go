package blackbox

import (
	"fmt"
	"strings"
)

// TypeStats counts outcomes for one frame type.
type TypeStats struct {
	Decoded  int
	Failed   int
	Rejected int
}

// Stats summarises one decoding pass.
type Stats struct {
	FramesAttempted int
	FramesDecoded   int
	FramesFailed    int
	FramesRejected  int
	EventsDecoded   int
	EventsFailed    int
	BytesSkipped    int64
	Resyncs         int
	DataBytes       int64
	// Truncated is set when decoding stopped because the resync window was
	// exhausted.
	Truncated bool
	// EndOfLog is set when a valid log-end event terminated the pass.
	EndOfLog bool
	ByType   map[FrameType]TypeStats
}

func newStats() Stats {
	return Stats{ByType: make(map[FrameType]TypeStats)}
}

func (s *Stats) clone() Stats {
	out := *s
	out.ByType = make(map[FrameType]TypeStats, len(s.ByType))
	for k, v := range s.ByType {
		out.ByType[k] = v
	}
	return out
}

func (s *Stats) decoded(ft FrameType) {
	s.FramesAttempted++
	s.FramesDecoded++
	ts := s.ByType[ft]
	ts.Decoded++
	s.ByType[ft] = ts
}

func (s *Stats) failed(ft FrameType) {
	s.FramesAttempted++
	s.FramesFailed++
	ts := s.ByType[ft]
	ts.Failed++
	s.ByType[ft] = ts
}

func (s *Stats) rejected(ft FrameType) {
	s.FramesAttempted++
	s.FramesRejected++
	ts := s.ByType[ft]
	ts.Rejected++
	s.ByType[ft] = ts
}

// FailureRate is the share of attempted frames that did not decode.
func (s Stats) FailureRate() float64 {
	if s.FramesAttempted == 0 {
		return 0
	}
	return float64(s.FramesFailed+s.FramesRejected) / float64(s.FramesAttempted)
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Frames: %d decoded, %d failed, %d rejected (of %d attempted)\n",
		s.FramesDecoded, s.FramesFailed, s.FramesRejected, s.FramesAttempted)
	for _, ft := range FrameTypes {
		ts, ok := s.ByType[ft]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "  %-8s %d decoded, %d failed, %d rejected\n", ft.String()+":", ts.Decoded, ts.Failed, ts.Rejected)
	}
	fmt.Fprintf(&b, "Events: %d decoded, %d failed\n", s.EventsDecoded, s.EventsFailed)
	fmt.Fprintf(&b, "Bytes skipped: %d of %d, resyncs: %d", s.BytesSkipped, s.DataBytes, s.Resyncs)
	if s.Truncated {
		b.WriteString(", truncated")
	}
	if s.EndOfLog {
		b.WriteString(", end of log")
	}
	return b.String()
}
