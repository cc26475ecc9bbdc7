// Package report summarises a decoded log and renders the summary as JSON or
// PDF.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"example.com/bblgate/internal/blackbox"
)

// MetadataSummary holds the identifying header values of a log.
type MetadataSummary struct {
	Product          string `json:"product"`
	DataVersion      int    `json:"dataVersion"`
	FirmwareType     string `json:"firmwareType,omitempty"`
	FirmwareRevision string `json:"firmwareRevision,omitempty"`
	FirmwareDate     string `json:"firmwareDate,omitempty"`
	BoardInformation string `json:"boardInformation,omitempty"`
	CraftName        string `json:"craftName,omitempty"`
	LogStartDatetime string `json:"logStartDatetime,omitempty"`
}

// FrameSummary is the per frame type part of a Summary.
type FrameSummary struct {
	Fields   []string `json:"fields"`
	Decoded  int      `json:"decoded"`
	Failed   int      `json:"failed"`
	Rejected int      `json:"rejected"`
}

type Summary struct {
	File        string                  `json:"file"`
	SHA256      string                  `json:"sha256"`
	Size        int64                   `json:"size"`
	LogIndex    int                     `json:"logIndex"`
	LogCount    int                     `json:"logCount"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Metadata    MetadataSummary         `json:"metadata"`
	Frames      map[string]FrameSummary `json:"frames"`
	Events      map[string]int          `json:"events"`

	FirstIteration int64 `json:"firstIteration"`
	LastIteration  int64 `json:"lastIteration"`
	// DurationUs spans the time field of the first and last main frames.
	DurationUs int64 `json:"durationUs"`

	FramesDecoded  int     `json:"framesDecoded"`
	FramesFailed   int     `json:"framesFailed"`
	FramesRejected int     `json:"framesRejected"`
	EventsFailed   int     `json:"eventsFailed"`
	BytesSkipped   int64   `json:"bytesSkipped"`
	DataBytes      int64   `json:"dataBytes"`
	Resyncs        int     `json:"resyncs"`
	FailureRate    float64 `json:"failureRate"`
	Truncated      bool    `json:"truncated"`
	EndOfLog       bool    `json:"endOfLog"`
}

// Build runs a full pass of the selected log and summarises it. The parser
// is reset first, so Build can follow other passes.
func Build(p *blackbox.Parser, sha256 string, size int64) (Summary, error) {
	p.Reset()
	meta := p.Metadata()
	sum := Summary{
		File:        p.Path(),
		SHA256:      sha256,
		Size:        size,
		LogIndex:    p.LogIndex(),
		LogCount:    p.LogCount(),
		GeneratedAt: time.Now().UTC(),
		Metadata: MetadataSummary{
			Product:          meta.Product,
			DataVersion:      meta.DataVersion,
			FirmwareType:     meta.FirmwareType,
			FirmwareRevision: meta.FirmwareRevision,
			FirmwareDate:     meta.FirmwareDate,
			BoardInformation: meta.BoardInformation,
			CraftName:        meta.CraftName,
			LogStartDatetime: meta.LogStartDatetime,
		},
		Frames: make(map[string]FrameSummary),
		Events: make(map[string]int),
	}

	var firstTime, lastTime int64
	seenMain := false
	for {
		f, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, err
		}
		if f.Type != blackbox.FrameIntra && f.Type != blackbox.FrameInter {
			continue
		}
		it, _ := f.Value("loopIteration")
		t, _ := f.Value("time")
		if !seenMain {
			sum.FirstIteration, firstTime = it, t
			seenMain = true
		}
		sum.LastIteration, lastTime = it, t
	}
	sum.DurationUs = lastTime - firstTime

	events, err := p.Events()
	if err != nil {
		return sum, err
	}
	for _, ev := range events {
		sum.Events[ev.Name]++
	}

	st := p.Stats()
	for _, ft := range blackbox.FrameTypes {
		schema, ok := p.Schema(ft)
		if !ok {
			continue
		}
		ts := st.ByType[ft]
		sum.Frames[string(rune(ft))] = FrameSummary{
			Fields:   schema.Names(),
			Decoded:  ts.Decoded,
			Failed:   ts.Failed,
			Rejected: ts.Rejected,
		}
	}
	sum.FramesDecoded = st.FramesDecoded
	sum.FramesFailed = st.FramesFailed
	sum.FramesRejected = st.FramesRejected
	sum.EventsFailed = st.EventsFailed
	sum.BytesSkipped = st.BytesSkipped
	sum.DataBytes = st.DataBytes
	sum.Resyncs = st.Resyncs
	sum.FailureRate = st.FailureRate()
	sum.Truncated = st.Truncated
	sum.EndOfLog = st.EndOfLog
	return sum, nil
}

// EventNames lists the event names of the summary in a stable order.
func (s Summary) EventNames() []string {
	names := make([]string, 0, len(s.Events))
	for name := range s.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FrameLetters lists the frame types of the summary in header order.
func (s Summary) FrameLetters() []string {
	var out []string
	for _, ft := range blackbox.FrameTypes {
		if _, ok := s.Frames[string(rune(ft))]; ok {
			out = append(out, string(rune(ft)))
		}
	}
	return out
}

func SaveJSON(sum Summary, out string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadJSON(path string) (Summary, error) {
	var sum Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return sum, err
	}
	if err := json.Unmarshal(b, &sum); err != nil {
		return sum, fmt.Errorf("decode summary %s: %w", path, err)
	}
	return sum, nil
}
