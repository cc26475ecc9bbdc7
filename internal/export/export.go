// Package export writes decoded blackbox frames and events to CSV, NDJSON
// or CBOR.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"example.com/bblgate/internal/blackbox"
	"example.com/bblgate/internal/common"
)

// Writer receives a decoding pass. Frames arrive in stream order; events
// arrive once the frame sequence is exhausted.
type Writer interface {
	WriteFrame(f blackbox.Frame) error
	WriteEvent(ev blackbox.Event) error
	Close() error
}

// Format names accepted by New.
const (
	FormatCSV    = "csv"
	FormatNDJSON = "ndjson"
	FormatCBOR   = "cbor"
)

var ErrUnknownFormat = errors.New("unknown export format")

// New returns a writer for the given format. The header supplies the column
// layout for formats that need one up front.
func New(format string, w io.Writer, hdr *blackbox.Header) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewMergedCSV(w, hdr)
	case FormatNDJSON:
		return NewNDJSONWriter(w), nil
	case FormatCBOR:
		return NewCBORWriter(w, hdr)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Result counts what Run handed to the writer.
type Result struct {
	Frames int
	Events int
	Stats  blackbox.Stats
}

// Run drains the parser into w. Events are written after the last frame
// when includeEvents is set. The writer is not closed.
func Run(p *blackbox.Parser, w Writer, includeEvents bool) (Result, error) {
	var res Result
	for {
		f, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		if err := w.WriteFrame(f); err != nil {
			return res, fmt.Errorf("write %s frame at offset %d: %w", f.Type, f.Offset, err)
		}
		res.Frames++
	}
	if includeEvents {
		events, err := p.Events()
		if err != nil {
			return res, err
		}
		for _, ev := range events {
			if err := w.WriteEvent(ev); err != nil {
				return res, fmt.Errorf("write %s event: %w", ev.Name, err)
			}
			res.Events++
		}
	}
	res.Stats = p.Stats()
	common.Debugf("exported %d frames and %d events", res.Frames, res.Events)
	return res, nil
}
