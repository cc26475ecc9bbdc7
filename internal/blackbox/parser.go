package blackbox

import (
	"fmt"
	"io"
	"os"

	"example.com/bblgate/internal/common"
)

// Parser decodes one log of a blackbox file. Frames are produced lazily by
// Next; events and statistics describe the pass once it has finished.
type Parser struct {
	path     string
	data     []byte
	comments []string
	spans    []logSpan
	opts     Options
	logIndex int

	hdr *Header
	dec *decoder
}

// Open reads the file at path and selects its first log.
func Open(path string) (*Parser, error) {
	return OpenWithOptions(path, Options{})
}

func OpenWithOptions(path string, opts Options) (*Parser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	p, err := NewParser(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.path = path
	return p, nil
}

// NewParser parses the header of the log selected by opts.LogIndex. Header
// errors are returned here; frame-level corruption never is.
func NewParser(data []byte, opts Options) (*Parser, error) {
	opts = opts.withDefaults()
	comments, spans, err := splitLogs(data)
	if err != nil {
		return nil, err
	}
	p := &Parser{data: data, comments: comments, spans: spans, opts: opts}
	if err := p.SelectLog(opts.LogIndex); err != nil {
		return nil, err
	}
	return p, nil
}

// SelectLog switches to the log with the given 1-based index and restarts
// the pass.
func (p *Parser) SelectLog(index int) error {
	if index < 1 || index > len(p.spans) {
		return fmt.Errorf("%w: %d (file holds %d)", ErrInvalidLogIndex, index, len(p.spans))
	}
	span := p.spans[index-1]
	hdr, err := ParseHeader(p.data[span.start:span.end])
	if err != nil {
		return fmt.Errorf("log %d: %w", index, err)
	}
	dataStart := span.start + hdr.DataStart
	p.hdr = hdr
	p.logIndex = index
	p.dec = newDecoder(hdr, p.data[dataStart:span.end], int64(dataStart), p.opts)
	common.Debugf("log %d: %d header keys, frame data at offset %d (%d bytes)", index, len(hdr.Metadata.keys), dataStart, span.end-dataStart)
	return nil
}

func (p *Parser) Path() string {
	return p.path
}

func (p *Parser) LogCount() int {
	return len(p.spans)
}

func (p *Parser) LogIndex() int {
	return p.logIndex
}

// Comments returns the '#' lines that preceded the first log.
func (p *Parser) Comments() []string {
	return append([]string(nil), p.comments...)
}

func (p *Parser) Metadata() *Metadata {
	return p.hdr.Metadata
}

// Schema returns the field layout of a frame type declared in the header.
func (p *Parser) Schema(ft FrameType) (*Schema, bool) {
	s, ok := p.hdr.Schemas[ft]
	return s, ok
}

// FieldNames lists the field names of a frame type in schema order, or nil
// when the header does not declare it.
func (p *Parser) FieldNames(ft FrameType) []string {
	s, ok := p.hdr.Schemas[ft]
	if !ok {
		return nil
	}
	return s.Names()
}

// Next returns the next decoded frame. It returns io.EOF when the pass is
// over; corrupt data is skipped and only shows up in Stats.
func (p *Parser) Next() (Frame, error) {
	return p.dec.next()
}

// ReadAll drains the remaining frames of the pass.
func (p *Parser) ReadAll() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := p.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

// Reset restarts the pass at the first frame of the selected log.
func (p *Parser) Reset() {
	p.dec.reset()
}

// Done reports whether the frame sequence has been fully consumed.
func (p *Parser) Done() bool {
	return p.dec.state == stateDone
}

// Events returns the events of the finished pass, in stream order.
func (p *Parser) Events() ([]Event, error) {
	if !p.Done() {
		return nil, ErrFramesPending
	}
	return append([]Event(nil), p.dec.events...), nil
}

// Stats returns a snapshot of the pass counters.
func (p *Parser) Stats() Stats {
	return p.dec.stats.clone()
}

// Header returns the parsed header of the selected log.
func (p *Parser) Header() *Header {
	return p.hdr
}
