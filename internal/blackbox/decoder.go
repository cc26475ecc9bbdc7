package blackbox

import (
	"errors"
	"fmt"
	"io"

	"example.com/bblgate/internal/common"
)

const (
	defaultResyncWindow     = 64 * 1024
	defaultMaxIterationJump = 5000
	defaultMaxTimeJump      = 10_000_000
)

// Options tunes a decoding pass. Zero values select the defaults.
type Options struct {
	// ResyncWindow bounds how many bytes may be discarded in a row while
	// looking for the next frame.
	ResyncWindow int
	// MaxIterationJump is the largest loopIteration advance accepted between
	// main frames. Negative disables the check.
	MaxIterationJump int64
	// MaxTimeJump is the largest time advance, in microseconds, accepted
	// between main frames. Negative disables the check.
	MaxTimeJump int64
	// LogIndex selects a log (1-based) in files holding several.
	LogIndex int
	Metrics  *common.Metrics
}

func (o Options) withDefaults() Options {
	if o.ResyncWindow <= 0 {
		o.ResyncWindow = defaultResyncWindow
	}
	if o.MaxIterationJump == 0 {
		o.MaxIterationJump = defaultMaxIterationJump
	}
	if o.MaxTimeJump == 0 {
		o.MaxTimeJump = defaultMaxTimeJump
	}
	if o.LogIndex <= 0 {
		o.LogIndex = 1
	}
	return o
}

var errNoBoundary = errors.New("not followed by a frame marker")

type decodeState int

const (
	stateSeekingMarker decodeState = iota
	stateDecodingFields
	stateResyncing
	stateDone
)

// decoder turns the binary section of one log into frames. It owns all
// per-pass state: cursor, history and counters.
type decoder struct {
	hdr  *Header
	opts Options
	s    stream
	base int64

	state    decodeState
	hist     [numGroups]*history
	valid    [numGroups]bool
	stats    Stats
	events   []Event
	emitted  int
	lostFrom int

	mainIter, mainTime int
	lastIteration      int64
	lastTime           int64
	haveMain           bool
}

func newDecoder(hdr *Header, data []byte, base int64, opts Options) *decoder {
	d := &decoder{
		hdr:      hdr,
		opts:     opts.withDefaults(),
		s:        stream{data: data},
		base:     base,
		mainIter: -1,
		mainTime: -1,
	}
	for ft, schema := range hdr.Schemas {
		g := groupOf(ft)
		if d.hist[g] == nil {
			d.hist[g] = newHistory(len(schema.Fields))
		}
	}
	if intra := hdr.Schemas[FrameIntra]; intra != nil {
		d.mainIter = intra.Index("loopIteration")
		d.mainTime = intra.Index("time")
	}
	d.reset()
	return d
}

func (d *decoder) reset() {
	d.s.pos = 0
	d.state = stateSeekingMarker
	for _, h := range d.hist {
		if h != nil {
			h.reset()
		}
	}
	d.stats = newStats()
	d.stats.DataBytes = int64(len(d.s.data))
	d.events = nil
	d.emitted = 0
	d.haveMain = false
	// Main history is only trusted after an intra frame. The other groups
	// have no such anchor and start out valid.
	for g := range d.valid {
		d.valid[g] = historyGroup(g) != groupMain
	}
	d.lastIteration, d.lastTime = 0, 0
	if m := d.opts.Metrics; m != nil {
		m.SetTotalBytes(int64(len(d.s.data)))
		m.Start()
	}
}

func (d *decoder) isMarker(b byte) bool {
	ft := FrameType(b)
	if ft == FrameEvent {
		return true
	}
	_, ok := d.hdr.Schemas[ft]
	return ok
}

// next returns the next decoded frame, or io.EOF once the data is exhausted,
// a log-end event was read, or the resync window ran out.
func (d *decoder) next() (Frame, error) {
	for {
		switch d.state {
		case stateDone:
			return Frame{}, io.EOF
		case stateSeekingMarker, stateResyncing:
			b, ok := d.s.peek()
			if !ok {
				d.finish(false)
				continue
			}
			if !d.isMarker(b) {
				d.skip(1)
				continue
			}
			if d.state == stateResyncing {
				d.tryResync()
				continue
			}
			d.state = stateDecodingFields
		case stateDecodingFields:
			if frame := d.decodeAt(d.s.pos); frame != nil {
				return *frame, nil
			}
		}
	}
}

// decodeAt decodes the frame whose marker is at start. A nil frame means an
// event was consumed, the frame was rejected, or decoding failed and a resync
// was started. A frame only counts once the byte after it is another marker
// or the end of the data.
func (d *decoder) decodeAt(start int) *Frame {
	ft := FrameType(d.s.data[start])
	cur := d.s
	cur.pos = start + 1
	d.state = stateSeekingMarker

	if ft == FrameEvent {
		d.decodeEventAt(start, &cur)
		return nil
	}

	values, err := d.decodeFields(&cur, ft)
	if err == nil && !d.atBoundary(&cur) {
		err = errNoBoundary
	}
	if err != nil {
		d.stats.failed(ft)
		if g := groupOf(ft); g != groupMain {
			d.valid[g] = false
		}
		if m := d.opts.Metrics; m != nil {
			m.IncFailed()
		}
		d.startResync(start, fmt.Sprintf("%s frame: %v", ft, err))
		return nil
	}
	size := int64(cur.pos - start)
	d.s = cur
	if reason := d.rejection(ft, values); reason != "" {
		common.Debugf("%s frame at offset %d rejected: %s", ft, d.base+int64(start), reason)
		d.stats.rejected(ft)
		// Fields predicted from the group's own history are still right, and
		// the next frame of the group was written against them.
		if g := groupOf(ft); g != groupMain && d.valid[g] {
			d.hist[g].push(values)
		}
		if m := d.opts.Metrics; m != nil {
			m.AddBytes(size)
		}
		return nil
	}
	d.commit(ft, values)
	d.stats.decoded(ft)
	if m := d.opts.Metrics; m != nil {
		m.AddFrame(size)
	}
	frame := &Frame{
		Type:   ft,
		Offset: d.base + int64(start),
		Index:  d.emitted,
		Values: values,
		schema: d.hdr.Schemas[ft],
	}
	d.emitted++
	return frame
}

// decodeEventAt consumes the event whose marker is at start. An unknown kind
// followed by a marker drops only that event.
func (d *decoder) decodeEventAt(start int, cur *stream) {
	ev, err := decodeEvent(cur)
	bounded := d.atBoundary(cur)
	switch {
	case err == nil && (bounded || ev.Kind == EventLogEnd):
		d.commitEvent(ev, start, cur.pos)
	case errors.Is(err, ErrUnknownEventKind) && bounded:
		common.Debugf("event at offset %d dropped: %v", d.base+int64(start), err)
		d.stats.EventsFailed++
		d.s.pos = cur.pos
		if m := d.opts.Metrics; m != nil {
			m.AddBytes(int64(cur.pos - start))
		}
	default:
		if err == nil {
			err = errNoBoundary
		}
		d.stats.EventsFailed++
		d.startResync(start, fmt.Sprintf("event: %v", err))
	}
}

// atBoundary reports whether s sits on another frame marker or the end of
// the data.
func (d *decoder) atBoundary(s *stream) bool {
	b, ok := s.peek()
	return !ok || d.isMarker(b)
}

// decodeFields reads and predicts every field of one frame. History is only
// read, never written.
func (d *decoder) decodeFields(s *stream, ft FrameType) ([]int64, error) {
	schema := d.hdr.Schemas[ft]
	ctx := predictContext{current: make([]int64, len(schema.Fields))}
	main := d.hist[groupMain]
	if ft != FrameIntra {
		h := d.hist[groupOf(ft)]
		ctx.prev = h.previous()
		ctx.prev2 = h.previous2()
	}
	if prev := main.previous(); prev != nil && d.mainTime >= 0 {
		ctx.lastMainTime = prev[d.mainTime]
		ctx.hasMainTime = true
	}
	if ft == FrameInter && d.haveMain {
		ctx.skipped = d.hdr.Metadata.skippedFrames(d.lastIteration)
	}

	var raw [8]int64
	for _, st := range schema.steps {
		buf := raw[:st.count]
		if err := readStep(s, st.enc, buf); err != nil {
			return nil, err
		}
		for j, r := range buf {
			i := st.first + j
			v, err := ctx.predict(i, schema.Fields[i], schema.plans[i], r)
			if err != nil {
				return nil, err
			}
			ctx.current[i] = v
		}
	}
	return ctx.current, nil
}

// rejection reports why a decoded frame must not be emitted. Inter frames
// need main history that still follows the stream, and so do frames that
// predict from the last main frame time.
func (d *decoder) rejection(ft FrameType, values []int64) string {
	schema := d.hdr.Schemas[ft]
	switch {
	case ft == FrameIntra:
		return ""
	case ft == FrameInter && !d.valid[groupMain]:
		return "no intra frame since the stream was lost"
	case schema.readsMainTime && !d.valid[groupMain]:
		return "main frame time unknown since the stream was lost"
	case ft != FrameInter && schema.readsHistory && !d.valid[groupOf(ft)]:
		return fmt.Sprintf("%s history lost", ft)
	case ft == FrameInter:
		return d.implausible(values)
	}
	return ""
}

func (d *decoder) implausible(values []int64) string {
	if !d.haveMain {
		return ""
	}
	if d.mainIter >= 0 && d.opts.MaxIterationJump >= 0 {
		it := values[d.mainIter]
		if it < d.lastIteration || it > d.lastIteration+d.opts.MaxIterationJump {
			return fmt.Sprintf("loopIteration %d after %d", it, d.lastIteration)
		}
	}
	if d.mainTime >= 0 && d.opts.MaxTimeJump >= 0 {
		t := values[d.mainTime]
		if t < d.lastTime || t > d.lastTime+d.opts.MaxTimeJump {
			return fmt.Sprintf("time %d after %d", t, d.lastTime)
		}
	}
	return ""
}

func (d *decoder) commit(ft FrameType, values []int64) {
	g := groupOf(ft)
	if ft == FrameIntra {
		d.hist[g].seed(values)
	} else {
		d.hist[g].push(values)
	}
	d.valid[g] = true
	if ft == FrameIntra || ft == FrameInter {
		if d.mainIter >= 0 {
			d.lastIteration = values[d.mainIter]
		}
		if d.mainTime >= 0 {
			d.lastTime = values[d.mainTime]
		}
		d.haveMain = true
	}
}

func (d *decoder) commitEvent(ev Event, start, end int) {
	ev.Iteration = d.lastIteration
	ev.Time = d.lastTime
	ev.Offset = d.base + int64(start)
	d.events = append(d.events, ev)
	d.stats.EventsDecoded++
	d.s.pos = end
	if m := d.opts.Metrics; m != nil {
		m.AddBytes(int64(end - start))
	}
	switch ev.Kind {
	case EventLoggingResume:
		d.lastIteration = ev.Data["logIteration"].(int64)
		d.lastTime = ev.Data["currentTime"].(int64)
	case EventLogEnd:
		d.stats.EndOfLog = true
		d.finish(false)
	}
}

// skip discards n bytes at the cursor. Once the discarded run exceeds the
// resync window, decoding stops.
func (d *decoder) skip(n int) {
	if d.state == stateSeekingMarker {
		common.Debugf("resync at offset %d: unexpected byte 0x%02X", d.base+int64(d.s.pos), d.s.data[d.s.pos])
		d.lose(d.s.pos)
	}
	if d.s.pos+n > len(d.s.data) {
		n = len(d.s.data) - d.s.pos
	}
	d.s.pos += n
	d.stats.BytesSkipped += int64(n)
	if m := d.opts.Metrics; m != nil {
		m.AddSkipped(int64(n))
	}
	if d.s.pos-d.lostFrom > d.opts.ResyncWindow && !d.s.eof() {
		common.Logf("resync window of %d bytes exhausted at offset %d", d.opts.ResyncWindow, d.base+int64(d.s.pos))
		d.finish(true)
	}
}

// startResync discards the marker of a failed frame and enters Resyncing.
func (d *decoder) startResync(start int, reason string) {
	common.Debugf("resync at offset %d: %s", d.base+int64(start), reason)
	d.s.pos = start
	d.lose(start)
	d.skip(1)
}

// lose enters Resyncing with the bytes from pos on unaccounted for. Any of
// them may have held a main frame, so inter frames wait for the next intra.
func (d *decoder) lose(pos int) {
	d.state = stateResyncing
	d.lostFrom = pos
	d.valid[groupMain] = false
	d.stats.Resyncs++
	if m := d.opts.Metrics; m != nil {
		m.IncResync()
	}
}

// tryResync tests the marker under the cursor with a trial decode. The
// candidate is accepted only when it decodes completely and is followed by
// another marker or the end of the data.
func (d *decoder) tryResync() {
	start := d.s.pos
	cur := d.s
	cur.pos = start + 1
	ft := FrameType(d.s.data[start])
	var err error
	if ft == FrameEvent {
		var ev Event
		ev, err = decodeEvent(&cur)
		if err == nil && ev.Kind == EventLogEnd {
			d.resynced(start)
			return
		}
		if errors.Is(err, ErrUnknownEventKind) {
			err = nil
		}
	} else {
		_, err = d.decodeFields(&cur, ft)
	}
	if err == nil {
		if d.atBoundary(&cur) {
			d.resynced(start)
			return
		}
		err = errNoBoundary
	}
	common.Debugf("resync candidate %s at offset %d rejected: %v", ft, d.base+int64(start), err)
	d.skip(1)
}

func (d *decoder) resynced(pos int) {
	common.Debugf("resync successful, new offset %d", d.base+int64(pos))
	d.s.pos = pos
	d.state = stateDecodingFields
}

func (d *decoder) finish(truncated bool) {
	if truncated {
		d.stats.Truncated = true
	}
	d.state = stateDone
	if m := d.opts.Metrics; m != nil {
		m.Stop()
	}
}
