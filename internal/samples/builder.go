package samples

import (
	"fmt"
	"math"
	"strings"

	"example.com/bblgate/internal/blackbox"
)

// FieldSpec declares one main frame field with its intra and inter layouts.
type FieldSpec struct {
	Name       string
	Signed     bool
	IPredictor blackbox.Predictor
	IEncoding  blackbox.Encoding
	PPredictor blackbox.Predictor
	PEncoding  blackbox.Encoding
}

// AuxSpec declares a field of a slow, GPS or GPS home frame.
type AuxSpec struct {
	Name      string
	Signed    bool
	Predictor blackbox.Predictor
	Encoding  blackbox.Encoding
}

// LogSpec is everything needed to write the header of a synthetic log.
type LogSpec struct {
	Product     string
	DataVersion int
	// Headers are written after Product and Data version, in order.
	Headers [][2]string
	Main    []FieldSpec
	Slow    []AuxSpec
	GPS     []AuxSpec
	GPSHome []AuxSpec
}

const DefaultProduct = "Blackbox flight data recorder by Nicholas Sherlock"

// HeaderText renders the log layout as "H" lines.
func (s LogSpec) HeaderText() string {
	var b strings.Builder
	product := s.Product
	if product == "" {
		product = DefaultProduct
	}
	version := s.DataVersion
	if version == 0 {
		version = 2
	}
	fmt.Fprintf(&b, "H Product:%s\n", product)
	fmt.Fprintf(&b, "H Data version:%d\n", version)
	for _, kv := range s.Headers {
		fmt.Fprintf(&b, "H %s:%s\n", kv[0], kv[1])
	}
	if len(s.Main) > 0 {
		names := make([]string, len(s.Main))
		signed := make([]string, len(s.Main))
		ip := make([]string, len(s.Main))
		ie := make([]string, len(s.Main))
		pp := make([]string, len(s.Main))
		pe := make([]string, len(s.Main))
		for i, f := range s.Main {
			names[i] = f.Name
			signed[i] = boolDigit(f.Signed)
			ip[i] = fmt.Sprint(uint16(f.IPredictor))
			ie[i] = fmt.Sprint(uint8(f.IEncoding))
			pp[i] = fmt.Sprint(uint16(f.PPredictor))
			pe[i] = fmt.Sprint(uint8(f.PEncoding))
		}
		fmt.Fprintf(&b, "H Field I name:%s\n", strings.Join(names, ","))
		fmt.Fprintf(&b, "H Field I signed:%s\n", strings.Join(signed, ","))
		fmt.Fprintf(&b, "H Field I predictor:%s\n", strings.Join(ip, ","))
		fmt.Fprintf(&b, "H Field I encoding:%s\n", strings.Join(ie, ","))
		fmt.Fprintf(&b, "H Field P predictor:%s\n", strings.Join(pp, ","))
		fmt.Fprintf(&b, "H Field P encoding:%s\n", strings.Join(pe, ","))
	}
	writeAux(&b, blackbox.FrameSlow, s.Slow)
	writeAux(&b, blackbox.FrameGPS, s.GPS)
	writeAux(&b, blackbox.FrameGPSHome, s.GPSHome)
	return b.String()
}

func writeAux(b *strings.Builder, ft blackbox.FrameType, fields []AuxSpec) {
	if len(fields) == 0 {
		return
	}
	names := make([]string, len(fields))
	signed := make([]string, len(fields))
	preds := make([]string, len(fields))
	encs := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
		signed[i] = boolDigit(f.Signed)
		preds[i] = fmt.Sprint(uint16(f.Predictor))
		encs[i] = fmt.Sprint(uint8(f.Encoding))
	}
	fmt.Fprintf(b, "H Field %c name:%s\n", ft, strings.Join(names, ","))
	fmt.Fprintf(b, "H Field %c signed:%s\n", ft, strings.Join(signed, ","))
	fmt.Fprintf(b, "H Field %c predictor:%s\n", ft, strings.Join(preds, ","))
	fmt.Fprintf(b, "H Field %c encoding:%s\n", ft, strings.Join(encs, ","))
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Builder writes a synthetic log the way the firmware does: absolute field
// values go in, predictor residuals come out encoded.
type Builder struct {
	hdr *blackbox.Header
	buf []byte

	prev  map[blackbox.FrameType][]int64
	prev2 map[blackbox.FrameType][]int64

	lastMainTime int64
	haveMain     bool
}

func NewBuilder(spec LogSpec) (*Builder, error) {
	text := spec.HeaderText()
	hdr, err := blackbox.ParseHeader([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("parse generated header: %w", err)
	}
	return &Builder{
		hdr:   hdr,
		buf:   []byte(text),
		prev:  make(map[blackbox.FrameType][]int64),
		prev2: make(map[blackbox.FrameType][]int64),
	}, nil
}

func (b *Builder) Header() *blackbox.Header {
	return b.hdr
}

func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf...)
}

func (b *Builder) Len() int {
	return len(b.buf)
}

// historyKey maps inter frames onto the intra history they share.
func historyKey(ft blackbox.FrameType) blackbox.FrameType {
	if ft == blackbox.FrameInter {
		return blackbox.FrameIntra
	}
	return ft
}

// Frame appends one frame holding the given absolute values.
func (b *Builder) Frame(ft blackbox.FrameType, values ...int64) error {
	schema, ok := b.hdr.Schemas[ft]
	if !ok {
		return fmt.Errorf("frame %c not declared", ft)
	}
	if len(values) != len(schema.Fields) {
		return fmt.Errorf("frame %c: %d values for %d fields", ft, len(values), len(schema.Fields))
	}
	key := historyKey(ft)
	prev, prev2 := b.prev[key], b.prev2[key]
	if ft == blackbox.FrameIntra {
		prev, prev2 = nil, nil
	}
	raw := make([]int64, len(values))
	for i, f := range schema.Fields {
		pred, replaces, err := b.prediction(schema, i, f, values, prev, prev2)
		if err != nil {
			return err
		}
		if replaces {
			raw[i] = 0
			continue
		}
		raw[i] = values[i] - pred
	}
	out, err := schema.AppendRaw(append(b.buf, byte(ft)), raw)
	if err != nil {
		return err
	}
	b.buf = out

	committed := append([]int64(nil), values...)
	if ft == blackbox.FrameIntra {
		b.prev[key], b.prev2[key] = committed, committed
	} else {
		b.prev2[key] = b.prev[key]
		b.prev[key] = committed
	}
	if key == blackbox.FrameIntra {
		if idx := schema.Index("time"); idx >= 0 {
			b.lastMainTime = values[idx]
		}
		b.haveMain = true
	}
	return nil
}

// prediction mirrors the decoder's predictors. replaces is true when the
// predictor ignores the written value.
func (b *Builder) prediction(schema *blackbox.Schema, i int, f blackbox.FieldDef, values, prev, prev2 []int64) (int64, bool, error) {
	meta := b.hdr.Metadata
	if prev2 == nil {
		prev2 = prev
	}
	switch f.Predictor {
	case blackbox.PredictorZero:
		return 0, false, nil
	case blackbox.PredictorPrevious:
		if prev == nil {
			return 0, false, nil
		}
		return prev[i], false, nil
	case blackbox.PredictorStraightLine:
		if prev == nil {
			return 0, false, nil
		}
		p := 2*prev[i] - prev2[i]
		lo, hi := int64(0), int64(math.MaxUint32)
		if f.Signed {
			lo, hi = math.MinInt32, math.MaxInt32
		}
		if p < lo {
			p = lo
		} else if p > hi {
			p = hi
		}
		return p, false, nil
	case blackbox.PredictorAverage2:
		if prev == nil {
			return 0, false, nil
		}
		return (prev[i] + prev2[i]) >> 1, false, nil
	case blackbox.PredictorMinThrottle:
		v, _ := meta.Value("minthrottle")
		return v, false, nil
	case blackbox.PredictorVBatRef:
		v, _ := meta.Value("vbatref")
		return v, false, nil
	case blackbox.PredictorMinMotor:
		out, _ := meta.List("motorOutput")
		if len(out) == 0 {
			return 0, false, nil
		}
		return out[0], false, nil
	case blackbox.Predictor1500:
		return 1500, false, nil
	case blackbox.PredictorMotor0:
		return values[schema.Index("motor[0]")], false, nil
	case blackbox.PredictorIncrement:
		if prev == nil {
			return 0, false, nil
		}
		if values[i] != prev[i]+1 {
			return 0, false, fmt.Errorf("field %q: increment predictor needs %d, got %d", f.Name, prev[i]+1, values[i])
		}
		return 0, true, nil
	case blackbox.PredictorLastMainFrameTime:
		if !b.haveMain {
			return 0, false, nil
		}
		return b.lastMainTime, false, nil
	}
	return 0, false, fmt.Errorf("field %q: cannot encode predictor %s", f.Name, f.Predictor)
}

// Event appends an event marker, kind byte and payload.
func (b *Builder) Event(kind blackbox.EventKind, payload ...byte) {
	b.buf = append(b.buf, byte(blackbox.FrameEvent), byte(kind))
	b.buf = append(b.buf, payload...)
}

func (b *Builder) SyncBeep(t uint32) {
	b.Event(blackbox.EventSyncBeep, blackbox.AppendUnsignedVB(nil, t)...)
}

func (b *Builder) FlightMode(newFlags, oldFlags uint32) {
	payload := blackbox.AppendUnsignedVB(nil, newFlags)
	b.Event(blackbox.EventFlightMode, blackbox.AppendUnsignedVB(payload, oldFlags)...)
}

func (b *Builder) Disarm(reason uint32) {
	b.Event(blackbox.EventDisarm, blackbox.AppendUnsignedVB(nil, reason)...)
}

func (b *Builder) LoggingResume(iteration, currentTime uint32) {
	payload := blackbox.AppendUnsignedVB(nil, iteration)
	b.Event(blackbox.EventLoggingResume, blackbox.AppendUnsignedVB(payload, currentTime)...)
}

func (b *Builder) LogEnd() {
	b.Event(blackbox.EventLogEnd, blackbox.EndOfLogMessage...)
}

// Raw appends bytes verbatim, e.g. to simulate corruption.
func (b *Builder) Raw(p ...byte) {
	b.buf = append(b.buf, p...)
}
