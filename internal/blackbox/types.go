package blackbox

import "fmt"

// FrameType is the single marker byte that introduces a frame in the binary
// section of a log.
type FrameType byte

const (
	FrameIntra   FrameType = 'I'
	FrameInter   FrameType = 'P'
	FrameSlow    FrameType = 'S'
	FrameGPS     FrameType = 'G'
	FrameGPSHome FrameType = 'H'
	FrameEvent   FrameType = 'E'
)

// FrameTypes lists the field-carrying frame types in header order.
var FrameTypes = []FrameType{FrameIntra, FrameInter, FrameSlow, FrameGPS, FrameGPSHome}

func (t FrameType) String() string {
	switch t {
	case FrameIntra:
		return "intra"
	case FrameInter:
		return "inter"
	case FrameSlow:
		return "slow"
	case FrameGPS:
		return "gps"
	case FrameGPSHome:
		return "gps-home"
	case FrameEvent:
		return "event"
	default:
		return fmt.Sprintf("0x%02X", byte(t))
	}
}

func (t FrameType) valid() bool {
	switch t {
	case FrameIntra, FrameInter, FrameSlow, FrameGPS, FrameGPSHome, FrameEvent:
		return true
	}
	return false
}

// Encoding identifies the wire representation of a field's raw value.
type Encoding uint8

const (
	EncodingSignedVB   Encoding = 0
	EncodingUnsignedVB Encoding = 1
	EncodingNeg14Bit   Encoding = 3
	EncodingTag8_8SVB  Encoding = 6
	EncodingTag2_3S32  Encoding = 7
	EncodingTag8_4S16  Encoding = 8
	EncodingNull       Encoding = 9
)

func (e Encoding) String() string {
	switch e {
	case EncodingSignedVB:
		return "signed-varint"
	case EncodingUnsignedVB:
		return "unsigned-varint"
	case EncodingNeg14Bit:
		return "negated-14-bit"
	case EncodingTag8_8SVB:
		return "tag8-grouped-signed-varint"
	case EncodingTag2_3S32:
		return "tag2-packed-triple"
	case EncodingTag8_4S16:
		return "tag8-packed-quad"
	case EncodingNull:
		return "null"
	default:
		return fmt.Sprintf("encoding(%d)", uint8(e))
	}
}

// groupSize reports how many consecutive fields one tag-grouped read covers.
// Zero means the encoding is read per field.
func (e Encoding) groupSize() int {
	switch e {
	case EncodingTag8_8SVB:
		return 8
	case EncodingTag2_3S32:
		return 3
	case EncodingTag8_4S16:
		return 4
	}
	return 0
}

// Predictor identifies how a decoded raw value is turned into the absolute
// field value.
type Predictor uint16

const (
	PredictorZero              Predictor = 0
	PredictorPrevious          Predictor = 1
	PredictorStraightLine      Predictor = 2
	PredictorAverage2          Predictor = 3
	PredictorMinThrottle       Predictor = 4
	PredictorMotor0            Predictor = 5
	PredictorIncrement         Predictor = 6
	PredictorHomeCoord         Predictor = 7
	Predictor1500              Predictor = 8
	PredictorVBatRef           Predictor = 9
	PredictorLastMainFrameTime Predictor = 10
	PredictorMinMotor          Predictor = 11
)

func (p Predictor) String() string {
	switch p {
	case PredictorZero:
		return "zero"
	case PredictorPrevious:
		return "previous"
	case PredictorStraightLine:
		return "linear-extrapolation"
	case PredictorAverage2:
		return "average-of-previous-two"
	case PredictorMinThrottle:
		return "minthrottle"
	case PredictorMotor0:
		return "motor0"
	case PredictorIncrement:
		return "monotonic-increment"
	case PredictorHomeCoord:
		return "home-coordinate"
	case Predictor1500:
		return "constant-1500"
	case PredictorVBatRef:
		return "vbatref"
	case PredictorLastMainFrameTime:
		return "last-main-frame-time"
	case PredictorMinMotor:
		return "minmotor"
	default:
		return fmt.Sprintf("predictor(%d)", uint16(p))
	}
}

// FieldDef describes one named field of a frame schema.
type FieldDef struct {
	Name      string
	Signed    bool
	Encoding  Encoding
	Predictor Predictor
	// Group is the index of the decode step that reads this field.
	Group int
}

// Field is one (name, value) pair of a decoded frame.
type Field struct {
	Name  string
	Value int64
}

// Frame is a fully decoded telemetry frame. Values follow the order of the
// schema's fields.
type Frame struct {
	Type   FrameType
	Offset int64
	Index  int
	Values []int64
	schema *Schema
}

// Schema returns the schema the frame was decoded with.
func (f Frame) Schema() *Schema {
	return f.schema
}

func (f Frame) Names() []string {
	if f.schema == nil {
		return nil
	}
	return f.schema.Names()
}

// Value looks up a field by name.
func (f Frame) Value(name string) (int64, bool) {
	if f.schema == nil {
		return 0, false
	}
	idx := f.schema.Index(name)
	if idx < 0 || idx >= len(f.Values) {
		return 0, false
	}
	return f.Values[idx], true
}

func (f Frame) Fields() []Field {
	if f.schema == nil {
		return nil
	}
	out := make([]Field, len(f.Values))
	for i, v := range f.Values {
		out[i] = Field{Name: f.schema.Fields[i].Name, Value: v}
	}
	return out
}
