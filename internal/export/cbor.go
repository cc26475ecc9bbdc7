package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"example.com/bblgate/internal/blackbox"
)

// CBOR record types. Every record is a two element array
// [recordType, payload] with an integer keyed payload map.
const (
	RecordSchema uint8 = 0
	RecordFrame  uint8 = 1
	RecordEvent  uint8 = 2
)

// Payload keys.
const (
	keyType      = 0
	keyNames     = 1
	keyIndex     = 1
	keyOffset    = 2
	keyValues    = 3
	keyIteration = 1
	keyTime      = 2
	keyEvOffset  = 3
	keyData      = 4
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// CBORWriter writes a CBOR sequence: one schema record per declared frame
// type, then frame records, then event records.
type CBORWriter struct {
	enc *cbor.Encoder
}

func NewCBORWriter(w io.Writer, hdr *blackbox.Header) (*CBORWriter, error) {
	cw := &CBORWriter{enc: encMode.NewEncoder(w)}
	for _, ft := range blackbox.FrameTypes {
		schema, ok := hdr.Schemas[ft]
		if !ok {
			continue
		}
		if err := cw.record(RecordSchema, map[int]any{
			keyType:  uint8(ft),
			keyNames: schema.Names(),
		}); err != nil {
			return nil, err
		}
	}
	return cw, nil
}

func (cw *CBORWriter) record(kind uint8, payload map[int]any) error {
	return cw.enc.Encode([]any{kind, payload})
}

func (cw *CBORWriter) WriteFrame(f blackbox.Frame) error {
	return cw.record(RecordFrame, map[int]any{
		keyType:   uint8(f.Type),
		keyIndex:  f.Index,
		keyOffset: f.Offset,
		keyValues: f.Values,
	})
}

func (cw *CBORWriter) WriteEvent(ev blackbox.Event) error {
	return cw.record(RecordEvent, map[int]any{
		keyType:      uint8(ev.Kind),
		keyIteration: ev.Iteration,
		keyTime:      ev.Time,
		keyEvOffset:  ev.Offset,
		keyData:      ev.Data,
	})
}

func (cw *CBORWriter) Close() error {
	return nil
}

// CBORFrame is one frame read back from a CBOR sequence.
type CBORFrame struct {
	Type   blackbox.FrameType
	Index  int
	Offset int64
	Values []int64
}

// CBORLog is a CBOR sequence read back into memory.
type CBORLog struct {
	Names  map[blackbox.FrameType][]string
	Frames []CBORFrame
	Events []blackbox.Event
}

type cborRecord struct {
	_       struct{} `cbor:",toarray"`
	Kind    uint8
	Payload cbor.RawMessage
}

// ReadCBOR decodes a sequence written by CBORWriter.
func ReadCBOR(r io.Reader) (*CBORLog, error) {
	out := &CBORLog{Names: make(map[blackbox.FrameType][]string)}
	dec := cbor.NewDecoder(r)
	for {
		var rec cborRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("decode CBOR record: %w", err)
		}
		switch rec.Kind {
		case RecordSchema:
			var p struct {
				Type  uint8    `cbor:"0,keyasint"`
				Names []string `cbor:"1,keyasint"`
			}
			if err := cbor.Unmarshal(rec.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode schema record: %w", err)
			}
			out.Names[blackbox.FrameType(p.Type)] = p.Names
		case RecordFrame:
			var p struct {
				Type   uint8   `cbor:"0,keyasint"`
				Index  int     `cbor:"1,keyasint"`
				Offset int64   `cbor:"2,keyasint"`
				Values []int64 `cbor:"3,keyasint"`
			}
			if err := cbor.Unmarshal(rec.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode frame record: %w", err)
			}
			out.Frames = append(out.Frames, CBORFrame{
				Type:   blackbox.FrameType(p.Type),
				Index:  p.Index,
				Offset: p.Offset,
				Values: p.Values,
			})
		case RecordEvent:
			var p struct {
				Kind      uint8          `cbor:"0,keyasint"`
				Iteration int64          `cbor:"1,keyasint"`
				Time      int64          `cbor:"2,keyasint"`
				Offset    int64          `cbor:"3,keyasint"`
				Data      map[string]any `cbor:"4,keyasint"`
			}
			if err := cbor.Unmarshal(rec.Payload, &p); err != nil {
				return nil, fmt.Errorf("decode event record: %w", err)
			}
			kind := blackbox.EventKind(p.Kind)
			out.Events = append(out.Events, blackbox.Event{
				Kind:      kind,
				Name:      kind.String(),
				Data:      p.Data,
				Iteration: p.Iteration,
				Time:      p.Time,
				Offset:    p.Offset,
			})
		default:
			return nil, fmt.Errorf("unknown CBOR record type %d", rec.Kind)
		}
	}
}
