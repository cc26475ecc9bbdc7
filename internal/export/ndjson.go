package export

import (
	"encoding/json"
	"io"
	"sync"

	"example.com/bblgate/internal/blackbox"
)

// FrameRecord is the NDJSON shape of a decoded frame.
type FrameRecord struct {
	Kind   string           `json:"kind"`
	Frame  string           `json:"frame"`
	Index  int              `json:"index"`
	Offset int64            `json:"offset"`
	Fields map[string]int64 `json:"fields"`
}

// EventRecord is the NDJSON shape of a decoded event.
type EventRecord struct {
	Kind      string         `json:"kind"`
	Event     string         `json:"event"`
	Code      uint8          `json:"code"`
	Iteration int64          `json:"iteration"`
	Time      int64          `json:"time"`
	Offset    int64          `json:"offset"`
	Data      map[string]any `json:"data,omitempty"`
}

func NewFrameRecord(f blackbox.Frame) FrameRecord {
	fields := make(map[string]int64, len(f.Values))
	for _, fv := range f.Fields() {
		fields[fv.Name] = fv.Value
	}
	return FrameRecord{
		Kind:   "frame",
		Frame:  string(rune(f.Type)),
		Index:  f.Index,
		Offset: f.Offset,
		Fields: fields,
	}
}

func NewEventRecord(ev blackbox.Event) EventRecord {
	return EventRecord{
		Kind:      "event",
		Event:     ev.Name,
		Code:      uint8(ev.Kind),
		Iteration: ev.Iteration,
		Time:      ev.Time,
		Offset:    ev.Offset,
		Data:      ev.Data,
	}
}

type flusher interface {
	Flush() error
}

// NDJSONWriter streams newline-delimited JSON objects to the underlying
// writer. If the writer has a Flush method it is called after every record.
type NDJSONWriter struct {
	mu      sync.Mutex
	writer  io.Writer
	flusher flusher
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	var fl flusher
	if f, ok := w.(flusher); ok {
		fl = f
	}
	return &NDJSONWriter{writer: w, flusher: fl}
}

func (w *NDJSONWriter) WriteFrame(f blackbox.Frame) error {
	return w.WriteObject(NewFrameRecord(f))
}

func (w *NDJSONWriter) WriteEvent(ev blackbox.Event) error {
	return w.WriteObject(NewEventRecord(ev))
}

// WriteObject marshals v and writes it followed by a newline.
func (w *NDJSONWriter) WriteObject(v any) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.writer.Write(data); err != nil {
		return err
	}
	if w.flusher != nil {
		return w.flusher.Flush()
	}
	return nil
}

func (w *NDJSONWriter) Close() error {
	return nil
}
