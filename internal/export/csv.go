package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"example.com/bblgate/internal/blackbox"
)

// MergedCSV writes one row per main frame. Each row carries the main frame's
// fields followed by the most recent slow frame and the most recent GPS
// frame (without its time column); columns stay blank until the first frame
// of that type has been seen.
type MergedCSV struct {
	w       *csv.Writer
	mainLen int
	slow    []string
	gps     []string
	gpsCols []int
	row     []string
}

func NewMergedCSV(w io.Writer, hdr *blackbox.Header) (*MergedCSV, error) {
	main, ok := hdr.Schemas[blackbox.FrameIntra]
	if !ok {
		return nil, fmt.Errorf("%w: no main frame schema", blackbox.ErrHeaderMalformed)
	}
	m := &MergedCSV{w: csv.NewWriter(w), mainLen: len(main.Fields)}
	header := main.Names()
	if slow, ok := hdr.Schemas[blackbox.FrameSlow]; ok {
		header = append(header, slow.Names()...)
		m.slow = make([]string, len(slow.Fields))
	}
	if gps, ok := hdr.Schemas[blackbox.FrameGPS]; ok {
		for i, f := range gps.Fields {
			if f.Name == "time" {
				continue
			}
			header = append(header, f.Name)
			m.gpsCols = append(m.gpsCols, i)
		}
		m.gps = make([]string, len(m.gpsCols))
	}
	m.row = make([]string, 0, len(header))
	if err := m.w.Write(header); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MergedCSV) WriteFrame(f blackbox.Frame) error {
	switch f.Type {
	case blackbox.FrameIntra, blackbox.FrameInter:
		row := m.row[:0]
		for _, v := range f.Values[:m.mainLen] {
			row = append(row, strconv.FormatInt(v, 10))
		}
		row = append(row, m.slow...)
		row = append(row, m.gps...)
		m.row = row
		return m.w.Write(row)
	case blackbox.FrameSlow:
		for i := range m.slow {
			m.slow[i] = strconv.FormatInt(f.Values[i], 10)
		}
	case blackbox.FrameGPS:
		for i, col := range m.gpsCols {
			m.gps[i] = strconv.FormatInt(f.Values[col], 10)
		}
	}
	return nil
}

// WriteEvent is a no-op; events go to a separate stream.
func (m *MergedCSV) WriteEvent(blackbox.Event) error {
	return nil
}

func (m *MergedCSV) Close() error {
	m.w.Flush()
	return m.w.Error()
}
