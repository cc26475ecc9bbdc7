package blackbox

import (
	"bytes"
	"fmt"
	"strings"
)

// Header is the parsed textual prologue of one log.
type Header struct {
	Metadata *Metadata
	Schemas  map[FrameType]*Schema
	// DataStart is the offset of the first frame byte.
	DataStart int
}

// ParseHeader reads "H key:value" lines from the start of data. The first
// line that is not a header line marks the beginning of the frame data.
func ParseHeader(data []byte) (*Header, error) {
	meta := newMetadata()
	lists := make(map[FrameType]*fieldLists)
	pos := 0
	lines := 0
	for pos+1 < len(data) && data[pos] == 'H' && data[pos+1] == ' ' {
		next := len(data)
		end := len(data)
		if nl := bytes.IndexByte(data[pos:], '\n'); nl >= 0 {
			end = pos + nl
			next = end + 1
		}
		key, value, ok := strings.Cut(strings.TrimRight(string(data[pos+2:end]), "\r"), ":")
		if !ok {
			break
		}
		if err := parseHeaderLine(meta, lists, key, value); err != nil {
			return nil, err
		}
		lines++
		pos = next
	}
	if lines == 0 {
		return nil, fmt.Errorf("%w: no header lines", ErrHeaderMalformed)
	}

	h := &Header{Metadata: meta, Schemas: make(map[FrameType]*Schema), DataStart: pos}
	intraLists, ok := lists[FrameIntra]
	if !ok || len(intraLists.names) == 0 {
		return nil, fmt.Errorf("%w: no intra frame fields declared", ErrHeaderMalformed)
	}
	if inter, ok := lists[FrameInter]; ok {
		inter.names = intraLists.names
		inter.signed = intraLists.signed
	}
	for _, ft := range FrameTypes {
		fl, ok := lists[ft]
		if !ok {
			continue
		}
		if len(fl.names) == 0 {
			return nil, fmt.Errorf("%w: frame %c declares attributes but no names", ErrHeaderMalformed, ft)
		}
		s, err := buildSchema(ft, *fl, meta, h.Schemas[FrameIntra])
		if err != nil {
			return nil, err
		}
		h.Schemas[ft] = s
	}
	return h, nil
}

func parseHeaderLine(meta *Metadata, lists map[FrameType]*fieldLists, key, value string) error {
	parts := strings.Fields(key)
	if len(parts) != 3 || parts[0] != "Field" || len(parts[1]) != 1 {
		meta.set(key, value)
		return nil
	}
	ft := FrameType(parts[1][0])
	if !ft.valid() || ft == FrameEvent {
		meta.set(key, value)
		return nil
	}
	fl, ok := lists[ft]
	if !ok {
		fl = &fieldLists{}
		lists[ft] = fl
	}
	attr := parts[2]
	if attr == "name" {
		fl.names = strings.Split(value, ",")
		for i := range fl.names {
			fl.names[i] = strings.TrimSpace(fl.names[i])
		}
		return nil
	}
	var dst *[]int64
	switch attr {
	case "signed":
		dst = &fl.signed
	case "predictor":
		dst = &fl.predictors
	case "encoding":
		dst = &fl.encodings
	default:
		meta.set(key, value)
		return nil
	}
	nums, ok := parseIntList(value)
	if !ok {
		return fmt.Errorf("%w: %s is not a list of integers: %q", ErrHeaderMalformed, key, value)
	}
	*dst = nums
	return nil
}
