package blackbox

import "fmt"

// The Append functions are the writer side of the encoding catalog, in the
// layout the flight controller firmware produces.

func AppendUnsignedVB(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func AppendSignedVB(dst []byte, v int32) []byte {
	return AppendUnsignedVB(dst, uint32((v<<1)^(v>>31)))
}

func AppendNeg14Bit(dst []byte, v int32) []byte {
	return AppendUnsignedVB(dst, uint32(-v)&0x3FFF)
}

// AppendTag8_8SVB writes up to eight values behind a presence header byte.
func AppendTag8_8SVB(dst []byte, values []int32) []byte {
	if len(values) == 1 {
		return AppendSignedVB(dst, values[0])
	}
	var header byte
	for i, v := range values {
		if v != 0 {
			header |= 1 << uint(i)
		}
	}
	dst = append(dst, header)
	for _, v := range values {
		if v != 0 {
			dst = AppendSignedVB(dst, v)
		}
	}
	return dst
}

func fitsBits(v int32, bits uint) bool {
	lo := -(int32(1) << (bits - 1))
	hi := int32(1)<<(bits-1) - 1
	return v >= lo && v <= hi
}

// AppendTag2_3S32 writes three values using the narrowest layout that holds
// all of them.
func AppendTag2_3S32(dst []byte, values [3]int32) []byte {
	fitsAll := func(bits uint) bool {
		return fitsBits(values[0], bits) && fitsBits(values[1], bits) && fitsBits(values[2], bits)
	}
	switch {
	case fitsAll(2):
		return append(dst, byte(values[0]&0x03)<<4|byte(values[1]&0x03)<<2|byte(values[2]&0x03))
	case fitsAll(4):
		return append(dst, 0x40|byte(values[0]&0x0F), byte(values[1]&0x0F)<<4|byte(values[2]&0x0F))
	case fitsAll(6):
		return append(dst, 0x80|byte(values[0]&0x3F), byte(values[1]&0x3F), byte(values[2]&0x3F))
	}
	lead := byte(0xC0)
	widths := [3]int{}
	for i, v := range values {
		w := 4
		switch {
		case fitsBits(v, 8):
			w = 1
		case fitsBits(v, 16):
			w = 2
		case fitsBits(v, 24):
			w = 3
		}
		widths[i] = w
		lead |= byte(w-1) << (2 * uint(i))
	}
	dst = append(dst, lead)
	for i, v := range values {
		u := uint32(v)
		for j := 0; j < widths[i]; j++ {
			dst = append(dst, byte(u>>(8*uint(j))))
		}
	}
	return dst
}

// AppendTag8_4S16 writes four values of up to 16 bits, nibble packed.
func AppendTag8_4S16(dst []byte, values [4]int32) []byte {
	var selector byte
	for i, v := range values {
		var sel byte
		switch {
		case v == 0:
			sel = 0
		case fitsBits(v, 4):
			sel = 1
		case fitsBits(v, 8):
			sel = 2
		default:
			sel = 3
		}
		selector |= sel << (2 * uint(i))
	}
	dst = append(dst, selector)
	var buffer byte
	half := false
	for i, v := range values {
		switch (selector >> (2 * uint(i))) & 0x03 {
		case 1:
			if !half {
				buffer = byte(v) << 4
				half = true
			} else {
				dst = append(dst, buffer|byte(v)&0x0F)
				half = false
			}
		case 2:
			if !half {
				dst = append(dst, byte(v))
			} else {
				dst = append(dst, buffer|byte(v>>4)&0x0F)
				buffer = byte(v) << 4
			}
		case 3:
			if !half {
				dst = append(dst, byte(v>>8), byte(v))
			} else {
				dst = append(dst, buffer|byte(v>>12)&0x0F, byte(v>>4))
				buffer = byte(v) << 4
			}
		}
	}
	if half {
		dst = append(dst, buffer)
	}
	return dst
}

// AppendRaw encodes the raw (already residual) values of one frame following
// the schema's decode plan. The frame marker is not written.
func (s *Schema) AppendRaw(dst []byte, raw []int64) ([]byte, error) {
	if len(raw) != len(s.Fields) {
		return dst, fmt.Errorf("frame %c: %d values for %d fields", s.Type, len(raw), len(s.Fields))
	}
	for _, st := range s.steps {
		vals := raw[st.first : st.first+st.count]
		switch st.enc {
		case EncodingSignedVB:
			dst = AppendSignedVB(dst, int32(vals[0]))
		case EncodingUnsignedVB:
			dst = AppendUnsignedVB(dst, uint32(vals[0]))
		case EncodingNeg14Bit:
			dst = AppendNeg14Bit(dst, int32(vals[0]))
		case EncodingNull:
		case EncodingTag8_8SVB:
			group := make([]int32, len(vals))
			for i, v := range vals {
				group[i] = int32(v)
			}
			dst = AppendTag8_8SVB(dst, group)
		case EncodingTag2_3S32:
			dst = AppendTag2_3S32(dst, [3]int32{int32(vals[0]), int32(vals[1]), int32(vals[2])})
		case EncodingTag8_4S16:
			dst = AppendTag8_4S16(dst, [4]int32{int32(vals[0]), int32(vals[1]), int32(vals[2]), int32(vals[3])})
		default:
			return dst, fmt.Errorf("frame %c: cannot encode %s", s.Type, st.enc)
		}
	}
	return dst, nil
}
