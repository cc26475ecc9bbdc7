package blackbox

import "fmt"

// knownEncoding reports whether enc is part of the catalog for the given
// header data version.
func knownEncoding(enc Encoding, dataVersion int) bool {
	switch enc {
	case EncodingSignedVB, EncodingUnsignedVB, EncodingNeg14Bit,
		EncodingTag8_8SVB, EncodingTag2_3S32, EncodingNull:
		return true
	case EncodingTag8_4S16:
		return dataVersion >= 2
	}
	return false
}

// readStep decodes the raw values of one schema step into out. For per-field
// encodings out has length one; for tag-grouped encodings it covers the
// whole group.
func readStep(s *stream, enc Encoding, out []int64) error {
	switch enc {
	case EncodingSignedVB:
		v, err := s.readSignedVB()
		if err != nil {
			return err
		}
		out[0] = int64(v)
	case EncodingUnsignedVB:
		v, err := s.readUnsignedVB()
		if err != nil {
			return err
		}
		out[0] = int64(v)
	case EncodingNeg14Bit:
		v, err := s.readUnsignedVB()
		if err != nil {
			return err
		}
		out[0] = -int64(signExtend(v&0x3FFF, 14))
	case EncodingNull:
		out[0] = 0
	case EncodingTag8_8SVB:
		return readTag8_8SVB(s, out)
	case EncodingTag2_3S32:
		return readTag2_3S32(s, out)
	case EncodingTag8_4S16:
		return readTag8_4S16(s, out)
	default:
		return fmt.Errorf("%w: encoding %d", ErrHeaderMalformed, enc)
	}
	return nil
}

// readTag8_8SVB reads up to eight signed values announced by a header byte.
// A group of a single field carries no header byte.
func readTag8_8SVB(s *stream, out []int64) error {
	if len(out) == 1 {
		v, err := s.readSignedVB()
		if err != nil {
			return err
		}
		out[0] = int64(v)
		return nil
	}
	header, err := s.readByte()
	if err != nil {
		return err
	}
	for i := range out {
		if header&0x01 != 0 {
			v, err := s.readSignedVB()
			if err != nil {
				return err
			}
			out[i] = int64(v)
		} else {
			out[i] = 0
		}
		header >>= 1
	}
	return nil
}

func readTag2_3S32(s *stream, out []int64) error {
	lead, err := s.readByte()
	if err != nil {
		return err
	}
	switch lead >> 6 {
	case 0:
		out[0] = int64(signExtend(uint32(lead>>4)&0x03, 2))
		out[1] = int64(signExtend(uint32(lead>>2)&0x03, 2))
		out[2] = int64(signExtend(uint32(lead)&0x03, 2))
	case 1:
		out[0] = int64(signExtend(uint32(lead)&0x0F, 4))
		b, err := s.readByte()
		if err != nil {
			return err
		}
		out[1] = int64(signExtend(uint32(b>>4), 4))
		out[2] = int64(signExtend(uint32(b)&0x0F, 4))
	case 2:
		out[0] = int64(signExtend(uint32(lead)&0x3F, 6))
		for i := 1; i < 3; i++ {
			b, err := s.readByte()
			if err != nil {
				return err
			}
			out[i] = int64(signExtend(uint32(b)&0x3F, 6))
		}
	case 3:
		// Two selector bits per value, lowest bits first, choose 8/16/24/32 bits.
		for i := 0; i < 3; i++ {
			width := int(lead&0x03) + 1
			b, err := s.readBytes(width)
			if err != nil {
				return err
			}
			var u uint32
			for j := width - 1; j >= 0; j-- {
				u = u<<8 | uint32(b[j])
			}
			out[i] = int64(signExtend(u, uint(width*8)))
			lead >>= 2
		}
	}
	return nil
}

// readTag8_4S16 reads four values whose widths (0, 4, 8 or 16 bits) come from
// a header byte. Values are packed on nibble boundaries, high nibble first.
func readTag8_4S16(s *stream, out []int64) error {
	selector, err := s.readByte()
	if err != nil {
		return err
	}
	var buffer byte
	half := false
	for i := 0; i < 4; i++ {
		switch selector & 0x03 {
		case 0:
			out[i] = 0
		case 1:
			if !half {
				if buffer, err = s.readByte(); err != nil {
					return err
				}
				out[i] = int64(signExtend(uint32(buffer>>4), 4))
				half = true
			} else {
				out[i] = int64(signExtend(uint32(buffer&0x0F), 4))
				half = false
			}
		case 2:
			if !half {
				b, err := s.readByte()
				if err != nil {
					return err
				}
				out[i] = int64(int8(b))
			} else {
				hi := buffer << 4
				if buffer, err = s.readByte(); err != nil {
					return err
				}
				out[i] = int64(int8(hi | buffer>>4))
			}
		case 3:
			b, err := s.readBytes(2)
			if err != nil {
				return err
			}
			if !half {
				out[i] = int64(int16(uint16(b[0])<<8 | uint16(b[1])))
			} else {
				u := uint16(buffer&0x0F)<<12 | uint16(b[0])<<4 | uint16(b[1]>>4)
				out[i] = int64(int16(u))
				buffer = b[1]
			}
		}
		selector >>= 2
	}
	return nil
}
