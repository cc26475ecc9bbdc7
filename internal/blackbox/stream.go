package blackbox

// stream is a read cursor over the binary section of one log. Copying the
// value clones the cursor, which is how trial decodes look ahead without
// moving the real position.
type stream struct {
	data []byte
	pos  int
}

func (s *stream) eof() bool {
	return s.pos >= len(s.data)
}

func (s *stream) peek() (byte, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	return s.data[s.pos], true
}

func (s *stream) readByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, ErrTruncatedStream
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *stream) readBytes(n int) ([]byte, error) {
	if n < 0 || s.pos+n > len(s.data) {
		s.pos = len(s.data)
		return nil, ErrTruncatedStream
	}
	b := s.data[s.pos : s.pos+n]
	s.pos += n
	return b, nil
}

// readUnsignedVB reads a little-endian base-128 value of at most five bytes.
func (s *stream) readUnsignedVB() (uint32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := s.readByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << (7 * uint(i))
		if b < 0x80 {
			return result, nil
		}
	}
	return 0, ErrEncodingOverflow
}

func (s *stream) readSignedVB() (int32, error) {
	u, err := s.readUnsignedVB()
	if err != nil {
		return 0, err
	}
	return zigzagDecode(u), nil
}

func (s *stream) readS8() (int8, error) {
	b, err := s.readByte()
	return int8(b), err
}

func (s *stream) readS16LE() (int16, error) {
	b, err := s.readBytes(2)
	if err != nil {
		return 0, err
	}
	return int16(uint16(b[0]) | uint16(b[1])<<8), nil
}

func (s *stream) readU32LE() (uint32, error) {
	b, err := s.readBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func zigzagDecode(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}
