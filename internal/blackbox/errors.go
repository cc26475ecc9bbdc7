package blackbox

import "errors"

var (
	ErrHeaderMalformed      = errors.New("malformed log header")
	ErrTruncatedStream      = errors.New("stream ended inside a frame")
	ErrEncodingOverflow     = errors.New("variable-byte value exceeds 32 bits")
	ErrUnknownEventKind     = errors.New("unknown event kind")
	ErrMalformedEvent       = errors.New("malformed event payload")
	ErrUnsupportedPredictor = errors.New("predictor not supported")
	ErrFramesPending        = errors.New("frame sequence not fully consumed")
	ErrNoLog                = errors.New("no blackbox log found")
	ErrInvalidLogIndex      = errors.New("log index out of range")
)
