package midi

import "errors"

var (
	// ErrTruncated is reported when a chunk, track or variable-length
	// quantity ends before the data it declares.
	ErrTruncated = errors.New("truncated stream")
	// ErrInvalidContainer is reported when the stream does not start with a
	// well-formed MThd chunk.
	ErrInvalidContainer = errors.New("invalid container")
	// ErrUnsupportedMessage is reported when a status byte has no known
	// payload length, so the event boundary cannot be determined.
	ErrUnsupportedMessage = errors.New("unsupported message")
	// ErrQuantityTooLarge is reported for variable-length quantities beyond
	// the 28-bit limit.
	ErrQuantityTooLarge = errors.New("quantity too large")
)
