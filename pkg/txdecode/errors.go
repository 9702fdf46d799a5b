package txdecode

import "fmt"

// Error codes returned in DecodeError.Code.
const (
	ErrTruncated          = "TRUNCATED"
	ErrUnsupportedVersion = "UNSUPPORTED_VERSION"
	ErrBadCount           = "BAD_COUNT"
	ErrTrailingBytes      = "TRAILING_BYTES"
)

// DecodeError reports a structural failure while decoding raw transaction
// bytes. Offset is the byte position at which the failure was detected.
type DecodeError struct {
	Code   string
	Offset int
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tx decode at offset %d: %s: %v", e.Offset, e.Reason, e.Cause)
	}
	return fmt.Sprintf("tx decode at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Cause }
