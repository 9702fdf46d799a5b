package viewkey

// Error codes carried by KeyError.
const (
	ErrInvalidEncoding    = "INVALID_ENCODING"
	ErrUnknownPrefix      = "UNKNOWN_PREFIX"
	ErrUnsupportedVersion = "UNSUPPORTED_VERSION"
	ErrNetworkMismatch    = "NETWORK_MISMATCH"
)

// KeyError reports a viewing key that could not be parsed or used.
type KeyError struct {
	Code    string
	Message string
	Cause   error
}

func (e *KeyError) Error() string {
	if e.Cause != nil {
		return "viewing key: " + e.Message + ": " + e.Cause.Error()
	}
	return "viewing key: " + e.Message
}

func (e *KeyError) Unwrap() error { return e.Cause }
