package protocol

import (
	"errors"
	"fmt"
)

// ErrFrameTooLarge means a frame header announced more bytes than allowed.
// The stream cannot be resynchronised after this.
var ErrFrameTooLarge = errors.New("frame too large")

// ErrInvalidUTF8 means a message holds text that JSON cannot carry unchanged.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// DecodeError reports a complete frame whose contents could not be decoded.
// It is recoverable: the next frame can still be read.
type DecodeError struct {
	Type   Type // empty when the envelope itself was unreadable
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Type != "" {
		msg += " " + string(e.Type)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
