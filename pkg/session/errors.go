package session

import (
	"errors"
	"fmt"
)

// ErrProtocolViolation is returned by Handle for messages the current state
// does not allow. The connection must be closed without a response.
var ErrProtocolViolation = errors.New("protocol violation")

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
