package client

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittosh/pkg/protocol"
)

var (
	// ErrAuthRejected is returned by Login when the server answers false.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrConnectionClosed is returned once the server has closed the session,
	// after exit, the retry cap, a protocol violation or an idle timeout.
	ErrConnectionClosed = errors.New("connection closed by server")

	// ErrClosed is returned for calls after Close.
	ErrClosed = errors.New("client closed")
)

// UnexpectedResponseError means the server answered with the wrong variant.
type UnexpectedResponseError struct {
	Want protocol.Type
	Got  protocol.Type
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response: want %s, got %s", e.Want, e.Got)
}
