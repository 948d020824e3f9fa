package adapter

import "errors"

var (
	// ErrShutdownTimeout is returned when connections had to be force-closed.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

	// ErrAlreadyServing is returned by a second call to ServeWithFactory.
	ErrAlreadyServing = errors.New("adapter already serving")
)
