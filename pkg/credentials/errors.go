package credentials

import "errors"

var (
	// Authentication failures. All of them map to AuthResponse{false}.
	ErrWrongSecret        = errors.New("wrong secret")
	ErrUnknownUser        = errors.New("unknown user")
	ErrMethodNotSupported = errors.New("authentication method not supported")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrSecretTooLong      = errors.New("secret too long")

	// Administrative errors.
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
)

// IsAuthFailure reports whether err is a credential mismatch rather than an
// infrastructure problem (persistence, hashing).
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrWrongSecret) ||
		errors.Is(err, ErrUnknownUser) ||
		errors.Is(err, ErrMethodNotSupported) ||
		errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrSecretTooLong)
}
