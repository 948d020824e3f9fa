// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

// wrapError converts promptui interrupt/abort errors to ErrAborted.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// ValidateUsername rejects empty names and names with spaces or control
// characters, which the shell could not echo back unambiguously.
func ValidateUsername(input string) error {
	if input == "" {
		return errors.New("username is required")
	}
	if i := strings.IndexFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}); i >= 0 {
		return fmt.Errorf("username contains an invalid character at position %d", i+1)
	}
	return nil
}

// MinLength returns a validator requiring at least n characters.
func MinLength(n int) func(string) error {
	return func(input string) error {
		if len(input) < n {
			return fmt.Errorf("must be at least %d characters", n)
		}
		return nil
	}
}
