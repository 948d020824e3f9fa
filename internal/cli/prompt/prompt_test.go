package prompt

import (
	"fmt"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
)

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.NoError(t, ValidateUsername("bob.smith@example"))

	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("two words"))
	assert.Error(t, ValidateUsername("tab\there"))
	assert.Error(t, ValidateUsername("bell\a"))
}

func TestMinLength(t *testing.T) {
	v := MinLength(8)
	assert.NoError(t, v("12345678"))
	assert.Error(t, v("short"))
	assert.NoError(t, MinLength(0)(""))
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(promptui.ErrAbort))
	assert.True(t, IsAborted(ErrAborted))
	assert.True(t, IsAborted(fmt.Errorf("login: %w", ErrAborted)))
	assert.False(t, IsAborted(nil))
	assert.False(t, IsAborted(ErrPasswordMismatch))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, wrapError(nil))
	assert.Equal(t, ErrAborted, wrapError(promptui.ErrInterrupt))
	assert.Equal(t, ErrPasswordMismatch, wrapError(ErrPasswordMismatch))
}

func TestConfirmWithForce(t *testing.T) {
	ok, err := ConfirmWithForce("Remove alice?", true)
	assert.NoError(t, err)
	assert.True(t, ok)
}
