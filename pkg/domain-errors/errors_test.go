package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("new carries code and message", func(t *testing.T) {
		err := New(CodeNotFound, "record not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.Equal(t, "record not found", err.Error())
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		cause := errors.New("disk on fire")
		err := Wrap(cause, CodeBackendFailure, "put record")
		require.Error(t, err)
		assert.True(t, HasCode(err, CodeBackendFailure))
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "put record: disk on fire", err.Error())
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "duplicate"))
		assert.Equal(t, CodeConflict, CodeOf(err))
	})

	t.Run("is matches the outermost code", func(t *testing.T) {
		err := Wrap(New(CodeNotFound, "inner"), CodeBackendFailure, "outer")
		assert.True(t, Is(err, CodeBackendFailure))
		assert.False(t, Is(err, CodeNotFound))
		assert.False(t, Is(nil, CodeBackendFailure))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("x"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}
