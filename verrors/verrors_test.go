package verrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndIs(t *testing.T) {
	base := errors.New("boom")
	err := New(UnhandledEffect, base)
	require.True(t, Is(err, UnhandledEffect))
	require.False(t, Is(err, TypeError))
	assert.ErrorIs(t, err, base)
}

func TestNewfFormatsDetail(t *testing.T) {
	err := Newf(TypeError, "key %q", "counter")
	var vmErr *VMError
	require.ErrorAs(t, err, &vmErr)
	assert.Equal(t, TypeError, vmErr.Kind)
	assert.Contains(t, vmErr.Error(), `"counter"`)
}

func TestIsFalseForPlainError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), RuntimeError))
}
