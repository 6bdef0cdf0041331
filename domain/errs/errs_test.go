package errs

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedErrors(t *testing.T) {
	err := errors.Wrapf(ErrRingBufferFull, "group %d", 7)
	assert.Equal(t, KindRingBufferFull, KindOf(err))
	assert.Equal(t, "ring_buffer_full", KindOf(err).String())
	assert.True(t, errors.Is(err, ErrRingBufferFull))
}

func TestKindOfUnknown(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "unknown", KindOf(errors.New("boom")).String())
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(errors.Wrap(ErrInvalidPrice, "submit")))
	assert.True(t, IsValidation(ErrUnauthorized))
	assert.False(t, IsValidation(ErrArithmeticOverflow))
	assert.False(t, IsValidation(ErrRingBufferFull))
}
