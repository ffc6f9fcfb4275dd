package broker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverableWrapsAndUnwraps(t *testing.T) {
	base := errors.New("read failed")
	err := Recoverable(base)

	assert.True(t, IsRecoverable(err))
	assert.False(t, IsFatal(err))
	assert.ErrorIs(t, err, base)
}

func TestFatalWrapsAndUnwraps(t *testing.T) {
	base := errors.New("contract violation")
	err := Fatal(base)

	assert.True(t, IsFatal(err))
	assert.False(t, IsRecoverable(err))
	assert.ErrorIs(t, err, base)
}

func TestRecoverableAndFatalNilPassthrough(t *testing.T) {
	assert.Nil(t, Recoverable(nil))
	assert.Nil(t, Fatal(nil))
}

func TestPlainErrorIsNeitherRecoverableNorFatal(t *testing.T) {
	err := errors.New("plain")
	assert.False(t, IsRecoverable(err))
	assert.False(t, IsFatal(err))
}
