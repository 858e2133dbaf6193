package asyncmy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	got, err := Interpolate("SELECT * FROM t WHERE a = ? AND b = ?", 1, "x")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = 1 AND b = 'x'", got)
}

func TestInterpolateNoArgs(t *testing.T) {
	got, err := Interpolate("SELECT 1")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
}

func TestInterpolateTooFewArgs(t *testing.T) {
	_, err := Interpolate("a = ? AND b = ?", 1)
	assert.Error(t, err)
}

func TestInterpolateTooManyArgs(t *testing.T) {
	_, err := Interpolate("a = ?", 1, 2)
	assert.Error(t, err)
}

func TestInterpolateNull(t *testing.T) {
	got, err := Interpolate("a = ?", nil)
	assert.NoError(t, err)
	assert.Equal(t, "a = NULL", got)
}
