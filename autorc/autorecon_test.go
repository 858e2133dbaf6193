package autorc

import (
	"errors"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNetErr struct{}

func (fakeNetErr) Error() string   { return "fake net error" }
func (fakeNetErr) Timeout() bool   { return true }
func (fakeNetErr) Temporary() bool { return true }

func TestIsNetErr(t *testing.T) {
	assert.True(t, IsNetErr(io.ErrUnexpectedEOF))
	assert.True(t, IsNetErr(io.EOF))
	var netErr net.Error = fakeNetErr{}
	assert.True(t, IsNetErr(netErr))
	assert.False(t, IsNetErr(errors.New("syntax error near 'SELCT'")))
}

func TestNewDefaultsMaxRetries(t *testing.T) {
	c := New(nil, nil)
	assert.Equal(t, 7, c.MaxRetries)
}
