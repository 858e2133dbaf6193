package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrambleNativeEmptyPassword(t *testing.T) {
	assert.Nil(t, ScrambleNative("", []byte("01234567890123456789")))
}

func TestScrambleNativeDeterministic(t *testing.T) {
	scramble := []byte("01234567890123456789")
	a := ScrambleNative("secret", scramble)
	b := ScrambleNative("secret", scramble)
	assert.Equal(t, a, b)
	assert.Len(t, a, 20)
	assert.NotEqual(t, a, ScrambleNative("other", scramble))
}

func TestScrambleOldDeterministic(t *testing.T) {
	scramble := []byte("12345678")
	a := ScrambleOld("secret", scramble)
	b := ScrambleOld("secret", scramble)
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestScrambleOldEmptyPassword(t *testing.T) {
	assert.Nil(t, ScrambleOld("", []byte("12345678")))
}

func TestScrambleClear(t *testing.T) {
	assert.Equal(t, []byte("secret\x00"), ScrambleClear("secret"))
}

func TestScrambleCachingSHA2FastDeterministic(t *testing.T) {
	nonce := []byte("01234567890123456789")
	a := ScrambleCachingSHA2Fast("secret", nonce)
	b := ScrambleCachingSHA2Fast("secret", nonce)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestScrambleEd25519Deterministic(t *testing.T) {
	scramble := []byte("01234567890123456789")
	a, err := ScrambleEd25519("secret", scramble)
	assert.NoError(t, err)
	b, err := ScrambleEd25519("secret", scramble)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestDialogPromptEcho(t *testing.T) {
	called := false
	ask := func(prompt string, echo bool) (string, error) {
		called = true
		assert.True(t, echo)
		assert.Equal(t, "Username:", prompt)
		return "bob", nil
	}
	out, err := DialogPrompt(append([]byte{0x01}, []byte("Username:")...), ask)
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "bob\x00", string(out))
}
