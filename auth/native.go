package auth

import "crypto/sha1"

// ScrambleNative implements mysql_native_password per §4.3:
// SHA1(scramble ‖ SHA1(SHA1(password))) XOR SHA1(password). Ported
// directly from native/passwd.go's encryptedPasswd, renamed to match
// this package's naming and generalized to take the password as a byte
// slice via the string parameter (the teacher's signature already
// matched §4.3 exactly, so only the name and package changed).
func ScrambleNative(password string, scramble []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	stage1 := sha1.Sum([]byte(password))

	h := sha1.New()
	h.Write(stage1[:])
	stage2 := h.Sum(nil)

	h.Reset()
	h.Write(scramble)
	h.Write(stage2)
	stage3 := h.Sum(nil)

	out := make([]byte, len(stage1))
	for i := range stage1 {
		out[i] = stage3[i] ^ stage1[i]
	}
	return out
}
