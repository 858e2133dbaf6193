package auth

import (
	"crypto/sha512"

	"filippo.io/edwards25519"

	"github.com/long2ice/asyncmy/errors"
)

// ScrambleEd25519 implements MariaDB's client_ed25519 plugin per §4.3 and
// RFC 8032 §5.1.6: a deterministic Ed25519 signature of the server's
// scramble, using a secret/public key pair derived entirely from the
// password (no stored keypair). Ported from auth.py's ed25519_password,
// which delegates the scalar/point arithmetic to libsodium; Go's
// standard crypto/ed25519 only exposes high-level Sign/Verify over an
// existing seed, not the raw scalar-clamp-then-scalarmult construction
// this plugin needs, so this uses filippo.io/edwards25519's Scalar and
// Point types directly to perform the same arithmetic by hand.
func ScrambleEd25519(password string, scramble []byte) ([]byte, error) {
	// h = SHA512(password); s = prune(first_half(h))
	h := sha512.Sum512([]byte(password))
	s, err := scalarFromClampedBytes(h[:32])
	if err != nil {
		return nil, err
	}

	// r = SHA512(second_half(h) || scramble) reduced mod L
	rh := sha512.New()
	rh.Write(h[32:])
	rh.Write(scramble)
	rSum := rh.Sum(nil)
	r, err := scalarFromWideBytes(rSum)
	if err != nil {
		return nil, err
	}

	// R = encoded point [r]B ; A = encoded point [s]B
	R := new(edwards25519.Point).ScalarBaseMult(r)
	A := new(edwards25519.Point).ScalarBaseMult(s)

	// k = SHA512(R || A || scramble) reduced mod L
	kh := sha512.New()
	kh.Write(R.Bytes())
	kh.Write(A.Bytes())
	kh.Write(scramble)
	kSum := kh.Sum(nil)
	k, err := scalarFromWideBytes(kSum)
	if err != nil {
		return nil, err
	}

	// S = (k*s + r) mod L
	S := new(edwards25519.Scalar).MultiplyAdd(k, s, r)

	sig := make([]byte, 64)
	copy(sig[:32], R.Bytes())
	copy(sig[32:], S.Bytes())
	return sig, nil
}

// scalarFromClampedBytes applies RFC 8032's clamping to a 32-byte scalar
// (clear the low 3 bits of byte 0, clear the high bit and set the
// second-highest bit of byte 31) before reducing it into the field.
func scalarFromClampedBytes(b []byte) (*edwards25519.Scalar, error) {
	clamped := make([]byte, 32)
	copy(clamped, b)
	clamped[0] &= 248
	clamped[31] &= 127
	clamped[31] |= 64

	wide := make([]byte, 64)
	copy(wide, clamped)
	return scalarFromWideBytes(wide)
}

// scalarFromWideBytes reduces a 64-byte little-endian integer modulo the
// curve order L, matching libsodium's crypto_core_ed25519_scalar_reduce.
func scalarFromWideBytes(b []byte) (*edwards25519.Scalar, error) {
	var wide [64]byte
	copy(wide[:], b)
	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	if err != nil {
		return nil, errors.Wrap(errors.KindOperationalError, "auth: reduce ed25519 scalar", err)
	}
	return s, nil
}
