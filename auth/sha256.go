package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	"github.com/long2ice/asyncmy/errors"
)

// ScrambleCachingSHA2Fast implements the caching_sha2_password fast-path
// scramble per §4.3: XOR(SHA256(password), SHA256(SHA256(SHA256(password)),
// nonce)). Ported from auth.py's scramble_caching_sha2, which the teacher
// has no equivalent for.
func ScrambleCachingSHA2Fast(password string, nonce []byte) []byte {
	if len(password) == 0 {
		return nil
	}
	p1 := sha256.Sum256([]byte(password))
	p2 := sha256.Sum256(p1[:])

	h := sha256.New()
	h.Write(p2[:])
	h.Write(nonce)
	p3 := h.Sum(nil)

	out := make([]byte, len(p1))
	for i := range p1 {
		out[i] = p1[i] ^ p3[i]
	}
	return out
}

// xorPassword XORs password (NUL-terminated by the caller) against a
// repeating key derived from the first 20 bytes of salt, per auth.py's
// _xor_password. This is the RSA-OAEP plaintext preparation step shared
// by sha256_password and caching_sha2_password's full-auth path.
func xorPassword(password, salt []byte) []byte {
	const scrambleLength = 20
	if len(salt) > scrambleLength {
		salt = salt[:scrambleLength]
	}
	out := make([]byte, len(password))
	for i := range password {
		out[i] = password[i] ^ salt[i%len(salt)]
	}
	return out
}

// EncryptSHA2RSA encrypts password with salt and the server's RSA public
// key using OAEP/SHA-1, per auth.py's sha2_rsa_encrypt. publicKeyPEM is
// the PEM-encoded key the server sends as extra auth data (with its
// leading status byte already stripped by the caller). Used by both
// sha256_password and caching_sha2_password's full-auth path per §4.3.
func EncryptSHA2RSA(password string, salt []byte, publicKeyPEM []byte) ([]byte, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New(errors.KindOperationalError, "auth: invalid RSA public key from server")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(errors.KindOperationalError, "auth: parse RSA public key", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New(errors.KindOperationalError, "auth: server public key is not RSA")
	}

	plaintext := make([]byte, 0, len(password)+1)
	plaintext = append(plaintext, password...)
	plaintext = append(plaintext, 0)
	message := xorPassword(plaintext, salt)

	ciphertext, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, rsaPub, message, nil)
	if err != nil {
		return nil, errors.Wrap(errors.KindOperationalError, "auth: RSA-OAEP encrypt password", err)
	}
	return ciphertext, nil
}
