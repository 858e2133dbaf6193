package auth

// CachingSHA2FastAuthResult is the single status byte the server sends
// after the caching_sha2_password fast-path scramble, per §4.3 and
// auth.py's caching_sha2_password_auth magic numbers.
type CachingSHA2FastAuthResult byte

const (
	CachingSHA2RequestPublicKey CachingSHA2FastAuthResult = 2
	CachingSHA2FastAuthSucceeded CachingSHA2FastAuthResult = 3
	CachingSHA2FullAuthRequired CachingSHA2FastAuthResult = 4
)

// RequestPublicKeyPacket is the one-byte request the client sends to ask
// the server for its RSA public key when neither side already has it
// cached, per auth.py's caching_sha2_password_auth and sha256_password_auth.
func RequestPublicKeyPacket() []byte { return []byte{0x02} }

// RequestScramblePacket is what sha256_password sends as its first
// auth data on a connection without TLS: a single 0x01 byte asking the
// server for its RSA public key, which the password is then encrypted
// with, mirroring auth.py's sha256_password_auth.
func RequestScramblePacket() []byte { return []byte{0x01} }
