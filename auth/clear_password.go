package auth

// ScrambleClear implements mysql_clear_password per §4.3: the password
// is sent verbatim, NUL-terminated, and relies entirely on the
// transport (TLS or a trusted socket) for confidentiality. Grounded in
// auth.py's sha256_password_auth secure-channel branch, which sends the
// same `password + b"\0"` payload once the connection is already TLS.
func ScrambleClear(password string) []byte {
	out := make([]byte, len(password)+1)
	copy(out, password)
	return out
}
