// Package auth implements the authentication plugin algorithms of §4.3:
// each plugin computes the token the client sends in response to the
// server's scramble (or, for dialog, carries on an interactive exchange).
// Grounded in native/passwd.go's encryptedPasswd/hash_password for the
// two plugins the teacher implements, and in the reference
// implementation's auth.py for the plugins the teacher never finished
// (caching_sha2_password, sha256_password, client_ed25519) or left
// stubbed out (mysql_old_password).
package auth

// Name identifies a server auth plugin by its MySQL-protocol name.
type Name string

const (
	NativePassword  Name = "mysql_native_password"
	CachingSHA2     Name = "caching_sha2_password"
	SHA256Password  Name = "sha256_password"
	OldPassword     Name = "mysql_old_password"
	ClearPassword   Name = "mysql_clear_password"
	Ed25519         Name = "client_ed25519"
	Dialog          Name = "dialog"
)

// Scramble computes the one-shot initial response token for plugins that
// need nothing beyond the password and the server's scramble/nonce; it
// covers every plugin except caching_sha2_password, sha256_password and
// dialog, which need further packet round-trips and are driven directly
// by the session state machine instead (§4.4).
func Scramble(name Name, password string, scramble []byte) ([]byte, error) {
	switch name {
	case NativePassword:
		return ScrambleNative(password, scramble), nil
	case OldPassword:
		return ScrambleOld(password, scramble), nil
	case ClearPassword:
		return ScrambleClear(password), nil
	case Ed25519:
		return ScrambleEd25519(password, scramble)
	default:
		return nil, errUnsupported(name)
	}
}

type unsupportedPluginError struct{ name Name }

func (e *unsupportedPluginError) Error() string {
	return "auth: plugin " + string(e.name) + " requires a multi-step exchange, not a one-shot scramble"
}

func errUnsupported(name Name) error { return &unsupportedPluginError{name: name} }
