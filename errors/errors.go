// Package errors implements the seven-kind error taxonomy of §7: every
// failure the driver surfaces is classified so callers can branch on Kind
// without string-matching messages.
package errors

import "fmt"

// Kind classifies a driver error, ordered by specificity as in §7.
type Kind int

const (
	KindWarning Kind = iota
	KindError
	KindInterfaceError
	KindDatabaseError
	KindDataError
	KindOperationalError
	KindIntegrityError
	KindInternalError
	KindProgrammingError
	KindNotSupportedError
)

func (k Kind) String() string {
	switch k {
	case KindWarning:
		return "Warning"
	case KindError:
		return "Error"
	case KindInterfaceError:
		return "InterfaceError"
	case KindDatabaseError:
		return "DatabaseError"
	case KindDataError:
		return "DataError"
	case KindOperationalError:
		return "OperationalError"
	case KindIntegrityError:
		return "IntegrityError"
	case KindInternalError:
		return "InternalError"
	case KindProgrammingError:
		return "ProgrammingError"
	case KindNotSupportedError:
		return "NotSupportedError"
	default:
		return "UnknownError"
	}
}

// Error is the concrete error type the driver returns. Errno is non-zero
// only when the error originated from a server ERR packet.
type Error struct {
	Kind    Kind
	Errno   uint16
	SQLState string
	Msg     string
	Cause   error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Errno != 0 {
		if e.SQLState != "" {
			return fmt.Sprintf("%s (errno %d, sqlstate %s): %s", e.Kind, e.Errno, e.SQLState, e.Msg)
		}
		return fmt.Sprintf("%s (errno %d): %s", e.Kind, e.Errno, e.Msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, ErrServerLost)-style sentinel checks even though
// ServerLost/Internal construct fresh instances rather than returning the
// sentinel itself (so the Cause chain is preserved).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Errno != 0 {
		return e.Errno == t.Errno
	}
	return e.Kind == t.Kind && e.Msg == t.Msg
}

// Sentinels used internally for framing/protocol failures (§7 propagation
// policy): framing errors are always CR_SERVER_LOST OperationalErrors,
// sequence/EOF violations are always InternalErrors.
var (
	ErrServerLost   = &Error{Kind: KindOperationalError, Errno: CRServerLost, Msg: "server has gone away"}
	ErrPacketSeq    = &Error{Kind: KindInternalError, Msg: "packet out of order"}
	ErrMalformed    = &Error{Kind: KindInternalError, Msg: "malformed packet"}
	ErrPacketTooLong = &Error{Kind: KindInternalError, Msg: "packet longer than declared"}
	ErrNotConnected = &Error{Kind: KindInterfaceError, Msg: "not connected"}
	ErrOldProtocol  = &Error{Kind: KindNotSupportedError, Msg: "server uses old, pre-4.1 protocol"}
)

// CRServerLost mirrors the client-side "CR_SERVER_LOST" errno used by the
// reference client libraries for transport-level failures.
const CRServerLost uint16 = 2013

// ServerLost wraps a transport-level I/O failure as the CR_SERVER_LOST
// OperationalError that §4.1 mandates for short reads and write failures.
func ServerLost(cause error) *Error {
	return &Error{Kind: KindOperationalError, Errno: CRServerLost, Msg: "server has gone away", Cause: cause}
}

// Internal wraps a protocol-invariant violation (wrong sequence id, missing
// EOF, unexpected packet kind) as an InternalError.
func Internal(msg string) *Error {
	return &Error{Kind: KindInternalError, Msg: msg}
}
