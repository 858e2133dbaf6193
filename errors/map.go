package errors

// errnoKind maps known MySQL server errnos to the taxonomy kind they
// represent, per §7's mapping table. This mirrors the sort of static
// table the teacher keeps for field types in consts.go, generalized to
// server errnos. Unknown errnos fall back to FromErrno's default rule.
var errnoKind = map[uint16]Kind{
	1022: KindIntegrityError, // ER_DUP_KEY
	1048: KindIntegrityError, // ER_BAD_NULL_ERROR
	1062: KindIntegrityError, // ER_DUP_ENTRY
	1169: KindIntegrityError, // ER_DUP_UNIQUE
	1215: KindIntegrityError, // ER_CANNOT_ADD_FOREIGN
	1216: KindIntegrityError, // ER_NO_REFERENCED_ROW
	1217: KindIntegrityError, // ER_ROW_IS_REFERENCED
	1451: KindIntegrityError, // ER_ROW_IS_REFERENCED_2
	1452: KindIntegrityError, // ER_NO_REFERENCED_ROW_2

	1064: KindProgrammingError, // ER_PARSE_ERROR
	1054: KindProgrammingError, // ER_BAD_FIELD_ERROR
	1146: KindProgrammingError, // ER_NO_SUCH_TABLE
	1109: KindProgrammingError, // ER_UNKNOWN_TABLE
	1051: KindProgrammingError, // ER_BAD_TABLE_ERROR
	1049: KindProgrammingError, // ER_BAD_DB_ERROR

	1044: KindOperationalError, // ER_DBACCESS_DENIED_ERROR
	1045: KindOperationalError, // ER_ACCESS_DENIED_ERROR
	1142: KindOperationalError, // ER_TABLEACCESS_DENIED_ERROR
	1143: KindOperationalError, // ER_COLUMNACCESS_DENIED_ERROR
	1205: KindOperationalError, // ER_LOCK_WAIT_TIMEOUT
	1213: KindOperationalError, // ER_LOCK_DEADLOCK
	1040: KindOperationalError, // ER_CON_COUNT_ERROR
	1152: KindOperationalError, // ER_ABORTING_CONNECTION
	2013: KindOperationalError, // CR_SERVER_LOST

	1264: KindDataError, // ER_WARN_DATA_OUT_OF_RANGE
	1265: KindDataError, // ER_WARN_DATA_TRUNCATED
	1406: KindDataError, // ER_DATA_TOO_LONG
	1366: KindDataError, // ER_TRUNCATED_WRONG_VALUE

	1235: KindNotSupportedError, // ER_NOT_SUPPORTED_YET
	1289: KindNotSupportedError, // ER_FEATURE_DISABLED
}

// FromErrno classifies a server ERR-packet errno per §7: known errnos use
// the static table, unknown errnos below 1000 are InternalError (protocol
// or driver range) and unknown errnos at or above 1000 are OperationalError
// (server-defined range).
func FromErrno(errno uint16, sqlstate, msg string) *Error {
	kind, ok := errnoKind[errno]
	if !ok {
		if errno < 1000 {
			kind = KindInternalError
		} else {
			kind = KindOperationalError
		}
	}
	return &Error{Kind: kind, Errno: errno, SQLState: sqlstate, Msg: msg}
}
