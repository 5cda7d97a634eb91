package libsqlproxy

import (
	"fmt"
	"sync"
)

// Result codes, mirroring the subset of the embedded SQL library's
// extended result codes this proxy honors (spec §6).
const (
	SQLITE_OK     = 0
	SQLITE_ERROR  = 1
	SQLITE_BUSY   = 5
	SQLITE_CANTOPEN = 14
	SQLITE_MISUSE = 21
	SQLITE_RANGE  = 25
	SQLITE_ROW    = 100
	SQLITE_DONE   = 101
)

// Column type codes (spec §6).
const (
	SQLITE_INTEGER = 1
	SQLITE_FLOAT   = 2
	SQLITE_TEXT    = 3
	SQLITE_NULL    = 5
)

// Hook operation codes (spec §6).
const (
	SQLITE_DELETE = 9
	SQLITE_INSERT = 18
	SQLITE_UPDATE = 23
)

// SqliteError is the typed error every component pushes onto the
// process error stack: a human message paired with a result code.
type SqliteError struct {
	Message string
	Code    int
}

func (e *SqliteError) Error() string { return e.Message }

// NewError builds a SqliteError with the given code.
func NewError(code int, format string, args ...any) *SqliteError {
	return &SqliteError{Message: fmt.Sprintf(format, args...), Code: code}
}

// errCode extracts the result code carried by err, defaulting to
// SQLITE_ERROR for errors that aren't a *SqliteError (e.g. a plain
// transport error never classified against the taxonomy).
func errCode(err error) int {
	if se, ok := err.(*SqliteError); ok {
		return se.Code
	}
	return SQLITE_ERROR
}

// Errstr mirrors sqlite3_errstr: a static string for a handful of
// well-known codes.
func Errstr(code int) string {
	switch code {
	case SQLITE_OK:
		return "Successful result"
	case SQLITE_ERROR:
		return "SQL error or missing database"
	case SQLITE_MISUSE:
		return "Library used incorrectly"
	case SQLITE_RANGE:
		return "2nd parameter to sqlite3_bind out of range"
	case SQLITE_BUSY:
		return "The database file is locked"
	case SQLITE_CANTOPEN:
		return "Unable to open the database file"
	default:
		return "Unknown error code"
	}
}

// errEntry is one (message, code) pair on an ErrorStack.
type errEntry struct {
	message string
	code    int
}

// ErrorStack is the process error stack of spec §3, threaded per
// handle rather than as a package-level singleton (spec §9's "clean"
// alternative): errmsg/extended_errcode read the most recent push, and
// a push never shrinks the stack, only appends.
type ErrorStack struct {
	mu      sync.Mutex
	entries []errEntry
}

// Push records a new top-of-stack error.
func (s *ErrorStack) Push(code int, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, errEntry{message: fmt.Sprintf(format, args...), code: code})
}

// PushErr records err's message under code.
func (s *ErrorStack) PushErr(code int, err error) {
	if err == nil {
		return
	}
	s.Push(code, "%s", err.Error())
}

// Last returns the most recently pushed (message, code), or ("", OK)
// on an empty stack.
func (s *ErrorStack) Last() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return "", SQLITE_OK
	}
	top := s.entries[len(s.entries)-1]
	return top.message, top.code
}

