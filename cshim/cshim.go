// Package cshim is the foreign-function entry layer of spec §1/§6: a
// cgo C-ABI surface, compatible with the standard embedded SQL
// library's dynamic-link surface, that marshals raw pointers and
// strings to and from the libsqlproxy core. Each exported function
// that runs a core operation (open_v2, close_v2, prepare_v3, step,
// exec) wraps exactly one libsqlproxy.BlockOn call (spec §9); the
// other exports read or write local state directly.
package cshim

/*
#include <stdlib.h>

typedef struct sqlite3 sqlite3;
typedef struct sqlite3_stmt sqlite3_stmt;

typedef void (*update_hook_fn)(void *arg, int op, const char *db, const char *table, long long rowid);
typedef void (*commit_hook_fn)(void *arg);
typedef void (*rollback_hook_fn)(void *arg);

static void call_update_hook(update_hook_fn fn, void *arg, int op, const char *db, const char *table, long long rowid) {
	fn(arg, op, db, table, rowid);
}

static void call_commit_hook(commit_hook_fn fn, void *arg) {
	fn(arg);
}

static void call_rollback_hook(rollback_hook_fn fn, void *arg) {
	fn(arg);
}
*/
import "C"

import (
	"context"
	"runtime/cgo"
	"sync"
	"unsafe"

	lsp "github.com/codekeyz/libsqlite3-turso"
	"github.com/codekeyz/libsqlite3-turso/auth"
)

// Reported version information (spec §6).
const (
	libVersionNumber = 3037000
	libVersionString = "3.37.0"
	librarySourceID  = "2022-01-06 13:25:4 libsqlite3_turso"
)

var bgCtx = context.Background()

// --- handle boxing -------------------------------------------------
//
// A *C.sqlite3 / *C.sqlite3_stmt crossing the ABI is never a real Go
// pointer: it is a runtime/cgo.Handle value reinterpreted as a
// pointer-sized integer, the documented safe way to pass a Go-owned
// value through C memory without violating cgo's pointer-passing
// rules (spec §5's "raw pointers crossing the FFI boundary are
// validated for non-null... before any dereference").

func boxDB(db *lsp.DB) *C.sqlite3 {
	h := cgo.NewHandle(db)
	return (*C.sqlite3)(unsafe.Pointer(uintptr(h)))
}

func unboxDB(p *C.sqlite3) *lsp.DB {
	if p == nil {
		return nil
	}
	v, ok := cgo.Handle(uintptr(unsafe.Pointer(p))).Value().(*lsp.DB)
	if !ok {
		return nil
	}
	return v
}

func freeDB(p *C.sqlite3) {
	if p == nil {
		return
	}
	cgo.Handle(uintptr(unsafe.Pointer(p))).Delete()
}

func boxStmt(stmt *lsp.Stmt) *C.sqlite3_stmt {
	h := cgo.NewHandle(stmt)
	return (*C.sqlite3_stmt)(unsafe.Pointer(uintptr(h)))
}

func unboxStmt(p *C.sqlite3_stmt) *lsp.Stmt {
	if p == nil {
		return nil
	}
	v, ok := cgo.Handle(uintptr(unsafe.Pointer(p))).Value().(*lsp.Stmt)
	if !ok {
		return nil
	}
	return v
}

func freeStmt(p *C.sqlite3_stmt) {
	if p == nil {
		return
	}
	cgo.Handle(uintptr(unsafe.Pointer(p))).Delete()
}

// hookRegistration records a caller-supplied C function pointer plus
// its opaque user-data argument, keyed by DB so the next registration
// on the same handle can return the previous argument. update_hook's
// trigger closures capture fn and arg directly and do not read these
// maps; commit and rollback registrations are recorded but never
// invoked.
type hookRegistration struct {
	fn   unsafe.Pointer
	arg  unsafe.Pointer
}

var (
	updateHooksMu sync.Mutex
	updateHooks   = map[*lsp.DB]hookRegistration{}

	commitHooksMu sync.Mutex
	commitHooks   = map[*lsp.DB]hookRegistration{}

	rollbackHooksMu sync.Mutex
	rollbackHooks   = map[*lsp.DB]hookRegistration{}
)

//export initialize
func initialize() C.int {
	return C.int(lsp.SQLITE_OK)
}

//export libversion
func libversion() *C.char {
	return C.CString(libVersionString)
}

//export libversion_number
func libversion_number() C.int {
	return C.int(libVersionNumber)
}

//export sourceid
func sourceid() *C.char {
	return C.CString(librarySourceID)
}

//export compileoption_used
func compileoption_used(name *C.char) C.int {
	if C.GoString(name) == "ENABLE_COLUMN_METADATA" {
		return 1
	}
	return 0
}

//export compileoption_get
func compileoption_get(n C.int) *C.char {
	if n == 0 {
		return C.CString("ENABLE_COLUMN_METADATA")
	}
	return nil
}

//export extended_result_codes
func extended_result_codes(db *C.sqlite3, onoff C.int) C.int {
	// No-op: the proxy returns the same small set of result codes
	// whether extended codes are switched on or not.
	return C.int(lsp.SQLITE_OK)
}

//export open_v2
func open_v2(filename *C.char, ppDb **C.sqlite3, flags C.int) C.int {
	if ppDb == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	name := C.GoString(filename)

	strategy := auth.ResolveStrategy()
	cfg := lsp.DefaultConfig()

	errs := &lsp.ErrorStack{}
	var db *lsp.DB
	code := lsp.BlockOn(bgCtx, errs, func(ctx context.Context) (int, error) {
		opened, err := lsp.Open(ctx, name, strategy, cfg)
		if err != nil {
			if se, ok := err.(*lsp.SqliteError); ok {
				return se.Code, err
			}
			return lsp.SQLITE_CANTOPEN, err
		}
		db = opened
		return lsp.SQLITE_OK, nil
	})

	if db == nil {
		*ppDb = nil
		return C.int(code)
	}
	*ppDb = boxDB(db)
	return C.int(code)
}

//export close_v2
func close_v2(db *C.sqlite3) C.int {
	handle := unboxDB(db)
	if handle == nil {
		return C.int(lsp.SQLITE_OK)
	}
	code := lsp.BlockOn(bgCtx, handle.Errors, func(ctx context.Context) (int, error) {
		return lsp.SQLITE_OK, handle.Close()
	})
	freeDB(db)

	updateHooksMu.Lock()
	delete(updateHooks, handle)
	updateHooksMu.Unlock()
	commitHooksMu.Lock()
	delete(commitHooks, handle)
	commitHooksMu.Unlock()
	rollbackHooksMu.Lock()
	delete(rollbackHooks, handle)
	rollbackHooksMu.Unlock()

	return C.int(code)
}

//export prepare_v3
func prepare_v3(db *C.sqlite3, sql *C.char, nByte C.int, flags C.uint, ppStmt **C.sqlite3_stmt, pzTail **C.char) C.int {
	handle := unboxDB(db)
	if handle == nil || ppStmt == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	if flags != 0 {
		handle.Errors.Push(lsp.SQLITE_MISUSE, "non-zero prepare flags are not supported")
		return C.int(lsp.SQLITE_MISUSE)
	}

	text := C.GoString(sql)
	var stmt *lsp.Stmt
	code := lsp.BlockOn(bgCtx, handle.Errors, func(ctx context.Context) (int, error) {
		s, err := lsp.Prepare(handle, text)
		if err != nil {
			return lsp.SQLITE_ERROR, err
		}
		stmt = s
		return lsp.SQLITE_OK, nil
	})

	if pzTail != nil {
		*pzTail = nil
	}
	if stmt == nil {
		*ppStmt = nil
		return C.int(code)
	}
	*ppStmt = boxStmt(stmt)
	return C.int(code)
}

//export bind_parameter_count
func bind_parameter_count(stmt *C.sqlite3_stmt) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return 0
	}
	return C.int(s.ParameterCount())
}

//export bind_text
func bind_text(stmt *C.sqlite3_stmt, idx C.int, value *C.char, n C.int, destructor unsafe.Pointer) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	if err := s.BindText(int(idx), C.GoString(value)); err != nil {
		return C.int(lsp.SQLITE_RANGE)
	}
	return C.int(lsp.SQLITE_OK)
}

//export bind_double
func bind_double(stmt *C.sqlite3_stmt, idx C.int, value C.double) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	if err := s.BindDouble(int(idx), float64(value)); err != nil {
		return C.int(lsp.SQLITE_RANGE)
	}
	return C.int(lsp.SQLITE_OK)
}

//export bind_int64
func bind_int64(stmt *C.sqlite3_stmt, idx C.int, value C.longlong) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	if err := s.BindInt64(int(idx), int64(value)); err != nil {
		return C.int(lsp.SQLITE_RANGE)
	}
	return C.int(lsp.SQLITE_OK)
}

//export bind_null
func bind_null(stmt *C.sqlite3_stmt, idx C.int) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	if err := s.BindNull(int(idx)); err != nil {
		return C.int(lsp.SQLITE_RANGE)
	}
	return C.int(lsp.SQLITE_OK)
}

//export step
func step(stmt *C.sqlite3_stmt) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	code := lsp.BlockOn(bgCtx, s.Handle().Errors, func(ctx context.Context) (int, error) {
		return s.Step(ctx)
	})
	return C.int(code)
}

//export reset
func reset(stmt *C.sqlite3_stmt) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	_ = s.Reset()
	return C.int(lsp.SQLITE_OK)
}

//export finalize
func finalize(stmt *C.sqlite3_stmt) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_OK)
	}
	_ = s.Finalize()
	freeStmt(stmt)
	return C.int(lsp.SQLITE_OK)
}

//export column_count
func column_count(stmt *C.sqlite3_stmt) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return 0
	}
	return C.int(s.ColumnCount())
}

//export column_name
func column_name(stmt *C.sqlite3_stmt, i C.int) *C.char {
	s := unboxStmt(stmt)
	if s == nil {
		return nil
	}
	return C.CString(s.ColumnName(int(i)))
}

//export column_table_name
func column_table_name(stmt *C.sqlite3_stmt, i C.int) *C.char {
	s := unboxStmt(stmt)
	if s == nil {
		return nil
	}
	return C.CString(s.ColumnTableName(int(i)))
}

//export column_type
func column_type(stmt *C.sqlite3_stmt, i C.int) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return C.int(lsp.SQLITE_NULL)
	}
	return C.int(s.ColumnType(int(i)))
}

//export column_text
func column_text(stmt *C.sqlite3_stmt, i C.int) *C.char {
	s := unboxStmt(stmt)
	if s == nil {
		return nil
	}
	return C.CString(s.ColumnText(int(i)))
}

//export column_double
func column_double(stmt *C.sqlite3_stmt, i C.int) C.double {
	s := unboxStmt(stmt)
	if s == nil {
		return 0
	}
	return C.double(s.ColumnDouble(int(i)))
}

//export column_int64
func column_int64(stmt *C.sqlite3_stmt, i C.int) C.longlong {
	s := unboxStmt(stmt)
	if s == nil {
		return 0
	}
	return C.longlong(s.ColumnInt64(int(i)))
}

//export column_bytes
func column_bytes(stmt *C.sqlite3_stmt, i C.int) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return 0
	}
	return C.int(s.ColumnBytes(int(i)))
}

//export stmt_isexplain
func stmt_isexplain(stmt *C.sqlite3_stmt) C.int {
	s := unboxStmt(stmt)
	if s == nil {
		return 0
	}
	return C.int(s.IsExplain())
}

//export last_insert_rowid
func last_insert_rowid(db *C.sqlite3) C.longlong {
	handle := unboxDB(db)
	if handle == nil {
		return 0
	}
	return C.longlong(handle.LastInsertRowID())
}

//export changes
func changes(db *C.sqlite3) C.int {
	handle := unboxDB(db)
	if handle == nil {
		return 0
	}
	return C.int(handle.Changes())
}

//export get_autocommit
func get_autocommit(db *C.sqlite3) C.int {
	handle := unboxDB(db)
	if handle == nil {
		return 1
	}
	return C.int(handle.GetAutocommit())
}

//export errmsg
func errmsg(db *C.sqlite3) *C.char {
	handle := unboxDB(db)
	if handle == nil {
		return C.CString("")
	}
	msg, _ := handle.Errors.Last()
	return C.CString(msg)
}

//export extended_errcode
func extended_errcode(db *C.sqlite3) C.int {
	handle := unboxDB(db)
	if handle == nil {
		return C.int(lsp.SQLITE_OK)
	}
	_, code := handle.Errors.Last()
	return C.int(code)
}

//export errstr
func errstr(code C.int) *C.char {
	return C.CString(lsp.Errstr(int(code)))
}

//export exec
func exec(db *C.sqlite3, sql *C.char, callback unsafe.Pointer, arg unsafe.Pointer, errOut **C.char) C.int {
	handle := unboxDB(db)
	if handle == nil {
		return C.int(lsp.SQLITE_MISUSE)
	}
	text := C.GoString(sql)
	code := lsp.BlockOn(bgCtx, handle.Errors, func(ctx context.Context) (int, error) {
		return lsp.Exec(ctx, handle, text)
	})
	if code != lsp.SQLITE_DONE && code != lsp.SQLITE_OK && errOut != nil {
		msg, _ := handle.Errors.Last()
		*errOut = C.CString(msg)
	}
	if code == lsp.SQLITE_DONE {
		return C.int(lsp.SQLITE_OK)
	}
	return C.int(code)
}

//export update_hook
func update_hook(db *C.sqlite3, fn unsafe.Pointer, arg unsafe.Pointer) unsafe.Pointer {
	handle := unboxDB(db)
	if handle == nil {
		return nil
	}

	updateHooksMu.Lock()
	prev, hadPrev := updateHooks[handle]
	if fn == nil {
		delete(updateHooks, handle)
	} else {
		updateHooks[handle] = hookRegistration{fn: fn, arg: arg}
	}
	updateHooksMu.Unlock()

	if fn == nil {
		_ = handle.RegisterHook(lsp.HookInsert, nil, nil)
		_ = handle.RegisterHook(lsp.HookUpdate, nil, nil)
		_ = handle.RegisterHook(lsp.HookDelete, nil, nil)
	} else {
		trigger := func(op lsp.HookOp, code C.int) lsp.HookFunc {
			return func(_ any, dbName, tableName string, rowID int64) {
				cdb := C.CString(dbName)
				ctbl := C.CString(tableName)
				defer C.free(unsafe.Pointer(cdb))
				defer C.free(unsafe.Pointer(ctbl))
				C.call_update_hook(C.update_hook_fn(fn), arg, code, cdb, ctbl, C.longlong(rowID))
			}
		}
		_ = handle.RegisterHook(lsp.HookInsert, trigger(lsp.HookInsert, C.int(lsp.SQLITE_INSERT)), nil)
		_ = handle.RegisterHook(lsp.HookUpdate, trigger(lsp.HookUpdate, C.int(lsp.SQLITE_UPDATE)), nil)
		_ = handle.RegisterHook(lsp.HookDelete, trigger(lsp.HookDelete, C.int(lsp.SQLITE_DELETE)), nil)
	}

	if hadPrev {
		return prev.arg
	}
	return nil
}

//export commit_hook
func commit_hook(db *C.sqlite3, fn unsafe.Pointer, arg unsafe.Pointer) unsafe.Pointer {
	handle := unboxDB(db)
	if handle == nil {
		return nil
	}
	commitHooksMu.Lock()
	prev, hadPrev := commitHooks[handle]
	if fn == nil {
		delete(commitHooks, handle)
	} else {
		commitHooks[handle] = hookRegistration{fn: fn, arg: arg}
	}
	commitHooksMu.Unlock()
	if hadPrev {
		return prev.arg
	}
	return nil
}

//export rollback_hook
func rollback_hook(db *C.sqlite3, fn unsafe.Pointer, arg unsafe.Pointer) unsafe.Pointer {
	handle := unboxDB(db)
	if handle == nil {
		return nil
	}
	rollbackHooksMu.Lock()
	prev, hadPrev := rollbackHooks[handle]
	if fn == nil {
		delete(rollbackHooks, handle)
	} else {
		rollbackHooks[handle] = hookRegistration{fn: fn, arg: arg}
	}
	rollbackHooksMu.Unlock()
	if hadPrev {
		return prev.arg
	}
	return nil
}

//export create_function_v2
func create_function_v2(db *C.sqlite3, name *C.char, nArg C.int, eTextRep C.int, app unsafe.Pointer, xFunc, xStep, xFinal, xDestroy unsafe.Pointer) C.int {
	// User-defined functions are explicitly out of scope (spec §1
	// Non-goals); stubbed OK so callers that merely register functions
	// they never expect to be invoked over the pipeline don't fail.
	return C.int(lsp.SQLITE_OK)
}
