package libsqlproxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/atomic"

	"github.com/codekeyz/libsqlite3-turso/auth"
	"github.com/codekeyz/libsqlite3-turso/transport"
)

const userAgent = "libsqlite3_turso/1.0.0"

// HookOp identifies which write hook slot a registration targets
// (spec §4.6, §6).
type HookOp int

const (
	HookInsert HookOp = iota
	HookUpdate
	HookDelete
)

// HookFunc is a caller-registered write hook. TriggerHook invokes it
// synchronously on the calling goroutine (spec §5). Statement
// execution (Stmt.Step, Exec) does not call TriggerHook, so a
// registered hook runs only when TriggerHook is called.
type HookFunc func(userData any, dbName, tableName string, rowID int64)

type hookSlot struct {
	mu       sync.Mutex
	callback HookFunc
	userData any
}

func (h *hookSlot) set(cb HookFunc, userData any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callback, h.userData = cb, userData
}

// trigger reads the slot under lock, then calls the callback outside
// the lock, matching the "no re-entrancy deadlock" requirement of
// spec §5.
func (h *hookSlot) trigger(dbName, tableName string, rowID int64) {
	h.mu.Lock()
	cb, userData := h.callback, h.userData
	h.mu.Unlock()
	if cb != nil {
		cb(userData, dbName, tableName, rowID)
	}
}

// DB is the Database Handle of spec §3/§4.6: it owns the transport
// bundle, transaction state, hooks, and the most recent execution's
// last-rowid/rows-written, and may be driven concurrently from
// multiple goroutines.
type DB struct {
	id     string
	name   string
	creds  auth.Credentials
	client *http.Client

	http *transport.HTTPBackend
	ws   *transport.WSBackend

	// activeStrategy starts at cfg.Strategy and may fall permanently to
	// StrategyHTTP after a WebSocket transport-level failure (spec
	// §4.2); it is never restored to WebSocket for the handle's
	// lifetime.
	activeStrategy atomic.Int32

	txMu    sync.Mutex
	baton   string
	hasBegan bool

	resultMu        sync.Mutex
	lastInsertRowID *int64
	rowsWritten     *uint64

	hooks [3]hookSlot

	Errors *ErrorStack

	telemetryEnabled atomic.Bool
	metricsEnabled   atomic.Bool
	metrics          *Metrics
	loggingEnabled   atomic.Bool
	logger           *slog.Logger

	cfg Config
}

// Open acquires credentials, builds both transports, and, when the
// active strategy is WebSocket, performs the handshake plus grace
// pause before returning (spec §4.6). One HTTP client serves
// credential resolution and the HTTP backend; the WebSocket backend
// dials with its own websocket dialer and does not use that client.
// Rejects in-memory names outright.
func Open(ctx context.Context, name string, strategy auth.Strategy, cfg Config) (*DB, error) {
	db := &DB{
		id:     uuid.NewString(),
		name:   name,
		Errors: &ErrorStack{},
		cfg:    cfg,
		logger: slog.Default(),
	}
	db.activeStrategy.Store(int32(cfg.Strategy))
	db.loggingEnabled.Store(cfg.Logging.Enabled)
	db.telemetryEnabled.Store(cfg.Telemetry.Enabled)
	db.metricsEnabled.Store(cfg.Metrics.Enabled)
	db.metrics = newMetrics()

	if strings.Contains(name, ":memory") {
		err := NewError(SQLITE_CANTOPEN, "In-memory databases are not supported")
		db.Errors.Push(err.Code, "%s", err.Message)
		return nil, err
	}

	db.client = &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	creds, err := strategy.Resolve(ctx, name, db.client)
	if err != nil {
		wrapped := NewError(SQLITE_CANTOPEN, "failed to resolve credentials: %s", err)
		db.Errors.Push(wrapped.Code, "%s", wrapped.Message)
		return nil, wrapped
	}
	db.creds = creds

	db.http = transport.NewHTTPBackend(db.client, creds.DBURL, creds.DBToken)
	db.http.MaxAttempts = cfg.RetryAttempts
	db.http.BackoffInterval = cfg.RetryInterval
	db.http.UserAgent = userAgent

	db.ws = transport.NewWSBackend(creds.DBURL, creds.DBToken)
	db.ws.BusTimeout = cfg.WSBusTimeout

	if Strategy(db.activeStrategy.Load()) == StrategyWebSocket {
		if err := db.ws.Connect(ctx); err != nil {
			wrapped := NewError(SQLITE_CANTOPEN, "websocket handshake failed: %s", err)
			db.Errors.Push(wrapped.Code, "%s", wrapped.Message)
			return nil, wrapped
		}
		time.Sleep(cfg.WSHandshakeGrace)
	}

	db.logDebug("opened handle", "conn_id", db.id, "name", name, "strategy", db.activeStrategy.Load())
	return db, nil
}

// backend returns the transport currently in effect for db.
func (db *DB) backend() transport.Backend {
	if Strategy(db.activeStrategy.Load()) == StrategyWebSocket {
		return db.ws
	}
	return db.http
}

// send routes req through the active transport, demoting a
// WebSocket handle to HTTP permanently on transport-level failure
// (spec §4.2); server-side {error.message} responses do not trigger a
// strategy change.
func (db *DB) send(ctx context.Context, req transport.Request) (transport.Response, error) {
	if Strategy(db.activeStrategy.Load()) != StrategyWebSocket {
		return db.http.Send(ctx, req)
	}

	resp, err := db.ws.Send(ctx, req)
	if err != nil {
		db.logWarn("websocket transport failed, falling back to http permanently", "conn_id", db.id, "error", err)
		db.activeStrategy.Store(int32(StrategyHTTP))
		return db.http.Send(ctx, req)
	}
	return resp, nil
}

// Close resets any active transaction, best-effort, then releases
// transport resources. Safe to call on a nil *DB.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	db.txMu.Lock()
	db.baton = ""
	db.hasBegan = false
	db.txMu.Unlock()

	if db.ws != nil {
		_ = db.ws.Close()
	}
	return nil
}

// RegisterHook stores cb atomically under op's slot; a nil cb clears
// it (spec §4.6).
func (db *DB) RegisterHook(op HookOp, cb HookFunc, userData any) error {
	if op != HookInsert && op != HookUpdate && op != HookDelete {
		return NewError(SQLITE_MISUSE, "unknown hook operation %d", op)
	}
	db.hooks[op].set(cb, userData)
	return nil
}

// TriggerHook invokes the registered callback for op, if any, outside
// any lock (spec §4.6, §5).
func (db *DB) TriggerHook(op HookOp, tableName string, rowID int64) {
	if op != HookInsert && op != HookUpdate && op != HookDelete {
		return
	}
	db.hooks[op].trigger(db.name, tableName, rowID)
}

// GetAutocommit reports 0 while a transaction begun through BEGIN is
// active and 1 otherwise (spec §8). It reads the in-transaction flag,
// not the stored baton: a baton that absorbResult stores from a reply
// outside a transaction leaves the result at 1.
func (db *DB) GetAutocommit() int {
	db.txMu.Lock()
	defer db.txMu.Unlock()
	if db.hasBegan {
		return 0
	}
	return 1
}

// beginTransaction implements spec §4.7: Busy if already active,
// otherwise fetches a fresh baton from the active transport.
func (db *DB) beginTransaction(ctx context.Context, sql string) error {
	db.txMu.Lock()
	if db.hasBegan {
		db.txMu.Unlock()
		return NewError(SQLITE_BUSY, "A transaction is already active.")
	}
	db.txMu.Unlock()

	baton, err := db.backend().GetTransactionBaton(ctx, sql)
	if err != nil {
		return NewError(SQLITE_ERROR, "%s", err)
	}

	db.txMu.Lock()
	db.baton = baton
	db.hasBegan = true
	db.txMu.Unlock()
	return nil
}

// commitTransaction sends sql (typically COMMIT) through the normal
// execute path, then drops the baton regardless of outcome (spec
// §4.7).
func (db *DB) commitTransaction(ctx context.Context, sql string) (transport.Response, error) {
	db.txMu.Lock()
	if !db.hasBegan {
		db.txMu.Unlock()
		return transport.Response{}, NewError(SQLITE_ERROR, "no transaction is active")
	}
	baton := db.baton
	db.txMu.Unlock()

	resp, err := db.send(ctx, transport.Request{SQL: sql, Baton: baton, InTx: false})

	db.txMu.Lock()
	db.baton = ""
	db.hasBegan = false
	db.txMu.Unlock()

	return resp, err
}

// rollbackLocal clears the baton/flag without contacting the server
// (spec §4.7, §9's open question: the source never transmits
// ROLLBACK; the server-side transaction is left to expire by baton
// timeout).
func (db *DB) rollbackLocal() {
	db.txMu.Lock()
	db.baton = ""
	db.hasBegan = false
	db.txMu.Unlock()
}

// absorbResult applies a transport.Response to the handle's
// last-insert-rowid/rows-written fields (spec §4.7).
func (db *DB) absorbResult(resp transport.Response) {
	if resp.Baton != "" {
		db.txMu.Lock()
		db.baton = resp.Baton
		db.txMu.Unlock()
	}

	db.resultMu.Lock()
	defer db.resultMu.Unlock()
	if resp.Result.LastInsertRowID != nil {
		v, err := strconv.ParseInt(*resp.Result.LastInsertRowID, 10, 64)
		if err != nil {
			v = 0
		}
		db.lastInsertRowID = &v
	}
	if resp.Result.RowsWritten != nil {
		v := *resp.Result.RowsWritten
		db.rowsWritten = &v
	}
}

// LastInsertRowID returns the most recently observed server value, or
// 0 if none has been seen yet.
func (db *DB) LastInsertRowID() int64 {
	db.resultMu.Lock()
	defer db.resultMu.Unlock()
	if db.lastInsertRowID == nil {
		return 0
	}
	return *db.lastInsertRowID
}

// Changes returns the most recently observed rows_written, or 0.
func (db *DB) Changes() uint64 {
	db.resultMu.Lock()
	defer db.resultMu.Unlock()
	if db.rowsWritten == nil {
		return 0
	}
	return *db.rowsWritten
}

func (db *DB) logDebug(msg string, args ...any) {
	if db.loggingEnabled.Load() {
		db.logger.Debug(fmt.Sprintf("libsqlproxy: %s", msg), args...)
	}
}

func (db *DB) logWarn(msg string, args ...any) {
	if db.loggingEnabled.Load() {
		db.logger.Warn(fmt.Sprintf("libsqlproxy: %s", msg), args...)
	}
}
