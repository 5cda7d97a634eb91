package libsqlproxy

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codekeyz/libsqlite3-turso/transport"
)

const execSuccessBody = `{
	"baton": "b1",
	"results": [{
		"response": {
			"type": "execute",
			"result": {"cols": [{"name": "id"}], "rows": [[{"type": "integer", "value": "1"}]]}
		}
	}]
}`

// newTestDB builds a DB directly against srv, bypassing Open's
// credential-resolution network call.
func newTestDB(t *testing.T, srv *httptest.Server) *DB {
	t.Helper()
	db := &DB{
		id:     "test-conn",
		name:   "test-db",
		Errors: &ErrorStack{},
		cfg:    DefaultConfig(),
		logger: slog.Default(),
	}
	db.activeStrategy.Store(int32(StrategyHTTP))
	db.metrics = newMetrics()

	host := strings.TrimPrefix(srv.URL, "https://")
	db.http = transport.NewHTTPBackend(srv.Client(), host, "tok")
	db.ws = transport.NewWSBackend(host, "tok")
	return db
}

func execHandler(t *testing.T, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func TestDB_GetAutocommit_DefaultsToOne(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	assert.Equal(t, 1, db.GetAutocommit())
}

func TestDB_BeginCommitTransaction(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	require.NoError(t, db.beginTransaction(context.Background(), "BEGIN"))
	assert.Equal(t, 0, db.GetAutocommit())

	_, err := db.commitTransaction(context.Background(), "COMMIT")
	require.NoError(t, err)
	assert.Equal(t, 1, db.GetAutocommit())
}

func TestDB_BeginTransaction_BusyWhenAlreadyActive(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	require.NoError(t, db.beginTransaction(context.Background(), "BEGIN"))
	err := db.beginTransaction(context.Background(), "BEGIN")
	require.Error(t, err)
	se, ok := err.(*SqliteError)
	require.True(t, ok)
	assert.Equal(t, SQLITE_BUSY, se.Code)
}

func TestDB_RollbackLocal_NeverContactsServer(t *testing.T) {
	called := false
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(execSuccessBody))
	}))
	defer srv.Close()
	db := newTestDB(t, srv)

	require.NoError(t, db.beginTransaction(context.Background(), "BEGIN"))
	called = false // ignore the begin call itself

	db.rollbackLocal()
	assert.False(t, called)
	assert.Equal(t, 1, db.GetAutocommit())
}

func TestDB_AbsorbResult(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	rowID := "42"
	written := uint64(3)
	db.absorbResult(transport.Response{
		Baton: "b2",
		Result: transport.ExecuteResult{
			LastInsertRowID: &rowID,
			RowsWritten:     &written,
		},
	})
	assert.Equal(t, int64(42), db.LastInsertRowID())
	assert.Equal(t, uint64(3), db.Changes())
}

func TestDB_Hooks_TriggerOutsideLock(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	var seenTable string
	var seenRowID int64
	require.NoError(t, db.RegisterHook(HookInsert, func(_ any, dbName, tableName string, rowID int64) {
		seenTable = tableName
		seenRowID = rowID
		// Re-registering the same slot from inside the callback would
		// deadlock if the slot lock were still held.
		assert.NoError(t, db.RegisterHook(HookInsert, nil, nil))
	}, nil))

	db.TriggerHook(HookInsert, "users", 7)
	assert.Equal(t, "users", seenTable)
	assert.Equal(t, int64(7), seenRowID)
}

func TestDB_RegisterHook_RejectsUnknownOp(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	err := db.RegisterHook(HookOp(99), nil, nil)
	require.Error(t, err)
}

func TestDB_Send_FallsBackFromWebSocketOnFailure(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.activeStrategy.Store(int32(StrategyWebSocket))

	// No WebSocket server is listening at db.ws's URL, so Send must
	// fail over to HTTP and demote the strategy permanently.
	resp, err := db.send(context.Background(), transport.Request{SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, "b1", resp.Baton)
	assert.Equal(t, int32(StrategyHTTP), db.activeStrategy.Load())
}
