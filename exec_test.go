package libsqlproxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExec_Rollback_NeverContactsServer(t *testing.T) {
	called := false
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(execSuccessBody))
	}))
	defer srv.Close()
	db := newTestDB(t, srv)

	require.NoError(t, db.beginTransaction(context.Background(), "BEGIN"))
	called = false

	code, err := Exec(context.Background(), db, "ROLLBACK")
	require.NoError(t, err)
	assert.Equal(t, SQLITE_DONE, code)
	assert.False(t, called)
	assert.Equal(t, 1, db.GetAutocommit())
}

func TestExec_BeginCommit(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	code, err := Exec(context.Background(), db, "BEGIN")
	require.NoError(t, err)
	assert.Equal(t, SQLITE_DONE, code)
	assert.Equal(t, 0, db.GetAutocommit())

	code, err = Exec(context.Background(), db, "COMMIT")
	require.NoError(t, err)
	assert.Equal(t, SQLITE_DONE, code)
	assert.Equal(t, 1, db.GetAutocommit())
}

func TestExec_SimpleStatement(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	code, err := Exec(context.Background(), db, "SELECT id FROM users")
	require.NoError(t, err)
	assert.Equal(t, SQLITE_DONE, code)
}

func TestExec_Pragma_NeverContactsServer(t *testing.T) {
	called := false
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(execSuccessBody))
	}))
	defer srv.Close()
	db := newTestDB(t, srv)

	code, err := Exec(context.Background(), db, "PRAGMA foreign_keys=ON")
	require.NoError(t, err)
	assert.Equal(t, SQLITE_DONE, code)
	assert.False(t, called)
}

func TestExec_CommitWithNoActiveTransactionFails(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	code, err := Exec(context.Background(), db, "COMMIT")
	require.Error(t, err)
	assert.Equal(t, SQLITE_ERROR, code)
}
