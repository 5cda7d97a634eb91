package libsqlproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogStatement_WritesStructuredJSON(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	var buf bytes.Buffer
	db.logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db.loggingEnabled.Store(true)

	db.logStatement(context.Background(), "SELECT 1", 5*time.Millisecond, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test-conn", entry["conn_id"])
	assert.Equal(t, "SELECT 1", entry["sql"])
	assert.Equal(t, "success", entry["status"])
}

func TestLogStatement_SlowThresholdWarns(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	var buf bytes.Buffer
	db.logger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db.loggingEnabled.Store(true)
	db.cfg.Logging.SlowStatementThreshold = time.Millisecond

	db.logStatement(context.Background(), "SELECT 1", 10*time.Millisecond, nil)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
}

func TestLogStatement_DisabledProducesNoOutput(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)

	var buf bytes.Buffer
	db.logger = slog.New(slog.NewJSONHandler(&buf, nil))
	db.loggingEnabled.Store(false)

	db.logStatement(context.Background(), "SELECT 1", time.Millisecond, nil)
	assert.Empty(t, buf.Bytes())
}

func TestEnableLogging_InstallsDefaultLogger(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.logger = nil

	db.EnableLogging(true)
	assert.NotNil(t, db.logger)
}
