package libsqlproxy

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordStatement_NoopWhenDisabled(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.metricsEnabled.Store(false)

	// Must not panic even though no metric reader is attached.
	db.recordStatement(context.Background(), "other", time.Millisecond, nil)
}

func TestRecordStatement_EnabledRecordsWithoutPanic(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.EnableMetrics(true)

	db.recordStatement(context.Background(), "other", time.Millisecond, nil)
	db.recordTransaction(context.Background(), time.Millisecond, nil)
}

func TestEnableMetrics_LazilyCreatesInstruments(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.metrics = nil

	db.EnableMetrics(true)
	assert.NotNil(t, db.metrics)
}
