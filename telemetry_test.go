package libsqlproxy

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartSpan_DisabledReturnsNoopSpan(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.telemetryEnabled.Store(false)

	ctx, span := db.startSpan(context.Background(), "step", "SELECT 1")
	assert.NotNil(t, ctx)
	db.finishSpan(span, nil)
}

func TestStartSpan_EnabledProducesSpan(t *testing.T) {
	srv := httptest.NewTLSServer(execHandler(t, execSuccessBody))
	defer srv.Close()
	db := newTestDB(t, srv)
	db.EnableTelemetry(true)

	ctx, span := db.startSpan(context.Background(), "step", "SELECT 1")
	assert.NotNil(t, ctx)
	db.finishSpan(span, nil)
}

func TestEnableTelemetry_NilReceiverSafe(t *testing.T) {
	var db *DB
	db.EnableTelemetry(true)
}
