package libsqlproxy

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/codekeyz/libsqlite3-turso"
	instrumentationVersion = "v0.1.0"
)

// TelemetryConfig mirrors the teacher's telemetry knob: off by
// default, toggled per handle.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

var tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))

// EnableTelemetry enables or disables OpenTelemetry tracing for db.
func (db *DB) EnableTelemetry(enabled bool) {
	if db == nil {
		return
	}
	db.telemetryEnabled.Store(enabled)
}

// startSpan creates a span named libsqlproxy.<operation> for one
// statement execution, tagged with the operation name and the SQL
// text.
func (db *DB) startSpan(ctx context.Context, operation, sql string) (context.Context, trace.Span) {
	if db == nil || !db.telemetryEnabled.Load() {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := tracer.Start(ctx, fmt.Sprintf("libsqlproxy.%s", operation))
	span.SetAttributes(
		attribute.String("db.system", "libsql_pipeline"),
		attribute.String("db.operation", operation),
		attribute.String("db.statement", sql),
	)
	return ctx, span
}

func (db *DB) finishSpan(span trace.Span, err error) {
	if db == nil || !db.telemetryEnabled.Load() {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
