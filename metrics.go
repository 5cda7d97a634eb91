package libsqlproxy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const metricsInstrumentationName = "github.com/codekeyz/libsqlite3-turso"

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Metrics holds the instruments this proxy reports: statement
// execution counts/durations and transaction begin/commit counts,
// mirroring the teacher's query/transaction split without the
// connection-pool metrics that have no analog here.
type Metrics struct {
	statementsTotal    metric.Int64Counter
	statementDuration  metric.Float64Histogram
	transactionsTotal  metric.Int64Counter
	transactionDuration metric.Float64Histogram
}

var defaultMeter = otel.Meter(metricsInstrumentationName)

func newMetrics() *Metrics {
	m := &Metrics{}
	m.statementsTotal, _ = defaultMeter.Int64Counter(
		"libsqlproxy_statements_total",
		metric.WithDescription("Total number of statements executed against the remote pipeline"),
	)
	m.statementDuration, _ = defaultMeter.Float64Histogram(
		"libsqlproxy_statement_duration_seconds",
		metric.WithDescription("Duration of remote statement execution"),
		metric.WithUnit("s"),
	)
	m.transactionsTotal, _ = defaultMeter.Int64Counter(
		"libsqlproxy_transactions_total",
		metric.WithDescription("Total number of transaction begin and commit calls"),
	)
	m.transactionDuration, _ = defaultMeter.Float64Histogram(
		"libsqlproxy_transaction_duration_seconds",
		metric.WithDescription("Duration of one begin_transaction or commit_transaction call"),
		metric.WithUnit("s"),
	)
	return m
}

// EnableMetrics toggles metrics collection for db.
func (db *DB) EnableMetrics(enabled bool) {
	if db == nil {
		return
	}
	db.metricsEnabled.Store(enabled)
	if enabled && db.metrics == nil {
		db.metrics = newMetrics()
	}
}

// recordStatement records one statement's execution outcome.
func (db *DB) recordStatement(ctx context.Context, keyword string, duration time.Duration, err error) {
	if db == nil || !db.metricsEnabled.Load() || db.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("keyword", keyword),
		attribute.String("status", status),
	}
	db.metrics.statementsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	db.metrics.statementDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// recordTransaction records the outcome and duration of one begin or
// commit call.
func (db *DB) recordTransaction(ctx context.Context, duration time.Duration, err error) {
	if db == nil || !db.metricsEnabled.Load() || db.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := []attribute.KeyValue{attribute.String("status", status)}
	db.metrics.transactionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	db.metrics.transactionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
