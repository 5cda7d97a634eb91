package libsqlproxy

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Enabled            bool          `yaml:"enabled"`
	SlowStatementThreshold time.Duration `yaml:"slow_statement_threshold"`
}

var defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// EnableLogging toggles structured logging for db.
func (db *DB) EnableLogging(enabled bool) {
	if db == nil {
		return
	}
	db.loggingEnabled.Store(enabled)
	if enabled && db.logger == nil {
		db.logger = defaultLogger
	}
}

// SetLogger installs a custom logger.
func (db *DB) SetLogger(logger *slog.Logger) {
	if db == nil {
		return
	}
	db.logger = logger
}

// logStatement logs one statement's execution at the level its
// outcome and duration warrant: slow statements always warn, errors
// log at error, everything else logs at debug (the remote pipeline is
// on the hot path of every foreign call, so info-level would be
// noisy).
func (db *DB) logStatement(ctx context.Context, sql string, duration time.Duration, err error) {
	if db == nil || !db.loggingEnabled.Load() || db.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn_id", db.id),
		slog.String("sql", sql),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs, slog.String("status", "error"), slog.String("error", err.Error()))
	} else {
		attrs = append(attrs, slog.String("status", "success"))
	}

	switch {
	case db.cfg.Logging.SlowStatementThreshold > 0 && duration > db.cfg.Logging.SlowStatementThreshold:
		db.logger.LogAttrs(ctx, slog.LevelWarn, "slow statement detected", attrs...)
	case err != nil:
		db.logger.LogAttrs(ctx, slog.LevelError, "statement executed", attrs...)
	default:
		db.logger.LogAttrs(ctx, slog.LevelDebug, "statement executed", attrs...)
	}
}

// logTransaction logs a begin, commit or rollback transaction event.
func (db *DB) logTransaction(ctx context.Context, event string, duration time.Duration, err error) {
	if db == nil || !db.loggingEnabled.Load() || db.logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("conn_id", db.id),
		slog.String("event", event),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
	}
	if err != nil {
		attrs = append(attrs, slog.String("status", "error"), slog.String("error", err.Error()))
		db.logger.LogAttrs(ctx, slog.LevelError, "transaction event", attrs...)
	} else {
		attrs = append(attrs, slog.String("status", "success"))
		db.logger.LogAttrs(ctx, slog.LevelInfo, "transaction event", attrs...)
	}
}
