package libsqlproxy

import (
	"context"
	"time"
)

// HealthStatus is a single round-trip's outcome, trimmed from the
// teacher's connection-pool-shaped report down to what a stateless
// remote handle can actually observe: whether the pipeline answered
// and how long it took (spec §4.2's transport abstraction has no
// notion of idle/active connection counts, unlike a local pool).
type HealthStatus struct {
	Healthy      bool
	LastChecked  time.Time
	ResponseTime time.Duration
	Strategy     Strategy
	Err          error
}

// Ping issues a trivial SELECT through the active transport and
// reports whether it succeeded. There is no background monitoring
// loop: spec §4.4's reconnection model is lazy-on-send only, so a
// health check is just one more send, not a standing probe (spec §9).
func (db *DB) Ping(ctx context.Context) error {
	_, err := Exec(ctx, db, "SELECT 1")
	return err
}

// SelfCheck is Ping plus a timestamped, timed report.
func (db *DB) SelfCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	err := db.Ping(ctx)
	status := &HealthStatus{
		Healthy:      err == nil,
		LastChecked:  start,
		ResponseTime: time.Since(start),
		Strategy:     Strategy(db.activeStrategy.Load()),
		Err:          err,
	}
	return status, err
}
