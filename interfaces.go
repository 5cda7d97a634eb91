package libsqlproxy

// Handle is the subset of Database Handle operations an embedding
// application drives directly, mirroring the teacher's compile-time
// interface-satisfaction pattern (spec §4.6).
type Handle interface {
	RegisterHook(op HookOp, cb HookFunc, userData any) error
	GetAutocommit() int
	LastInsertRowID() int64
	Changes() uint64
	Close() error
}

// Ensure DB satisfies Handle at compile time.
var _ Handle = (*DB)(nil)
