// Package libsqlproxy is a drop-in replacement for the standard
// embedded SQL library's dynamic-link surface: it exposes the same
// C-callable entry points (open, prepare, bind, step, column
// read-out, exec, finalize, close, hooks, transaction control) but
// forwards every statement to a remote SQL-over-HTTP/WebSocket
// database service instead of executing against a local file.
//
// # Overview
//
// The package owns the client-side execution engine: the prepared
// statement state machine, the parameter and result-row model, the
// transaction/baton protocol, and a dual-transport proxy (an HTTP
// pipeline plus a persistent WebSocket) that multiplexes requests,
// correlates responses, retries, and reconnects. The foreign-function
// entry layer, credential acquisition, process-level logging
// destinations, and the outer command dispatcher are external
// collaborators that consume this package's types.
//
// # Quick start
//
//	ctx := context.Background()
//	db, err := libsqlproxy.Open(ctx, "my-db", auth.ResolveStrategy(), libsqlproxy.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	stmt, err := libsqlproxy.Prepare(db, "SELECT id FROM users WHERE name = ?1")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer stmt.Finalize()
//
//	stmt.BindText(1, "Alice")
//	for {
//		code, err := stmt.Step(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//		if code == libsqlproxy.SQLITE_DONE {
//			break
//		}
//		log.Println(stmt.ColumnInt64(0))
//	}
//
// # Observability
//
// DB.EnableTelemetry wires OpenTelemetry spans around each statement;
// DB.EnableMetrics records statement/transaction counters and
// durations; DB.EnableLogging/SetLogger attach structured slog output.
// All three are off or minimal by default and toggled independently.
package libsqlproxy

// Version returns the package version.
func Version() string { return "v0.1.0" }
