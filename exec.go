package libsqlproxy

import (
	"context"
	"time"
)

// Exec is the one-shot ABI entry point of spec §6: it intercepts the
// BEGIN/COMMIT/ROLLBACK/PRAGMA keywords before normal execution (the
// "thin command dispatch" spec §1 calls out), handling ROLLBACK and
// PRAGMA as purely local operations that never reach the server (spec
// §4.7, §8 scenario 4, §9's open question). Anything else is
// prepared, stepped to completion, and finalized.
func Exec(ctx context.Context, db *DB, sql string) (int, error) {
	switch ClassifyLeadingKeyword(sql) {
	case KeywordRollback:
		db.rollbackLocal()
		db.logTransaction(ctx, "rollback", 0, nil)
		return SQLITE_DONE, nil

	case KeywordBegin:
		start := time.Now()
		err := db.beginTransaction(ctx, sql)
		db.recordTransaction(ctx, time.Since(start), err)
		db.logTransaction(ctx, "begin", time.Since(start), err)
		if err != nil {
			return SQLITE_BUSY, err
		}
		return SQLITE_DONE, nil

	case KeywordCommit:
		start := time.Now()
		_, err := db.commitTransaction(ctx, sql)
		db.recordTransaction(ctx, time.Since(start), err)
		db.logTransaction(ctx, "commit", time.Since(start), err)
		if err != nil {
			return SQLITE_ERROR, err
		}
		return SQLITE_DONE, nil

	case KeywordPragma:
		return SQLITE_DONE, nil

	default:
		stmt, err := Prepare(db, sql)
		if err != nil {
			return SQLITE_ERROR, err
		}
		defer stmt.Finalize()

		for {
			code, err := stmt.Step(ctx)
			if err != nil {
				return code, err
			}
			if code == SQLITE_DONE {
				return SQLITE_DONE, nil
			}
		}
	}
}
