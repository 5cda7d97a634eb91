package libsqlproxy

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/codekeyz/libsqlite3-turso/transport"
)

// StmtState is the execution state machine of spec §4.7.
type StmtState int

const (
	StatePrepared StmtState = iota
	StateExecuting
	StateRow
	StateDone
	StateError
)

// Stmt is the Prepared Statement of spec §3: owned exclusively by its
// caller until Finalize, referencing its parent handle by a
// non-owning pointer (the handle must outlive the statement, per
// spec §9's back-pointer note).
type Stmt struct {
	db  *DB
	sql string

	paramCount int
	tableName  string

	mu          sync.Mutex
	state       StmtState
	errMsg      string
	params      map[int]Value
	columnNames []string
	rows        [][]Value
	cursor      int
}

// Prepare builds a Stmt, inferring its parameter count and (for a
// trivial SELECT) its column names and source table ahead of the
// first Step (spec §4.7, §8 scenario 2).
func Prepare(db *DB, sql string) (*Stmt, error) {
	return &Stmt{
		db:          db,
		sql:         sql,
		paramCount:  CountParameters(sql),
		tableName:   ExtractTableName(sql),
		params:      make(map[int]Value),
		columnNames: InferColumnNames(sql),
		cursor:      -1,
	}, nil
}

// ParameterCount returns the placeholder count found at Prepare time.
func (s *Stmt) ParameterCount() int { return s.paramCount }

// Handle returns the statement's parent Database Handle.
func (s *Stmt) Handle() *DB { return s.db }

func (s *Stmt) bind(index int, v Value) error {
	if index < 1 || index > s.paramCount {
		return NewError(SQLITE_RANGE, "bind index %d out of range [1, %d]", index, s.paramCount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[index] = v
	return nil
}

func (s *Stmt) BindInt64(index int, v int64) error  { return s.bind(index, IntegerValue(v)) }
func (s *Stmt) BindDouble(index int, v float64) error { return s.bind(index, RealValue(v)) }
func (s *Stmt) BindText(index int, v string) error  { return s.bind(index, TextValue(v)) }
func (s *Stmt) BindNull(index int) error            { return s.bind(index, NullValue()) }

// Reset clears bound parameters, the buffered result set, the cursor,
// and the inferred column names, returning to Prepared (spec §4.7,
// §8).
func (s *Stmt) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StatePrepared
	s.errMsg = ""
	s.params = make(map[int]Value)
	s.rows = nil
	s.cursor = -1
	s.columnNames = nil
	return nil
}

// Finalize releases the statement; safe to call more than once.
func (s *Stmt) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = nil
	s.rows = nil
	return nil
}

// Step drives the state machine of spec §4.7.
func (s *Stmt) Step(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePrepared:
		s.state = StateExecuting
		var err error
		switch ClassifyLeadingKeyword(s.sql) {
		case KeywordBegin:
			start := time.Now()
			err = s.db.beginTransaction(ctx, s.sql)
			s.db.recordTransaction(ctx, time.Since(start), err)
			s.db.logTransaction(ctx, "begin", time.Since(start), err)
		case KeywordCommit:
			start := time.Now()
			_, err = s.db.commitTransaction(ctx, s.sql)
			s.db.recordTransaction(ctx, time.Since(start), err)
			s.db.logTransaction(ctx, "commit", time.Since(start), err)
		default:
			err = s.executeStatement(ctx)
		}
		if err != nil {
			s.state = StateError
			s.errMsg = err.Error()
			return errCode(err), err
		}
		if len(s.rows) > 0 {
			s.state = StateRow
			s.cursor = 0
			return SQLITE_ROW, nil
		}
		s.state = StateDone
		return SQLITE_DONE, nil

	case StateRow:
		s.cursor++
		if s.cursor < len(s.rows) {
			return SQLITE_ROW, nil
		}
		s.state = StateDone
		return SQLITE_DONE, nil

	case StateDone:
		return SQLITE_DONE, nil

	case StateError:
		return SQLITE_ERROR, NewError(SQLITE_ERROR, "%s", s.errMsg)

	default:
		return SQLITE_MISUSE, NewError(SQLITE_MISUSE, "step called in unexpected state")
	}
}

// executeStatement converts bound parameters into the ordered JSON
// argument list, sends the request through the handle's active
// transport, and absorbs the response (spec §4.7).
func (s *Stmt) executeStatement(ctx context.Context) error {
	ctx, span := s.db.startSpan(ctx, "step", s.sql)
	start := time.Now()

	indices := make([]int, 0, len(s.params))
	for i := range s.params {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	params := make([]transport.Param, 0, len(indices))
	for _, i := range indices {
		params = append(params, valueToParam(s.params[i]))
	}

	s.db.txMu.Lock()
	baton := s.db.baton
	inTx := s.db.hasBegan
	s.db.txMu.Unlock()

	resp, err := s.db.send(ctx, transport.Request{SQL: s.sql, Params: params, Baton: baton, InTx: inTx})

	duration := time.Since(start)
	s.db.recordStatement(ctx, keywordLabel(ClassifyLeadingKeyword(s.sql)), duration, err)
	s.db.logStatement(ctx, s.sql, duration, err)
	s.db.finishSpan(span, err)

	if err != nil {
		return NewError(SQLITE_ERROR, "%s", err)
	}

	s.db.absorbResult(resp)

	if resp.Result.LastInsertRowID != nil || resp.Result.RowsWritten != nil {
		s.rows = nil
		return nil
	}

	names := make([]string, len(resp.Result.Cols))
	for i, c := range resp.Result.Cols {
		names[i] = c.Name
	}
	if len(names) > 0 {
		s.columnNames = names
	}

	rows := make([][]Value, len(resp.Result.Rows))
	for i, row := range resp.Result.Rows {
		values := make([]Value, len(row))
		for j, cell := range row {
			values[j] = decodeCell(cell)
		}
		rows[i] = values
	}
	s.rows = rows
	return nil
}

func valueToParam(v Value) transport.Param {
	switch v.Kind {
	case KindInteger:
		return transport.IntegerParam(v.Integer)
	case KindReal:
		return transport.RealParam(v.Real)
	case KindText:
		return transport.TextParam(v.Text)
	default:
		return transport.NullParam()
	}
}

// decodeCell decodes one wire cell by its advertised type (spec
// §4.7): integer parses a JSON string or takes a JSON number as i64;
// float/real takes a float64; text takes the string or ""; null or an
// absent value, and any unrecognized type, decode to Null.
func decodeCell(c transport.Cell) Value {
	switch c.Type {
	case "integer":
		switch v := c.Value.(type) {
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return IntegerValue(n)
			}
			return IntegerValue(0)
		case float64:
			return IntegerValue(int64(v))
		default:
			return IntegerValue(0)
		}
	case "float", "real":
		if v, ok := c.Value.(float64); ok {
			return RealValue(v)
		}
		return RealValue(0)
	case "text":
		if v, ok := c.Value.(string); ok {
			return TextValue(v)
		}
		return TextValue("")
	default:
		return NullValue()
	}
}

// current returns the Value at column i of the row the cursor points
// at, or Null if the cursor or column index is out of range.
func (s *Stmt) current(i int) Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor < 0 || s.cursor >= len(s.rows) {
		return NullValue()
	}
	row := s.rows[s.cursor]
	if i < 0 || i >= len(row) {
		return NullValue()
	}
	return row[i]
}

// ColumnCount returns the inferred or server-reported column count.
func (s *Stmt) ColumnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.columnNames)
}

// ColumnName returns the name at index i, or "" if out of range.
func (s *Stmt) ColumnName(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.columnNames) {
		return ""
	}
	return s.columnNames[i]
}

// ColumnTableName is the best-effort regex-derived table name shared
// by every column (spec §4.1, §9): wrong for joins/aliases/subqueries
// by design, not "fixed".
func (s *Stmt) ColumnTableName(int) string { return s.tableName }

func (s *Stmt) ColumnType(i int) int     { return s.current(i).ColumnType() }
func (s *Stmt) ColumnInt64(i int) int64  { return s.current(i).AsInt64() }
func (s *Stmt) ColumnDouble(i int) float64 { return s.current(i).AsFloat64() }
func (s *Stmt) ColumnText(i int) string  { return s.current(i).AsText() }
func (s *Stmt) ColumnBytes(i int) int    { return s.current(i).ByteLen() }

// IsExplain returns 2 for EXPLAIN QUERY PLAN, 1 for EXPLAIN, else 0
// (spec §6).
func (s *Stmt) IsExplain() int {
	upper := strings.ToUpper(strings.TrimSpace(s.sql))
	switch {
	case strings.HasPrefix(upper, "EXPLAIN QUERY PLAN"):
		return 2
	case strings.HasPrefix(upper, "EXPLAIN"):
		return 1
	default:
		return 0
	}
}

// keywordLabel renders a LeadingKeyword for metrics/log attributes.
func keywordLabel(k LeadingKeyword) string {
	switch k {
	case KeywordPragma:
		return "pragma"
	case KeywordBegin:
		return "begin"
	case KeywordCommit:
		return "commit"
	case KeywordRollback:
		return "rollback"
	default:
		return "other"
	}
}
