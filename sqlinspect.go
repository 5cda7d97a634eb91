package libsqlproxy

import (
	"regexp"
	"strings"
)

// paramPattern matches any of the five placeholder shapes the remote
// service accepts: anonymous/numbered "?"/"?N", or named ":name",
// "@name", "$name" (spec §4.1). No SQL-aware comment/string stripping
// is performed, matching the source's lexical-only behavior.
var paramPattern = regexp.MustCompile(`(?:\?\d*|[:@$][A-Za-z_]\w*)`)

// CountParameters returns the number of lexical placeholder matches
// anywhere in sql.
func CountParameters(sql string) int {
	return len(paramPattern.FindAllStringIndex(sql, -1))
}

// LeadingKeyword classifies the leading statement keyword.
type LeadingKeyword int

const (
	KeywordOther LeadingKeyword = iota
	KeywordPragma
	KeywordBegin
	KeywordCommit
	KeywordRollback
)

// ClassifyLeadingKeyword matches the first non-whitespace token,
// case-insensitive, as a prefix (so "BEGIN TRANSACTION" counts as
// Begin) against the four recognized keywords (spec §4.1).
func ClassifyLeadingKeyword(sql string) LeadingKeyword {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "PRAGMA"):
		return KeywordPragma
	case strings.HasPrefix(upper, "BEGIN"):
		return KeywordBegin
	case strings.HasPrefix(upper, "COMMIT"):
		return KeywordCommit
	case strings.HasPrefix(upper, "ROLLBACK"):
		return KeywordRollback
	default:
		return KeywordOther
	}
}

// tablePattern extracts the first identifier following FROM (spec
// §4.1); best-effort, wrong for joins/aliases/subqueries by design
// (spec §9's open question — kept as-is, not "fixed").
var tablePattern = regexp.MustCompile(`(?i)FROM\s+([A-Za-z_][A-Za-z0-9_]*)`)

// ExtractTableName returns the first identifier following FROM, or
// "" if none is found.
func ExtractTableName(sql string) string {
	m := tablePattern.FindStringSubmatch(sql)
	if m == nil {
		return ""
	}
	return m[1]
}

var (
	selectPattern = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+FROM\s`)
)

// InferColumnNames trivially parses a SELECT's column list so a
// Prepared Statement can answer column_count/column_name before the
// first step (spec §3, §8 scenario 2): split the text between SELECT
// and FROM on every comma. Commas inside parentheses are not told
// apart, so a column such as coalesce(a, b) yields two names.
// Non-SELECT statements, or a SELECT with no FROM, yield nil.
func InferColumnNames(sql string) []string {
	m := selectPattern.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, strings.TrimSpace(p))
	}
	return names
}
