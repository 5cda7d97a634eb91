package libsqlproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountParameters(t *testing.T) {
	cases := []struct {
		sql  string
		want int
	}{
		{"SELECT * FROM t WHERE id = ?", 1},
		{"SELECT * FROM t WHERE id = ?1 AND name = ?2", 2},
		{"SELECT * FROM t WHERE id = :id AND name = @name", 2},
		{"SELECT * FROM t WHERE id = $id", 1},
		{"SELECT 1", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CountParameters(tc.sql), tc.sql)
	}
}

func TestClassifyLeadingKeyword(t *testing.T) {
	cases := []struct {
		sql  string
		want LeadingKeyword
	}{
		{"  begin transaction", KeywordBegin},
		{"COMMIT", KeywordCommit},
		{"rollback;", KeywordRollback},
		{"PRAGMA journal_mode", KeywordPragma},
		{"SELECT 1", KeywordOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyLeadingKeyword(tc.sql), tc.sql)
	}
}

func TestExtractTableName(t *testing.T) {
	assert.Equal(t, "users", ExtractTableName("SELECT id FROM users WHERE id = 1"))
	assert.Equal(t, "", ExtractTableName("PRAGMA journal_mode"))
}

func TestInferColumnNames(t *testing.T) {
	assert.Equal(t, []string{"id", "name"}, InferColumnNames("SELECT id, name FROM users"))
	assert.Nil(t, InferColumnNames("INSERT INTO users (id) VALUES (1)"))
	assert.Nil(t, InferColumnNames("SELECT 1"))
}
