package libsqlproxy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStack_LastOnEmpty(t *testing.T) {
	s := &ErrorStack{}
	msg, code := s.Last()
	assert.Equal(t, "", msg)
	assert.Equal(t, SQLITE_OK, code)
}

func TestErrorStack_PushAndLast(t *testing.T) {
	s := &ErrorStack{}
	s.Push(SQLITE_BUSY, "attempt %d", 1)
	s.Push(SQLITE_ERROR, "boom")
	msg, code := s.Last()
	assert.Equal(t, "boom", msg)
	assert.Equal(t, SQLITE_ERROR, code)
}

func TestErrorStack_PushErrIgnoresNil(t *testing.T) {
	s := &ErrorStack{}
	s.PushErr(SQLITE_ERROR, nil)
	_, code := s.Last()
	assert.Equal(t, SQLITE_OK, code)

	s.PushErr(SQLITE_ERROR, errors.New("failed"))
	msg, code := s.Last()
	assert.Equal(t, "failed", msg)
	assert.Equal(t, SQLITE_ERROR, code)
}

func TestErrstr(t *testing.T) {
	assert.Equal(t, "Successful result", Errstr(SQLITE_OK))
	assert.Equal(t, "Unknown error code", Errstr(9999))
}
