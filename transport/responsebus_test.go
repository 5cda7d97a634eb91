package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBus_WaitForAndRespond(t *testing.T) {
	bus := NewResponseBus()
	go func() {
		time.Sleep(10 * time.Millisecond)
		bus.Respond("request_id:1", "hello")
	}()

	v, err := bus.WaitFor(context.Background(), "request_id:1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestResponseBus_TimesOut(t *testing.T) {
	bus := NewResponseBus()
	_, err := bus.WaitFor(context.Background(), "request_id:2", 10*time.Millisecond)
	require.Error(t, err)
}

func TestResponseBus_ContextCanceled(t *testing.T) {
	bus := NewResponseBus()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.WaitFor(ctx, "request_id:3", time.Second)
	require.Error(t, err)
}

func TestResponseBus_RespondWithNoWaiterIsDropped(t *testing.T) {
	bus := NewResponseBus()
	bus.Respond("request_id:unknown", "ignored")
	// No panic, no deadlock: nothing further to assert.
}
