package libsqlproxy

import (
	"context"
	"runtime"
	"sync"
)

// bridgeTask is one unit of work submitted to the async bridge.
type bridgeTask struct {
	ctx  context.Context
	fn   func(ctx context.Context) (int, error)
	done chan bridgeResult
}

type bridgeResult struct {
	code int
	err  error
}

// bridge is the process-wide worker pool of spec §4.8: lazily
// initialized on first use, sized to the available CPU cores.
type bridge struct {
	tasks chan bridgeTask
}

var (
	bridgeOnce sync.Once
	theBridge  *bridge
)

func getBridge() *bridge {
	bridgeOnce.Do(func() {
		workers := runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
		b := &bridge{tasks: make(chan bridgeTask)}
		for i := 0; i < workers; i++ {
			go b.run()
		}
		theBridge = b
	})
	return theBridge
}

func (b *bridge) run() {
	for t := range b.tasks {
		code, err := t.fn(t.ctx)
		t.done <- bridgeResult{code: code, err: err}
	}
}

// BlockOn is the single narrow entry point every foreign-facing
// function calls exactly once (spec §9): it submits fn to the
// process-wide worker pool and blocks the calling thread until fn
// completes, pushing any returned error onto errs before returning
// the integer result code (spec §4.8).
func BlockOn(ctx context.Context, errs *ErrorStack, fn func(ctx context.Context) (int, error)) int {
	done := make(chan bridgeResult, 1)
	getBridge().tasks <- bridgeTask{ctx: ctx, fn: fn, done: done}
	r := <-done
	if r.err != nil && errs != nil {
		errs.PushErr(r.code, r.err)
	}
	return r.code
}
