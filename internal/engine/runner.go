package engine

import (
	"context"
)

// Runner serializes commands onto a single goroutine.
//
// Hosts that serve concurrent requests Submit commands from any goroutine;
// Run executes them one at a time in FIFO order, preserving the engine's
// single-writer assumption.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Runner struct {
	engine *Engine
	queue  *requestQueue
}

// NewRunner creates a runner for e. Call Run before submitting.
func NewRunner(e *Engine) *Runner {
	return &Runner{engine: e, queue: newRequestQueue()}
}

// Submit enqueues cmd and waits for its result.
// Returns ErrStopped if the runner is stopped before the command runs, or
// ctx.Err() if ctx ends first. A command that has started still runs to
// completion (its context values are kept, its cancellation is not), so a
// disconnecting client never interrupts a write halfway.
func (r *Runner) Submit(ctx context.Context, call Call, cmd Command) (any, error) {
	req := request{ctx: ctx, call: call, cmd: cmd, reply: make(chan response, 1)}
	if !r.queue.Enqueue(req) {
		return nil, ErrStopped
	}
	select {
	case resp := <-req.reply:
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run processes submitted commands until ctx is cancelled or Stop is called.
// Pending requests are answered with ErrStopped on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.engine.logger.Info("engine runner starting")

	for {
		req, ok := r.queue.TryDequeue()
		if ok {
			r.execute(req)
			continue
		}

		select {
		case <-ctx.Done():
			r.engine.logger.Info("engine runner stopping: context cancelled")
			r.drain()
			return ctx.Err()

		case _, open := <-r.queue.Wait():
			// The signal channel closes when the queue is closed.
			if !open && r.queue.Len() == 0 {
				r.engine.logger.Info("engine runner stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it notices.
func (r *Runner) Stop() {
	r.drain()
}

func (r *Runner) drain() {
	for _, req := range r.queue.Close() {
		req.reply <- response{err: ErrStopped}
	}
}

func (r *Runner) execute(req request) {
	// Skip work whose submitter already gave up.
	if err := req.ctx.Err(); err != nil {
		req.reply <- response{err: err}
		return
	}
	defer func() {
		if v := recover(); v != nil {
			r.engine.logger.Error("command panicked", "op", req.cmd.Name(), "panic", v)
			req.reply <- response{err: &PanicError{Op: req.cmd.Name(), Value: v}}
		}
	}()
	// Once started, a command runs to commit or rollback even if the
	// submitter stops waiting.
	ctx := context.WithoutCancel(req.ctx)
	result, err := r.engine.Dispatch(ctx, req.call, req.cmd)
	req.reply <- response{result: result, err: err}
}
