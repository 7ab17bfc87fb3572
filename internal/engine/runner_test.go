package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
)

func startRunner(t *testing.T, e *Engine) (*Runner, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(e)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return r, cancel, done
}

func TestRunner_SubmitReturnsResult(t *testing.T) {
	e := newSchool(t, 5)
	r, _, _ := startRunner(t, e.Engine)
	ctx := context.Background()

	_, err := r.Submit(ctx, as(alice), RegisterToCourse{Course: c1})
	require.NoError(t, err)

	res, err := r.Submit(ctx, as(alice), GetOwnRegistrations{})
	require.NoError(t, err)
	assert.Equal(t, []ir.RegistrationToken{tok(alice, c1)}, res)

	_, err = r.Submit(ctx, as(alice), RegisterToCourse{Course: c1})
	assert.ErrorIs(t, err, ir.ErrAlreadyRegistered)
}

func TestRunner_SerializesConcurrentSubmits(t *testing.T) {
	e := newSchool(t, 2)
	r, _, _ := startRunner(t, e.Engine)
	ctx := context.Background()

	// Three students race for two seats: exactly one must lose.
	var wg sync.WaitGroup
	errs := make(chan error, len(students))
	for _, s := range students {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Submit(ctx, as(s), RegisterToCourse{Course: c1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	full := 0
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ir.ErrCourseCapacityFull)
			full++
		}
	}
	assert.Equal(t, 1, full)
	assert.Len(t, e.roster(t, c1), 2)
}

func TestRunner_StopRejectsNewSubmits(t *testing.T) {
	e := newTestEngine(t)
	r, _, done := startRunner(t, e.Engine)

	r.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	_, err := r.Submit(context.Background(), as(alice), IsMember{Account: alice})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRunner_ContextCancelStopsRun(t *testing.T) {
	e := newTestEngine(t)
	_, cancel, done := startRunner(t, e.Engine)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_SubmitHonorsCallerContext(t *testing.T) {
	e := newTestEngine(t)
	r := NewRunner(e.Engine) // never started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Submit(ctx, as(alice), IsMember{Account: alice})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_RecoversPanics(t *testing.T) {
	e := newTestEngine(t, WithOpIDGenerator(NewFixedGenerator()))
	r, _, _ := startRunner(t, e.Engine)

	_, err := r.Submit(context.Background(), as(alice), IsMember{Account: alice})
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "is_school_member", pe.Op)
}

// gatedKV blocks the first Get until released, then fails reads and writes
// whose context has ended, as the SQLite backend does.
type gatedKV struct {
	store.KV
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedKV(base store.KV) *gatedKV {
	return &gatedKV{KV: base, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedKV) Get(ctx context.Context, key string) ([]byte, error) {
	g.once.Do(func() {
		close(g.started)
		<-g.release
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.KV.Get(ctx, key)
}

func (g *gatedKV) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.KV.Set(ctx, key, value)
}

func TestRunner_StartedCommandOutlivesSubmitter(t *testing.T) {
	e := newSchool(t, 5)
	gate := newGatedKV(e.kv)
	e.Engine.kv = gate
	r, _, _ := startRunner(t, e.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := r.Submit(ctx, as(alice), RegisterToCourse{Course: c1})
		errs <- err
	}()

	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("command never started")
	}
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)
	close(gate.release)

	// The runner finishes the abandoned command before the next one.
	res, err := r.Submit(context.Background(), as(alice), GetOwnRegistrations{})
	require.NoError(t, err)
	assert.Equal(t, []ir.RegistrationToken{tok(alice, c1)}, res)
}
