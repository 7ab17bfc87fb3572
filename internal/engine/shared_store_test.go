package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/courseswap/internal/ir"
	"github.com/roach88/courseswap/internal/store"
	"github.com/roach88/courseswap/internal/testutil"
)

// openShared opens an engine on the database at path, as a separate process
// would. A cached engine puts a never-expiring read cache in front.
func openShared(t *testing.T, path string, cached bool) *Engine {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var kv store.KV = st
	if cached {
		kv = store.NewCached(st, 0)
	}
	return New(kv,
		WithClock(testutil.NewManualClock(testutil.Epoch)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestEngine_CachedHostSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "school.db")
	cli := openShared(t, path, false)
	server := openShared(t, path, true)

	require.NoError(t, cli.Init(ctx, as(principal), principal))
	require.NoError(t, cli.Admit(ctx, as(principal), turing, ir.RoleTeacher))
	require.NoError(t, cli.Admit(ctx, as(principal), alice, ir.RoleStudent))
	_, err := cli.CreateCourse(ctx, as(turing), CreateCourse{Course: c1, Capacity: 1, StartDate: courseStart})
	require.NoError(t, err)
	require.NoError(t, cli.RegisterToCourse(ctx, as(alice), c1))

	// The server caches alice's tokens.
	tokens, err := server.GetOwnRegistrations(ctx, as(alice))
	require.NoError(t, err)
	assert.Equal(t, []ir.RegistrationToken{tok(alice, c1)}, tokens)

	// The CLI escrows her only seat behind the server's back.
	require.NoError(t, cli.ProposeSwap(ctx, as(alice), c1))

	// Proposing again through the server must not reuse the cached token.
	err = server.ProposeSwap(ctx, as(alice), c1)
	assert.ErrorIs(t, err, ir.ErrNoSwappableRegistrations)

	proposals, err := cli.GetProposedSwaps(ctx, c1)
	require.NoError(t, err)
	assert.Len(t, proposals, 1, "one seat backs one proposal")
}

func TestEngine_QueriesReadThroughCache(t *testing.T) {
	kv := store.NewCached(store.NewMemory(), 0)
	e := New(kv)

	for _, cmd := range []Command{GetCourse{Course: c1}, GetOwnRegistrations{}} {
		assert.Same(t, kv, e.source(cmd), cmd.Name())
	}
	for _, cmd := range []Command{ProposeSwap{Course: c1}, AcceptCounterOffer{}} {
		_, cached := e.source(cmd).(*store.Cached)
		assert.False(t, cached, cmd.Name())
	}
}
