package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialOpIDs_Sequence(t *testing.T) {
	g := NewSequentialOpIDs("")
	assert.Equal(t, "op-1", g.Generate())
	assert.Equal(t, "op-2", g.Generate())

	custom := NewSequentialOpIDs("scenario")
	assert.Equal(t, "scenario-1", custom.Generate())
}

func TestSequentialOpIDs_Concurrent(t *testing.T) {
	g := NewSequentialOpIDs("op")
	const goroutines = 100

	ids := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestAccountAndCourseHelpers(t *testing.T) {
	assert.Equal(t, Account("alice"), Account("@Alice"))
	assert.NotEqual(t, Account("alice"), Account("bob"))
	assert.Equal(t, Course("C1"), Course("C1"))
}
