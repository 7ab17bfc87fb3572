package testutil

import (
	"fmt"
	"sync"
)

// SequentialOpIDs generates "<prefix>-1", "<prefix>-2", ... dispatch ids.
//
// Unlike engine.FixedGenerator it never runs out, so scenarios of any
// length produce byte-identical logs across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialOpIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialOpIDs creates a generator. An empty prefix means "op".
func NewSequentialOpIDs(prefix string) *SequentialOpIDs {
	if prefix == "" {
		prefix = "op"
	}
	return &SequentialOpIDs{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.OpIDGenerator interface.
func (g *SequentialOpIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
