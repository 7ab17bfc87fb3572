package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// ErrTxnDone is returned when writing to a committed or discarded Txn.
var ErrTxnDone = errors.New("transaction already committed or discarded")

// Table names. Keys are "<table>/<id>".
const (
	TableMembers   = "members"
	TableCourses   = "courses"
	TableProposals = "proposals"
	TableTokens    = "tokens"
	TableMeta      = "meta"
)

// Key builds the storage key for id in table.
func Key(table, id string) string {
	return table + "/" + id
}

// KV is the opaque key-value primitive.
// Implementations must return ErrNotFound (possibly wrapped) from Get for
// missing keys, and must not retain the value slice passed to Set.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Contains(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Mutation is one staged write. Delete mutations ignore Value.
type Mutation struct {
	Key    string
	Value  []byte
	Delete bool
}

// Batcher is implemented by backends that can apply a write-set atomically.
type Batcher interface {
	Apply(ctx context.Context, muts []Mutation) error
}

// Apply writes muts to kv. Backends implementing Batcher apply them
// atomically; others receive the mutations one at a time in order.
func Apply(ctx context.Context, kv KV, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}
	if b, ok := kv.(Batcher); ok {
		return b.Apply(ctx, muts)
	}
	for _, m := range muts {
		var err error
		if m.Delete {
			err = kv.Delete(ctx, m.Key)
		} else {
			err = kv.Set(ctx, m.Key, m.Value)
		}
		if err != nil {
			return fmt.Errorf("apply %q: %w", m.Key, err)
		}
	}
	return nil
}
