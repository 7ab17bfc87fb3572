package store

import (
	"context"
	"slices"
)

// Txn stages writes over a base KV.
//
// Reads see the staged writes first and fall through to the base.
// Nothing reaches the base until Commit, which hands the whole write-set
// to Apply in the order keys were first touched. Discarding a Txn (or
// simply dropping it) leaves the base unchanged.
//
// A Txn is not safe for concurrent use.
type Txn struct {
	base   KV
	staged map[string]Mutation
	order  []string
	done   bool
}

// Begin starts a new staging overlay on base.
func Begin(base KV) *Txn {
	return &Txn{base: base, staged: make(map[string]Mutation)}
}

var _ KV = (*Txn)(nil)

func (t *Txn) Get(ctx context.Context, key string) ([]byte, error) {
	if m, ok := t.staged[key]; ok {
		if m.Delete {
			return nil, ErrNotFound
		}
		return slices.Clone(m.Value), nil
	}
	return t.base.Get(ctx, key)
}

func (t *Txn) Contains(ctx context.Context, key string) (bool, error) {
	if m, ok := t.staged[key]; ok {
		return !m.Delete, nil
	}
	return t.base.Contains(ctx, key)
}

func (t *Txn) Set(_ context.Context, key string, value []byte) error {
	if t.done {
		return ErrTxnDone
	}
	t.stage(Mutation{Key: key, Value: slices.Clone(value)})
	return nil
}

func (t *Txn) Delete(_ context.Context, key string) error {
	if t.done {
		return ErrTxnDone
	}
	t.stage(Mutation{Key: key, Delete: true})
	return nil
}

func (t *Txn) stage(m Mutation) {
	if _, seen := t.staged[m.Key]; !seen {
		t.order = append(t.order, m.Key)
	}
	t.staged[m.Key] = m
}

// Mutations returns the staged write-set, one entry per key, in first-touch order.
func (t *Txn) Mutations() []Mutation {
	muts := make([]Mutation, 0, len(t.order))
	for _, k := range t.order {
		muts = append(muts, t.staged[k])
	}
	return muts
}

// Dirty reports whether any write has been staged.
func (t *Txn) Dirty() bool {
	return len(t.order) > 0
}

// Commit applies the staged write-set to the base and closes the Txn.
func (t *Txn) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	return Apply(ctx, t.base, t.Mutations())
}

// Discard drops every staged write and closes the Txn.
func (t *Txn) Discard() {
	t.done = true
	t.staged = make(map[string]Mutation)
	t.order = nil
}
