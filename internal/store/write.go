package store

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	upsertSQL = `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	deleteSQL = `DELETE FROM kv WHERE key = ?`
)

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteSQL, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Apply writes every mutation in a single SQLite transaction.
// Either all mutations become visible or none do.
func (s *Store) Apply(ctx context.Context, muts []Mutation) error {
	if len(muts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, m := range muts {
		if err := applyOne(ctx, tx, m); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applyOne(ctx context.Context, tx *sql.Tx, m Mutation) error {
	if m.Delete {
		if _, err := tx.ExecContext(ctx, deleteSQL, m.Key); err != nil {
			return fmt.Errorf("delete %q: %w", m.Key, err)
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, m.Key, m.Value); err != nil {
		return fmt.Errorf("set %q: %w", m.Key, err)
	}
	return nil
}
