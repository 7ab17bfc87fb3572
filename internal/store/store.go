package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version.
//
//	1 - kv table
const schemaVersion = 1

// pragmas are applied to every connection Open makes.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Tables lists every logical table kept in the kv table.
var Tables = []string{TableMembers, TableCourses, TableProposals, TableTokens, TableMeta}

// Store is the SQLite-backed KV backend.
// Every logical table shares one kv table, keyed "<table>/<id>".
type Store struct {
	db *sql.DB
}

// Open creates or opens the school database at path.
//
// The database runs in WAL mode with NORMAL synchronous writes and a
// 5-second busy timeout. Opening an existing database is a no-op apart
// from the version check. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and a ":memory:"
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initialize(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, schemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

var (
	_ KV      = (*Store)(nil)
	_ Batcher = (*Store)(nil)
)

// Count returns the number of keys stored in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	var n int
	// '0' sorts right after '/', so the range covers exactly "<table>/...".
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv WHERE key >= ? AND key < ?`,
		table+"/", table+"0").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// Stats counts the keys of every table in Tables.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int, len(Tables))
	for _, table := range Tables {
		n, err := s.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		stats[table] = n
	}
	return stats, nil
}
