// Package store is the single persistence abstraction for queries, items,
// parameters and the allowlist. It speaks database/sql against
// either an embedded SQLite file or an external Postgres database,
// selected once at startup, never re-selected at runtime.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect distinguishes the small number of schema/placeholder
// differences between the two backends this module supports.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// Store is the store abstraction injected into every component that
// needs persistence. No component reaches for a package-level global;
// every caller receives a *Store from the Orchestrator.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens a store connection. An empty dsn selects an embedded SQLite
// file at ./data/vinted.db. A dsn beginning with "postgres://" or
// "postgresql://" selects Postgres via pgx's database/sql driver;
// anything else is treated as a SQLite file path.
func Open(dsn string) (*Store, error) {
	driver := "sqlite3"
	dialect := DialectSQLite
	path := dsn

	switch {
	case dsn == "":
		path = "./data/vinted.db"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver = "pgx"
		dialect = DialectPostgres
		path = dsn
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1) // mattn/go-sqlite3 is not safe for concurrent writers
	} else {
		db.SetMaxOpenConns(20)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}

	return &Store{db: db, dialect: dialect}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for components that need ad-hoc queries
// (e.g. the web admin surface's /items listing).
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports which backend is in use.
func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) autoIncrementPK() string {
	if s.dialect == DialectPostgres {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (s *Store) boolType() string {
	if s.dialect == DialectPostgres {
		return "BOOLEAN"
	}
	return "INTEGER" // 0/1
}

// Migrate creates the schema if missing and applies idempotent
// migrations.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS queries (
			id %s,
			url TEXT UNIQUE NOT NULL,
			query_name TEXT,
			last_item BIGINT,
			thread_id BIGINT,
			priority %s NOT NULL DEFAULT 0
		)`, s.autoIncrementPK(), s.boolType()),
		`CREATE TABLE IF NOT EXISTS items (
			item TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			price TEXT NOT NULL,
			currency TEXT NOT NULL,
			timestamp BIGINT,
			photo_url TEXT,
			brand_title TEXT NOT NULL DEFAULT '',
			size_title TEXT,
			found_at BIGINT,
			query_id BIGINT REFERENCES queries(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_timestamp ON items(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_items_query_id ON items(query_id)`,
		`CREATE INDEX IF NOT EXISTS idx_items_found_at ON items(found_at)`,
		`CREATE TABLE IF NOT EXISTS parameters (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS allowlist (
			country CHAR(2) PRIMARY KEY
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w (%s)", err, firstLine(stmt))
		}
	}

	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// placeholder returns the dialect-appropriate bound-parameter marker for
// position n (1-indexed), since pgx requires $1, $2... while sqlite3
// accepts ?.
func (s *Store) placeholder(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// rebind rewrites a query written with "?" placeholders into the
// dialect's native style.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
