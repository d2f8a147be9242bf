package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/killmongerinheret/vinted-watch/internal/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// AddQuery inserts a new saved search. The caller is responsible for
// canonicalizing url first (see internal/catalog.Canonicalize); AddQuery
// enforces uniqueness via the UNIQUE constraint and returns the existing
// row's id on conflict rather than erroring, so repeated calls with the
// same canonical URL are idempotent.
func (s *Store) AddQuery(ctx context.Context, q model.Query) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO queries (url, query_name, thread_id, priority) VALUES (?, ?, ?, ?)`),
		q.URL, q.Name, q.ThreadID, boolParam(q.Priority))
	if err != nil {
		if existing, gerr := s.QueryByURL(ctx, q.URL); gerr == nil {
			return existing.ID, nil
		}
		return 0, fmt.Errorf("add query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		existing, gerr := s.QueryByURL(ctx, q.URL)
		if gerr != nil {
			return 0, fmt.Errorf("add query: resolve id: %w", err)
		}
		return existing.ID, nil
	}
	return id, nil
}

// QueryByURL looks a query up by its canonical URL.
func (s *Store) QueryByURL(ctx context.Context, url string) (model.Query, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, url, COALESCE(query_name,''), thread_id, COALESCE(last_item,0), priority FROM queries WHERE url = ?`), url)
	return scanQuery(row)
}

// Queries returns every saved search, ordered by id.
func (s *Store) Queries(ctx context.Context) ([]model.Query, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, COALESCE(query_name,''), thread_id, COALESCE(last_item,0), priority FROM queries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var out []model.Query
	for rows.Next() {
		q, err := scanQueryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// RemoveQuery deletes a query; ON DELETE CASCADE removes its items.
func (s *Store) RemoveQuery(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM queries WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("remove query: %w", err)
	}
	return nil
}

// RemoveAllQueries clears every saved search and, via cascade, every item.
func (s *Store) RemoveAllQueries(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queries`); err != nil {
		return fmt.Errorf("remove all queries: %w", err)
	}
	return nil
}

// EditQuery updates the mutable admin-facing fields of a query
// (name, thread id, priority) in a single statement.
func (s *Store) EditQuery(ctx context.Context, id int64, name string, threadID *int64, priority bool) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE queries SET query_name = ?, thread_id = ?, priority = ? WHERE id = ?`),
		name, threadID, boolParam(priority), id)
	if err != nil {
		return fmt.Errorf("edit query: %w", err)
	}
	return nil
}

// UpdateThreadID sets the notifier routing key for a query.
func (s *Store) UpdateThreadID(ctx context.Context, id int64, threadID *int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE queries SET thread_id = ? WHERE id = ?`), threadID, id)
	if err != nil {
		return fmt.Errorf("update thread id: %w", err)
	}
	return nil
}

// AdvanceWatermark raises a query's last_item_ts if publishedTS is newer,
// enforcing the monotonically-non-decreasing invariant directly in
// the SQL predicate rather than via a read-modify-write race.
func (s *Store) AdvanceWatermark(ctx context.Context, queryID int64, publishedTS int64) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE queries SET last_item = ? WHERE id = ? AND (last_item IS NULL OR last_item < ?)`),
		publishedTS, queryID, publishedTS)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuery(row *sql.Row) (model.Query, error) {
	return scanQueryAny(row)
}

func scanQueryRows(rows *sql.Rows) (model.Query, error) {
	return scanQueryAny(rows)
}

func scanQueryAny(row rowScanner) (model.Query, error) {
	var (
		q        model.Query
		threadID sql.NullInt64
		priority any
	)
	if err := row.Scan(&q.ID, &q.URL, &q.Name, &threadID, &q.LastItemTS, &priority); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Query{}, ErrNotFound
		}
		return model.Query{}, fmt.Errorf("scan query: %w", err)
	}
	if threadID.Valid {
		v := threadID.Int64
		q.ThreadID = &v
	}
	q.Priority = truthy(priority)
	return q, nil
}

// truthy normalizes the boolean column across dialects: SQLite's driver
// returns it as int64 (0/1), Postgres's as a native bool.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case []byte:
		return len(t) == 1 && (t[0] == '1' || t[0] == 't')
	default:
		return false
	}
}

// boolParam passes a bool straight through: mattn/go-sqlite3 stores it as
// 0/1 in an INTEGER column, pgx stores it natively in a BOOLEAN column.
func boolParam(b bool) bool { return b }
