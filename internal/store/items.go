package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/killmongerinheret/vinted-watch/internal/model"
)

// Soft/hard bounds on stored items.
const (
	SoftItemCap   = 50_000
	ItemCapTarget = 30_000
)

// IsItemKnown reports whether an item id has already been persisted.
// This is the authoritative dedupe check; callers
// may consult a faster, non-authoritative cache first (internal/cache)
// but must always fall back here on a miss.
func (s *Store) IsItemKnown(ctx context.Context, id string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM items WHERE item = ?`), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is item known: %w", err)
	}
	return true, nil
}

// SaveItem persists a newly discovered item atomically, stamping found_ts
// at persistence time. The unique constraint on item id makes this safe
// to call concurrently for the same id: at most one caller wins, and the
// rest observe a (wrapped) unique-violation error, which callers must
// treat as "already known" rather than a hard failure.
func (s *Store) SaveItem(ctx context.Context, it model.Item) (model.Item, error) {
	it.FoundTS = model.Now()

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO items (item, title, price, currency, timestamp, photo_url, brand_title, size_title, found_at, query_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		it.ID, it.Title, it.Price, it.Currency, it.PublishedTS, it.PhotoURL, it.BrandTitle, it.SizeTitle, it.FoundTS, it.QueryID)
	if err != nil {
		return model.Item{}, fmt.Errorf("save item: %w", err)
	}
	return it, nil
}

// ItemsForQuery returns up to limit items for a query, newest first.
func (s *Store) ItemsForQuery(ctx context.Context, queryID int64, limit int) ([]model.Item, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT item, title, price, currency, COALESCE(timestamp,0), COALESCE(photo_url,''),
		       brand_title, size_title, COALESCE(found_at,0), query_id
		FROM items WHERE query_id = ? ORDER BY found_at DESC LIMIT ?`), queryID, limit)
	if err != nil {
		return nil, fmt.Errorf("items for query: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CountItems returns the total number of stored items.
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// EnforceItemCap deletes the oldest items (by found_at) once the total
// exceeds SoftItemCap, bringing the count back down to ItemCapTarget.
func (s *Store) EnforceItemCap(ctx context.Context) (int64, error) {
	total, err := s.CountItems(ctx)
	if err != nil {
		return 0, err
	}
	if total <= SoftItemCap {
		return 0, nil
	}

	excess := total - ItemCapTarget
	res, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM items WHERE item IN (
			SELECT item FROM items ORDER BY found_at ASC LIMIT ?
		)`), excess)
	if err != nil {
		return 0, fmt.Errorf("enforce item cap: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearAllItems deletes every stored item without touching queries.
func (s *Store) ClearAllItems(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("clear all items: %w", err)
	}
	return nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var out []model.Item
	for rows.Next() {
		var (
			it        model.Item
			sizeTitle sql.NullString
		)
		if err := rows.Scan(&it.ID, &it.Title, &it.Price, &it.Currency, &it.PublishedTS,
			&it.PhotoURL, &it.BrandTitle, &sizeTitle, &it.FoundTS, &it.QueryID); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if sizeTitle.Valid {
			v := sizeTitle.String
			it.SizeTitle = &v
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
