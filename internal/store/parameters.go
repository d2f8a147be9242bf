package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Parameter returns a configuration value, or ("", false) if unset.
func (s *Store) Parameter(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM parameters WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get parameter %s: %w", key, err)
	}
	return value, true, nil
}

// SetParameter upserts a configuration value.
func (s *Store) SetParameter(ctx context.Context, key, value string) error {
	if s.dialect == DialectPostgres {
		_, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO parameters (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`), key, value)
		if err != nil {
			return fmt.Errorf("set parameter %s: %w", key, err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO parameters (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`), key, value)
	if err != nil {
		return fmt.Errorf("set parameter %s: %w", key, err)
	}
	return nil
}

// Parameters returns every configured key/value pair.
func (s *Store) Parameters(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM parameters`)
	if err != nil {
		return nil, fmt.Errorf("list parameters: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan parameter: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}
