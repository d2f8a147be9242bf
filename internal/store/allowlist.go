package store

import (
	"context"
	"fmt"
	"strings"
)

// Allowlist returns the configured set of permitted seller country codes.
// An empty result means "all allowed".
func (s *Store) Allowlist(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT country FROM allowlist ORDER BY country`)
	if err != nil {
		return nil, fmt.Errorf("list allowlist: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan allowlist entry: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddCountry adds a country code to the allowlist, idempotently.
func (s *Store) AddCountry(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return fmt.Errorf("invalid ISO 3166-1 alpha-2 code: %q", code)
	}
	if s.dialect == DialectPostgres {
		_, err := s.db.ExecContext(ctx, s.rebind(
			`INSERT INTO allowlist (country) VALUES (?) ON CONFLICT (country) DO NOTHING`), code)
		if err != nil {
			return fmt.Errorf("add country: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT OR IGNORE INTO allowlist (country) VALUES (?)`), code)
	if err != nil {
		return fmt.Errorf("add country: %w", err)
	}
	return nil
}

// RemoveCountry removes a country code from the allowlist.
func (s *Store) RemoveCountry(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM allowlist WHERE country = ?`), code)
	if err != nil {
		return fmt.Errorf("remove country: %w", err)
	}
	return nil
}

// ClearAllowlist empties the allowlist ("all allowed").
func (s *Store) ClearAllowlist(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM allowlist`); err != nil {
		return fmt.Errorf("clear allowlist: %w", err)
	}
	return nil
}
