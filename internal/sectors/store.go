package sectors

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Thetason/korean-stock-daily-report/internal/database"
)

// Store reads and writes sector reference data in sqlite
type Store struct {
	db *database.DB
}

// NewStore wraps a migrated database
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Overrides returns every ticker -> sector pin
func (s *Store) Overrides(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT ticker, sector FROM sector_overrides`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var ticker, sector string
		if err := rows.Scan(&ticker, &sector); err != nil {
			return nil, fmt.Errorf("failed to scan sector override: %w", err)
		}
		out[ticker] = sector
	}
	return out, rows.Err()
}

// Rules returns stored name rules ordered by priority
func (s *Store) Rules(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `SELECT keyword, sector, priority FROM sector_rules ORDER BY priority DESC, keyword ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sector rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.Keyword, &r.Sector, &r.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan sector rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpsertOverrides writes ticker pins in a single transaction
func (s *Store) UpsertOverrides(ctx context.Context, pins map[string]string, now time.Time) error {
	return database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		for ticker, sector := range pins {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sector_overrides (ticker, sector, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(ticker) DO UPDATE SET sector = excluded.sector, updated_at = excluded.updated_at`,
				ticker, sector, now.UTC().Format(time.RFC3339))
			if err != nil {
				return fmt.Errorf("failed to upsert override %s: %w", ticker, err)
			}
		}
		return nil
	})
}

// UpsertRule writes a name rule
func (s *Store) UpsertRule(ctx context.Context, r Rule) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO sector_rules (keyword, sector, priority) VALUES (?, ?, ?)
		ON CONFLICT(keyword) DO UPDATE SET sector = excluded.sector, priority = excluded.priority`,
		r.Keyword, r.Sector, r.Priority)
	if err != nil {
		return fmt.Errorf("failed to upsert rule %s: %w", r.Keyword, err)
	}
	return nil
}
