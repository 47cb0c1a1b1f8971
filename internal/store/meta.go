package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerd/ledgerd/internal/ledger"
)

// watermarkKey is the meta key holding the date through which generation
// has been attempted. The name is historical; renaming it would strand
// the watermark of every existing database.
const watermarkKey = "last_opened_at"

// Watermark returns the persisted generation watermark.
// found is false when no run has ever recorded one.
func (s *Store) Watermark(ctx context.Context) (date time.Time, found bool, err error) {
	return watermark(ctx, s.db)
}

// SetWatermark persists the generation watermark (upsert).
func (s *Store) SetWatermark(ctx context.Context, date time.Time) error {
	return setMeta(ctx, s.db, watermarkKey, ledger.FormatDate(date))
}

func watermark(ctx context.Context, q querier) (time.Time, bool, error) {
	value, found, err := getMeta(ctx, q, watermarkKey)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	date, err := ledger.ParseDate(value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("watermark: %w", err)
	}
	return date, true, nil
}

func getMeta(ctx context.Context, q querier, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get meta %q: %w", key, err)
	}
	return value, true, nil
}

func setMeta(ctx context.Context, q querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}
