package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Well-known settings keys.
const (
	// SettingLastScanCompleted holds the unix timestamp of the last
	// successful scan; incremental scans resume from it.
	SettingLastScanCompleted = "scan.last_completed"
)

// UpsertSetting writes one key/value setting.
func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	return s.withWriteTx(ctx, "upsert_setting", func(txCtx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(txCtx, `
			INSERT INTO settings (key, value, updated_at)
			VALUES (?, ?, strftime('%s', 'now'))
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value)
		return err
	})
}

// GetSetting returns a setting value, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(readCtx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// SetLastScanCompleted persists the completion time used by incremental scans.
func (s *Store) SetLastScanCompleted(ctx context.Context, t time.Time) error {
	return s.UpsertSetting(ctx, SettingLastScanCompleted, strconv.FormatInt(t.Unix(), 10))
}

// LastScanCompleted returns the last successful scan time, or the zero
// time when no scan has completed yet.
func (s *Store) LastScanCompleted(ctx context.Context) (time.Time, error) {
	value, err := s.GetSetting(ctx, SettingLastScanCompleted)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	unix, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}
