package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartScanRecord creates a running scan record and returns its id.
func (s *Store) StartScanRecord(ctx context.Context, scanType ScanType) (string, error) {
	id := uuid.NewString()

	err := s.withWriteTx(ctx, "start_scan_record", func(txCtx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(txCtx, `
			INSERT INTO scan_records (id, scan_type, started_at, status)
			VALUES (?, ?, ?, ?)`,
			id, string(scanType), time.Now().Unix(), string(ScanRunning))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// UpdateScanProgress refreshes the running counters of a scan record.
func (s *Store) UpdateScanProgress(ctx context.Context, id string, processed, added, updated, itemErrors int) error {
	return s.withWriteTx(ctx, "update_scan_progress", func(txCtx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(txCtx, `
			UPDATE scan_records SET processed = ?, added = ?, updated = ?, item_errors = ?
			WHERE id = ?`,
			processed, added, updated, itemErrors, id)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CompleteScanRecord finalizes a scan record with its terminal status.
// Counts written by the last UpdateScanProgress call are preserved.
func (s *Store) CompleteScanRecord(ctx context.Context, id string, status ScanStatus, errorMessage string) error {
	if status == ScanRunning {
		return fmt.Errorf("store: %q is not a terminal scan status", status)
	}

	return s.withWriteTx(ctx, "complete_scan_record", func(txCtx context.Context, tx *sql.Tx) error {
		var msg any
		if errorMessage != "" {
			msg = errorMessage
		}
		res, err := tx.ExecContext(txCtx, `
			UPDATE scan_records SET status = ?, completed_at = ?, error_message = ?
			WHERE id = ?`,
			string(status), time.Now().Unix(), msg, id)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetScanRecord returns one scan record by id.
func (s *Store) GetScanRecord(ctx context.Context, id string) (*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(readCtx, `
		SELECT id, scan_type, started_at, completed_at, processed, added, updated,
			item_errors, status, error_message
		FROM scan_records WHERE id = ?`, id)

	record, err := scanScanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return record, err
}

// RecentScans returns the most recent scan records, newest first.
func (s *Store) RecentScans(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(readCtx, `
		SELECT id, scan_type, started_at, completed_at, processed, added, updated,
			item_errors, status, error_message
		FROM scan_records ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		record, err := scanScanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// InterruptStaleScans marks any scan left in the running state (e.g. after
// a crash) as failed. Called once at engine startup.
func (s *Store) InterruptStaleScans(ctx context.Context) (int64, error) {
	var affected int64
	err := s.withWriteTx(ctx, "interrupt_stale_scans", func(txCtx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(txCtx, `
			UPDATE scan_records SET status = ?, completed_at = ?, error_message = 'interrupted by restart'
			WHERE status = ?`,
			string(ScanFailed), time.Now().Unix(), string(ScanRunning))
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

func scanScanRecord(row rowScanner) (*ScanRecord, error) {
	var record ScanRecord
	var scanType, status string
	var startedAt int64
	var completedAt sql.NullInt64
	var errorMessage sql.NullString

	err := row.Scan(
		&record.ID, &scanType, &startedAt, &completedAt,
		&record.Processed, &record.Added, &record.Updated,
		&record.ItemErrors, &status, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	record.ScanType = ScanType(scanType)
	record.Status = ScanStatus(status)
	record.StartedAt = time.Unix(startedAt, 0)
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0)
		record.CompletedAt = &t
	}
	if errorMessage.Valid {
		record.ErrorMessage = errorMessage.String
	}
	return &record, nil
}
