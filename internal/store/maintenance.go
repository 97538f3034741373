package store

import (
	"context"
	"database/sql"
	"time"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// PurgeSoftDeleted hard-deletes items that have been soft-deleted for
// longer than the retention window, cascading to their metadata, location
// links, and album memberships inside one transaction. Locations left with
// no remaining references are removed too. Returns the number of items
// purged.
func (s *Store) PurgeSoftDeleted(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.opts.RetentionWindow).Unix()

	var purged int64
	err := s.withWriteTx(ctx, "purge_soft_deleted", func(txCtx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(txCtx,
			"SELECT id FROM photos WHERE is_deleted = 1 AND updated_at < ?", cutoff)
		if err != nil {
			return err
		}

		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(ids) == 0 {
			return nil
		}

		// Explicit application-level cascade rather than trigger magic:
		// the same order on every storage engine, all inside this tx.
		var touchedAlbums []int64
		for _, id := range ids {
			albumRows, err := tx.QueryContext(txCtx,
				"SELECT album_id FROM album_photos WHERE photo_id = ?", id)
			if err != nil {
				return err
			}
			for albumRows.Next() {
				var albumID int64
				if err := albumRows.Scan(&albumID); err != nil {
					albumRows.Close()
					return err
				}
				touchedAlbums = append(touchedAlbums, albumID)
			}
			albumRows.Close()

			for _, stmt := range []string{
				"DELETE FROM metadata_entries WHERE photo_id = ?",
				"DELETE FROM photo_locations WHERE photo_id = ?",
				"DELETE FROM album_photos WHERE photo_id = ?",
				"DELETE FROM photos WHERE id = ?",
			} {
				if _, err := tx.ExecContext(txCtx, stmt, id); err != nil {
					return err
				}
			}
			purged++
		}

		for _, albumID := range touchedAlbums {
			if err := refreshAlbumCountTx(txCtx, tx, albumID); err != nil && err != ErrNotFound {
				return err
			}
		}

		// Orphaned locations have no referencing items left.
		if _, err := tx.ExecContext(txCtx, `
			DELETE FROM locations WHERE id NOT IN (SELECT DISTINCT location_id FROM photo_locations)`); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		metrics.StoreRowsAffected.WithLabelValues("purge_soft_deleted").Observe(float64(purged))
		logging.Info("Retention purge removed %d items soft-deleted before %s",
			purged, time.Unix(cutoff, 0).Format(time.RFC3339))
	}
	return purged, nil
}

// StartMaintenance runs retention purges on the given interval until the
// context is cancelled. Intended to be launched once from main.
func (s *Store) StartMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.PurgeSoftDeleted(ctx); err != nil {
				logging.Error("retention purge failed: %v", err)
			}
			s.UpdateConnectionMetrics()
		case <-ctx.Done():
			logging.Debug("store maintenance stopped")
			return
		}
	}
}
