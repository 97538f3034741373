package store

import (
	"context"
	"database/sql"
	"fmt"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// migration is one schema step. Migrations are strictly ordered with no
// version gaps; validateMigrations enforces this before anything runs.
type migration struct {
	version     int
	description string
	query       string
}

var migrations = []migration{
	{
		version:     1,
		description: "core tables",
		query: `
		CREATE TABLE IF NOT EXISTS photos (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			uri TEXT NOT NULL,
			filename TEXT NOT NULL,
			file_size INTEGER NOT NULL DEFAULT 0,
			mime_type TEXT NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			creation_time INTEGER NOT NULL,
			modification_time INTEGER NOT NULL,
			duration_seconds REAL,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			UNIQUE (device_id, uri)
		);

		CREATE INDEX IF NOT EXISTS idx_photos_creation_time ON photos(creation_time DESC);
		CREATE INDEX IF NOT EXISTS idx_photos_deleted ON photos(is_deleted);
		CREATE INDEX IF NOT EXISTS idx_photos_mime ON photos(mime_type);

		CREATE TABLE IF NOT EXISTS locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			altitude REAL,
			accuracy REAL,
			city TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			geocoded_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_locations_coords ON locations(latitude, longitude);

		CREATE TABLE IF NOT EXISTS photo_locations (
			photo_id TEXT NOT NULL,
			location_id INTEGER NOT NULL,
			confidence_score REAL NOT NULL DEFAULT 1.0,
			FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE,
			FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE CASCADE,
			UNIQUE (photo_id, location_id)
		);

		CREATE INDEX IF NOT EXISTS idx_photo_locations_photo ON photo_locations(photo_id);
		CREATE INDEX IF NOT EXISTS idx_photo_locations_location ON photo_locations(location_id);

		CREATE TABLE IF NOT EXISTS metadata_entries (
			photo_id TEXT NOT NULL,
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB NOT NULL,
			FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE,
			UNIQUE (photo_id, namespace, key)
		);

		CREATE INDEX IF NOT EXISTS idx_metadata_photo ON metadata_entries(photo_id);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS scan_records (
			id TEXT PRIMARY KEY,
			scan_type TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			completed_at INTEGER,
			processed INTEGER NOT NULL DEFAULT 0,
			added INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_scan_records_started ON scan_records(started_at DESC);
		`,
	},
	{
		version:     2,
		description: "albums",
		query: `
		CREATE TABLE IF NOT EXISTS albums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			album_type TEXT NOT NULL,
			photo_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS album_photos (
			album_id INTEGER NOT NULL,
			photo_id TEXT NOT NULL,
			added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
			FOREIGN KEY (album_id) REFERENCES albums(id) ON DELETE CASCADE,
			FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE,
			UNIQUE (album_id, photo_id)
		);

		CREATE INDEX IF NOT EXISTS idx_album_photos_album ON album_photos(album_id);
		`,
	},
	{
		version:     3,
		description: "scan record error budget bookkeeping",
		query: `
		ALTER TABLE scan_records ADD COLUMN item_errors INTEGER NOT NULL DEFAULT 0;
		`,
	},
}

// validateMigrations asserts the migration list is strictly ordered from 1
// with no gaps.
func validateMigrations(list []migration) error {
	for i, m := range list {
		if m.version != i+1 {
			return &MigrationError{
				Version: m.version,
				Op:      "validate",
				Err:     fmt.Errorf("expected version %d at position %d", i+1, i),
			}
		}
	}
	return nil
}

// SchemaVersion returns the current schema version, 0 for a fresh store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	var version int
	err := s.db.QueryRowContext(readCtx,
		"SELECT version FROM schema_version WHERE id = 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// RunMigrations applies all pending migrations inside one transaction.
// Either every pending step applies and the version advances to the head,
// or nothing changes.
func (s *Store) RunMigrations(ctx context.Context) error {
	if err := validateMigrations(migrations); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Bootstrap the version table itself outside the ordered list.
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL
		);
		INSERT OR IGNORE INTO schema_version (id, version) VALUES (1, 0);
	`); err != nil {
		return &MigrationError{Op: "bootstrap", Err: err}
	}

	var current int
	if err := s.db.QueryRowContext(ctx,
		"SELECT version FROM schema_version WHERE id = 1").Scan(&current); err != nil {
		return &MigrationError{Op: "read version", Err: err}
	}

	head := migrations[len(migrations)-1].version
	if current > head {
		return &MigrationError{
			Version: current,
			Op:      "version check",
			Err:     fmt.Errorf("store schema version %d is newer than this build understands (%d)", current, head),
		}
	}
	if current == head {
		metrics.StoreSchemaVersion.Set(float64(current))
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Version: current, Op: "begin", Err: err}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		logging.Info("Applying migration %d: %s", m.version, m.description)
		if _, err := tx.ExecContext(ctx, m.query); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("migration rollback failed: %v", rbErr)
			}
			return &MigrationError{Version: m.version, Op: m.description, Err: err}
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE schema_version SET version = ? WHERE id = 1", head); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error("migration rollback failed: %v", rbErr)
		}
		return &MigrationError{Version: head, Op: "advance version", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &MigrationError{Version: head, Op: "commit", Err: err}
	}

	metrics.StoreSchemaVersion.Set(float64(head))
	logging.Info("Migrations complete: schema version %d -> %d", current, head)
	return nil
}
