package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// backupTables lists every table covered by the manifest, in a fixed order.
var backupTables = []string{
	"photos",
	"locations",
	"photo_locations",
	"metadata_entries",
	"albums",
	"album_photos",
	"settings",
	"scan_records",
}

// TableStat is one table's manifest entry.
type TableStat struct {
	Rows     int64  `json:"rows"`
	Checksum string `json:"checksum"`
}

// Manifest describes a backup payload. A backup is only accepted when the
// payload matches the manifest exactly.
type Manifest struct {
	SchemaVersion int                  `json:"schemaVersion"`
	CreatedAt     time.Time            `json:"createdAt"`
	Tables        map[string]TableStat `json:"tables"`
	PayloadSize   int64                `json:"payloadSize"`
	PayloadSHA256 string               `json:"payloadSha256"`
}

// Backup points at a completed export on disk.
type Backup struct {
	Path         string   `json:"path"`
	ManifestPath string   `json:"manifestPath"`
	Manifest     Manifest `json:"manifest"`
}

// CreateBackup produces a point-in-time export: a VACUUM INTO snapshot,
// gzip-compressed and sealed, paired with a JSON manifest carrying row
// counts and per-table checksums computed from the snapshot itself.
func (s *Store) CreateBackup(ctx context.Context) (backup *Backup, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.BackupsTotal.WithLabelValues("create", status).Inc()
	}()

	if err = os.MkdirAll(s.opts.BackupDir, 0o700); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	snapshotPath := filepath.Join(s.opts.BackupDir, ".export-"+uuid.NewString()+".db")
	defer func() {
		_ = os.Remove(snapshotPath)
	}()

	// Block writers so the snapshot is a clean point in time.
	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, "VACUUM INTO ?", snapshotPath)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}

	manifest, err := manifestForSnapshot(ctx, snapshotPath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := compressAndSeal(raw, s.backupSealer)
	if err != nil {
		return nil, err
	}

	stamp := manifest.CreatedAt.Format("20060102-150405")
	base := fmt.Sprintf("photovault-%s-%s", stamp, uuid.NewString()[:8])
	backupPath := filepath.Join(s.opts.BackupDir, base+".pvb")
	manifestPath := filepath.Join(s.opts.BackupDir, base+".manifest.json")

	if err = os.WriteFile(backupPath, sealed, 0o600); err != nil {
		return nil, fmt.Errorf("write backup: %w", err)
	}

	payloadHash := sha256.Sum256(sealed)
	manifest.PayloadSize = int64(len(sealed))
	manifest.PayloadSHA256 = hex.EncodeToString(payloadHash[:])

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err = os.WriteFile(manifestPath, manifestJSON, 0o600); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	// Sanity pass before the backup is considered valid.
	if err = verifyBackupFiles(backupPath, manifestPath); err != nil {
		return nil, err
	}

	metrics.BackupSizeBytes.Set(float64(manifest.PayloadSize))
	logging.Info("Backup created: %s (%d bytes, schema %d)", backupPath, manifest.PayloadSize, manifest.SchemaVersion)

	return &Backup{Path: backupPath, ManifestPath: manifestPath, Manifest: *manifest}, nil
}

// manifestForSnapshot computes counts and checksums from the exported file
// so the manifest describes exactly the bytes being archived.
func manifestForSnapshot(ctx context.Context, snapshotPath string) (*Manifest, error) {
	snap, err := sql.Open("sqlite3", snapshotPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer snap.Close()

	var version int
	if err := snap.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE id = 1").Scan(&version); err != nil {
		return nil, fmt.Errorf("read snapshot schema version: %w", err)
	}

	manifest := &Manifest{
		SchemaVersion: version,
		CreatedAt:     time.Now().UTC(),
		Tables:        make(map[string]TableStat),
	}

	for _, table := range backupTables {
		stat, err := checksumTable(ctx, snap, table)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", table, err)
		}
		manifest.Tables[table] = stat
	}
	return manifest, nil
}

// TableChecksums computes the live store's per-table stats, checkpointing
// the WAL first so the main file is current.
func (s *Store) TableChecksums(ctx context.Context) (map[string]TableStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logging.Warn("wal checkpoint before checksum failed: %v", err)
	}

	stats := make(map[string]TableStat)
	for _, table := range backupTables {
		stat, err := checksumTable(ctx, s.db, table)
		if err != nil {
			return nil, fmt.Errorf("checksum %s: %w", table, err)
		}
		stats[table] = stat
	}
	return stats, nil
}

// checksumTable hashes every row of a table in rowid order. Lightweight
// by design; it detects drift, it is not a cryptographic audit.
func checksumTable(ctx context.Context, db *sql.DB, table string) (TableStat, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table+" ORDER BY rowid")
	if err != nil {
		return TableStat{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return TableStat{}, err
	}

	hash := sha256.New()
	var count int64

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return TableStat{}, err
		}
		for _, v := range values {
			switch tv := v.(type) {
			case []byte:
				hash.Write(tv)
			default:
				fmt.Fprintf(hash, "%v", tv)
			}
			hash.Write([]byte{0})
		}
		hash.Write([]byte{'\n'})
		count++
	}
	if err := rows.Err(); err != nil {
		return TableStat{}, err
	}

	return TableStat{Rows: count, Checksum: hex.EncodeToString(hash.Sum(nil))}, nil
}

// compressAndSeal gzips then encrypts a payload.
func compressAndSeal(raw []byte, sealer *sealer) ([]byte, error) {
	var compressed bytes.Buffer
	gz, err := gzip.NewWriterLevel(&compressed, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("compress backup: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress backup: %w", err)
	}

	sealed, err := sealer.seal(compressed.Bytes())
	if err != nil {
		return nil, fmt.Errorf("seal backup: %w", err)
	}
	return sealed, nil
}

// openAndDecompress reverses compressAndSeal.
func openAndDecompress(sealed []byte, sealer *sealer) ([]byte, error) {
	compressed, err := sealer.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackupVerification, err)
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt compression stream", ErrBackupVerification)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrBackupVerification, err)
	}
	return raw, nil
}

// verifyBackupFiles checks a backup file against its manifest without
// decrypting the payload.
func verifyBackupFiles(backupPath, manifestPath string) error {
	manifest, err := readManifest(manifestPath)
	if err != nil {
		return err
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("%w: missing payload: %v", ErrBackupVerification, err)
	}
	if info.Size() == 0 || info.Size() != manifest.PayloadSize {
		return fmt.Errorf("%w: payload size %d does not match manifest %d",
			ErrBackupVerification, info.Size(), manifest.PayloadSize)
	}

	sealed, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackupVerification, err)
	}
	hash := sha256.Sum256(sealed)
	if hex.EncodeToString(hash[:]) != manifest.PayloadSHA256 {
		return fmt.Errorf("%w: payload hash mismatch", ErrBackupVerification)
	}
	return nil
}

func readManifest(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: missing manifest: %v", ErrBackupVerification, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: corrupt manifest: %v", ErrBackupVerification, err)
	}
	if manifest.Tables == nil {
		return nil, fmt.Errorf("%w: manifest has no table stats", ErrBackupVerification)
	}
	return &manifest, nil
}

// manifestPathFor derives the manifest path for a backup file.
func manifestPathFor(backupPath string) string {
	base := backupPath
	if filepath.Ext(base) == ".pvb" {
		base = base[:len(base)-len(".pvb")]
	}
	return base + ".manifest.json"
}

// RestoreFromBackup replaces the live store with a verified backup. The
// current store is snapshotted first; a failed restore rolls back to that
// snapshot, so the store is never left worse than before the attempt. The
// one fatal outcome is the rollback itself failing.
func (s *Store) RestoreFromBackup(ctx context.Context, backupPath string) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.BackupsTotal.WithLabelValues("restore", status).Inc()
	}()

	manifestPath := manifestPathFor(backupPath)
	if err = verifyBackupFiles(backupPath, manifestPath); err != nil {
		return err
	}
	manifest, err := readManifest(manifestPath)
	if err != nil {
		return err
	}

	sealed, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackupVerification, err)
	}
	raw, err := openAndDecompress(sealed, s.backupSealer)
	if err != nil {
		return err
	}

	restoredPath := s.dbPath + ".restore-candidate"
	if err = os.WriteFile(restoredPath, raw, 0o600); err != nil {
		return fmt.Errorf("write restore candidate: %w", err)
	}
	defer func() {
		_ = os.Remove(restoredPath)
	}()

	// The payload must still match the manifest's table stats.
	if err = verifyCandidate(ctx, restoredPath, manifest); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, cpErr := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); cpErr != nil {
		logging.Warn("wal checkpoint before restore failed: %v", cpErr)
	}
	if err = s.db.Close(); err != nil {
		return fmt.Errorf("close store for restore: %w", err)
	}

	snapshotPath := s.dbPath + ".pre-restore"
	if err = copyFile(s.dbPath, snapshotPath); err != nil {
		// Nothing has been overwritten; reopen and bail out.
		if reopenErr := s.reopen(ctx); reopenErr != nil {
			return errors.Join(ErrRestoreRollbackFailed, err, reopenErr)
		}
		return fmt.Errorf("snapshot current store: %w", err)
	}

	restoreErr := s.applyRestore(ctx, restoredPath)
	if restoreErr == nil {
		_ = os.Remove(snapshotPath)
		logging.Info("Restore complete from %s (schema %d)", backupPath, manifest.SchemaVersion)
		return nil
	}

	logging.Error("Restore failed, rolling back to pre-restore snapshot: %v", restoreErr)
	if rbErr := s.rollbackRestore(ctx, snapshotPath); rbErr != nil {
		return errors.Join(ErrRestoreRollbackFailed, restoreErr, rbErr)
	}
	_ = os.Remove(snapshotPath)
	return fmt.Errorf("store: restore failed (rolled back): %w", restoreErr)
}

// verifyCandidate checks the decrypted payload against the manifest's
// table stats before anything touches the live store.
func verifyCandidate(ctx context.Context, candidatePath string, manifest *Manifest) error {
	candidate, err := sql.Open("sqlite3", candidatePath+"?mode=ro")
	if err != nil {
		return fmt.Errorf("%w: open candidate: %v", ErrBackupVerification, err)
	}
	defer candidate.Close()

	var integrity string
	if err := candidate.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil || integrity != "ok" {
		return fmt.Errorf("%w: integrity check: %s (%v)", ErrBackupVerification, integrity, err)
	}

	names := make([]string, 0, len(manifest.Tables))
	for name := range manifest.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, table := range names {
		want := manifest.Tables[table]
		got, err := checksumTable(ctx, candidate, table)
		if err != nil {
			return fmt.Errorf("%w: checksum %s: %v", ErrBackupVerification, table, err)
		}
		if got != want {
			return fmt.Errorf("%w: table %s drifted from manifest (rows %d != %d or checksum mismatch)",
				ErrBackupVerification, table, got.Rows, want.Rows)
		}
	}
	return nil
}

// applyRestore swaps the candidate file in and reopens. Caller holds the
// write lock and has closed the previous handle.
func (s *Store) applyRestore(ctx context.Context, restoredPath string) error {
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(s.dbPath + suffix)
	}
	if err := copyFile(restoredPath, s.dbPath); err != nil {
		return fmt.Errorf("install restored store: %w", err)
	}
	return s.reopen(ctx)
}

// rollbackRestore puts the pre-restore snapshot back and reopens.
func (s *Store) rollbackRestore(ctx context.Context, snapshotPath string) error {
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(s.dbPath + suffix)
	}
	if err := copyFile(snapshotPath, s.dbPath); err != nil {
		return fmt.Errorf("reinstall snapshot: %w", err)
	}
	return s.reopen(ctx)
}

// reopen re-establishes the SQLite handle after a file swap. Caller holds
// the write lock.
func (s *Store) reopen(ctx context.Context) error {
	db, err := openDB(ctx, s.dbPath)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// ListBackups returns the backups present in the backup directory,
// newest first, skipping any with a missing or unreadable manifest.
func (s *Store) ListBackups() ([]Backup, error) {
	entries, err := os.ReadDir(s.opts.BackupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var backups []Backup
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pvb" {
			continue
		}
		backupPath := filepath.Join(s.opts.BackupDir, entry.Name())
		manifest, err := readManifest(manifestPathFor(backupPath))
		if err != nil {
			logging.Warn("Skipping backup %s: %v", entry.Name(), err)
			continue
		}
		backups = append(backups, Backup{
			Path:         backupPath,
			ManifestPath: manifestPathFor(backupPath),
			Manifest:     *manifest,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Manifest.CreatedAt.After(backups[j].Manifest.CreatedAt)
	})
	return backups, nil
}
