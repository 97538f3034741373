package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photovault/internal/keystore"
	"photovault/internal/logging"
	"photovault/internal/metrics"
)

const (
	// defaultQueryTimeout bounds single read/write statements.
	defaultQueryTimeout = 5 * time.Second
	// defaultTxTimeout bounds whole write transactions.
	defaultTxTimeout = 30 * time.Second
)

// Options tunes store behavior. Zero values pick sensible defaults.
type Options struct {
	// DeviceID identifies this device in the (deviceId, uri) uniqueness
	// invariant. Defaults to "local".
	DeviceID string
	// QueryTimeout bounds individual statements.
	QueryTimeout time.Duration
	// TxTimeout bounds write transactions.
	TxTimeout time.Duration
	// RetentionWindow is how long soft-deleted rows survive before
	// PurgeSoftDeleted hard-deletes them. Defaults to 30 days.
	RetentionWindow time.Duration
	// BackupDir is where CreateBackup writes exports. Defaults to a
	// "backups" directory next to the store file.
	BackupDir string
}

func (o *Options) applyDefaults(dbPath string) {
	if o.DeviceID == "" {
		o.DeviceID = "local"
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = defaultQueryTimeout
	}
	if o.TxTimeout <= 0 {
		o.TxTimeout = defaultTxTimeout
	}
	if o.RetentionWindow <= 0 {
		o.RetentionWindow = 30 * 24 * time.Hour
	}
	if o.BackupDir == "" {
		o.BackupDir = filepath.Join(filepath.Dir(dbPath), "backups")
	}
}

// Store manages all persistence for the engine. It exclusively owns the
// SQLite handle; no other component opens a second writer.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	opts   Options

	metaSealer   *sealer
	backupSealer *sealer
}

// New opens (or creates) the store at dbPath, obtains the encryption key
// from keys, and runs pending migrations. A migration failure blocks
// initialization entirely.
func New(ctx context.Context, dbPath string, keys keystore.Provider, opts Options) (*Store, error) {
	opts.applyDefaults(dbPath)

	logging.Info("Store path: %s", dbPath)
	if err := checkStoreDir(dbPath); err != nil {
		return nil, err
	}

	masterKey, err := keys.GetOrCreateKey("store")
	if err != nil {
		return nil, fmt.Errorf("failed to obtain store key: %w", err)
	}

	metaSealer, err := newSealer(masterKey, purposeMetadata)
	if err != nil {
		return nil, err
	}
	backupSealer, err := newSealer(masterKey, purposeBackup)
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:           db,
		dbPath:       dbPath,
		opts:         opts,
		metaSealer:   metaSealer,
		backupSealer: backupSealer,
	}

	if err := s.RunMigrations(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after migration failure: %v", closeErr)
		}
		return nil, err
	}

	logging.Info("Store initialized at %s (schema version %d)", dbPath, mustSchemaVersion(ctx, db))
	return s, nil
}

// openDB opens a SQLite connection with the WAL settings shared by New and
// restore.
func openDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	// busy_timeout helps prevent "database is locked" errors. txlock=immediate
	// makes write transactions take the write lock at BEGIN instead of on
	// their first write; a deferred transaction that reads first would take a
	// snapshot, and its later lock upgrade fails with SQLITE_BUSY immediately,
	// bypassing the busy timeout.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close store after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	// Multiple readers, one effective writer behind the store mutex.
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// checkStoreDir verifies the parent directory exists and is writable.
func checkStoreDir(dbPath string) error {
	dir := filepath.Dir(dbPath)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("cannot stat store directory: %w", err)
	}

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("store directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	return nil
}

// Close closes the store connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the location of the store file.
func (s *Store) Path() string {
	return s.dbPath
}

// DeviceID returns the configured device identifier.
func (s *Store) DeviceID() string {
	return s.opts.DeviceID
}

// BeginWrite starts a write transaction and returns it with its start time,
// which the caller hands back to EndWrite. BEGIN takes the database write
// lock immediately (txlock=immediate), so concurrent writers queue behind
// the busy timeout instead of failing on a snapshot upgrade. The store
// mutex is held only while the transaction starts.
func (s *Store) BeginWrite() (*sql.Tx, time.Time, error) {
	s.mu.Lock()
	txStart := time.Now()

	// Transaction lifetime is managed by EndWrite, not a timeout context;
	// a deferred cancel here would kill the transaction on return.
	tx, err := s.db.BeginTx(context.Background(), nil)
	s.mu.Unlock()

	if err != nil {
		return nil, time.Time{}, err
	}
	return tx, txStart, nil
}

// EndWrite commits the transaction, or rolls it back when err is non-nil.
// A rollback failure is joined onto the original error.
func (s *Store) EndWrite(tx *sql.Tx, began time.Time, err error) error {
	duration := time.Since(began).Seconds()

	if err != nil {
		metrics.StoreTransactionDuration.WithLabelValues("rollback").Observe(duration)
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.StoreTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// withWriteTx runs fn inside a single transaction bounded by the
// transaction timeout. Any error from fn rolls the whole write back and is
// wrapped as an IntegrityError.
func (s *Store) withWriteTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(op, start, err) }()

	txCtx, cancel := context.WithTimeout(ctx, s.opts.TxTimeout)
	defer cancel()

	tx, began, err := s.BeginWrite()
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err = fn(txCtx, tx); err != nil {
		err = &IntegrityError{Op: op, SchemaVersion: s.schemaVersionQuiet(ctx), Err: err}
	}
	return s.EndWrite(tx, began, err)
}

// readCtx derives a read context bounded by the query timeout.
func (s *Store) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.QueryTimeout)
}

// schemaVersionQuiet returns the schema version or 0, for error context.
func (s *Store) schemaVersionQuiet(ctx context.Context) int {
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0
	}
	return v
}

// Vacuum optimizes the store file.
func (s *Store) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	vacCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = s.db.ExecContext(vacCtx, "VACUUM")
	return err
}

// UpdateConnectionMetrics exports current connection-pool stats.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.StoreConnectionsOpen.Set(float64(stats.OpenConnections))
}

// recordQuery records store operation metrics.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.StoreQueryDuration.WithLabelValues(operation).Observe(duration)
}

func mustSchemaVersion(ctx context.Context, db *sql.DB) int {
	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE id = 1").Scan(&version); err != nil {
		return 0
	}
	return version
}
