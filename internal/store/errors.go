package store

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrBackupVerification is returned when a backup's manifest does not
	// match its payload; such a backup is never applied.
	ErrBackupVerification = errors.New("store: backup verification failed")

	// ErrRestoreRollbackFailed is the one fatal restore outcome: the
	// restore failed and rolling back to the pre-restore snapshot also
	// failed. Manual intervention is required.
	ErrRestoreRollbackFailed = errors.New("store: restore failed and snapshot rollback also failed")
)

// MigrationError blocks store initialization; no read or write may be
// attempted until it is resolved.
type MigrationError struct {
	Version int
	Op      string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("store: migration %d (%s): %v", e.Version, e.Op, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// IntegrityError marks a failure that rolled back the surrounding
// transaction, with enough context to decide on a retry.
type IntegrityError struct {
	Op            string
	SchemaVersion int
	Err           error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("store: %s failed at schema version %d: %v", e.Op, e.SchemaVersion, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
