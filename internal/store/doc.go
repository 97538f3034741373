// Package store implements the encrypted, schema-versioned relational
// store backing the photovault engine.
//
// It owns the single SQLite handle for the process: every mutation goes
// through its transaction API and multi-statement writes are atomic. The
// package covers the photo/location/metadata/album/settings/scan-record
// schema, strictly ordered migrations, retention-driven compaction of
// soft-deleted rows, and integrity-checked backup and restore.
//
// Sensitive metadata values are sealed per row with ChaCha20-Poly1305;
// backups are gzip-compressed and sealed with a separate HKDF-derived
// subkey of the same master key, which the store obtains once from a
// keystore.Provider at initialization.
package store
