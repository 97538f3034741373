package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertMetadata writes one metadata entry with (item, namespace, key)
// upsert semantics. The value is sealed before it reaches disk.
func (s *Store) UpsertMetadata(ctx context.Context, entry MetadataEntry) error {
	return s.withWriteTx(ctx, "upsert_metadata", func(txCtx context.Context, tx *sql.Tx) error {
		return s.upsertMetadataTx(txCtx, tx, entry)
	})
}

func (s *Store) upsertMetadataTx(ctx context.Context, tx *sql.Tx, entry MetadataEntry) error {
	if !ValidNamespace(entry.Namespace) {
		return fmt.Errorf("invalid metadata namespace %q", entry.Namespace)
	}
	if entry.Key == "" {
		return fmt.Errorf("metadata key must not be empty")
	}

	sealed, err := s.metaSealer.seal([]byte(entry.Value))
	if err != nil {
		return fmt.Errorf("seal metadata %s/%s: %w", entry.Namespace, entry.Key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO metadata_entries (photo_id, namespace, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(photo_id, namespace, key) DO UPDATE SET value = excluded.value`,
		entry.MediaItemID, string(entry.Namespace), entry.Key, sealed,
	)
	if err != nil {
		return fmt.Errorf("upsert metadata %s/%s for %s: %w", entry.Namespace, entry.Key, entry.MediaItemID, err)
	}
	return nil
}

// GetMetadata returns all decrypted metadata entries for an item,
// optionally restricted to one namespace.
func (s *Store) GetMetadata(ctx context.Context, photoID string, namespace MetadataNamespace) ([]MetadataEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	query := "SELECT photo_id, namespace, key, value FROM metadata_entries WHERE photo_id = ?"
	args := []any{photoID}
	if namespace != "" {
		query += " AND namespace = ?"
		args = append(args, string(namespace))
	}
	query += " ORDER BY namespace, key"

	rows, err := s.db.QueryContext(readCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query metadata for %s: %w", photoID, err)
	}
	defer rows.Close()

	var entries []MetadataEntry
	for rows.Next() {
		var entry MetadataEntry
		var ns string
		var sealed []byte
		if err := rows.Scan(&entry.MediaItemID, &ns, &entry.Key, &sealed); err != nil {
			return nil, err
		}
		entry.Namespace = MetadataNamespace(ns)

		plain, err := s.metaSealer.open(sealed)
		if err != nil {
			return nil, fmt.Errorf("unseal metadata %s/%s: %w", ns, entry.Key, err)
		}
		entry.Value = string(plain)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MetadataCount returns the number of metadata rows for an item.
func (s *Store) MetadataCount(ctx context.Context, photoID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(readCtx,
		"SELECT COUNT(*) FROM metadata_entries WHERE photo_id = ?", photoID).Scan(&count)
	return count, err
}
