package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateAlbum creates a virtual grouping.
func (s *Store) CreateAlbum(ctx context.Context, name string, albumType AlbumType) (*Album, error) {
	var album *Album
	err := s.withWriteTx(ctx, "create_album", func(txCtx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(txCtx,
			"INSERT INTO albums (name, album_type) VALUES (?, ?)", name, string(albumType))
		if err != nil {
			return fmt.Errorf("create album %q: %w", name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		now := time.Now()
		album = &Album{ID: id, Name: name, Type: albumType, CreatedAt: now, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

// GetAlbum returns one album by id.
func (s *Store) GetAlbum(ctx context.Context, id int64) (*Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(readCtx, `
		SELECT id, name, album_type, photo_count, created_at, updated_at
		FROM albums WHERE id = ?`, id)

	album, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return album, err
}

// ListAlbums returns all albums ordered by name.
func (s *Store) ListAlbums(ctx context.Context) ([]Album, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(readCtx, `
		SELECT id, name, album_type, photo_count, created_at, updated_at
		FROM albums ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var albums []Album
	for rows.Next() {
		album, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, *album)
	}
	return albums, rows.Err()
}

// AddToAlbum adds items to an album. Membership and the derived
// photo_count change in the same transaction, so the count can never
// drift from the junction table.
func (s *Store) AddToAlbum(ctx context.Context, albumID int64, photoIDs ...string) error {
	return s.withWriteTx(ctx, "add_to_album", func(txCtx context.Context, tx *sql.Tx) error {
		for _, photoID := range photoIDs {
			if _, err := tx.ExecContext(txCtx, `
				INSERT INTO album_photos (album_id, photo_id) VALUES (?, ?)
				ON CONFLICT(album_id, photo_id) DO NOTHING`,
				albumID, photoID); err != nil {
				return fmt.Errorf("add %s to album %d: %w", photoID, albumID, err)
			}
		}
		return refreshAlbumCountTx(txCtx, tx, albumID)
	})
}

// RemoveFromAlbum removes items from an album, updating photo_count in
// the same transaction.
func (s *Store) RemoveFromAlbum(ctx context.Context, albumID int64, photoIDs ...string) error {
	return s.withWriteTx(ctx, "remove_from_album", func(txCtx context.Context, tx *sql.Tx) error {
		for _, photoID := range photoIDs {
			if _, err := tx.ExecContext(txCtx,
				"DELETE FROM album_photos WHERE album_id = ? AND photo_id = ?",
				albumID, photoID); err != nil {
				return err
			}
		}
		return refreshAlbumCountTx(txCtx, tx, albumID)
	})
}

// DeleteAlbum removes an album and its membership rows.
func (s *Store) DeleteAlbum(ctx context.Context, albumID int64) error {
	return s.withWriteTx(ctx, "delete_album", func(txCtx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(txCtx, "DELETE FROM albums WHERE id = ?", albumID)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AlbumItems returns the non-deleted items in an album, newest first.
func (s *Store) AlbumItems(ctx context.Context, albumID int64) ([]MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(readCtx, `
		SELECT p.id, p.device_id, p.uri, p.filename, p.file_size, p.mime_type,
			p.width, p.height, p.creation_time, p.modification_time,
			p.duration_seconds, p.is_favorite, p.is_deleted, p.created_at, p.updated_at
		FROM photos p
		JOIN album_photos ap ON ap.photo_id = p.id
		WHERE ap.album_id = ? AND p.is_deleted = 0
		ORDER BY p.creation_time DESC, p.id DESC`, albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MediaItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// refreshAlbumCountTx recomputes the derived photo_count from the
// junction table. Application-level replacement for a trigger, kept inside
// the caller's transaction for portability across storage engines.
func refreshAlbumCountTx(ctx context.Context, tx *sql.Tx, albumID int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE albums SET
			photo_count = (SELECT COUNT(*) FROM album_photos WHERE album_id = ?),
			updated_at = strftime('%s', 'now')
		WHERE id = ?`, albumID, albumID)
	if err != nil {
		return fmt.Errorf("refresh album %d count: %w", albumID, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlbum(row rowScanner) (*Album, error) {
	var album Album
	var albumType string
	var createdAt, updatedAt int64

	err := row.Scan(&album.ID, &album.Name, &albumType, &album.PhotoCount, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	album.Type = AlbumType(albumType)
	album.CreatedAt = time.Unix(createdAt, 0)
	album.UpdatedAt = time.Unix(updatedAt, 0)
	return &album, nil
}
