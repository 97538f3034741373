package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ItemWrite bundles everything written for one scanned item: the row, its
// metadata entries, and an optional location link. SaveItem applies the
// whole bundle in one transaction.
type ItemWrite struct {
	Item       MediaItem
	Metadata   []MetadataEntry
	Location   *Location
	Confidence float64
	// Tolerance is the coordinate dedup window in degrees. Zero picks the
	// default (~11 m).
	Tolerance float64
}

// DefaultLocationTolerance is roughly 11 meters of latitude.
const DefaultLocationTolerance = 0.0001

// SaveItem inserts or updates an item together with its metadata and
// location link as a single atomic write. An existing row is updated only
// when the incoming modification time is newer; otherwise the write is a
// skip and no metadata is touched.
func (s *Store) SaveItem(ctx context.Context, w ItemWrite) (WriteResult, error) {
	result := WriteSkipped

	err := s.withWriteTx(ctx, "save_item", func(txCtx context.Context, tx *sql.Tx) error {
		var err error
		result, err = s.upsertItemTx(txCtx, tx, &w.Item)
		if err != nil {
			return err
		}
		if result == WriteSkipped {
			return nil
		}

		for _, entry := range w.Metadata {
			entry.MediaItemID = w.Item.ID
			if err := s.upsertMetadataTx(txCtx, tx, entry); err != nil {
				return err
			}
		}

		if w.Location != nil {
			tolerance := w.Tolerance
			if tolerance <= 0 {
				tolerance = DefaultLocationTolerance
			}
			confidence := w.Confidence
			if confidence <= 0 {
				confidence = 1.0
			}

			loc, err := s.findOrCreateLocationTx(txCtx, tx, *w.Location, tolerance)
			if err != nil {
				return err
			}
			if err := s.linkItemLocationTx(txCtx, tx, w.Item.ID, loc.ID, confidence); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return WriteSkipped, err
	}
	return result, nil
}

// InsertItem writes a bare item row without metadata or location.
func (s *Store) InsertItem(ctx context.Context, item MediaItem) (WriteResult, error) {
	return s.SaveItem(ctx, ItemWrite{Item: item})
}

// upsertItemTx applies the insert / update-if-newer / skip decision.
func (s *Store) upsertItemTx(ctx context.Context, tx *sql.Tx, item *MediaItem) (WriteResult, error) {
	if item.DeviceID == "" {
		item.DeviceID = s.opts.DeviceID
	}

	var existingMod int64
	err := tx.QueryRowContext(ctx,
		"SELECT modification_time FROM photos WHERE id = ?", item.ID).Scan(&existingMod)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO photos (id, device_id, uri, filename, file_size, mime_type,
				width, height, creation_time, modification_time, duration_seconds,
				is_favorite, is_deleted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			item.ID, item.DeviceID, item.URI, item.Filename, item.FileSize,
			item.MimeType, item.Width, item.Height,
			item.CreationTime.Unix(), item.ModificationTime.Unix(),
			item.DurationSeconds, boolToInt(item.IsFavorite),
		)
		if err != nil {
			return WriteSkipped, fmt.Errorf("insert photo %s: %w", item.ID, err)
		}
		return WriteInserted, nil

	case err != nil:
		return WriteSkipped, fmt.Errorf("lookup photo %s: %w", item.ID, err)

	case item.ModificationTime.Unix() <= existingMod:
		return WriteSkipped, nil

	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE photos SET
				uri = ?, filename = ?, file_size = ?, mime_type = ?,
				width = ?, height = ?, creation_time = ?, modification_time = ?,
				duration_seconds = ?, is_deleted = 0,
				updated_at = strftime('%s', 'now')
			WHERE id = ?`,
			item.URI, item.Filename, item.FileSize, item.MimeType,
			item.Width, item.Height, item.CreationTime.Unix(),
			item.ModificationTime.Unix(), item.DurationSeconds, item.ID,
		)
		if err != nil {
			return WriteSkipped, fmt.Errorf("update photo %s: %w", item.ID, err)
		}
		return WriteUpdated, nil
	}
}

// GetItemByID returns one item, including its primary location when set.
// Soft-deleted items are returned; callers decide visibility.
func (s *Store) GetItemByID(ctx context.Context, id string) (*MediaItem, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_item", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	row := s.db.QueryRowContext(readCtx, `
		SELECT p.id, p.device_id, p.uri, p.filename, p.file_size, p.mime_type,
			p.width, p.height, p.creation_time, p.modification_time,
			p.duration_seconds, p.is_favorite, p.is_deleted, p.created_at, p.updated_at
		FROM photos p WHERE p.id = ?`, id)

	item, scanErr := scanItem(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = ErrNotFound
			return nil, ErrNotFound
		}
		err = scanErr
		return nil, scanErr
	}

	if loc, locErr := s.itemLocation(readCtx, id); locErr == nil {
		item.Location = loc
	}

	return item, nil
}

// itemLocation returns the highest-confidence location linked to an item.
func (s *Store) itemLocation(ctx context.Context, id string) (*Location, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT l.id, l.latitude, l.longitude, l.altitude, l.accuracy,
			l.city, l.state, l.country, l.geocoded_at
		FROM locations l
		JOIN photo_locations pl ON pl.location_id = l.id
		WHERE pl.photo_id = ?
		ORDER BY pl.confidence_score DESC
		LIMIT 1`, id)

	return scanLocation(row)
}

// QueryItems returns a page of non-deleted items matching filters, ordered
// by creation time descending with id as the deterministic tiebreak.
func (s *Store) QueryItems(ctx context.Context, filters QueryFilters) (*Page, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_items", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	where, args := buildItemFilters(filters)

	limit := filters.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	countQuery := "SELECT COUNT(*) FROM photos p" + joinClause(filters) + where
	var total int
	if err = s.db.QueryRowContext(readCtx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	query := `
		SELECT p.id, p.device_id, p.uri, p.filename, p.file_size, p.mime_type,
			p.width, p.height, p.creation_time, p.modification_time,
			p.duration_seconds, p.is_favorite, p.is_deleted, p.created_at, p.updated_at
		FROM photos p` + joinClause(filters) + where +
		" ORDER BY p.creation_time DESC, p.id DESC LIMIT ? OFFSET ?"

	rows, qErr := s.db.QueryContext(readCtx, query, append(args, limit, filters.Offset)...)
	if qErr != nil {
		err = qErr
		return nil, fmt.Errorf("query items: %w", qErr)
	}
	defer rows.Close()

	page := &Page{TotalItems: total, Limit: limit, Offset: filters.Offset}
	for rows.Next() {
		item, scanErr := scanItem(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		page.Items = append(page.Items, *item)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return page, nil
}

// joinClause adds the location join only when a bounding box is in play.
func joinClause(filters QueryFilters) string {
	if filters.Bounds != nil {
		return " JOIN photo_locations pl ON pl.photo_id = p.id JOIN locations l ON l.id = pl.location_id"
	}
	return ""
}

// buildItemFilters translates QueryFilters into a WHERE clause. Date-range
// and bounding-box conditions run in SQL so indexes apply.
func buildItemFilters(filters QueryFilters) (string, []any) {
	var conds []string
	var args []any

	if !filters.IncludeDeleted {
		conds = append(conds, "p.is_deleted = 0")
	}
	if filters.StartDate != nil {
		conds = append(conds, "p.creation_time >= ?")
		args = append(args, filters.StartDate.Unix())
	}
	if filters.EndDate != nil {
		conds = append(conds, "p.creation_time <= ?")
		args = append(args, filters.EndDate.Unix())
	}
	if filters.MimeType != "" {
		if strings.HasSuffix(filters.MimeType, "/") {
			conds = append(conds, "p.mime_type LIKE ?")
			args = append(args, filters.MimeType+"%")
		} else {
			conds = append(conds, "p.mime_type = ?")
			args = append(args, filters.MimeType)
		}
	}
	if filters.FavoritesOnly {
		conds = append(conds, "p.is_favorite = 1")
	}
	if b := filters.Bounds; b != nil {
		conds = append(conds, "l.latitude BETWEEN ? AND ?", "l.longitude BETWEEN ? AND ?")
		args = append(args, b.MinLatitude, b.MaxLatitude, b.MinLongitude, b.MaxLongitude)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetPhotoCount returns the number of non-deleted items.
func (s *Store) GetPhotoCount(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("photo_count", start, err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	var count int
	err = s.db.QueryRowContext(readCtx,
		"SELECT COUNT(*) FROM photos WHERE is_deleted = 0").Scan(&count)
	return count, err
}

// SetFavorite flags or unflags an item.
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return s.withWriteTx(ctx, "set_favorite", func(txCtx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(txCtx,
			"UPDATE photos SET is_favorite = ?, updated_at = strftime('%s', 'now') WHERE id = ?",
			boolToInt(favorite), id)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SoftDelete marks items deleted without removing their rows, preserving
// metadata and location links until retention compaction.
func (s *Store) SoftDelete(ctx context.Context, ids ...string) (int64, error) {
	var affected int64
	err := s.withWriteTx(ctx, "soft_delete", func(txCtx context.Context, tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(txCtx, `
				UPDATE photos SET is_deleted = 1, updated_at = strftime('%s', 'now')
				WHERE id = ? AND is_deleted = 0`, id)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			affected += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*MediaItem, error) {
	var item MediaItem
	var creation, modification, createdAt, updatedAt int64
	var favorite, deleted int
	var duration sql.NullFloat64

	err := row.Scan(
		&item.ID, &item.DeviceID, &item.URI, &item.Filename, &item.FileSize,
		&item.MimeType, &item.Width, &item.Height, &creation, &modification,
		&duration, &favorite, &deleted, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	// creation_time <= 0 means no usable timestamp: a zero time.Time
	// round-trips through Unix() as a large negative number, and reading
	// that back as time.Unix would yield a year-1 value that is no longer
	// IsZero, so the timeline would bucket it instead of reporting it.
	if creation > 0 {
		item.CreationTime = time.Unix(creation, 0)
	}
	item.ModificationTime = time.Unix(modification, 0)
	item.CreatedAt = time.Unix(createdAt, 0)
	item.UpdatedAt = time.Unix(updatedAt, 0)
	item.IsFavorite = favorite == 1
	item.IsDeleted = deleted == 1
	if duration.Valid {
		item.DurationSeconds = &duration.Float64
	}
	return &item, nil
}

func scanLocation(row rowScanner) (*Location, error) {
	var loc Location
	var altitude, accuracy sql.NullFloat64
	var geocodedAt sql.NullInt64

	err := row.Scan(
		&loc.ID, &loc.Latitude, &loc.Longitude, &altitude, &accuracy,
		&loc.City, &loc.State, &loc.Country, &geocodedAt,
	)
	if err != nil {
		return nil, err
	}

	if altitude.Valid {
		loc.Altitude = &altitude.Float64
	}
	if accuracy.Valid {
		loc.Accuracy = &accuracy.Float64
	}
	if geocodedAt.Valid {
		t := time.Unix(geocodedAt.Int64, 0)
		loc.GeocodedAt = &t
	}
	return &loc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
