package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindOrCreateLocation returns an existing location within tolerance
// degrees of (lat, lon), or inserts a new one. Tolerance of 0.0001 degrees
// is roughly 11 meters of latitude; nearby coordinates collapse to one row
// shared by all items that reference them.
func (s *Store) FindOrCreateLocation(ctx context.Context, loc Location, tolerance float64) (*Location, error) {
	if tolerance <= 0 {
		tolerance = DefaultLocationTolerance
	}

	var result *Location
	err := s.withWriteTx(ctx, "find_or_create_location", func(txCtx context.Context, tx *sql.Tx) error {
		var err error
		result, err = s.findOrCreateLocationTx(txCtx, tx, loc, tolerance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) findOrCreateLocationTx(ctx context.Context, tx *sql.Tx, loc Location, tolerance float64) (*Location, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, latitude, longitude, altitude, accuracy, city, state, country, geocoded_at
		FROM locations
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?
		ORDER BY (latitude - ?) * (latitude - ?) + (longitude - ?) * (longitude - ?)
		LIMIT 1`,
		loc.Latitude-tolerance, loc.Latitude+tolerance,
		loc.Longitude-tolerance, loc.Longitude+tolerance,
		loc.Latitude, loc.Latitude, loc.Longitude, loc.Longitude,
	)

	existing, err := scanLocation(row)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("location lookup: %w", err)
	}

	var geocodedAt any
	if loc.GeocodedAt != nil {
		geocodedAt = loc.GeocodedAt.Unix()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO locations (latitude, longitude, altitude, accuracy, city, state, country, geocoded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.Latitude, loc.Longitude, loc.Altitude, loc.Accuracy,
		loc.City, loc.State, loc.Country, geocodedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	created := loc
	created.ID = id
	return &created, nil
}

// LinkItemLocation associates an item with a location at the given
// confidence, replacing any existing link to the same location.
func (s *Store) LinkItemLocation(ctx context.Context, photoID string, locationID int64, confidence float64) error {
	return s.withWriteTx(ctx, "link_item_location", func(txCtx context.Context, tx *sql.Tx) error {
		return s.linkItemLocationTx(txCtx, tx, photoID, locationID, confidence)
	})
}

func (s *Store) linkItemLocationTx(ctx context.Context, tx *sql.Tx, photoID string, locationID int64, confidence float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO photo_locations (photo_id, location_id, confidence_score)
		VALUES (?, ?, ?)
		ON CONFLICT(photo_id, location_id) DO UPDATE SET confidence_score = excluded.confidence_score`,
		photoID, locationID, confidence,
	)
	if err != nil {
		return fmt.Errorf("link item %s to location %d: %w", photoID, locationID, err)
	}
	return nil
}

// UpdateLocationAddress records a reverse-geocoded address for a location.
func (s *Store) UpdateLocationAddress(ctx context.Context, locationID int64, city, state, country string) error {
	return s.withWriteTx(ctx, "update_location_address", func(txCtx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(txCtx, `
			UPDATE locations SET city = ?, state = ?, country = ?, geocoded_at = ?
			WHERE id = ?`,
			city, state, country, time.Now().Unix(), locationID)
		if err != nil {
			return err
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// LocationCount returns the number of location rows; dedup keeps this far
// below the item count for typical libraries.
func (s *Store) LocationCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	readCtx, cancel := s.readCtx(ctx)
	defer cancel()

	var count int
	err := s.db.QueryRowContext(readCtx, "SELECT COUNT(*) FROM locations").Scan(&count)
	return count, err
}
