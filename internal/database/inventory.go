package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"
)

const accommodationColumns = `id, name, image, description, latitude, longitude, created_at, updated_at`

func (db *DB) CreateAccommodation(ctx context.Context, a *models.Accommodation) error {
	query := `INSERT INTO accommodations (name, image, description, latitude, longitude, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, a.Name, a.Image, a.Description, a.Latitude, a.Longitude, now, now)
	if err != nil {
		return fmt.Errorf("failed to create accommodation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (db *DB) GetAccommodation(ctx context.Context, id int64) (*models.Accommodation, error) {
	row := db.QueryRowContext(ctx, `SELECT `+accommodationColumns+` FROM accommodations WHERE id = ?`, id)
	a, err := scanAccommodation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: accommodation %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accommodation: %w", err)
	}
	return a, nil
}

func (db *DB) ListAccommodations(ctx context.Context) ([]*models.Accommodation, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+accommodationColumns+` FROM accommodations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accommodations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Accommodation, 0)
	for rows.Next() {
		a, err := scanAccommodation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan accommodation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) UpdateAccommodation(ctx context.Context, a *models.Accommodation) error {
	query := `UPDATE accommodations
              SET name = ?, image = ?, description = ?, latitude = ?, longitude = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, a.Name, a.Image, a.Description, a.Latitude, a.Longitude, now, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update accommodation: %w", err)
	}
	if err := expectAffected(result, fmt.Errorf("%w: accommodation %d", domain.ErrNotFound, a.ID)); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

// DeleteAccommodation removes the accommodation together with its rooms.
// Rooms that carry reservations block the delete.
func (db *DB) DeleteAccommodation(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM accommodations WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("failed to delete accommodation: %w", err)
	}
	return expectAffected(result, fmt.Errorf("%w: accommodation %d", domain.ErrNotFound, id))
}

func (db *DB) CreateRoom(ctx context.Context, r *models.Room) error {
	query := `INSERT INTO rooms (
				accommodation_id, room_no, room_type, price, availability, image, description, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if r.Availability == "" {
		r.Availability = models.AvailabilityAvailable
	}
	result, err := db.ExecContext(ctx, query,
		r.AccommodationID,
		r.RoomNo,
		r.RoomType,
		r.Price,
		r.Availability,
		r.Image,
		r.Description,
		now,
		now,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicateRoom
		case isForeignKeyViolation(err):
			return fmt.Errorf("%w: accommodation %d", domain.ErrNotFound, r.AccommodationID)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	r.UpdatedAt = now
	return nil
}

func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return getRoom(ctx, db.DB, id)
}

// ListRooms returns all rooms, or only those of accommodationID when it is non-zero.
func (db *DB) ListRooms(ctx context.Context, accommodationID int64) ([]*models.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var args []any
	if accommodationID != 0 {
		query += ` WHERE accommodation_id = ?`
		args = append(args, accommodationID)
	}
	query += ` ORDER BY accommodation_id ASC, room_no ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

// UpdateRoomDetails rewrites everything but availability. Moving a room to
// another accommodation is refused with ErrInUse while reservations
// reference it, since they carry the old accommodation id.
func (db *DB) UpdateRoomDetails(ctx context.Context, r *models.Room) error {
	query := `UPDATE rooms
              SET accommodation_id = ?, room_no = ?, room_type = ?, price = ?, image = ?, description = ?, updated_at = ?
              WHERE id = ?
                AND (accommodation_id = ? OR NOT EXISTS (SELECT 1 FROM reservations WHERE room_id = ?))`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		r.AccommodationID, r.RoomNo, r.RoomType, r.Price, r.Image, r.Description, now, r.ID,
		r.AccommodationID, r.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicateRoom
		case isForeignKeyViolation(err):
			return fmt.Errorf("%w: accommodation %d", domain.ErrNotFound, r.AccommodationID)
		}
		return fmt.Errorf("failed to update room: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = ?)`, r.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check room: %w", err)
		}
		if exists {
			return ErrInUse
		}
		return fmt.Errorf("%w: room %d", domain.ErrNotFound, r.ID)
	}
	r.UpdatedAt = now
	return nil
}

func (db *DB) DeleteRoom(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrInUse
		}
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return expectAffected(result, fmt.Errorf("%w: room %d", domain.ErrNotFound, id))
}

func scanAccommodation(s rowScanner) (*models.Accommodation, error) {
	var a models.Accommodation
	err := s.Scan(&a.ID, &a.Name, &a.Image, &a.Description, &a.Latitude, &a.Longitude, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
