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

const reservationColumns = `id, user_id, accommodation_id, room_id, start_date, end_date, status, created_at, updated_at`

const roomColumns = `id, accommodation_id, room_no, room_type, price, availability, image, description, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithinTx runs fn inside a BEGIN IMMEDIATE transaction. Lock contention
// that outlives the busy timeout surfaces as ErrSerialization.
func (db *DB) WithinTx(ctx context.Context, fn func(tx domain.StoreTx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return translateTxError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&storeTx{q: tx}); err != nil {
		return translateTxError(err)
	}

	if err := tx.Commit(); err != nil {
		return translateTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

type storeTx struct {
	q queryer
}

func (t *storeTx) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	return getRoom(ctx, t.q, roomID)
}

func (t *storeTx) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reservation %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (t *storeTx) ConfirmedReservationsForRoom(ctx context.Context, roomID int64) ([]*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
              WHERE room_id = ? AND status = ?
              ORDER BY start_date ASC`
	rows, err := t.q.QueryContext(ctx, query, roomID, models.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to query confirmed reservations: %w", err)
	}
	defer rows.Close()

	var out []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *storeTx) InsertReservation(ctx context.Context, r *models.Reservation) error {
	query := `INSERT INTO reservations (
				user_id, accommodation_id, room_id, start_date, end_date, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if r.Status == "" {
		r.Status = models.StatusConfirmed
	}
	result, err := t.q.ExecContext(ctx, query,
		r.UserID,
		r.AccommodationID,
		r.RoomID,
		r.StartDate.UTC(),
		r.EndDate.UTC(),
		r.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
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

func (t *storeTx) UpdateReservationStatus(ctx context.Context, id int64, status string) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	return expectAffected(result, fmt.Errorf("%w: reservation %d", domain.ErrNotFound, id))
}

func (t *storeTx) SetRoomAvailability(ctx context.Context, roomID int64, availability string) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE rooms SET availability = ?, updated_at = ? WHERE id = ?`,
		availability, time.Now().UTC(), roomID)
	if err != nil {
		return fmt.Errorf("failed to update room availability: %w", err)
	}
	return expectAffected(result, fmt.Errorf("%w: room %d", domain.ErrNotFound, roomID))
}

// ListReservationViews returns every reservation joined with its room.
func (db *DB) ListReservationViews(ctx context.Context) ([]*models.ReservationView, error) {
	return db.listViews(ctx, ``)
}

func (db *DB) ListReservationViewsByUser(ctx context.Context, userID int64) ([]*models.ReservationView, error) {
	return db.listViews(ctx, `WHERE r.user_id = ?`, userID)
}

func (db *DB) listViews(ctx context.Context, where string, args ...any) ([]*models.ReservationView, error) {
	query := `SELECT r.id, r.user_id, r.accommodation_id, r.room_id, r.start_date, r.end_date,
	                 r.status, r.created_at, r.updated_at,
	                 rm.room_type, rm.image, rm.description, rm.price
	          FROM reservations r
	          JOIN rooms rm ON rm.id = r.room_id
	          ` + where + `
	          ORDER BY r.start_date ASC, r.id ASC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.ReservationView, 0)
	for rows.Next() {
		var v models.ReservationView
		err := rows.Scan(
			&v.ID, &v.UserID, &v.AccommodationID, &v.RoomID, &v.StartDate, &v.EndDate,
			&v.Status, &v.CreatedAt, &v.UpdatedAt,
			&v.RoomType, &v.RoomImage, &v.RoomDescription, &v.RoomPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation view: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// ListBookedRanges returns the room calendar across every status.
func (db *DB) ListBookedRanges(ctx context.Context, roomID int64) ([]models.BookedRange, error) {
	query := `SELECT id, start_date, end_date, status FROM reservations
              WHERE room_id = ? ORDER BY start_date ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booked dates: %w", err)
	}
	defer rows.Close()

	out := make([]models.BookedRange, 0)
	for rows.Next() {
		var b models.BookedRange
		if err := rows.Scan(&b.ReservationID, &b.StartDate, &b.EndDate, &b.Status); err != nil {
			return nil, fmt.Errorf("failed to scan booked range: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetReservation reads a reservation outside of any transaction.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return (&storeTx{q: db.DB}).GetReservation(ctx, id)
}

func getRoom(ctx context.Context, q queryer, roomID int64) (*models.Room, error) {
	row := q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, roomID)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: room %d", domain.ErrNotFound, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func scanReservation(s rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	err := s.Scan(&r.ID, &r.UserID, &r.AccommodationID, &r.RoomID, &r.StartDate, &r.EndDate,
		&r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRoom(s rowScanner) (*models.Room, error) {
	var r models.Room
	err := s.Scan(&r.ID, &r.AccommodationID, &r.RoomNo, &r.RoomType, &r.Price, &r.Availability,
		&r.Image, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func expectAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
