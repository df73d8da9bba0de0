package domain

import (
	"context"
	"time"

	"staybook/internal/models"
)

// ReservationStore is the only way the engine reaches durable state.
// WithinTx runs fn in one serializable transaction and commits when fn
// returns nil.
type ReservationStore interface {
	WithinTx(ctx context.Context, fn func(tx StoreTx) error) error
	ListReservationViews(ctx context.Context) ([]*models.ReservationView, error)
	ListReservationViewsByUser(ctx context.Context, userID int64) ([]*models.ReservationView, error)
	ListBookedRanges(ctx context.Context, roomID int64) ([]models.BookedRange, error)
}

// StoreTx is the transactional view used during admission and cancel.
type StoreTx interface {
	GetRoom(ctx context.Context, roomID int64) (*models.Room, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	ConfirmedReservationsForRoom(ctx context.Context, roomID int64) ([]*models.Reservation, error)
	InsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, id int64, status string) error
	SetRoomAvailability(ctx context.Context, roomID int64, availability string) error
}

type InventoryRepository interface {
	CreateAccommodation(ctx context.Context, a *models.Accommodation) error
	GetAccommodation(ctx context.Context, id int64) (*models.Accommodation, error)
	ListAccommodations(ctx context.Context) ([]*models.Accommodation, error)
	UpdateAccommodation(ctx context.Context, a *models.Accommodation) error
	DeleteAccommodation(ctx context.Context, id int64) error
	CreateRoom(ctx context.Context, r *models.Room) error
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context, accommodationID int64) ([]*models.Room, error)
	UpdateRoomDetails(ctx context.Context, r *models.Room) error
	DeleteRoom(ctx context.Context, id int64) error
}

// RoomLocker serializes admission per room across goroutines or processes.
type RoomLocker interface {
	Lock(ctx context.Context, roomID int64) (unlock func(), err error)
}

// ReservationEngine decides admission and performs cancel transitions.
type ReservationEngine interface {
	TryReserve(ctx context.Context, userID, roomID, accommodationID int64, start, end time.Time) (*models.Reservation, error)
	Cancel(ctx context.Context, reservationID int64, caller models.Caller) (*models.CancelResult, error)
	ListForCaller(ctx context.Context, caller models.Caller) ([]*models.ReservationView, error)
	ListBookedDates(ctx context.Context, roomID int64) ([]models.BookedRange, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, reservation *models.Reservation) error
}

// SheetsWriter mirrors reservations into a spreadsheet.
type SheetsWriter interface {
	UpsertReservation(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatus(ctx context.Context, reservationID int64, status string) error
	ReplaceReservations(ctx context.Context, reservations []*models.ReservationView) error
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}
