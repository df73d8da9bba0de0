package models

import "time"

// Reservation covers the half-open interval [StartDate, EndDate).
type Reservation struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	AccommodationID int64     `json:"accommodation_id"`
	RoomID          int64     `json:"room_id"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (r *Reservation) IsConfirmed() bool {
	return r.Status == StatusConfirmed
}

func (r *Reservation) IsCanceled() bool {
	return r.Status == StatusCanceled
}

// ReservationView is a reservation joined with its room for listings.
type ReservationView struct {
	Reservation
	RoomType        string `json:"room_type"`
	RoomImage       string `json:"room_image"`
	RoomDescription string `json:"room_description"`
	RoomPrice       int64  `json:"room_price"`
}

// BookedRange is one entry of a room's reservation calendar.
type BookedRange struct {
	ReservationID int64     `json:"reservation_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Status        string    `json:"status"`
}

// CancelResult reports the state after a successful cancel.
type CancelResult struct {
	Reservation      Reservation `json:"reservation"`
	RoomAvailability string      `json:"room_availability"`
}
