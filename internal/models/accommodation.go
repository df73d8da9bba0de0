package models

import "time"

type Accommodation struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Image       string    `json:"image" yaml:"image"`
	Description string    `json:"description" yaml:"description"`
	Latitude    float64   `json:"latitude" yaml:"latitude"`
	Longitude   float64   `json:"longitude" yaml:"longitude"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Room is the bookable unit. Availability is written by the reservation
// engine only once the room exists.
type Room struct {
	ID              int64     `json:"id" yaml:"id"`
	AccommodationID int64     `json:"accommodation_id" yaml:"accommodation_id"`
	RoomNo          int       `json:"room_no" yaml:"room_no"`
	RoomType        string    `json:"room_type" yaml:"room_type"`
	Price           int64     `json:"price" yaml:"price"`
	Availability    string    `json:"availability" yaml:"availability"`
	Image           string    `json:"image" yaml:"image"`
	Description     string    `json:"description" yaml:"description"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

func (r *Room) IsAvailable() bool {
	return r.Availability == AvailabilityAvailable
}

// AccommodationSeed is one entry of the inventory seed file.
type AccommodationSeed struct {
	Accommodation `yaml:",inline"`
	Rooms         []Room `yaml:"rooms"`
}
