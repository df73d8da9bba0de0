package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"staybook/internal/auth"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/rs/zerolog"
)

const missingFields = "Missing required fields!"

// AccommodationInput holds create and patch fields; nil means not sent.
type AccommodationInput struct {
	Name        *string  `json:"name"`
	Image       *string  `json:"image"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// RoomInput holds create and patch fields; nil means not sent.
// Availability is read on create only.
type RoomInput struct {
	RoomNo          *int    `json:"room_no"`
	RoomType        *string `json:"room_type"`
	Price           *int64  `json:"price"`
	AccommodationID *int64  `json:"accommodation_id"`
	Availability    *bool   `json:"availability"`
	Image           *string `json:"image"`
	Description     *string `json:"description"`
}

type InventoryService struct {
	repo   domain.InventoryRepository
	logger *zerolog.Logger
}

func NewInventoryService(repo domain.InventoryRepository, logger *zerolog.Logger) *InventoryService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &InventoryService{repo: repo, logger: logger}
}

func requireManager(caller models.Caller, what string) error {
	if !auth.Allow(caller.Role, auth.ActionManageInventory, false) {
		return fmt.Errorf("%w: only admins can %s", domain.ErrForbidden, what)
	}
	return nil
}

func validateRoomNo(n int) error {
	if n < models.MinRoomNo || n > models.MaxRoomNo {
		return fmt.Errorf("%w: Hostel rooms must be between %d and %d", domain.ErrValidation, models.MinRoomNo, models.MaxRoomNo)
	}
	return nil
}

// normalizeAvailability accepts the stored flag values or a YAML boolean
// the way CreateRoom reads one. Empty means available.
func normalizeAvailability(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "true", models.AvailabilityAvailable:
		return models.AvailabilityAvailable, nil
	case "false", models.AvailabilityBooked:
		return models.AvailabilityBooked, nil
	default:
		return "", fmt.Errorf("%w: availability must be %q or %q, got %q",
			domain.ErrValidation, models.AvailabilityAvailable, models.AvailabilityBooked, raw)
	}
}

func validatePrice(p int64) error {
	if p < models.MinRoomPrice || p > models.MaxRoomPrice {
		return fmt.Errorf("%w: Room price must be between %d and %d", domain.ErrValidation, models.MinRoomPrice, models.MaxRoomPrice)
	}
	return nil
}

func (s *InventoryService) CreateAccommodation(ctx context.Context, caller models.Caller, in AccommodationInput) (*models.Accommodation, error) {
	if err := requireManager(caller, "add accommodations"); err != nil {
		return nil, err
	}
	if in.Name == nil || in.Image == nil || in.Description == nil || in.Latitude == nil || in.Longitude == nil {
		return nil, domain.Unprocessable(missingFields)
	}

	a := &models.Accommodation{
		Name:        *in.Name,
		Image:       *in.Image,
		Description: *in.Description,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
	}
	if err := s.repo.CreateAccommodation(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("accommodation_id", a.ID).Str("name", a.Name).Msg("accommodation created")
	return a, nil
}

func (s *InventoryService) GetAccommodation(ctx context.Context, id int64) (*models.Accommodation, error) {
	return s.repo.GetAccommodation(ctx, id)
}

func (s *InventoryService) ListAccommodations(ctx context.Context) ([]*models.Accommodation, error) {
	return s.repo.ListAccommodations(ctx)
}

// UpdateAccommodation applies only the fields present in the input.
func (s *InventoryService) UpdateAccommodation(ctx context.Context, caller models.Caller, id int64, in AccommodationInput) (*models.Accommodation, error) {
	if err := requireManager(caller, "edit accommodations"); err != nil {
		return nil, err
	}
	a, err := s.repo.GetAccommodation(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		a.Name = *in.Name
	}
	if in.Image != nil {
		a.Image = *in.Image
	}
	if in.Description != nil {
		a.Description = *in.Description
	}
	if in.Latitude != nil {
		a.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		a.Longitude = *in.Longitude
	}

	if err := s.repo.UpdateAccommodation(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAccommodation removes the accommodation and its rooms.
func (s *InventoryService) DeleteAccommodation(ctx context.Context, caller models.Caller, id int64) error {
	if err := requireManager(caller, "delete accommodations"); err != nil {
		return err
	}
	if err := s.repo.DeleteAccommodation(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Int64("accommodation_id", id).Msg("accommodation deleted")
	return nil
}

func (s *InventoryService) CreateRoom(ctx context.Context, caller models.Caller, in RoomInput) (*models.Room, error) {
	if err := requireManager(caller, "add rooms"); err != nil {
		return nil, err
	}
	if in.RoomNo == nil || in.RoomType == nil || in.Price == nil || in.AccommodationID == nil ||
		in.Availability == nil || in.Image == nil || in.Description == nil {
		return nil, domain.Unprocessable(missingFields)
	}
	if err := validateRoomNo(*in.RoomNo); err != nil {
		return nil, err
	}
	if err := validatePrice(*in.Price); err != nil {
		return nil, err
	}

	availability := models.AvailabilityBooked
	if *in.Availability {
		availability = models.AvailabilityAvailable
	}
	r := &models.Room{
		AccommodationID: *in.AccommodationID,
		RoomNo:          *in.RoomNo,
		RoomType:        *in.RoomType,
		Price:           *in.Price,
		Availability:    availability,
		Image:           *in.Image,
		Description:     *in.Description,
	}
	if err := s.repo.CreateRoom(ctx, r); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("room_id", r.ID).Int64("accommodation_id", r.AccommodationID).Int("room_no", r.RoomNo).Msg("room created")
	return r, nil
}

func (s *InventoryService) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	return s.repo.GetRoom(ctx, id)
}

// ListRooms lists every room, or one accommodation's rooms when
// accommodationID is non-zero.
func (s *InventoryService) ListRooms(ctx context.Context, accommodationID int64) ([]*models.Room, error) {
	return s.repo.ListRooms(ctx, accommodationID)
}

// UpdateRoom applies the fields present in the input. The availability
// flag is never changed here.
func (s *InventoryService) UpdateRoom(ctx context.Context, caller models.Caller, id int64, in RoomInput) (*models.Room, error) {
	if err := requireManager(caller, "edit rooms"); err != nil {
		return nil, err
	}
	r, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.RoomNo != nil {
		if err := validateRoomNo(*in.RoomNo); err != nil {
			return nil, err
		}
		r.RoomNo = *in.RoomNo
	}
	if in.Price != nil {
		if err := validatePrice(*in.Price); err != nil {
			return nil, err
		}
		r.Price = *in.Price
	}
	if in.AccommodationID != nil {
		r.AccommodationID = *in.AccommodationID
	}
	if in.RoomType != nil {
		r.RoomType = *in.RoomType
	}
	if in.Image != nil {
		r.Image = *in.Image
	}
	if in.Description != nil {
		r.Description = *in.Description
	}

	if err := s.repo.UpdateRoomDetails(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *InventoryService) DeleteRoom(ctx context.Context, caller models.Caller, id int64) error {
	if err := requireManager(caller, "delete rooms"); err != nil {
		return err
	}
	return s.repo.DeleteRoom(ctx, id)
}

// Seed loads accommodations and rooms that are not stored yet. Entries are
// matched by accommodation name and by room number within it.
func (s *InventoryService) Seed(ctx context.Context, seeds []models.AccommodationSeed) (accommodations, rooms int, err error) {
	existing, err := s.repo.ListAccommodations(ctx)
	if err != nil {
		return 0, 0, err
	}
	byName := make(map[string]int64, len(existing))
	for _, a := range existing {
		byName[a.Name] = a.ID
	}

	for _, seed := range seeds {
		accID, ok := byName[seed.Name]
		if !ok {
			a := seed.Accommodation
			a.ID = 0
			if err := s.repo.CreateAccommodation(ctx, &a); err != nil {
				return accommodations, rooms, fmt.Errorf("seed accommodation %q: %w", seed.Name, err)
			}
			accID = a.ID
			byName[a.Name] = accID
			accommodations++
		}

		for _, room := range seed.Rooms {
			if err := validateRoomNo(room.RoomNo); err != nil {
				return accommodations, rooms, fmt.Errorf("seed room %d of %q: %w", room.RoomNo, seed.Name, err)
			}
			if err := validatePrice(room.Price); err != nil {
				return accommodations, rooms, fmt.Errorf("seed room %d of %q: %w", room.RoomNo, seed.Name, err)
			}
			availability, err := normalizeAvailability(room.Availability)
			if err != nil {
				return accommodations, rooms, fmt.Errorf("seed room %d of %q: %w", room.RoomNo, seed.Name, err)
			}
			r := room
			r.ID = 0
			r.AccommodationID = accID
			r.Availability = availability
			if err := s.repo.CreateRoom(ctx, &r); err != nil {
				if errors.Is(err, database.ErrDuplicateRoom) {
					continue
				}
				return accommodations, rooms, fmt.Errorf("seed room %d of %q: %w", room.RoomNo, seed.Name, err)
			}
			rooms++
		}
	}

	s.logger.Info().Int("accommodations", accommodations).Int("rooms", rooms).Msg("inventory seeded")
	return accommodations, rooms, nil
}
