package service

import (
	"context"
	"testing"
	"time"

	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInventory(t *testing.T) (*InventoryService, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewInventoryService(db, &logger), db
}

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }
func boolPtr(v bool) *bool          { return &v }

func accommodationInput() AccommodationInput {
	return AccommodationInput{
		Name:        strPtr("Hilltop"),
		Image:       strPtr("hill.jpg"),
		Description: strPtr("Views"),
		Latitude:    float64Ptr(-1.29),
		Longitude:   float64Ptr(36.82),
	}
}

func roomInput(accID int64) RoomInput {
	return RoomInput{
		RoomNo:          intPtr(4),
		RoomType:        strPtr("single"),
		Price:           int64Ptr(9000),
		AccommodationID: int64Ptr(accID),
		Availability:    boolPtr(true),
		Image:           strPtr("r4.jpg"),
		Description:     strPtr("Corner room"),
	}
}

func TestInventoryService_Accommodations(t *testing.T) {
	s, _ := newTestInventory(t)
	ctx := context.Background()

	_, err := s.CreateAccommodation(ctx, user, accommodationInput())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	in := accommodationInput()
	in.Latitude = nil
	_, err = s.CreateAccommodation(ctx, admin, in)
	assert.True(t, domain.IsUnprocessable(err))

	a, err := s.CreateAccommodation(ctx, admin, accommodationInput())
	require.NoError(t, err)
	assert.NotZero(t, a.ID)

	updated, err := s.UpdateAccommodation(ctx, admin, a.ID, AccommodationInput{Description: strPtr("Better views")})
	require.NoError(t, err)
	assert.Equal(t, "Better views", updated.Description)
	assert.Equal(t, "Hilltop", updated.Name)

	_, err = s.UpdateAccommodation(ctx, admin, 999, AccommodationInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := s.ListAccommodations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.DeleteAccommodation(ctx, user, a.ID), domain.ErrForbidden)
	require.NoError(t, s.DeleteAccommodation(ctx, admin, a.ID))
	_, err = s.GetAccommodation(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryService_Rooms(t *testing.T) {
	s, db := newTestInventory(t)
	ctx := context.Background()
	a, err := s.CreateAccommodation(ctx, admin, accommodationInput())
	require.NoError(t, err)

	t.Run("Validation", func(t *testing.T) {
		in := roomInput(a.ID)
		in.Description = nil
		_, err := s.CreateRoom(ctx, admin, in)
		assert.True(t, domain.IsUnprocessable(err))

		in = roomInput(a.ID)
		in.RoomNo = intPtr(101)
		_, err = s.CreateRoom(ctx, admin, in)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.False(t, domain.IsUnprocessable(err))

		in = roomInput(a.ID)
		in.Price = int64Ptr(4999)
		_, err = s.CreateRoom(ctx, admin, in)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = s.CreateRoom(ctx, user, roomInput(a.ID))
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("InitialAvailability", func(t *testing.T) {
		in := roomInput(a.ID)
		in.RoomNo = intPtr(50)
		in.Availability = boolPtr(false)
		r, err := s.CreateRoom(ctx, admin, in)
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityBooked, r.Availability)
	})

	t.Run("CreateUpdateDelete", func(t *testing.T) {
		r, err := s.CreateRoom(ctx, admin, roomInput(a.ID))
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityAvailable, r.Availability)

		_, err = s.CreateRoom(ctx, admin, roomInput(a.ID))
		assert.ErrorIs(t, err, database.ErrDuplicateRoom)

		_, err = s.UpdateRoom(ctx, admin, r.ID, RoomInput{Price: int64Ptr(40000)})
		assert.ErrorIs(t, err, domain.ErrValidation)

		updated, err := s.UpdateRoom(ctx, admin, r.ID, RoomInput{Price: int64Ptr(20000), Availability: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, int64(20000), updated.Price)

		stored, err := s.GetRoom(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AvailabilityAvailable, stored.Availability)

		rooms, err := s.ListRooms(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, rooms, 2)

		require.NoError(t, s.DeleteRoom(ctx, admin, r.ID))
		assert.ErrorIs(t, s.DeleteRoom(ctx, admin, r.ID), domain.ErrNotFound)
	})

	t.Run("MoveBlockedByReservations", func(t *testing.T) {
		target, err := s.CreateAccommodation(ctx, admin, accommodationInput())
		require.NoError(t, err)

		in := roomInput(a.ID)
		in.RoomNo = intPtr(60)
		r, err := s.CreateRoom(ctx, admin, in)
		require.NoError(t, err)

		require.NoError(t, db.WithinTx(ctx, func(tx domain.StoreTx) error {
			return tx.InsertReservation(ctx, &models.Reservation{
				UserID:          7,
				AccommodationID: a.ID,
				RoomID:          r.ID,
				StartDate:       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				EndDate:         time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC),
				Status:          models.StatusCanceled,
			})
		}))

		_, err = s.UpdateRoom(ctx, admin, r.ID, RoomInput{AccommodationID: int64Ptr(target.ID)})
		assert.ErrorIs(t, err, database.ErrInUse)

		stored, err := s.GetRoom(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, stored.AccommodationID)

		// остальные поля менять можно
		updated, err := s.UpdateRoom(ctx, admin, r.ID, RoomInput{Description: strPtr("renovated")})
		require.NoError(t, err)
		assert.Equal(t, "renovated", updated.Description)

		_, err = s.UpdateRoom(ctx, admin, 424242, RoomInput{Description: strPtr("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("MoveWithoutReservations", func(t *testing.T) {
		target, err := s.CreateAccommodation(ctx, admin, accommodationInput())
		require.NoError(t, err)

		in := roomInput(a.ID)
		in.RoomNo = intPtr(61)
		r, err := s.CreateRoom(ctx, admin, in)
		require.NoError(t, err)

		moved, err := s.UpdateRoom(ctx, admin, r.ID, RoomInput{AccommodationID: int64Ptr(target.ID)})
		require.NoError(t, err)
		assert.Equal(t, target.ID, moved.AccommodationID)
	})

	t.Run("UnknownAccommodation", func(t *testing.T) {
		in := roomInput(9999)
		in.RoomNo = intPtr(7)
		_, err := s.CreateRoom(ctx, admin, in)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestInventoryService_Seed(t *testing.T) {
	s, db := newTestInventory(t)
	ctx := context.Background()

	seeds := []models.AccommodationSeed{
		{
			Accommodation: models.Accommodation{Name: "Riverside", Image: "river.jpg", Description: "By the river"},
			Rooms: []models.Room{
				{RoomNo: 1, RoomType: "single", Price: 6000, Image: "1.jpg", Description: "one"},
				{RoomNo: 2, RoomType: "double", Price: 9000, Image: "2.jpg", Description: "two"},
			},
		},
	}

	accs, rooms, err := s.Seed(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 1, accs)
	assert.Equal(t, 2, rooms)

	// second run is a no-op
	accs, rooms, err = s.Seed(ctx, seeds)
	require.NoError(t, err)
	assert.Zero(t, accs)
	assert.Zero(t, rooms)

	all, err := db.ListRooms(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bad := []models.AccommodationSeed{{
		Accommodation: models.Accommodation{Name: "Riverside"},
		Rooms:         []models.Room{{RoomNo: 500, Price: 6000}},
	}}
	_, _, err = s.Seed(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestInventoryService_SeedAvailability(t *testing.T) {
	s, db := newTestInventory(t)
	ctx := context.Background()

	seeds := []models.AccommodationSeed{{
		Accommodation: models.Accommodation{Name: "Dunes", Image: "d.jpg", Description: "Sand"},
		Rooms: []models.Room{
			{RoomNo: 1, RoomType: "single", Price: 6000, Availability: "booked", Image: "1.jpg", Description: "one"},
			{RoomNo: 2, RoomType: "single", Price: 6000, Availability: "true", Image: "2.jpg", Description: "two"},
			{RoomNo: 3, RoomType: "single", Price: 6000, Availability: "false", Image: "3.jpg", Description: "three"},
		},
	}}
	_, rooms, err := s.Seed(ctx, seeds)
	require.NoError(t, err)
	assert.Equal(t, 3, rooms)

	stored, err := db.ListRooms(ctx, 0)
	require.NoError(t, err)
	got := map[int]string{}
	for _, r := range stored {
		got[r.RoomNo] = r.Availability
	}
	assert.Equal(t, map[int]string{
		1: models.AvailabilityBooked,
		2: models.AvailabilityAvailable,
		3: models.AvailabilityBooked,
	}, got)

	bad := []models.AccommodationSeed{{
		Accommodation: models.Accommodation{Name: "Dunes"},
		Rooms:         []models.Room{{RoomNo: 4, RoomType: "single", Price: 6000, Availability: "yes", Image: "4.jpg", Description: "four"}},
	}}
	_, _, err = s.Seed(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
