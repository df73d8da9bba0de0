package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertReservation(t *testing.T, db *DB, room *models.Room, userID int64, start, end string, status string) *models.Reservation {
	t.Helper()
	r := &models.Reservation{
		UserID:          userID,
		AccommodationID: room.AccommodationID,
		RoomID:          room.ID,
		StartDate:       date(start),
		EndDate:         date(end),
		Status:          status,
	}
	err := db.WithinTx(context.Background(), func(tx domain.StoreTx) error {
		return tx.InsertReservation(context.Background(), r)
	})
	require.NoError(t, err)
	return r
}

func TestWithinTx_CommitAndRead(t *testing.T) {
	db := setupTestDB(t)
	_, room := seedRoom(t, db)
	ctx := context.Background()

	r := insertReservation(t, db, room, 7, "2024-01-01 00:00", "2024-03-01 00:00", models.StatusConfirmed)
	require.NotZero(t, r.ID)

	got, err := db.GetReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.True(t, got.StartDate.Equal(date("2024-01-01 00:00")))
	assert.True(t, got.EndDate.Equal(date("2024-03-01 00:00")))
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	_, room := seedRoom(t, db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(tx domain.StoreTx) error {
		r := &models.Reservation{
			UserID: 1, AccommodationID: room.AccommodationID, RoomID: room.ID,
			StartDate: date("2024-01-01 00:00"), EndDate: date("2024-03-01 00:00"),
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.SetRoomAvailability(ctx, room.ID, models.AvailabilityBooked); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	ranges, err := db.ListBookedRanges(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, ranges)

	got, err := db.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AvailabilityAvailable, got.Availability)
}

func TestStoreTx_NotFound(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithinTx(ctx, func(tx domain.StoreTx) error {
		_, err := tx.GetRoom(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = tx.GetReservation(ctx, 404)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		assert.ErrorIs(t, tx.UpdateReservationStatus(ctx, 404, models.StatusCanceled), domain.ErrNotFound)
		assert.ErrorIs(t, tx.SetRoomAvailability(ctx, 404, models.AvailabilityBooked), domain.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestConfirmedReservationsForRoom_SkipsCanceled(t *testing.T) {
	db := setupTestDB(t)
	_, room := seedRoom(t, db)
	ctx := context.Background()

	insertReservation(t, db, room, 1, "2024-05-01 00:00", "2024-06-15 00:00", models.StatusConfirmed)
	insertReservation(t, db, room, 2, "2024-01-01 00:00", "2024-03-01 00:00", models.StatusCanceled)
	insertReservation(t, db, room, 3, "2024-03-01 00:00", "2024-04-15 00:00", models.StatusConfirmed)

	var got []*models.Reservation
	err := db.WithinTx(ctx, func(tx domain.StoreTx) error {
		var err error
		got, err = tx.ConfirmedReservationsForRoom(ctx, room.ID)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].UserID, "ordered by start date")
	assert.Equal(t, int64(1), got[1].UserID)
}

func TestListBookedRanges_IncludesEveryStatus(t *testing.T) {
	db := setupTestDB(t)
	_, room := seedRoom(t, db)
	ctx := context.Background()

	insertReservation(t, db, room, 1, "2024-01-01 00:00", "2024-03-01 00:00", models.StatusCanceled)
	insertReservation(t, db, room, 2, "2024-03-01 00:00", "2024-04-15 00:00", models.StatusConfirmed)

	ranges, err := db.ListBookedRanges(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, models.StatusCanceled, ranges[0].Status)
	assert.Equal(t, models.StatusConfirmed, ranges[1].Status)

	empty, err := db.ListBookedRanges(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestListReservationViews(t *testing.T) {
	db := setupTestDB(t)
	_, room := seedRoom(t, db)
	ctx := context.Background()

	insertReservation(t, db, room, 1, "2024-01-01 00:00", "2024-03-01 00:00", models.StatusConfirmed)
	insertReservation(t, db, room, 2, "2024-03-01 00:00", "2024-04-15 00:00", models.StatusConfirmed)

	all, err := db.ListReservationViews(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "single", all[0].RoomType)
	assert.Equal(t, "room12.jpg", all[0].RoomImage)
	assert.Equal(t, "Single room with a desk", all[0].RoomDescription)
	assert.Equal(t, int64(12000), all[0].RoomPrice)

	mine, err := db.ListReservationViewsByUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, int64(2), mine[0].UserID)

	none, err := db.ListReservationViewsByUser(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWithinTx_BusyMapsToConflict(t *testing.T) {
	db := setupFileDB(t, WithBusyTimeout(50))
	ctx := context.Background()

	holding := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = db.WithinTx(ctx, func(tx domain.StoreTx) error {
			close(holding)
			<-release
			return nil
		})
	}()

	<-holding
	err := db.WithinTx(ctx, func(tx domain.StoreTx) error { return nil })
	close(release)
	wg.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestWithinTx_ContextCanceled(t *testing.T) {
	db := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.WithinTx(ctx, func(tx domain.StoreTx) error { return nil })
	assert.Error(t, err)
}

func TestReservationTimestamps(t *testing.T) {
	db := setupTestDB(t)
	_, room := seedRoom(t, db)

	before := time.Now().Add(-time.Second)
	r := insertReservation(t, db, room, 1, "2024-01-01 00:00", "2024-03-01 00:00", "")
	assert.Equal(t, models.StatusConfirmed, r.Status, "empty status defaults to confirmed")
	assert.True(t, r.CreatedAt.After(before))
}
