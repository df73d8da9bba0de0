package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/models"
	"staybook/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) TryReserve(ctx context.Context, userID, roomID, accommodationID int64, start, end time.Time) (*models.Reservation, error) {
	args := m.Called(ctx, userID, roomID, accommodationID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockEngine) Cancel(ctx context.Context, reservationID int64, caller models.Caller) (*models.CancelResult, error) {
	args := m.Called(ctx, reservationID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CancelResult), args.Error(1)
}

func (m *mockEngine) ListForCaller(ctx context.Context, caller models.Caller) ([]*models.ReservationView, error) {
	args := m.Called(ctx, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReservationView), args.Error(1)
}

func (m *mockEngine) ListBookedDates(ctx context.Context, roomID int64) ([]models.BookedRange, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BookedRange), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueTask(ctx context.Context, taskType string, r *models.Reservation) error {
	return m.Called(ctx, taskType, r).Error(0)
}

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func validInput() CreateReservationInput {
	return CreateReservationInput{
		AccommodationID: int64Ptr(1),
		RoomID:          int64Ptr(2),
		StartDate:       strPtr("2025-01-01 14:00"),
		EndDate:         strPtr("2025-02-15 10:00"),
	}
}

func newTestReservationService() (*ReservationService, *mockEngine, *mockEventBus, *mockWorker) {
	engine := new(mockEngine)
	bus := new(mockEventBus)
	worker := new(mockWorker)
	logger := zerolog.New(io.Discard)
	return NewReservationService(engine, bus, worker, &logger), engine, bus, worker
}

var (
	user  = models.Caller{ID: 7, Role: models.RoleUser}
	admin = models.Caller{ID: 1, Role: models.RoleAdmin}
)

func TestReservationService_Create(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		s, engine, bus, worker := newTestReservationService()
		created := &models.Reservation{ID: 10, UserID: 7, AccommodationID: 1, RoomID: 2, StartDate: start, EndDate: end, Status: models.StatusConfirmed}

		engine.On("TryReserve", ctx, int64(7), int64(2), int64(1), start, end).Return(created, nil).Once()
		bus.On("PublishJSON", events.EventReservationCreated, mock.MatchedBy(func(p events.ReservationEventPayload) bool {
			return p.ReservationID == 10 && p.ChangedByID == 7 && p.Status == models.StatusConfirmed
		})).Return(nil).Once()
		worker.On("EnqueueTask", ctx, models.SyncTaskUpsert, created).Return(nil).Once()

		got, err := s.Create(ctx, user, validInput())
		require.NoError(t, err)
		assert.Equal(t, created, got)
		engine.AssertExpectations(t)
		bus.AssertExpectations(t)
		worker.AssertExpectations(t)
	})

	t.Run("AdminForbidden", func(t *testing.T) {
		s, engine, _, _ := newTestReservationService()
		_, err := s.Create(ctx, admin, validInput())
		assert.ErrorIs(t, err, domain.ErrForbidden)
		engine.AssertNotCalled(t, "TryReserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MissingFields", func(t *testing.T) {
		s, _, _, _ := newTestReservationService()
		for _, mutate := range []func(*CreateReservationInput){
			func(in *CreateReservationInput) { in.AccommodationID = nil },
			func(in *CreateReservationInput) { in.RoomID = nil },
			func(in *CreateReservationInput) { in.StartDate = nil },
			func(in *CreateReservationInput) { in.EndDate = nil },
		} {
			in := validInput()
			mutate(&in)
			_, err := s.Create(ctx, user, in)
			assert.True(t, domain.IsUnprocessable(err))
			assert.ErrorIs(t, err, domain.ErrValidation)
		}
	})

	t.Run("BadDateFormat", func(t *testing.T) {
		s, _, _, _ := newTestReservationService()
		in := validInput()
		in.StartDate = strPtr("01/01/2025")
		_, err := s.Create(ctx, user, in)
		assert.ErrorIs(t, err, ErrDateFormat)
		assert.False(t, domain.IsUnprocessable(err))
	})

	t.Run("EngineConflictNoSideEffects", func(t *testing.T) {
		s, engine, bus, worker := newTestReservationService()
		engine.On("TryReserve", ctx, int64(7), int64(2), int64(1), start, end).Return(nil, domain.ErrConflict).Once()

		_, err := s.Create(ctx, user, validInput())
		assert.ErrorIs(t, err, domain.ErrConflict)
		bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
		worker.AssertNotCalled(t, "EnqueueTask", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("SideEffectFailuresAreLoggedOnly", func(t *testing.T) {
		s, engine, bus, worker := newTestReservationService()
		created := &models.Reservation{ID: 11, UserID: 7}
		engine.On("TryReserve", ctx, int64(7), int64(2), int64(1), start, end).Return(created, nil).Once()
		bus.On("PublishJSON", mock.Anything, mock.Anything).Return(errors.New("bus down")).Once()
		worker.On("EnqueueTask", ctx, models.SyncTaskUpsert, created).Return(errors.New("queue full")).Once()

		got, err := s.Create(ctx, user, validInput())
		require.NoError(t, err)
		assert.Equal(t, int64(11), got.ID)
	})
}

func TestReservationService_Cancel(t *testing.T) {
	ctx := context.Background()
	s, engine, bus, worker := newTestReservationService()

	res := &models.CancelResult{
		Reservation:      models.Reservation{ID: 5, UserID: 7, Status: models.StatusCanceled},
		RoomAvailability: models.AvailabilityAvailable,
	}
	engine.On("Cancel", ctx, int64(5), user).Return(res, nil).Once()
	bus.On("PublishJSON", events.EventReservationCanceled, mock.MatchedBy(func(p events.ReservationEventPayload) bool {
		return p.RoomAvailability == models.AvailabilityAvailable
	})).Return(nil).Once()
	worker.On("EnqueueTask", ctx, models.SyncTaskUpdateStatus, &res.Reservation).Return(nil).Once()

	got, err := s.Cancel(ctx, user, 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Reservation.Status)

	engine.On("Cancel", ctx, int64(6), user).Return(nil, domain.ErrAlreadyCanceled).Once()
	_, err = s.Cancel(ctx, user, 6)
	assert.ErrorIs(t, err, domain.ErrAlreadyCanceled)

	engine.AssertExpectations(t)
	bus.AssertExpectations(t)
	worker.AssertExpectations(t)
}

func TestReservationService_Lists(t *testing.T) {
	ctx := context.Background()
	s, engine, _, _ := newTestReservationService()

	views := []*models.ReservationView{{Reservation: models.Reservation{ID: 1}}}
	engine.On("ListForCaller", ctx, admin).Return(views, nil)
	engine.On("ListForCaller", ctx, user).Return([]*models.ReservationView{}, nil)
	engine.On("ListBookedDates", ctx, int64(3)).Return([]models.BookedRange{{ReservationID: 1}}, nil)

	got, err := s.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = s.ListAll(ctx, user)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	own, err := s.List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, own)

	ranges, err := s.BookedDates(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
}

func TestReservationService_NilCollaborators(t *testing.T) {
	engine := new(mockEngine)
	s := NewReservationService(engine, nil, nil, nil)
	ctx := context.Background()
	engine.On("TryReserve", ctx, int64(7), int64(2), int64(1), mock.Anything, mock.Anything).
		Return(&models.Reservation{ID: 1}, nil)

	_, err := s.Create(ctx, user, validInput())
	assert.NoError(t, err)
}

func TestCreateInputDecodesAbsentFields(t *testing.T) {
	var in CreateReservationInput
	require.NoError(t, json.Unmarshal([]byte(`{"room_id": 3, "start_date": "2025-01-01 00:00"}`), &in))
	assert.Nil(t, in.AccommodationID)
	require.NotNil(t, in.RoomID)
	assert.Equal(t, int64(3), *in.RoomID)
	assert.Nil(t, in.EndDate)
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime(" 2025-03-04 05:06 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 4, 5, 6, 0, 0, time.UTC), got)

	for _, raw := range []string{"", "2025-03-04", "2025-13-01 00:00", "2025-03-04T05:06:00Z"} {
		_, err := ParseDateTime(raw)
		assert.ErrorIs(t, err, ErrDateFormat, raw)
	}
}

// stalledSender blocks every Send until release is closed.
type stalledSender struct {
	release chan struct{}
	calls   chan int64
}

func (s *stalledSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.calls <- c.(tgbotapi.MessageConfig).ChatID
	<-s.release
	return tgbotapi.Message{}, nil
}

func TestReservationService_CreateDoesNotWaitForNotifications(t *testing.T) {
	start := time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)
	created := &models.Reservation{ID: 10, UserID: 7, AccommodationID: 1, RoomID: 2, StartDate: start, EndDate: end, Status: models.StatusConfirmed}

	engine := new(mockEngine)
	engine.On("TryReserve", mock.Anything, int64(7), int64(2), int64(1), start, end).Return(created, nil).Once()

	sender := &stalledSender{release: make(chan struct{}), calls: make(chan int64, 4)}
	defer close(sender.release)

	bus := events.NewEventBus()
	logger := zerolog.New(io.Discard)
	notifier := notify.NewTelegramNotifier(sender, []int64{100, 200}, &logger)
	notifier.Subscribe(bus)

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	go notifier.Start(runCtx)

	s := NewReservationService(engine, bus, nil, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	began := time.Now()
	got, err := s.Create(ctx, user, validInput())
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Less(t, time.Since(began), 100*time.Millisecond)

	select {
	case chatID := <-sender.calls:
		assert.Equal(t, int64(100), chatID)
	case <-time.After(time.Second):
		t.Fatal("notification was not delivered in the background")
	}
}
