package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staybook/internal/auth"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/models"

	"github.com/rs/zerolog"
)

// ErrDateFormat is returned for dates not in YYYY-MM-DD HH:MM.
var ErrDateFormat = fmt.Errorf("%w: Invalid date format. Use YYYY-MM-DD HH:MM", domain.ErrValidation)

// CreateReservationInput carries the raw request fields. A nil field was
// absent from the request.
type CreateReservationInput struct {
	AccommodationID *int64  `json:"accommodation_id"`
	RoomID          *int64  `json:"room_id"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
}

type ReservationService struct {
	engine     domain.ReservationEngine
	eventBus   domain.EventPublisher
	syncWorker domain.SyncWorker
	logger     *zerolog.Logger
}

func NewReservationService(engine domain.ReservationEngine, eventBus domain.EventPublisher, syncWorker domain.SyncWorker, logger *zerolog.Logger) *ReservationService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReservationService{
		engine:     engine,
		eventBus:   eventBus,
		syncWorker: syncWorker,
		logger:     logger,
	}
}

// ParseDateTime parses YYYY-MM-DD HH:MM as UTC.
func ParseDateTime(raw string) (time.Time, error) {
	t, err := time.Parse(models.DateTimeLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrDateFormat
	}
	return t, nil
}

func (s *ReservationService) Create(ctx context.Context, caller models.Caller, in CreateReservationInput) (*models.Reservation, error) {
	if !auth.Allow(caller.Role, auth.ActionReserve, false) {
		return nil, fmt.Errorf("%w: only users can make reservations", domain.ErrForbidden)
	}

	switch {
	case in.AccommodationID == nil:
		return nil, domain.Unprocessable("accommodation_id is required")
	case in.RoomID == nil:
		return nil, domain.Unprocessable("room_id is required")
	case in.StartDate == nil:
		return nil, domain.Unprocessable("start_date is required")
	case in.EndDate == nil:
		return nil, domain.Unprocessable("end_date is required")
	}

	start, err := ParseDateTime(*in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := ParseDateTime(*in.EndDate)
	if err != nil {
		return nil, err
	}

	r, err := s.engine.TryReserve(ctx, caller.ID, *in.RoomID, *in.AccommodationID, start, end)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationCreated, r, "", caller)
	s.enqueueSync(ctx, r, models.SyncTaskUpsert)
	return r, nil
}

func (s *ReservationService) Cancel(ctx context.Context, caller models.Caller, reservationID int64) (*models.CancelResult, error) {
	res, err := s.engine.Cancel(ctx, reservationID, caller)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationCanceled, &res.Reservation, res.RoomAvailability, caller)
	s.enqueueSync(ctx, &res.Reservation, models.SyncTaskUpdateStatus)
	return res, nil
}

// List returns reservations visible to the caller.
func (s *ReservationService) List(ctx context.Context, caller models.Caller) ([]*models.ReservationView, error) {
	return s.engine.ListForCaller(ctx, caller)
}

// ListAll is the admin view used by exports and the sheet rebuild.
func (s *ReservationService) ListAll(ctx context.Context, caller models.Caller) ([]*models.ReservationView, error) {
	if !auth.Allow(caller.Role, auth.ActionListAll, false) {
		return nil, fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return s.engine.ListForCaller(ctx, caller)
}

func (s *ReservationService) BookedDates(ctx context.Context, roomID int64) ([]models.BookedRange, error) {
	return s.engine.ListBookedDates(ctx, roomID)
}

func (s *ReservationService) publishEvent(eventType string, r *models.Reservation, roomAvailability string, caller models.Caller) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID:    r.ID,
		UserID:           r.UserID,
		AccommodationID:  r.AccommodationID,
		RoomID:           r.RoomID,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		Status:           r.Status,
		RoomAvailability: roomAvailability,
		ChangedBy:        string(caller.Role),
		ChangedByID:      caller.ID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("reservation_id", r.ID).Msg("publish event error")
	}
}

func (s *ReservationService) enqueueSync(ctx context.Context, r *models.Reservation, taskType string) {
	if s.syncWorker == nil {
		return
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, r); err != nil {
		s.logger.Error().Err(err).Int64("reservation_id", r.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
