package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/auth"
	"staybook/internal/config"
	"staybook/internal/domain"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/models"

	"github.com/rs/zerolog"
)

// Engine admits reservations and performs cancel transitions. All durable
// state goes through the store; the locker serializes admission per room.
type Engine struct {
	store   domain.ReservationStore
	locker  domain.RoomLocker
	minStay time.Duration
	// recompute keeps a room booked after cancel while other confirmed
	// reservations remain. Off by default.
	recompute bool
	logger    zerolog.Logger
}

var _ domain.ReservationEngine = (*Engine)(nil)

func NewEngine(store domain.ReservationStore, locker domain.RoomLocker, cfg config.BookingConfig, logger *zerolog.Logger) *Engine {
	days := cfg.MinStayDays
	if days <= 0 {
		days = models.DefaultMinStayDays
	}
	if locker == nil {
		locker = noLock{}
	}
	return &Engine{
		store:     store,
		locker:    locker,
		minStay:   time.Duration(days) * 24 * time.Hour,
		recompute: cfg.RecomputeAvailabilityOnCancel,
		logger:    logging.Component(logger, "booking"),
	}
}

// TryReserve admits [start, end) on the room or explains why not.
func (e *Engine) TryReserve(ctx context.Context, userID, roomID, accommodationID int64, start, end time.Time) (*models.Reservation, error) {
	requested := Interval{Start: start, End: end}
	if err := e.validate(requested); err != nil {
		metrics.IncReservation(metrics.OutcomeValidation)
		return nil, err
	}

	unlock, err := e.locker.Lock(ctx, roomID)
	if err != nil {
		metrics.IncReservation(outcomeOf(err))
		return nil, err
	}
	defer unlock()

	began := time.Now()
	var created *models.Reservation
	err = e.store.WithinTx(ctx, func(tx domain.StoreTx) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if room.AccommodationID != accommodationID {
			return fmt.Errorf("%w: room %d is not part of accommodation %d", domain.ErrNotFound, roomID, accommodationID)
		}

		existing, err := tx.ConfirmedReservationsForRoom(ctx, roomID)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if requested.Overlaps(Interval{Start: r.StartDate, End: r.EndDate}) {
				return fmt.Errorf("%w: room %d is reserved from %s to %s", domain.ErrConflict,
					roomID, r.StartDate.Format(models.DateTimeLayout), r.EndDate.Format(models.DateTimeLayout))
			}
		}

		r := &models.Reservation{
			UserID:          userID,
			AccommodationID: accommodationID,
			RoomID:          roomID,
			StartDate:       start,
			EndDate:         end,
			Status:          models.StatusConfirmed,
		}
		if err := tx.InsertReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.SetRoomAvailability(ctx, roomID, models.AvailabilityBooked); err != nil {
			return err
		}
		created = r
		return nil
	})
	metrics.ObserveAdmission(time.Since(began))
	metrics.IncReservation(outcomeOf(err))
	if err != nil {
		e.logger.Debug().Err(err).Int64("room_id", roomID).Int64("user_id", userID).Msg("reservation rejected")
		return nil, err
	}

	e.logger.Info().
		Int64("reservation_id", created.ID).
		Int64("room_id", roomID).
		Int64("user_id", userID).
		Time("start", start).
		Time("end", end).
		Msg("reservation confirmed")
	return created, nil
}

func (e *Engine) validate(requested Interval) error {
	if !requested.Start.Before(requested.End) {
		return fmt.Errorf("%w: start date must be before end date", domain.ErrValidation)
	}
	if requested.Duration() < e.minStay {
		return fmt.Errorf("%w: reservation must be at least %d days", domain.ErrValidation, int(e.minStay.Hours()/24))
	}
	return nil
}

// Cancel moves a confirmed reservation to canceled and releases the room.
// The room lock is not taken: the write transaction already serializes
// against admission.
func (e *Engine) Cancel(ctx context.Context, reservationID int64, caller models.Caller) (*models.CancelResult, error) {
	var result *models.CancelResult
	err := e.store.WithinTx(ctx, func(tx domain.StoreTx) error {
		r, err := tx.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !auth.Allow(caller.Role, auth.ActionCancel, r.UserID == caller.ID) {
			return fmt.Errorf("%w: reservation %d belongs to another user", domain.ErrForbidden, reservationID)
		}
		if r.IsCanceled() {
			return fmt.Errorf("%w: reservation %d", domain.ErrAlreadyCanceled, reservationID)
		}

		if err := tx.UpdateReservationStatus(ctx, reservationID, models.StatusCanceled); err != nil {
			return err
		}
		r.Status = models.StatusCanceled

		availability := models.AvailabilityAvailable
		if e.recompute {
			remaining, err := tx.ConfirmedReservationsForRoom(ctx, r.RoomID)
			if err != nil {
				return err
			}
			if len(remaining) > 0 {
				availability = models.AvailabilityBooked
			}
		}
		if err := tx.SetRoomAvailability(ctx, r.RoomID, availability); err != nil {
			return err
		}

		result = &models.CancelResult{Reservation: *r, RoomAvailability: availability}
		return nil
	})
	metrics.IncCancellation(outcomeOf(err))
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Int64("reservation_id", reservationID).
		Int64("caller_id", caller.ID).
		Str("role", string(caller.Role)).
		Str("room_availability", result.RoomAvailability).
		Msg("reservation canceled")
	return result, nil
}

// ListForCaller returns every reservation for admins and the caller's own
// reservations otherwise.
func (e *Engine) ListForCaller(ctx context.Context, caller models.Caller) ([]*models.ReservationView, error) {
	if auth.Allow(caller.Role, auth.ActionListAll, false) {
		return e.store.ListReservationViews(ctx)
	}
	if auth.Allow(caller.Role, auth.ActionListOwn, true) {
		return e.store.ListReservationViewsByUser(ctx, caller.ID)
	}
	return nil, fmt.Errorf("%w: role %q cannot list reservations", domain.ErrForbidden, caller.Role)
}

// ListBookedDates returns the room's reservation ranges in every status.
func (e *Engine) ListBookedDates(ctx context.Context, roomID int64) ([]models.BookedRange, error) {
	return e.store.ListBookedRanges(ctx, roomID)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, domain.ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, domain.ErrAlreadyCanceled):
		return metrics.OutcomeAlreadyCanceled
	default:
		return metrics.OutcomeError
	}
}

type noLock struct{}

func (noLock) Lock(context.Context, int64) (func(), error) {
	return func() {}, nil
}
