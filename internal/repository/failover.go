package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"staybook/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRoomLocker uses the primary locker and switches to the fallback
// when the primary is unreachable. It retries the primary once a minute.
type FailoverRoomLocker struct {
	primary   domain.RoomLocker
	fallback  domain.RoomLocker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverRoomLocker(primary, fallback domain.RoomLocker, logger *zerolog.Logger) *FailoverRoomLocker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverRoomLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverRoomLocker) Lock(ctx context.Context, roomID int64) (func(), error) {
	if r.isDown.Load() && r.now().Sub(time.Unix(0, r.lastCheck.Load())) <= recoveryInterval {
		return r.fallback.Lock(ctx, roomID)
	}

	unlock, err := r.primary.Lock(ctx, roomID)
	if err == nil {
		if r.isDown.Swap(false) {
			r.logger.Info().Msg("Primary room locker recovered")
		}
		return unlock, nil
	}
	// contention and caller cancellation are not outages
	if errors.Is(err, domain.ErrConflict) || ctx.Err() != nil {
		return nil, err
	}

	r.logger.Error().Err(err).Int64("room_id", roomID).Msg("Primary room locker failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(r.now().UnixNano())
	return r.fallback.Lock(ctx, roomID)
}
