package repository

import (
	"context"
	"sync"
)

// MemoryRoomLocker holds one exclusive slot per room within this process.
type MemoryRoomLocker struct {
	slots sync.Map // roomID -> chan struct{}
}

func NewMemoryRoomLocker() *MemoryRoomLocker {
	return &MemoryRoomLocker{}
}

// Lock blocks until the room slot is free or ctx is done.
func (l *MemoryRoomLocker) Lock(ctx context.Context, roomID int64) (func(), error) {
	val, _ := l.slots.LoadOrStore(roomID, make(chan struct{}, 1))
	slot := val.(chan struct{})

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
