package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"staybook/internal/config"
	"staybook/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout means another admission held the room for the whole wait.
var ErrLockTimeout = fmt.Errorf("%w: room is being reserved by another request", domain.ErrConflict)

const lockPollInterval = 20 * time.Millisecond

// удаляем ключ только если он всё ещё наш
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRoomLocker is a SET NX PX lock shared by every API instance.
type RedisRoomLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisRoomLocker(client *redis.Client, ttl, wait time.Duration) *RedisRoomLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &RedisRoomLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func lockKey(roomID int64) string {
	return fmt.Sprintf("room_lock:%d", roomID)
}

// Lock polls until the key is acquired or the wait elapses. Transport
// failures are returned as-is so callers can fail over.
func (l *RedisRoomLocker) Lock(ctx context.Context, roomID int64) (func(), error) {
	if l.client == nil {
		return nil, errors.New("redis client is nil")
	}
	key := lockKey(roomID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire room lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *RedisRoomLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
