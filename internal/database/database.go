package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

const defaultBusyTimeoutMs = 5000

type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

type Option func(*options)

type options struct {
	busyTimeoutMs int
}

// WithBusyTimeout sets how long a writer waits for the database lock
// before the transaction fails with a conflict.
func WithBusyTimeout(ms int) Option {
	return func(o *options) {
		if ms > 0 {
			o.busyTimeoutMs = ms
		}
	}
}

func NewDB(path string, logger *zerolog.Logger, opts ...Option) (*DB, error) {
	o := options{busyTimeoutMs: defaultBusyTimeoutMs}
	for _, opt := range opts {
		opt(&o)
	}

	inMemory := isMemoryPath(path)
	if !inMemory {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", buildDSN(path, o))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// У каждого соединения с :memory: своя база, поэтому держим одно
	if inMemory {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "database").Logger()
	}
	l.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: sqlDB, path: path, logger: l}, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// buildDSN enables BEGIN IMMEDIATE so that every transaction takes the
// write lock up front and check-then-insert cannot interleave.
func buildDSN(path string, o options) string {
	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_busy_timeout", strconv.Itoa(o.busyTimeoutMs))
	params.Set("_foreign_keys", "on")
	if !isMemoryPath(path) {
		params.Set("_journal_mode", "WAL")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accommodations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            image TEXT NOT NULL,
            description TEXT NOT NULL,
            latitude REAL NOT NULL,
            longitude REAL NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            accommodation_id INTEGER NOT NULL REFERENCES accommodations(id) ON DELETE CASCADE,
            room_no INTEGER NOT NULL,
            room_type TEXT NOT NULL,
            price INTEGER NOT NULL,
            availability TEXT NOT NULL DEFAULT 'available',
            image TEXT NOT NULL,
            description TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            UNIQUE (room_no, accommodation_id)
        )`,
		// Бронирования физически не удаляются, отмена меняет только статус
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            accommodation_id INTEGER NOT NULL REFERENCES accommodations(id),
            room_id INTEGER NOT NULL REFERENCES rooms(id),
            start_date DATETIME NOT NULL,
            end_date DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'confirmed',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            CHECK (start_date < end_date)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_rooms_accommodation_id ON rooms(accommodation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_room_status ON reservations(room_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
