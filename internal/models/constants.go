package models

// Reservation statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
)

// Room availability flag values.
const (
	AvailabilityAvailable = "available"
	AvailabilityBooked    = "booked"
)

// Sync task statuses stored in sync_queue.
const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// Sync task types.
const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
	SyncTaskRebuild      = "rebuild"
)

const (
	// DateTimeLayout формат дат во входящих запросах и ответах (YYYY-MM-DD HH:MM)
	DateTimeLayout = "2006-01-02 15:04"

	// DefaultMinStayDays минимальная длительность проживания
	DefaultMinStayDays = 30

	// Допустимые границы номера комнаты и цены
	MinRoomNo    = 1
	MaxRoomNo    = 100
	MinRoomPrice = 5000
	MaxRoomPrice = 30000

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)
