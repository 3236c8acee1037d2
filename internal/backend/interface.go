package backend

import (
	"context"

	"mindspend/internal/core"
)

// Store is everything the API and worker need from persistence: event CRUD,
// range reads, daily and period summary documents, and owner enumeration.
type Store interface {
	CreateStressEvent(ctx context.Context, e core.StressEvent) error
	GetStressEvent(ctx context.Context, ownerID, id string) (core.StressEvent, error)
	UpdateStressEvent(ctx context.Context, e core.StressEvent) error
	DeleteStressEvent(ctx context.Context, ownerID, id string) error
	ListStressEvents(ctx context.Context, ownerID, from, to string) ([]core.StressEvent, error)

	CreateFinanceEvent(ctx context.Context, e core.FinanceEvent) error
	GetFinanceEvent(ctx context.Context, ownerID, id string) (core.FinanceEvent, error)
	UpdateFinanceEvent(ctx context.Context, e core.FinanceEvent) error
	DeleteFinanceEvent(ctx context.Context, ownerID, id string) error
	ListFinanceEvents(ctx context.Context, ownerID, from, to string) ([]core.FinanceEvent, error)

	ListOwners(ctx context.Context) ([]string, error)

	UpsertDailySummary(ctx context.Context, s core.DailySummary) error
	GetDailyRecord(ctx context.Context, ownerID, date string) (core.DailyRecord, error)
	GetDailyCoaching(ctx context.Context, ownerID string, dates []string) (map[string]core.CachedCoaching, error)
	SetDailyCoaching(ctx context.Context, ownerID, date string, c core.CachedCoaching) error
	GetPeriodCoaching(ctx context.Context, ownerID, periodKey string) (core.CachedCoaching, error)
	SetPeriodCoaching(ctx context.Context, ownerID, periodKey string, periodDays int, c core.CachedCoaching) error

	Ping(ctx context.Context) error
	Close() error
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the store and its cleanup function.
type BackendResult struct {
	Store   Store
	Cleanup CleanupFunc
}

// Config holds configuration for backend creation.
type Config struct {
	Type         BackendType
	SQLiteDBPath string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
