package backend

import (
	"context"

	"cashbook/internal/services"
	"cashbook/internal/storage"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Result is a ready record store together with the event publisher the
// services should use.
type Result struct {
	Store     storage.Store
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; an empty path starts with no categories.
	SeedCategoriesFile string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
}

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
