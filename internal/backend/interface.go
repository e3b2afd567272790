package backend

import (
	"context"

	"accounting/internal/amqp"
	"accounting/internal/events"
	"accounting/internal/export"
	"accounting/internal/storage"
)

// CleanupFunc releases what the factory opened.
type CleanupFunc func() error

// Result holds everything the binaries need from the outside world.
type Result struct {
	Store  *storage.SQLStore
	Events events.Publisher
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP *amqp.Client
	// Exporter is nil when no sheet writer is available.
	Exporter export.BillWriter
	Cleanup  CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Driver Driver
	DSN    string

	AMQPURL           string
	AMQPExchange      string
	AMQPEventsQueue   string
	AMQPReminderQueue string

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string

	// MemoryExport swaps in an in-process sheet writer when Google Sheets is
	// not configured.
	MemoryExport bool
}

type Driver string

const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
)

func (d Driver) String() string {
	return string(d)
}

func (d Driver) IsValid() bool {
	switch d {
	case SQLite, Postgres:
		return true
	default:
		return false
	}
}
