// Package backend wires the store, the event publisher and the sheet
// exporter from configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"accounting/internal/amqp"
	"accounting/internal/events"
	"accounting/internal/export"
	gsheet "accounting/internal/export/google"
	"accounting/internal/export/memory"
	"accounting/internal/log"
	"accounting/internal/storage"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// Create opens the store (running migrations) and attaches the optional
// broker and exporter. Only a store failure is fatal.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dialect, err := storage.DialectFor(config.Driver.String())
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, dialect, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Driver, err)
	}
	f.logger.Info("Initialized store", "driver", config.Driver)

	res := &Result{Store: store, Events: events.Nop{}}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPEventsQueue, config.AMQPReminderQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			res.AMQP = client.WithLogger(f.logger)
			res.Events = events.NewAMQP(res.AMQP, config.AMQPEventsQueue, config.AMQPReminderQueue, f.logger)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"events_queue", config.AMQPEventsQueue,
				"reminder_queue", config.AMQPReminderQueue)
		}
	}

	res.Exporter = f.createExporter(ctx, config)

	res.Cleanup = func() error {
		var errs []error
		if res.AMQP != nil {
			errs = append(errs, res.AMQP.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createExporter(ctx context.Context, config Config) export.BillWriter {
	if config.sheetsEnabled() {
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsFile: config.GoogleCredentialsFile,
			CredentialsJSON: config.GoogleCredentialsJSON,
			OAuthClientFile: config.GoogleOAuthClientFile,
			OAuthTokenFile:  config.GoogleOAuthTokenFile,
		}, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize Google Sheets exporter", "error", err)
			return nil
		}
		f.logger.Info("Initialized Google Sheets exporter", "spreadsheet_id", config.GoogleSpreadsheetID)
		return cli
	}
	if config.MemoryExport {
		f.logger.Info("Initialized in-memory sheets exporter")
		return memory.New()
	}
	return nil
}
