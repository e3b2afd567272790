package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"accounting/internal/amqp"
	"accounting/internal/cli"
	"accounting/internal/events"
	"accounting/internal/log"
	"accounting/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting reminder-worker", "interval", cfg.ReminderInterval)

	be := cli.OpenBackend(context.Background(), cfg, logger)
	dispatcher := services.NewReminderDispatcher(nil, logger)

	// Without a broker the processor hands due reminders straight to the
	// dispatcher.
	var publisher events.Publisher = be.Events
	if be.AMQP == nil {
		publisher = dispatcher.Publisher()
		logger.Info("AMQP disabled - dispatching reminders in process")
	}

	set := services.NewSet(services.Deps{
		Store:  be.Store,
		Events: publisher,
		Logger: logger,
	})

	config := services.DefaultReminderProcessorConfig()
	config.Interval = cfg.ReminderInterval
	processor := services.NewReminderProcessor(set.Reminders, publisher, config, logger)

	var consumers sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Reminder processor did not stop cleanly", "error", err)
		}
		consumed := make(chan struct{})
		go func() {
			consumers.Wait()
			close(consumed)
		}()
		select {
		case <-consumed:
		case <-ctx.Done():
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
		logger.Info("Reminder-worker shutdown complete", "delivered", dispatcher.Delivered())
	})

	if be.AMQP != nil {
		consume := func(queue string, fn func(context.Context) error) {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("Queue consumption failed", "error", err, "queue", queue)
				}
			}()
			logger.Info("Consuming queue", "queue", queue)
		}
		consume(cfg.AMQPReminderQueue, func(ctx context.Context) error {
			return be.AMQP.ConsumeReminders(ctx, cfg.AMQPReminderQueue, dispatcher.HandleReminder)
		})
		// Entity changes are drained into the audit log.
		audit := logger.WithComponent(log.ComponentEvents)
		consume(cfg.AMQPEventsQueue, func(ctx context.Context) error {
			return be.AMQP.ConsumeEntityChanges(ctx, cfg.AMQPEventsQueue, func(ctx context.Context, m *amqp.EntityChangedMessage) error {
				audit.InfoContext(ctx, "Entity change received",
					log.NewFields().WithEntity(m.Resource, m.ID).WithOperation(m.Action).WithUser(m.ActorID, "").ToSlice()...)
				return nil
			})
		})
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start reminder processor", "error", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
}
