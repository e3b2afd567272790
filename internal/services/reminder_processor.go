package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"accounting/internal/amqp"
	"accounting/internal/events"
	"accounting/internal/log"
)

// ReminderProcessorConfig holds configuration for the reminder processor
type ReminderProcessorConfig struct {
	// Interval is how often to look for due reminders (default: 1m)
	Interval time.Duration

	// ActorID is recorded as the actor of the mark-sent updates
	ActorID string
}

// DefaultReminderProcessorConfig polls once a minute.
func DefaultReminderProcessorConfig() ReminderProcessorConfig {
	return ReminderProcessorConfig{
		Interval: time.Minute,
		ActorID:  "reminder-worker",
	}
}

// ReminderProcessor turns today's unsent reminders into ReminderDue messages
// and marks them sent.
type ReminderProcessor struct {
	reminders *ReminderService
	publisher events.Publisher
	config    ReminderProcessorConfig
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReminderProcessor creates a stopped processor. Call Start to begin polling.
func NewReminderProcessor(reminders *ReminderService, publisher events.Publisher, config ReminderProcessorConfig, logger *log.Logger) *ReminderProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultReminderProcessorConfig().Interval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ReminderProcessor{
		reminders: reminders,
		publisher: publisher,
		config:    config,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// ProcessDue publishes every due reminder and returns how many were sent. A
// reminder whose publish fails stays unsent and is retried on the next run.
func (p *ReminderProcessor) ProcessDue(ctx context.Context) (int, error) {
	if p.reminders == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	due, err := p.reminders.Today(ctx)
	if err != nil {
		return 0, fmt.Errorf("load due reminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	sent := 0
	for _, r := range due {
		msg := &amqp.ReminderDueMessage{
			ReminderID:   r.ID,
			Title:        r.Title,
			Description:  r.Description,
			ReminderDate: r.ReminderDate,
			ReminderTime: r.ReminderTime,
			Methods:      r.NotificationMethods,
			Recipients:   r.Recipients,
			Timestamp:    p.reminders.now(),
		}
		if err := p.publisher.ReminderDue(ctx, msg); err != nil {
			p.logger.ErrorContext(ctx, "Failed to publish due reminder",
				"reminder_id", r.ID,
				"error", err)
			continue
		}
		if _, err := p.reminders.MarkSent(ctx, r.ID, p.config.ActorID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark reminder sent",
				"reminder_id", r.ID,
				"error", err)
			continue
		}
		sent++
	}

	p.logger.InfoContext(ctx, "Reminder processing complete",
		"sent", sent,
		"total_due", len(due))
	return sent, nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *ReminderProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("reminder processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Reminder processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (p *ReminderProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Reminder processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Reminder processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the polling loop is active.
func (p *ReminderProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReminderProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *ReminderProcessor) runOnce(ctx context.Context) {
	if _, err := p.ProcessDue(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Reminder processing failed", "error", err)
	}
}
