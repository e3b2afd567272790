package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"accounting/internal/amqp"
	"accounting/internal/events"
	"accounting/internal/log"
)

// Delivery is one reminder sent over one method to one recipient. An empty
// Recipient means the method's default audience.
type Delivery struct {
	ReminderID string
	Title      string
	Method     string
	Recipient  string
}

// DeliverFunc performs one delivery.
type DeliverFunc func(ctx context.Context, d Delivery) error

// ReminderDispatcher fans a ReminderDue message out to one delivery per
// method and recipient.
type ReminderDispatcher struct {
	deliver   DeliverFunc
	logger    *log.Logger
	delivered atomic.Int64
}

// NewReminderDispatcher uses deliver for each delivery. A nil deliver only
// logs.
func NewReminderDispatcher(deliver DeliverFunc, logger *log.Logger) *ReminderDispatcher {
	if logger == nil {
		logger = log.Discard()
	}
	d := &ReminderDispatcher{deliver: deliver, logger: logger.WithComponent(log.ComponentWorker)}
	if d.deliver == nil {
		d.deliver = d.logDelivery
	}
	return d
}

func (d *ReminderDispatcher) logDelivery(ctx context.Context, del Delivery) error {
	d.logger.InfoContext(ctx, "Reminder delivered",
		"reminder_id", del.ReminderID,
		"title", del.Title,
		"method", del.Method,
		"recipient", del.Recipient)
	return nil
}

// HandleReminder delivers msg and returns a joined error of the failed
// deliveries. The consumer requeues the message when it fails.
func (d *ReminderDispatcher) HandleReminder(ctx context.Context, msg *amqp.ReminderDueMessage) error {
	methods := msg.Methods
	if len(methods) == 0 {
		methods = []string{"email"}
	}
	recipients := msg.Recipients
	if len(recipients) == 0 {
		recipients = []string{""}
	}

	var errs []error
	for _, m := range methods {
		for _, r := range recipients {
			del := Delivery{ReminderID: msg.ReminderID, Title: msg.Title, Method: m, Recipient: r}
			if err := d.deliver(ctx, del); err != nil {
				errs = append(errs, fmt.Errorf("deliver %s to %q: %w", m, r, err))
				continue
			}
			d.delivered.Add(1)
		}
	}
	return errors.Join(errs...)
}

// Delivered is the number of successful deliveries so far.
func (d *ReminderDispatcher) Delivered() int64 {
	return d.delivered.Load()
}

// Publisher returns an events.Publisher that dispatches due reminders in
// process and drops entity changes. The worker uses it when no broker is
// configured.
func (d *ReminderDispatcher) Publisher() events.Publisher {
	return inProcess{d}
}

type inProcess struct {
	d *ReminderDispatcher
}

func (inProcess) EntityChanged(context.Context, string, string, string, string) error { return nil }

func (p inProcess) ReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error {
	return p.d.HandleReminder(ctx, msg)
}
