// Package events is the outbound notification port used by the services.
package events

import (
	"context"
	"sync"

	"accounting/internal/amqp"
	"accounting/internal/log"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Publisher announces committed changes and due reminders.
type Publisher interface {
	EntityChanged(ctx context.Context, resource, action, id, actorID string) error
	ReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error
}

// Nop drops everything. It is used when no broker is configured.
type Nop struct{}

func (Nop) EntityChanged(context.Context, string, string, string, string) error { return nil }
func (Nop) ReminderDue(context.Context, *amqp.ReminderDueMessage) error { return nil }

type amqpPublisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Message) error
}

// AMQP publishes onto the broker: entity changes to the events queue and due
// reminders to the reminder queue.
type AMQP struct {
	client        amqpPublisher
	eventsQueue   string
	reminderQueue string
	logger        *log.Logger
}

func NewAMQP(client amqpPublisher, eventsQueue, reminderQueue string, logger *log.Logger) *AMQP {
	if logger == nil {
		logger = log.Discard()
	}
	return &AMQP{
		client:        client,
		eventsQueue:   eventsQueue,
		reminderQueue: reminderQueue,
		logger:        logger.WithComponent(log.ComponentEvents),
	}
}

func (p *AMQP) EntityChanged(ctx context.Context, resource, action, id, actorID string) error {
	msg := amqp.NewEntityChangedMessage(resource, action, id, actorID)
	if err := p.client.Publish(ctx, p.eventsQueue, msg); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Entity change published", log.NewFields().WithEntity(resource, id).WithOperation(action).ToSlice()...)
	return nil
}

func (p *AMQP) ReminderDue(ctx context.Context, msg *amqp.ReminderDueMessage) error {
	return p.client.Publish(ctx, p.reminderQueue, msg)
}

// Recorder keeps every published event in memory. Tests and the in-process
// reminder mode use it.
type Recorder struct {
	mu        sync.Mutex
	Changes   []amqp.EntityChangedMessage
	Reminders []amqp.ReminderDueMessage
	Err       error
}

func (r *Recorder) EntityChanged(_ context.Context, resource, action, id, actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Changes = append(r.Changes, *amqp.NewEntityChangedMessage(resource, action, id, actorID))
	return nil
}

func (r *Recorder) ReminderDue(_ context.Context, msg *amqp.ReminderDueMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Reminders = append(r.Reminders, *msg)
	return nil
}

// ChangesFor returns the recorded changes for one resource.
func (r *Recorder) ChangesFor(resource string) []amqp.EntityChangedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []amqp.EntityChangedMessage
	for _, c := range r.Changes {
		if c.Resource == resource {
			out = append(out, c)
		}
	}
	return out
}
