package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/amqp"
	"accounting/internal/events"
)

func TestReminderProcessor_ProcessDue(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	due, err := e.set.Reminders.Create(ctx, Input{
		"title":                "Pay rent",
		"reminder_date":        "2025-07-15",
		"notification_methods": []any{"email", "sms"},
		"recipients":           []any{"a@example.com"},
	}, "a")
	require.NoError(t, err)
	_, err = e.set.Reminders.Create(ctx, Input{"title": "Later", "reminder_date": "2025-07-16"}, "a")
	require.NoError(t, err)

	pub := &events.Recorder{}
	p := NewReminderProcessor(e.set.Reminders, pub, DefaultReminderProcessorConfig(), nil)

	n, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, pub.Reminders, 1)
	assert.Equal(t, due.ID, pub.Reminders[0].ReminderID)
	assert.Equal(t, []string{"email", "sms"}, pub.Reminders[0].Methods)

	got, err := e.set.Reminders.Get(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSent)

	n, err = p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "sent reminders are not published twice")
}

func TestReminderProcessor_PublishFailureKeepsReminderUnsent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	r, err := e.set.Reminders.Create(ctx, Input{"title": "Pay rent", "reminder_date": "2025-07-15"}, "a")
	require.NoError(t, err)

	p := NewReminderProcessor(e.set.Reminders, &events.Recorder{Err: errors.New("down")}, DefaultReminderProcessorConfig(), nil)
	n, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := e.set.Reminders.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSent)
}

func TestReminderProcessor_StartStop(t *testing.T) {
	e := newTestEnv(t)
	p := NewReminderProcessor(e.set.Reminders, events.Nop{}, ReminderProcessorConfig{Interval: 10 * time.Millisecond}, nil)

	ctx := context.Background()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Stop(stopCtx))
}

func TestReminderDispatcher_FansOut(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Delivery
	)
	d := NewReminderDispatcher(func(_ context.Context, del Delivery) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, del)
		if del.Method == "sms" && del.Recipient == "b" {
			return errors.New("no phone")
		}
		return nil
	}, nil)

	err := d.HandleReminder(context.Background(), &amqp.ReminderDueMessage{
		ReminderID: "r1",
		Methods:    []string{"email", "sms"},
		Recipients: []string{"a", "b"},
	})
	require.Error(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, int64(3), d.Delivered())

	require.NoError(t, d.HandleReminder(context.Background(), &amqp.ReminderDueMessage{ReminderID: "r2"}))
	assert.Equal(t, Delivery{ReminderID: "r2", Method: "email"}, got[4])
}

func TestReminderDispatcher_InProcessPublisher(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.set.Reminders.Create(ctx, Input{"title": "Pay rent", "reminder_date": "2025-07-15"}, "a")
	require.NoError(t, err)

	d := NewReminderDispatcher(nil, nil)
	p := NewReminderProcessor(e.set.Reminders, d.Publisher(), DefaultReminderProcessorConfig(), nil)

	n, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), d.Delivered())
}
