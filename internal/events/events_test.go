package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting/internal/amqp"
)

type fakeClient struct {
	keys []string
	msgs []amqp.Message
	err  error
}

func (f *fakeClient) Publish(_ context.Context, key string, msg amqp.Message) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestAMQPPublisherRoutesByKind(t *testing.T) {
	client := &fakeClient{}
	p := NewAMQP(client, "entity_events", "reminders_due", nil)
	ctx := context.Background()

	require.NoError(t, p.EntityChanged(ctx, "bills", ActionCreate, "b-1", "u-1"))
	require.NoError(t, p.ReminderDue(ctx, &amqp.ReminderDueMessage{ReminderID: "r-1"}))

	assert.Equal(t, []string{"entity_events", "reminders_due"}, client.keys)
	changed, ok := client.msgs[0].(*amqp.EntityChangedMessage)
	require.True(t, ok)
	assert.Equal(t, "bills", changed.Resource)
	assert.Equal(t, "u-1", changed.ActorID)
}

func TestAMQPPublisherReturnsClientError(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewAMQP(&fakeClient{err: boom}, "e", "r", nil)
	assert.ErrorIs(t, p.EntityChanged(context.Background(), "cards", ActionDelete, "c", ""), boom)
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()
	_ = r.EntityChanged(ctx, "bills", ActionCreate, "1", "")
	_ = r.EntityChanged(ctx, "cards", ActionUpdate, "2", "")
	assert.Len(t, r.ChangesFor("bills"), 1)

	var nop Publisher = Nop{}
	assert.NoError(t, nop.EntityChanged(ctx, "bills", ActionCreate, "1", ""))
}
