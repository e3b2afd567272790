package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// EntityChangedMessage announces a committed create, update or delete. It
// carries only identifiers; consumers read current state from the store.
type EntityChangedMessage struct {
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntityChangedMessage(resource, action, id, actorID string) *EntityChangedMessage {
	return &EntityChangedMessage{
		Resource:  resource,
		Action:    action,
		ID:        id,
		ActorID:   actorID,
		Timestamp: time.Now(),
	}
}

func (m *EntityChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntityChangedMessageFromJSON(data []byte) (*EntityChangedMessage, error) {
	var msg EntityChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Resource == "" || msg.ID == "" {
		return nil, errors.New("entity changed message missing resource or id")
	}
	return &msg, nil
}

// ReminderDueMessage asks a dispatcher to deliver one reminder.
type ReminderDueMessage struct {
	ReminderID   string    `json:"reminder_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ReminderDate string    `json:"reminder_date"`
	ReminderTime string    `json:"reminder_time,omitempty"`
	Methods      []string  `json:"methods"`
	Recipients   []string  `json:"recipients"`
	Timestamp    time.Time `json:"timestamp"`
}

func (m *ReminderDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderDueMessageFromJSON(data []byte) (*ReminderDueMessage, error) {
	var msg ReminderDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ReminderID == "" {
		return nil, errors.New("reminder message missing reminder_id")
	}
	return &msg, nil
}
