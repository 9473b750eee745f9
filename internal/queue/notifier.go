package queue

import (
	"context"
	"encoding/json"

	"pathak/internal/attendance"
)

// Notifier publishes attendance events as JSON messages.
type Notifier struct {
	Queue Queue
}

// Notify implements attendance.Notifier.
func (n Notifier) Notify(ctx context.Context, evt attendance.Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return n.Queue.Publish(ctx, Message{Type: evt.Type, Body: body})
}

// DecodeEvent reads an event published by Notifier.
func DecodeEvent(msg Message) (attendance.Event, error) {
	var evt attendance.Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return attendance.Event{}, err
	}
	if evt.Type == "" {
		evt.Type = msg.Type
	}
	return evt, nil
}
