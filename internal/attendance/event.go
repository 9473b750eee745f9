package attendance

import (
	"context"
	"time"
)

// Event types published after state changes.
const (
	EventAttendanceMarked    = "attendance.marked"
	EventCorrectionRequested = "correction.requested"
	EventCorrectionApproved  = "correction.approved"
)

// Event describes a change for asynchronous consumers.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) error { return nil }
