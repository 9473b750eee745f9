// Package worker consumes attendance events from the queue.
package worker

import (
	"context"
	"errors"
	"time"

	"pathak/internal/attendance"
	"pathak/internal/logging"
	"pathak/internal/metrics"
	"pathak/internal/queue"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Recorder re-asserts attendance records.
type Recorder interface {
	EnsureRecord(ctx context.Context, sessionID, studentID string, source attendance.Source) (bool, error)
}

// Worker handles one message at a time.
type Worker struct {
	queue   queue.Queue
	records Recorder
	log     *logging.Logger
}

func New(q queue.Queue, records Recorder, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.New(nil, logging.Options{})
	}
	return &Worker{queue: q, records: records, log: log}
}

// Run consumes until ctx ends. Handler errors are logged and the message is
// dropped.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Consume(ctx)
	if err != nil {
		return err
	}
	w.log.Printf("worker started, waiting for messages...")
	for msg := range messages {
		result := "ok"
		if err := w.Handle(ctx, msg); err != nil {
			result = "error"
			if errors.Is(err, ErrUnknownEvent) {
				result = "skipped"
			} else {
				w.log.Error("handle event", err, map[string]interface{}{"type": msg.Type})
			}
		}
		metrics.WorkerEvents.WithLabelValues(msg.Type, result).Inc()

		time.Sleep(10 * time.Millisecond) // Small delay between processing
	}
	w.log.Printf("worker stopped")
	return nil
}

// Handle processes a single message.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	evt, err := queue.DecodeEvent(msg)
	if err != nil {
		return err
	}
	switch evt.Type {
	case attendance.EventAttendanceMarked:
		w.log.Info("attendance marked", map[string]interface{}{
			"session": evt.SessionID,
			"student": evt.StudentID,
			"at":      evt.At.Format(time.RFC3339),
		})
		return nil

	case attendance.EventCorrectionRequested:
		w.log.Info("correction requested", map[string]interface{}{
			"session": evt.SessionID,
			"student": evt.StudentID,
			"request": evt.RequestID,
		})
		return nil

	case attendance.EventCorrectionApproved:
		created, err := w.records.EnsureRecord(ctx, evt.SessionID, evt.StudentID, attendance.SourceCorrection)
		if err != nil {
			return err
		}
		if created {
			w.log.Warn("approved correction had no record, repaired", map[string]interface{}{
				"session": evt.SessionID,
				"student": evt.StudentID,
				"request": evt.RequestID,
			})
		}
		return nil
	}
	return ErrUnknownEvent
}
