package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathak/internal/attendance"
	"pathak/internal/queue"
	"pathak/internal/store/memory"
	"pathak/internal/worker"
)

func setup(t *testing.T) (*worker.Worker, *queue.InMemory, attendance.Repository) {
	t.Helper()
	repo := memory.NewAttendanceRepository(memory.New())
	svc := attendance.NewService(repo, nil, attendance.Options{})
	q := queue.NewInMemory(8)
	return worker.New(q, svc, nil), q, repo
}

func approved(sessionID, studentID string) queue.Message {
	body := `{"type":"correction.approved","session_id":"` + sessionID + `","student_id":"` + studentID + `","request_id":"r1"}`
	return queue.Message{Type: attendance.EventCorrectionApproved, Body: []byte(body)}
}

func TestHandleRepairsApprovedCorrection(t *testing.T) {
	w, _, repo := setup(t)
	ctx := context.Background()

	require.NoError(t, w.Handle(ctx, approved("s1", "u1")))
	require.NoError(t, w.Handle(ctx, approved("s1", "u1")))

	recs, err := repo.ListRecords(ctx, attendance.RecordFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.RecordID("s1", "u1"), recs[0].ID)
	assert.Equal(t, attendance.SourceCorrection, recs[0].Source)
}

func TestHandleSkipsUnknownTypes(t *testing.T) {
	w, _, _ := setup(t)
	err := w.Handle(context.Background(), queue.Message{Type: "checkin", Body: []byte(`{}`)})
	assert.ErrorIs(t, err, worker.ErrUnknownEvent)

	assert.Error(t, w.Handle(context.Background(), queue.Message{Type: "x", Body: []byte("not json")}))
}

func TestRunConsumesUntilCancelled(t *testing.T) {
	w, q, repo := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Publish(ctx, approved("s2", "u2")))
	assert.Eventually(t, func() bool {
		ok, err := repo.HasRecord(context.Background(), "s2", "u2")
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
