package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathak/internal/account"
	"pathak/internal/attendance"
)

func TestApproveCorrectionCreatesRecord(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "s1", "A72KQ9", clock.Add(-time.Hour))
	ctx := context.Background()

	req, err := f.svc.RequestCorrection(ctx, student, "s1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPending, req.Status)
	assert.Equal(t, "Asha Patil", req.FullName)
	assert.Equal(t, "Sunday practice", req.SessionTitle)
	assert.Equal(t, "2026-03-01", req.SessionDate)

	_, err = f.svc.ApproveCorrection(ctx, student, req.ID)
	assert.ErrorIs(t, err, account.ErrForbidden)

	approved, err := f.svc.ApproveCorrection(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusApproved, approved.Status)

	stored, err := f.repo.GetCorrection(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusApproved, stored.Status)

	records, err := f.repo.ListRecords(ctx, attendance.RecordFilter{SessionID: "s1", StudentID: student.UID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, attendance.SourceCorrection, records[0].Source)

	_, err = f.svc.ApproveCorrection(ctx, admin, req.ID)
	assert.ErrorIs(t, err, attendance.ErrRequestNotPending)

	assert.Equal(t, []string{attendance.EventCorrectionRequested, attendance.EventCorrectionApproved}, f.events.types())
}

func TestApproveCorrectionWhenRecordAlreadyExists(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "s1", "A72KQ9", clock.Add(-time.Hour))
	ctx := context.Background()

	req, err := f.svc.RequestCorrection(ctx, student, "s1")
	require.NoError(t, err)

	// record written by an earlier approval whose status update was lost
	created, err := f.svc.EnsureRecord(ctx, "s1", student.UID, attendance.SourceCorrection)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = f.svc.ApproveCorrection(ctx, admin, req.ID)
	require.NoError(t, err)

	records, err := f.repo.ListRecords(ctx, attendance.RecordFilter{SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRejectCorrection(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "s1", "A72KQ9", clock.Add(-time.Hour))
	ctx := context.Background()

	req, err := f.svc.RequestCorrection(ctx, student, "s1")
	require.NoError(t, err)

	rejected, err := f.svc.RejectCorrection(ctx, admin, req.ID)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusRejected, rejected.Status)

	has, err := f.repo.HasRecord(ctx, "s1", student.UID)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = f.svc.RejectCorrection(ctx, admin, req.ID)
	assert.ErrorIs(t, err, attendance.ErrRequestNotPending)
}

func TestRequestCorrectionPreconditions(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "s1", "A72KQ9", clock.Add(10*time.Minute))
	f.seedSession(t, "s2", "B72KQ9", clock.Add(-time.Hour))
	ctx := context.Background()

	_, err := f.svc.RequestCorrection(ctx, student, "missing")
	assert.ErrorIs(t, err, attendance.ErrSessionNotFound)

	_, err = f.svc.CheckIn(ctx, student, attendance.CheckInRequest{Code: "A72KQ9", Location: near()})
	require.NoError(t, err)
	_, err = f.svc.RequestCorrection(ctx, student, "s1")
	assert.ErrorIs(t, err, attendance.ErrAlreadyAttended)

	_, err = f.svc.RequestCorrection(ctx, student, "s2")
	require.NoError(t, err)
	_, err = f.svc.RequestCorrection(ctx, student, "s2")
	assert.ErrorIs(t, err, attendance.ErrRequestExists)
}

func TestUndoCorrectionRemovesAllPending(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "s1", "A72KQ9", clock.Add(-time.Hour))
	ctx := context.Background()

	// duplicates left over from older clients
	for _, id := range []string{"r1", "r2"} {
		_, err := f.repo.CreateCorrection(ctx, attendance.CorrectionRequest{
			ID: id, StudentID: student.UID, SessionID: "s1", Status: attendance.StatusPending, CreatedAt: clock,
		})
		require.NoError(t, err)
	}

	n, err := f.svc.UndoCorrection(ctx, student, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := f.repo.ListCorrections(ctx, attendance.CorrectionFilter{StudentID: student.UID})
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = f.svc.UndoCorrection(ctx, student, "s1")
	assert.ErrorIs(t, err, attendance.ErrRequestNotFound)
}

func TestPendingCorrectionsAdminOnly(t *testing.T) {
	f := setup(t)
	f.seedSession(t, "s1", "A72KQ9", clock.Add(-time.Hour))
	ctx := context.Background()

	_, err := f.svc.RequestCorrection(ctx, student, "s1")
	require.NoError(t, err)

	_, err = f.svc.PendingCorrections(ctx, student)
	assert.ErrorIs(t, err, account.ErrForbidden)

	pending, err := f.svc.PendingCorrections(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
