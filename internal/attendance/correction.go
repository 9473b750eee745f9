package attendance

import (
	"context"

	"github.com/google/uuid"

	"pathak/internal/account"
)

// RequestCorrection files a pending request for a session the caller missed.
func (s *Service) RequestCorrection(ctx context.Context, actor account.Actor, sessionID string) (CorrectionRequest, error) {
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return CorrectionRequest{}, err
	}
	attended, err := s.repo.HasRecord(ctx, sess.ID, actor.UID)
	if err != nil {
		return CorrectionRequest{}, err
	}
	if attended {
		return CorrectionRequest{}, ErrAlreadyAttended
	}
	existing, err := s.repo.ListCorrections(ctx, CorrectionFilter{StudentID: actor.UID, SessionID: sess.ID})
	if err != nil {
		return CorrectionRequest{}, err
	}
	if len(existing) > 0 {
		return CorrectionRequest{}, ErrRequestExists
	}

	var fullName string
	if s.dir != nil {
		p, err := s.dir.Profile(ctx, actor.UID)
		if err != nil {
			return CorrectionRequest{}, err
		}
		fullName = p.FullName
	}

	now := s.now().UTC()
	req, err := s.repo.CreateCorrection(ctx, CorrectionRequest{
		ID:           uuid.NewString(),
		StudentID:    actor.UID,
		FullName:     fullName,
		SessionID:    sess.ID,
		SessionTitle: sess.Title,
		SessionDate:  sess.Date(),
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return CorrectionRequest{}, err
	}
	s.publish(ctx, Event{Type: EventCorrectionRequested, SessionID: sess.ID, StudentID: actor.UID, RequestID: req.ID, At: now})
	return req, nil
}

// UndoCorrection withdraws every pending request the caller holds for the session.
func (s *Service) UndoCorrection(ctx context.Context, actor account.Actor, sessionID string) (int, error) {
	pending, err := s.repo.ListCorrections(ctx, CorrectionFilter{
		StudentID: actor.UID,
		SessionID: sessionID,
		Status:    StatusPending,
	})
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, ErrRequestNotFound
	}
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}
	if err := s.repo.DeleteCorrections(ctx, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// PendingCorrections lists requests waiting for an admin.
func (s *Service) PendingCorrections(ctx context.Context, actor account.Actor) ([]CorrectionRequest, error) {
	if !actor.IsAdmin() {
		return nil, account.ErrForbidden
	}
	return s.repo.ListCorrections(ctx, CorrectionFilter{Status: StatusPending})
}

// ApproveCorrection writes the attendance record and then marks the request
// approved. The record write is idempotent, so approving again after a failed
// status update converges.
func (s *Service) ApproveCorrection(ctx context.Context, actor account.Actor, requestID string) (CorrectionRequest, error) {
	req, err := s.pendingRequest(ctx, actor, requestID)
	if err != nil {
		return CorrectionRequest{}, err
	}
	if _, err := s.EnsureRecord(ctx, req.SessionID, req.StudentID, SourceCorrection); err != nil {
		return CorrectionRequest{}, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateCorrectionStatus(ctx, req.ID, StatusApproved, now); err != nil {
		return CorrectionRequest{}, err
	}
	req.Status, req.UpdatedAt = StatusApproved, now
	s.publish(ctx, Event{Type: EventCorrectionApproved, SessionID: req.SessionID, StudentID: req.StudentID, RequestID: req.ID, At: now})
	return req, nil
}

// RejectCorrection closes the request without a record.
func (s *Service) RejectCorrection(ctx context.Context, actor account.Actor, requestID string) (CorrectionRequest, error) {
	req, err := s.pendingRequest(ctx, actor, requestID)
	if err != nil {
		return CorrectionRequest{}, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateCorrectionStatus(ctx, req.ID, StatusRejected, now); err != nil {
		return CorrectionRequest{}, err
	}
	req.Status, req.UpdatedAt = StatusRejected, now
	return req, nil
}

func (s *Service) pendingRequest(ctx context.Context, actor account.Actor, id string) (CorrectionRequest, error) {
	if !actor.IsAdmin() {
		return CorrectionRequest{}, account.ErrForbidden
	}
	req, err := s.repo.GetCorrection(ctx, id)
	if err != nil {
		return CorrectionRequest{}, err
	}
	if req.Status != StatusPending {
		return CorrectionRequest{}, ErrRequestNotPending
	}
	return req, nil
}
