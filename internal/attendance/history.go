package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"pathak/internal/account"
)

// Calendar marks.
const (
	MarkAttended = "attended"
	MarkPending  = "pending"
	MarkMissed   = "missed"
)

// SessionSummary is one row of the attendance history. Count is only filled
// for admins.
type SessionSummary struct {
	Session
	Attended      bool   `json:"attended"`
	Requested     bool   `json:"requested"`
	RequestStatus Status `json:"request_status,omitempty"`
	Count         int    `json:"count"`
}

// Mark is the calendar state of the row for the viewer.
func (s SessionSummary) Mark() string {
	switch {
	case s.Attended || s.RequestStatus == StatusApproved:
		return MarkAttended
	case s.RequestStatus == StatusPending:
		return MarkPending
	default:
		return MarkMissed
	}
}

// History lists every session in date order annotated for the caller.
func (s *Service) History(ctx context.Context, actor account.Actor) ([]SessionSummary, error) {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	attended := map[string]bool{}
	mine, err := s.repo.ListRecords(ctx, RecordFilter{StudentID: actor.UID})
	if err != nil {
		return nil, err
	}
	for _, r := range mine {
		attended[r.SessionID] = true
	}

	requests := map[string]Status{}
	reqs, err := s.repo.ListCorrections(ctx, CorrectionFilter{StudentID: actor.UID})
	if err != nil {
		return nil, err
	}
	for _, r := range reqs {
		requests[r.SessionID] = r.Status
	}

	counts := map[string]int{}
	if actor.IsAdmin() {
		all, err := s.repo.ListRecords(ctx, RecordFilter{})
		if err != nil {
			return nil, err
		}
		for _, r := range all {
			counts[r.SessionID]++
		}
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		st, requested := requests[sess.ID]
		out = append(out, SessionSummary{
			Session:       sess,
			Attended:      attended[sess.ID],
			Requested:     requested,
			RequestStatus: st,
			Count:         counts[sess.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Attendee is a roster row.
type Attendee struct {
	StudentID string    `json:"student_id"`
	FullName  string    `json:"fullname"`
	Email     string    `json:"email"`
	MarkedAt  time.Time `json:"marked_at"`
	Source    Source    `json:"source"`
}

// Roster returns the session and who attended it, in check-in order.
func (s *Service) Roster(ctx context.Context, actor account.Actor, sessionID string) (Session, []Attendee, error) {
	if !actor.IsAdmin() {
		return Session{}, nil, account.ErrForbidden
	}
	sess, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, nil, err
	}
	records, err := s.repo.ListRecords(ctx, RecordFilter{SessionID: sess.ID})
	if err != nil {
		return Session{}, nil, err
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].MarkedAt.Before(records[j].MarkedAt) })

	out := make([]Attendee, 0, len(records))
	for _, r := range records {
		a := Attendee{StudentID: r.StudentID, MarkedAt: r.MarkedAt, Source: r.Source}
		if s.dir != nil {
			p, err := s.dir.Profile(ctx, r.StudentID)
			switch {
			case err == nil:
				a.FullName, a.Email = p.FullName, p.Email
			case !errors.Is(err, account.ErrUserNotFound):
				return Session{}, nil, err
			}
		}
		out = append(out, a)
	}
	return sess, out, nil
}
