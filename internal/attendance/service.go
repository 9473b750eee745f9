package attendance

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"pathak/internal/account"
	"pathak/internal/geo"
)

const maxCodeAttempts = 5

// Directory resolves user ids to display data.
type Directory interface {
	Profile(ctx context.Context, uid string) (account.Profile, error)
}

// Options tune the service. Zero values fall back to defaults.
type Options struct {
	SessionTTL time.Duration
	CodeLength int
	Gate       geo.Gate
	Notifier   Notifier
	Now        func() time.Time
}

// Service implements session validation, check-in and the correction workflow.
type Service struct {
	repo       Repository
	dir        Directory
	gate       geo.Gate
	notify     Notifier
	sessionTTL time.Duration
	codeLength int
	now        func() time.Time
}

// NewService wires the attendance service.
func NewService(repo Repository, dir Directory, opts Options) *Service {
	s := &Service{
		repo:       repo,
		dir:        dir,
		gate:       opts.Gate,
		notify:     opts.Notifier,
		sessionTTL: opts.SessionTTL,
		codeLength: opts.CodeLength,
		now:        opts.Now,
	}
	if s.notify == nil {
		s.notify = nopNotifier{}
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 30 * time.Minute
	}
	if s.codeLength <= 0 {
		s.codeLength = defaultCodeLength
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Radius is the configured check-in radius in meters.
func (s *Service) Radius() float64 { return s.gate.RadiusMeters }

// CreateSession opens a session with a fresh code that no live session holds.
func (s *Service) CreateSession(ctx context.Context, actor account.Actor, title string) (Session, error) {
	if !actor.IsAdmin() {
		return Session{}, account.ErrForbidden
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Session{}, ErrTitleRequired
	}
	now := s.now().UTC()

	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := GenerateCode(s.codeLength)
		if err != nil {
			return Session{}, err
		}
		existing, err := s.repo.FindSessionByCode(ctx, candidate)
		if errors.Is(err, ErrSessionNotFound) || (err == nil && existing.Expired(now)) {
			code = candidate
			break
		}
		if err != nil {
			return Session{}, err
		}
	}
	if code == "" {
		return Session{}, errors.New("could not allocate a free session code")
	}

	return s.repo.CreateSession(ctx, Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedBy: actor.UID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	})
}

// ValidateSession resolves a typed code to a live session.
func (s *Service) ValidateSession(ctx context.Context, code string) (Session, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Session{}, ErrSessionNotFound
	}
	sess, err := s.repo.FindSessionByCode(ctx, code)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// SessionByID resolves a scanned session id to a live session.
func (s *Service) SessionByID(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, ErrSessionNotFound
	}
	sess, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Expired(s.now()) {
		return Session{}, ErrSessionExpired
	}
	return sess, nil
}

// LatestActive returns the live session that expires last.
func (s *Service) LatestActive(ctx context.Context) (Session, error) {
	return s.repo.LatestActiveSession(ctx, s.now())
}

// ListSessions returns every session, newest first.
func (s *Service) ListSessions(ctx context.Context, actor account.Actor) ([]Session, error) {
	if !actor.IsAdmin() {
		return nil, account.ErrForbidden
	}
	return s.repo.ListSessions(ctx)
}

// CheckInRequest identifies the session by typed code or by scanned id.
type CheckInRequest struct {
	Code      string
	SessionID string
	Location  geo.Locator
}

// Receipt is returned for a committed check-in.
type Receipt struct {
	Record   Record   `json:"record"`
	Session  Session  `json:"session"`
	Distance *float64 `json:"distance"`
}

// CheckIn validates the session, checks proximity, rejects duplicates and
// commits the record. Each stage short-circuits the next.
func (s *Service) CheckIn(ctx context.Context, actor account.Actor, req CheckInRequest) (Receipt, error) {
	var (
		sess   Session
		source Source
		err    error
	)
	if strings.TrimSpace(req.SessionID) != "" {
		sess, err = s.SessionByID(ctx, req.SessionID)
		source = SourceQR
	} else {
		sess, err = s.ValidateSession(ctx, req.Code)
		source = SourceCode
	}
	if err != nil {
		return Receipt{}, err
	}

	prox, err := s.gate.Check(ctx, req.Location)
	if err != nil {
		return Receipt{}, err
	}
	if !prox.WithinRadius {
		var d float64
		if prox.Distance != nil {
			d = *prox.Distance
		}
		return Receipt{}, &OutOfRangeError{Distance: d, Radius: s.gate.RadiusMeters}
	}

	marked, err := s.repo.HasRecord(ctx, sess.ID, actor.UID)
	if err != nil {
		return Receipt{}, err
	}
	if marked {
		return Receipt{}, ErrAlreadyMarked
	}

	rec, err := s.repo.CreateRecord(ctx, Record{
		ID:        RecordID(sess.ID, actor.UID),
		SessionID: sess.ID,
		StudentID: actor.UID,
		MarkedAt:  s.now().UTC(),
		Source:    source,
	})
	if err != nil {
		return Receipt{}, err
	}
	s.publish(ctx, Event{Type: EventAttendanceMarked, SessionID: sess.ID, StudentID: actor.UID, At: rec.MarkedAt})
	return Receipt{Record: rec, Session: sess, Distance: prox.Distance}, nil
}

// EnsureRecord creates the record for the pair unless it exists. It reports
// whether a record was written.
func (s *Service) EnsureRecord(ctx context.Context, sessionID, studentID string, source Source) (bool, error) {
	_, err := s.repo.CreateRecord(ctx, Record{
		ID:        RecordID(sessionID, studentID),
		SessionID: sessionID,
		StudentID: studentID,
		MarkedAt:  s.now().UTC(),
		Source:    source,
	})
	if errors.Is(err, ErrAlreadyMarked) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) publish(ctx context.Context, evt Event) {
	if err := s.notify.Notify(ctx, evt); err != nil {
		log.Printf("publish %s failed: %v", evt.Type, err)
	}
}
