package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrAlreadyMarked     = errors.New("attendance already marked")
	ErrOutOfRange        = errors.New("outside check-in radius")
	ErrTitleRequired     = errors.New("session title is required")
	ErrRequestNotFound   = errors.New("correction request not found")
	ErrRequestNotPending = errors.New("correction request is not pending")
	ErrRequestExists     = errors.New("correction already requested")
	ErrAlreadyAttended   = errors.New("attendance already recorded for this session")
)

// OutOfRangeError carries the measured distance of a rejected check-in.
type OutOfRangeError struct {
	Distance float64
	Radius   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("you're %.0fm away, must be within %.0fm", e.Distance, e.Radius)
}

func (e *OutOfRangeError) Is(target error) bool { return target == ErrOutOfRange }

// Session is a single practice or event. Its code is only accepted until ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedBy string    `json:"created_by"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session stopped accepting check-ins before now.
func (s Session) Expired(now time.Time) bool { return s.ExpiresAt.Before(now) }

// Date is the session's calendar day.
func (s Session) Date() string { return s.CreatedAt.Format("2006-01-02") }

// Source records how an attendance record came to exist.
type Source string

const (
	SourceCode       Source = "code"
	SourceQR         Source = "qr"
	SourceCorrection Source = "correction"
)

// Record marks a student present at a session. At most one exists per pair.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	StudentID string    `json:"student_id"`
	MarkedAt  time.Time `json:"marked_at"`
	Source    Source    `json:"source"`
}

// RecordID is the deterministic identity of the (session, student) record.
func RecordID(sessionID, studentID string) string {
	return sessionID + "_" + studentID
}

// Status of a correction request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// CorrectionRequest asks an admin to mark a missed session as attended.
type CorrectionRequest struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	FullName     string    `json:"fullname"`
	SessionID    string    `json:"session_id"`
	SessionTitle string    `json:"session_title"`
	SessionDate  string    `json:"session_date"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RecordFilter struct {
	SessionID string
	StudentID string
}

type CorrectionFilter struct {
	StudentID string
	SessionID string
	Status    Status
}

// Repository persists sessions, records and correction requests.
//
// FindSessionByCode returns the newest session holding code. CreateRecord
// must be create-if-absent on Record.ID and return ErrAlreadyMarked when the
// record exists.
type Repository interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	FindSessionByCode(ctx context.Context, code string) (Session, error)
	LatestActiveSession(ctx context.Context, now time.Time) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)

	HasRecord(ctx context.Context, sessionID, studentID string) (bool, error)
	CreateRecord(ctx context.Context, r Record) (Record, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]Record, error)

	CreateCorrection(ctx context.Context, c CorrectionRequest) (CorrectionRequest, error)
	GetCorrection(ctx context.Context, id string) (CorrectionRequest, error)
	ListCorrections(ctx context.Context, f CorrectionFilter) ([]CorrectionRequest, error)
	UpdateCorrectionStatus(ctx context.Context, id string, status Status, at time.Time) error
	DeleteCorrections(ctx context.Context, ids ...string) error
}

// NormalizeCode trims and upper-cases a typed session code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
