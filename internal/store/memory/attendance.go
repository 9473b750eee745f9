package memory

import (
	"context"
	"sort"
	"time"

	"pathak/internal/attendance"
)

type attendanceRepository struct {
	db *DB
}

// NewAttendanceRepository returns an attendance.Repository over db.
func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) CreateSession(_ context.Context, s attendance.Session) (attendance.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions = append(r.db.sessions, s)
	return s, nil
}

func (r *attendanceRepository) GetSession(_ context.Context, id string) (attendance.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, s := range r.db.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (r *attendanceRepository) FindSessionByCode(_ context.Context, code string) (attendance.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for i := len(r.db.sessions) - 1; i >= 0; i-- {
		if r.db.sessions[i].Code == code {
			return r.db.sessions[i], nil
		}
	}
	return attendance.Session{}, attendance.ErrSessionNotFound
}

func (r *attendanceRepository) LatestActiveSession(_ context.Context, now time.Time) (attendance.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var (
		best  attendance.Session
		found bool
	)
	for _, s := range r.db.sessions {
		if s.ExpiresAt.After(now) && (!found || s.ExpiresAt.After(best.ExpiresAt)) {
			best, found = s, true
		}
	}
	if !found {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return best, nil
}

func (r *attendanceRepository) ListSessions(_ context.Context) ([]attendance.Session, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]attendance.Session, len(r.db.sessions))
	copy(out, r.db.sessions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *attendanceRepository) HasRecord(_ context.Context, sessionID, studentID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	_, ok := r.db.records[attendance.RecordID(sessionID, studentID)]
	return ok, nil
}

func (r *attendanceRepository) CreateRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.records[rec.ID]; ok {
		return attendance.Record{}, attendance.ErrAlreadyMarked
	}
	r.db.records[rec.ID] = rec
	r.db.recordOrder = append(r.db.recordOrder, rec.ID)
	return rec, nil
}

func (r *attendanceRepository) ListRecords(_ context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []attendance.Record
	for _, id := range r.db.recordOrder {
		rec := r.db.records[id]
		if f.SessionID != "" && rec.SessionID != f.SessionID {
			continue
		}
		if f.StudentID != "" && rec.StudentID != f.StudentID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *attendanceRepository) CreateCorrection(_ context.Context, c attendance.CorrectionRequest) (attendance.CorrectionRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.corrections[c.ID] = c
	return c, nil
}

func (r *attendanceRepository) GetCorrection(_ context.Context, id string) (attendance.CorrectionRequest, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if c, ok := r.db.corrections[id]; ok {
		return c, nil
	}
	return attendance.CorrectionRequest{}, attendance.ErrRequestNotFound
}

func (r *attendanceRepository) ListCorrections(_ context.Context, f attendance.CorrectionFilter) ([]attendance.CorrectionRequest, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var out []attendance.CorrectionRequest
	for _, c := range r.db.corrections {
		if f.StudentID != "" && c.StudentID != f.StudentID {
			continue
		}
		if f.SessionID != "" && c.SessionID != f.SessionID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *attendanceRepository) UpdateCorrectionStatus(_ context.Context, id string, status attendance.Status, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	c, ok := r.db.corrections[id]
	if !ok {
		return attendance.ErrRequestNotFound
	}
	c.Status, c.UpdatedAt = status, at
	r.db.corrections[id] = c
	return nil
}

func (r *attendanceRepository) DeleteCorrections(_ context.Context, ids ...string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, id := range ids {
		delete(r.db.corrections, id)
	}
	return nil
}
