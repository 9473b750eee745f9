package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pathak/internal/attendance"
)

// AttendanceRepository persists sessions, records and correction requests.
type AttendanceRepository struct {
	db *sql.DB
}

func NewAttendanceRepository(db *sql.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const sessionColumns = `id, title, created_by, code, created_at, expires_at`

func scanSession(row scanner) (attendance.Session, error) {
	var s attendance.Session
	err := row.Scan(&s.ID, &s.Title, &s.CreatedBy, &s.Code, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	return s, err
}

func (r *AttendanceRepository) CreateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, created_by, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.Title, s.CreatedBy, s.Code, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return attendance.Session{}, err
	}
	return s, nil
}

func (r *AttendanceRepository) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

func (r *AttendanceRepository) FindSessionByCode(ctx context.Context, code string) (attendance.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code))
}

func (r *AttendanceRepository) LatestActiveSession(ctx context.Context, now time.Time) (attendance.Session, error) {
	return scanSession(r.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE expires_at > $1
		ORDER BY expires_at DESC
		LIMIT 1
	`, now))
}

func (r *AttendanceRepository) ListSessions(ctx context.Context) ([]attendance.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *AttendanceRepository) HasRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance_records WHERE session_id = $1 AND student_id = $2)
	`, sessionID, studentID).Scan(&exists)
	return exists, err
}

// CreateRecord relies on the (session_id, student_id) constraint, so two
// racing check-ins produce one row.
func (r *AttendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, session_id, student_id, marked_at, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`, rec.ID, rec.SessionID, rec.StudentID, rec.MarkedAt, string(rec.Source))
	if err != nil {
		return attendance.Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.Record{}, err
	}
	if n == 0 {
		return attendance.Record{}, attendance.ErrAlreadyMarked
	}
	return rec, nil
}

func (r *AttendanceRepository) ListRecords(ctx context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	var w where
	if f.SessionID != "" {
		w.eq("session_id", f.SessionID)
	}
	if f.StudentID != "" {
		w.eq("student_id", f.StudentID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, student_id, marked_at, source FROM attendance_records`+w.String()+`
		ORDER BY marked_at
	`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		var rec attendance.Record
		var source string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.StudentID, &rec.MarkedAt, &source); err != nil {
			return nil, err
		}
		rec.Source = attendance.Source(source)
		out = append(out, rec)
	}
	return out, rows.Err()
}

const correctionColumns = `id, student_id, full_name, session_id, session_title, session_date, status, created_at, updated_at`

func scanCorrection(row scanner) (attendance.CorrectionRequest, error) {
	var c attendance.CorrectionRequest
	var status string
	err := row.Scan(&c.ID, &c.StudentID, &c.FullName, &c.SessionID, &c.SessionTitle, &c.SessionDate, &status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.CorrectionRequest{}, attendance.ErrRequestNotFound
	}
	c.Status = attendance.Status(status)
	return c, err
}

func (r *AttendanceRepository) CreateCorrection(ctx context.Context, c attendance.CorrectionRequest) (attendance.CorrectionRequest, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO correction_requests (`+correctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.StudentID, c.FullName, c.SessionID, c.SessionTitle, c.SessionDate, string(c.Status), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return attendance.CorrectionRequest{}, err
	}
	return c, nil
}

func (r *AttendanceRepository) GetCorrection(ctx context.Context, id string) (attendance.CorrectionRequest, error) {
	return scanCorrection(r.db.QueryRowContext(ctx, `SELECT `+correctionColumns+` FROM correction_requests WHERE id = $1`, id))
}

func (r *AttendanceRepository) ListCorrections(ctx context.Context, f attendance.CorrectionFilter) ([]attendance.CorrectionRequest, error) {
	var w where
	if f.StudentID != "" {
		w.eq("student_id", f.StudentID)
	}
	if f.SessionID != "" {
		w.eq("session_id", f.SessionID)
	}
	if f.Status != "" {
		w.eq("status", string(f.Status))
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+correctionColumns+` FROM correction_requests`+w.String()+` ORDER BY created_at`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []attendance.CorrectionRequest
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *AttendanceRepository) UpdateCorrectionStatus(ctx context.Context, id string, status attendance.Status, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE correction_requests SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return attendance.ErrRequestNotFound
	}
	return nil
}

func (r *AttendanceRepository) DeleteCorrections(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM correction_requests WHERE id = ANY($1)`, ids)
	return err
}
