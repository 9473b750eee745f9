package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pathak/internal/attendance"
)

type sessionDoc struct {
	Title     string    `firestore:"title"`
	CreatedBy string    `firestore:"createdBy"`
	Code      string    `firestore:"code"`
	Timestamp time.Time `firestore:"timestamp"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

type recordDoc struct {
	SessionID string    `firestore:"sessionId"`
	StudentID string    `firestore:"studentId"`
	MarkedAt  time.Time `firestore:"markedAt"`
	Source    string    `firestore:"source,omitempty"`
}

// recordFrom decodes an attendance document. Records written by the mobile
// app's correction approval carry timestamp instead of markedAt and no source.
func recordFrom(id string, data map[string]interface{}) attendance.Record {
	source := attendance.Source(stringField(data, "source"))
	if source == "" {
		source = attendance.SourceCode
	}
	return attendance.Record{
		ID:        id,
		SessionID: stringField(data, "sessionId"),
		StudentID: stringField(data, "studentId"),
		MarkedAt:  firstTime(data, "markedAt", "timestamp"),
		Source:    source,
	}
}

type correctionDoc struct {
	StudentID    string    `firestore:"studentId"`
	FullName     string    `firestore:"fullname"`
	SessionID    string    `firestore:"sessionId"`
	SessionTitle string    `firestore:"sessionTitle"`
	SessionDate  string    `firestore:"sessionDate"`
	Status       string    `firestore:"status"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt,omitempty"`
}

// AttendanceRepository stores sessions, attendance and correction requests.
// Attendance documents are keyed by attendance.RecordID so Create is a
// create-if-absent on the pair.
type AttendanceRepository struct {
	client *firestore.Client
}

func NewAttendanceRepository(client *firestore.Client) *AttendanceRepository {
	return &AttendanceRepository{client: client}
}

func sessionFromSnap(snap *firestore.DocumentSnapshot) (attendance.Session, error) {
	var d sessionDoc
	if err := snap.DataTo(&d); err != nil {
		return attendance.Session{}, err
	}
	return attendance.Session{
		ID:        snap.Ref.ID,
		Title:     d.Title,
		CreatedBy: d.CreatedBy,
		Code:      d.Code,
		CreatedAt: d.Timestamp,
		ExpiresAt: d.ExpiresAt,
	}, nil
}

func (r *AttendanceRepository) CreateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	_, err := r.client.Collection(colSessions).Doc(s.ID).Create(ctx, sessionDoc{
		Title:     s.Title,
		CreatedBy: s.CreatedBy,
		Code:      s.Code,
		Timestamp: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	})
	if err != nil {
		return attendance.Session{}, err
	}
	return s, nil
}

func (r *AttendanceRepository) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	snap, err := r.client.Collection(colSessions).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return attendance.Session{}, attendance.ErrSessionNotFound
		}
		return attendance.Session{}, err
	}
	return sessionFromSnap(snap)
}

func (r *AttendanceRepository) FindSessionByCode(ctx context.Context, code string) (attendance.Session, error) {
	q := r.client.Collection(colSessions).
		Where("code", "==", code).
		OrderBy("timestamp", firestore.Desc).
		Limit(1)
	return r.firstSession(ctx, q)
}

func (r *AttendanceRepository) LatestActiveSession(ctx context.Context, now time.Time) (attendance.Session, error) {
	q := r.client.Collection(colSessions).
		Where("expiresAt", ">", now).
		OrderBy("expiresAt", firestore.Desc).
		Limit(1)
	return r.firstSession(ctx, q)
}

func (r *AttendanceRepository) firstSession(ctx context.Context, q firestore.Query) (attendance.Session, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return attendance.Session{}, attendance.ErrSessionNotFound
	}
	if err != nil {
		return attendance.Session{}, err
	}
	return sessionFromSnap(snap)
}

func (r *AttendanceRepository) ListSessions(ctx context.Context) ([]attendance.Session, error) {
	iter := r.client.Collection(colSessions).OrderBy("timestamp", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var out []attendance.Session
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		s, err := sessionFromSnap(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// HasRecord queries by field so records written under random ids by older
// clients are still found.
func (r *AttendanceRepository) HasRecord(ctx context.Context, sessionID, studentID string) (bool, error) {
	iter := r.client.Collection(colAttendance).
		Where("sessionId", "==", sessionID).
		Where("studentId", "==", studentID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *AttendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	_, err := r.client.Collection(colAttendance).Doc(rec.ID).Create(ctx, recordDoc{
		SessionID: rec.SessionID,
		StudentID: rec.StudentID,
		MarkedAt:  rec.MarkedAt,
		Source:    string(rec.Source),
	})
	if err != nil {
		if isAlreadyExists(err) {
			return attendance.Record{}, attendance.ErrAlreadyMarked
		}
		return attendance.Record{}, err
	}
	return rec, nil
}

func (r *AttendanceRepository) ListRecords(ctx context.Context, f attendance.RecordFilter) ([]attendance.Record, error) {
	q := r.client.Collection(colAttendance).Query
	if f.SessionID != "" {
		q = q.Where("sessionId", "==", f.SessionID)
	}
	if f.StudentID != "" {
		q = q.Where("studentId", "==", f.StudentID)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []attendance.Record
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, recordFrom(snap.Ref.ID, snap.Data()))
	}
	return out, nil
}

func correctionFromSnap(snap *firestore.DocumentSnapshot) (attendance.CorrectionRequest, error) {
	var d correctionDoc
	if err := snap.DataTo(&d); err != nil {
		return attendance.CorrectionRequest{}, err
	}
	return attendance.CorrectionRequest{
		ID:           snap.Ref.ID,
		StudentID:    d.StudentID,
		FullName:     d.FullName,
		SessionID:    d.SessionID,
		SessionTitle: d.SessionTitle,
		SessionDate:  d.SessionDate,
		Status:       attendance.Status(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

func (r *AttendanceRepository) CreateCorrection(ctx context.Context, c attendance.CorrectionRequest) (attendance.CorrectionRequest, error) {
	_, err := r.client.Collection(colCorrections).Doc(c.ID).Create(ctx, correctionDoc{
		StudentID:    c.StudentID,
		FullName:     c.FullName,
		SessionID:    c.SessionID,
		SessionTitle: c.SessionTitle,
		SessionDate:  c.SessionDate,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	})
	if err != nil {
		return attendance.CorrectionRequest{}, err
	}
	return c, nil
}

func (r *AttendanceRepository) GetCorrection(ctx context.Context, id string) (attendance.CorrectionRequest, error) {
	snap, err := r.client.Collection(colCorrections).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return attendance.CorrectionRequest{}, attendance.ErrRequestNotFound
		}
		return attendance.CorrectionRequest{}, err
	}
	return correctionFromSnap(snap)
}

func (r *AttendanceRepository) ListCorrections(ctx context.Context, f attendance.CorrectionFilter) ([]attendance.CorrectionRequest, error) {
	q := r.client.Collection(colCorrections).Query
	if f.StudentID != "" {
		q = q.Where("studentId", "==", f.StudentID)
	}
	if f.SessionID != "" {
		q = q.Where("sessionId", "==", f.SessionID)
	}
	if f.Status != "" {
		q = q.Where("status", "==", string(f.Status))
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []attendance.CorrectionRequest
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		c, err := correctionFromSnap(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *AttendanceRepository) UpdateCorrectionStatus(ctx context.Context, id string, st attendance.Status, at time.Time) error {
	_, err := r.client.Collection(colCorrections).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(st)},
		{Path: "updatedAt", Value: at},
	})
	if isNotFound(err) {
		return attendance.ErrRequestNotFound
	}
	return err
}

// DeleteCorrections removes the documents in one transaction.
func (r *AttendanceRepository) DeleteCorrections(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, id := range ids {
			if err := tx.Delete(r.client.Collection(colCorrections).Doc(id)); err != nil {
				return err
			}
		}
		return nil
	})
}
