package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pathak/internal/parikshan"
)

const releasedSetting = "parikshan_released"

// ParikshanRepository persists scores. Write-once merging happens in SQL:
// every mark is COALESCE(existing, submitted).
type ParikshanRepository struct {
	db *sql.DB
}

func NewParikshanRepository(db *sql.DB) *ParikshanRepository {
	return &ParikshanRepository{db: db}
}

const firstRoundColumns = `student_id, dhol1, dhol2, maintenance, dhwaj, tasha, tasha_applicable, submitted_by, updated_at`

func scanFirstRound(row scanner) (parikshan.FirstRound, error) {
	var (
		fr                                    parikshan.FirstRound
		dhol1, dhol2, maintenance, dhwaj, tsh *int
	)
	if err := row.Scan(&fr.StudentID, &dhol1, &dhol2, &maintenance, &dhwaj, &tsh, &fr.TashaApplicable, &fr.SubmittedBy, &fr.UpdatedAt); err != nil {
		return parikshan.FirstRound{}, err
	}
	fr.Dhol1 = parikshan.FromPtr(dhol1)
	fr.Dhol2 = parikshan.FromPtr(dhol2)
	fr.Maintenance = parikshan.FromPtr(maintenance)
	fr.Dhwaj = parikshan.FromPtr(dhwaj)
	fr.Tasha = parikshan.FromPtr(tsh)
	fr.Exists = true
	return fr, nil
}

func (r *ParikshanRepository) FirstRound(ctx context.Context, studentID string) (parikshan.FirstRound, error) {
	fr, err := scanFirstRound(r.db.QueryRowContext(ctx, `SELECT `+firstRoundColumns+` FROM parikshan_scores WHERE student_id = $1`, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return parikshan.FirstRound{StudentID: studentID}, nil
	}
	return fr, err
}

func (r *ParikshanRepository) LockFirstRound(ctx context.Context, next parikshan.FirstRound) (parikshan.FirstRound, error) {
	var insertTasha *int
	if next.TashaApplicable {
		insertTasha = next.Tasha.Ptr()
	}
	return scanFirstRound(r.db.QueryRowContext(ctx, `
		INSERT INTO parikshan_scores (`+firstRoundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id) DO UPDATE SET
			dhol1 = COALESCE(parikshan_scores.dhol1, EXCLUDED.dhol1),
			dhol2 = COALESCE(parikshan_scores.dhol2, EXCLUDED.dhol2),
			maintenance = COALESCE(parikshan_scores.maintenance, EXCLUDED.maintenance),
			dhwaj = COALESCE(parikshan_scores.dhwaj, EXCLUDED.dhwaj),
			tasha = COALESCE(parikshan_scores.tasha,
				CASE WHEN parikshan_scores.tasha_applicable OR EXCLUDED.tasha_applicable THEN $10::SMALLINT END),
			tasha_applicable = parikshan_scores.tasha_applicable OR EXCLUDED.tasha_applicable,
			submitted_by = EXCLUDED.submitted_by,
			updated_at = EXCLUDED.updated_at
		RETURNING `+firstRoundColumns,
		next.StudentID, next.Dhol1.Ptr(), next.Dhol2.Ptr(), next.Maintenance.Ptr(), next.Dhwaj.Ptr(),
		insertTasha, next.TashaApplicable, next.SubmittedBy, next.UpdatedAt, next.Tasha.Ptr()))
}

func (r *ParikshanRepository) ListFirstRounds(ctx context.Context) ([]parikshan.FirstRound, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+firstRoundColumns+` FROM parikshan_scores ORDER BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []parikshan.FirstRound
	for rows.Next() {
		fr, err := scanFirstRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

const finalRoundColumns = `student_id, dhol, tasha, dhwaj, submitted_by, updated_at`

func scanFinalRound(row scanner) (parikshan.FinalRound, error) {
	var (
		fr                parikshan.FinalRound
		dhol, tsh, dhwaj *int
	)
	if err := row.Scan(&fr.StudentID, &dhol, &tsh, &dhwaj, &fr.SubmittedBy, &fr.UpdatedAt); err != nil {
		return parikshan.FinalRound{}, err
	}
	fr.Dhol = parikshan.FromPtr(dhol)
	fr.Tasha = parikshan.FromPtr(tsh)
	fr.Dhwaj = parikshan.FromPtr(dhwaj)
	fr.Exists = true
	return fr, nil
}

func (r *ParikshanRepository) FinalRound(ctx context.Context, studentID string) (parikshan.FinalRound, error) {
	fr, err := scanFinalRound(r.db.QueryRowContext(ctx, `SELECT `+finalRoundColumns+` FROM final_parikshan_scores WHERE student_id = $1`, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return parikshan.FinalRound{StudentID: studentID}, nil
	}
	return fr, err
}

func (r *ParikshanRepository) LockFinalRound(ctx context.Context, next parikshan.FinalRound) (parikshan.FinalRound, error) {
	return scanFinalRound(r.db.QueryRowContext(ctx, `
		INSERT INTO final_parikshan_scores (`+finalRoundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id) DO UPDATE SET
			dhol = COALESCE(final_parikshan_scores.dhol, EXCLUDED.dhol),
			tasha = COALESCE(final_parikshan_scores.tasha, EXCLUDED.tasha),
			dhwaj = COALESCE(final_parikshan_scores.dhwaj, EXCLUDED.dhwaj),
			submitted_by = EXCLUDED.submitted_by,
			updated_at = EXCLUDED.updated_at
		RETURNING `+finalRoundColumns,
		next.StudentID, next.Dhol.Ptr(), next.Tasha.Ptr(), next.Dhwaj.Ptr(), next.SubmittedBy, next.UpdatedAt))
}

func (r *ParikshanRepository) Released(ctx context.Context) (bool, error) {
	var released bool
	err := r.db.QueryRowContext(ctx, `SELECT bool_value FROM settings WHERE name = $1`, releasedSetting).Scan(&released)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return released, err
}

func (r *ParikshanRepository) SetReleased(ctx context.Context, released bool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (name, bool_value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET bool_value = EXCLUDED.bool_value
	`, releasedSetting, released)
	return err
}
