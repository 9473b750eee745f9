package docstore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"pathak/internal/parikshan"
)

// fieldReleased is the release flag in globalConfig/parikshanSettings.
const fieldReleased = "parikshanReleased"

// ParikshanRepository stores score documents keyed by student id. Marks are
// plain numeric fields that are absent until locked, so documents are decoded
// from maps rather than structs.
type ParikshanRepository struct {
	client *firestore.Client
}

func NewParikshanRepository(client *firestore.Client) *ParikshanRepository {
	return &ParikshanRepository{client: client}
}

func firstRoundFrom(id string, data map[string]interface{}) parikshan.FirstRound {
	fr := parikshan.FirstRound{
		StudentID:   id,
		Dhol1:       scoreField(data, parikshan.FieldDhol1),
		Dhol2:       scoreField(data, parikshan.FieldDhol2),
		Maintenance: scoreField(data, parikshan.FieldMaintenance),
		Dhwaj:       scoreField(data, parikshan.FieldDhwaj),
		Tasha:       scoreField(data, parikshan.FieldTasha),
		SubmittedBy: submitter(data),
		UpdatedAt:   timeField(data, "updatedAt"),
		Exists:      true,
	}
	fr.TashaApplicable = boolField(data, "tashaApplicable") || fr.Tasha.IsLocked()
	return fr
}

func finalRoundFrom(id string, data map[string]interface{}) parikshan.FinalRound {
	return parikshan.FinalRound{
		StudentID:   id,
		Dhol:        scoreField(data, parikshan.FieldDhol),
		Tasha:       scoreField(data, parikshan.FieldTasha),
		Dhwaj:       scoreField(data, parikshan.FieldDhwaj),
		SubmittedBy: submitter(data),
		UpdatedAt:   timeField(data, "updatedAt"),
		Exists:      true,
	}
}

// submitter prefers the grader uid and falls back to the display name the
// mobile app records.
func submitter(data map[string]interface{}) string {
	if uid := stringField(data, "submittedBy"); uid != "" {
		return uid
	}
	return stringField(data, "submittedByName")
}

// marks renders the locked marks plus the bookkeeping fields of a score document.
func marks(studentID, submittedBy string, updatedAt time.Time, fields []parikshan.Field) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+3)
	for _, f := range fields {
		if v, ok := f.Score.Value(); ok {
			out[f.Name] = v
		}
	}
	out["studentId"] = studentID
	out["submittedBy"] = submittedBy
	out["updatedAt"] = updatedAt
	return out
}

func (r *ParikshanRepository) FirstRound(ctx context.Context, studentID string) (parikshan.FirstRound, error) {
	snap, err := r.client.Collection(colScores).Doc(studentID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return parikshan.FirstRound{StudentID: studentID}, nil
		}
		return parikshan.FirstRound{}, err
	}
	return firstRoundFrom(studentID, snap.Data()), nil
}

// LockFirstRound reads and merges inside a transaction so two scorers racing
// on the same student cannot overwrite each other's marks.
func (r *ParikshanRepository) LockFirstRound(ctx context.Context, next parikshan.FirstRound) (parikshan.FirstRound, error) {
	ref := r.client.Collection(colScores).Doc(next.StudentID)
	var merged parikshan.FirstRound
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cur := parikshan.FirstRound{StudentID: next.StudentID}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			cur = firstRoundFrom(next.StudentID, snap.Data())
		case !isNotFound(err):
			return err
		}

		var locked []string
		merged, locked = cur.Merge(next)
		if len(locked) == 0 {
			return nil
		}
		doc := marks(merged.StudentID, merged.SubmittedBy, merged.UpdatedAt, merged.Fields())
		doc["tashaApplicable"] = merged.TashaApplicable
		return tx.Set(ref, doc, firestore.MergeAll)
	})
	if err != nil {
		return parikshan.FirstRound{}, err
	}
	return merged, nil
}

func (r *ParikshanRepository) ListFirstRounds(ctx context.Context) ([]parikshan.FirstRound, error) {
	iter := r.client.Collection(colScores).Documents(ctx)
	defer iter.Stop()

	var out []parikshan.FirstRound
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, firstRoundFrom(snap.Ref.ID, snap.Data()))
	}
	return out, nil
}

func (r *ParikshanRepository) FinalRound(ctx context.Context, studentID string) (parikshan.FinalRound, error) {
	snap, err := r.client.Collection(colFinalScores).Doc(studentID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return parikshan.FinalRound{StudentID: studentID}, nil
		}
		return parikshan.FinalRound{}, err
	}
	return finalRoundFrom(studentID, snap.Data()), nil
}

func (r *ParikshanRepository) LockFinalRound(ctx context.Context, next parikshan.FinalRound) (parikshan.FinalRound, error) {
	ref := r.client.Collection(colFinalScores).Doc(next.StudentID)
	var merged parikshan.FinalRound
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cur := parikshan.FinalRound{StudentID: next.StudentID}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			cur = finalRoundFrom(next.StudentID, snap.Data())
		case !isNotFound(err):
			return err
		}

		var locked []string
		merged, locked = cur.Merge(next)
		if len(locked) == 0 {
			return nil
		}
		doc := marks(merged.StudentID, merged.SubmittedBy, merged.UpdatedAt, merged.Fields())
		return tx.Set(ref, doc, firestore.MergeAll)
	})
	if err != nil {
		return parikshan.FinalRound{}, err
	}
	return merged, nil
}

func (r *ParikshanRepository) Released(ctx context.Context) (bool, error) {
	snap, err := r.client.Collection(colConfig).Doc(docParikshan).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return boolField(snap.Data(), fieldReleased), nil
}

func (r *ParikshanRepository) SetReleased(ctx context.Context, released bool) error {
	_, err := r.client.Collection(colConfig).Doc(docParikshan).Set(ctx, map[string]interface{}{
		fieldReleased: released,
	}, firestore.MergeAll)
	return err
}
