package memory

import (
	"context"
	"sort"

	"pathak/internal/parikshan"
)

type parikshanRepository struct {
	db *DB
}

// NewParikshanRepository returns a parikshan.Repository over db.
func NewParikshanRepository(db *DB) parikshan.Repository {
	return &parikshanRepository{db: db}
}

func (r *parikshanRepository) FirstRound(_ context.Context, studentID string) (parikshan.FirstRound, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if fr, ok := r.db.firstRounds[studentID]; ok {
		return fr, nil
	}
	return parikshan.FirstRound{StudentID: studentID}, nil
}

func (r *parikshanRepository) LockFirstRound(_ context.Context, next parikshan.FirstRound) (parikshan.FirstRound, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.firstRounds[next.StudentID]
	if !ok {
		cur = parikshan.FirstRound{StudentID: next.StudentID}
	}
	merged, _ := cur.Merge(next)
	if merged.Exists {
		r.db.firstRounds[next.StudentID] = merged
	}
	return merged, nil
}

func (r *parikshanRepository) ListFirstRounds(_ context.Context) ([]parikshan.FirstRound, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]parikshan.FirstRound, 0, len(r.db.firstRounds))
	for _, fr := range r.db.firstRounds {
		out = append(out, fr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (r *parikshanRepository) FinalRound(_ context.Context, studentID string) (parikshan.FinalRound, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if fr, ok := r.db.finalRounds[studentID]; ok {
		return fr, nil
	}
	return parikshan.FinalRound{StudentID: studentID}, nil
}

func (r *parikshanRepository) LockFinalRound(_ context.Context, next parikshan.FinalRound) (parikshan.FinalRound, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.finalRounds[next.StudentID]
	if !ok {
		cur = parikshan.FinalRound{StudentID: next.StudentID}
	}
	merged, _ := cur.Merge(next)
	if merged.Exists {
		r.db.finalRounds[next.StudentID] = merged
	}
	return merged, nil
}

func (r *parikshanRepository) Released(context.Context) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.db.released, nil
}

func (r *parikshanRepository) SetReleased(_ context.Context, released bool) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.released = released
	return nil
}
