package parikshan

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"pathak/internal/account"
)

var ErrResultsHidden = errors.New("parikshan results have not been released")

// Repository persists scores and the release flag.
//
// LockFirstRound and LockFinalRound merge the given marks write-once,
// atomically with respect to other writers, and return the stored state.
type Repository interface {
	FirstRound(ctx context.Context, studentID string) (FirstRound, error)
	LockFirstRound(ctx context.Context, r FirstRound) (FirstRound, error)
	ListFirstRounds(ctx context.Context) ([]FirstRound, error)
	FinalRound(ctx context.Context, studentID string) (FinalRound, error)
	LockFinalRound(ctx context.Context, r FinalRound) (FinalRound, error)
	Released(ctx context.Context) (bool, error)
	SetReleased(ctx context.Context, released bool) error
}

// Directory lists and looks up the people who can be graded.
type Directory interface {
	Students(ctx context.Context) ([]account.Profile, error)
	Profile(ctx context.Context, uid string) (account.Profile, error)
}

// Service implements score entry, averaging and the release gate.
type Service struct {
	repo     Repository
	students Directory
	now      func() time.Time
}

func NewService(repo Repository, students Directory) *Service {
	return &Service{repo: repo, students: students, now: time.Now}
}

// FirstRoundInput is a submission; nil marks are left alone.
type FirstRoundInput struct {
	Dhol1           *int `json:"dhol1"`
	Dhol2           *int `json:"dhol2"`
	Maintenance     *int `json:"maintenance"`
	Dhwaj           *int `json:"dhwaj"`
	Tasha           *int `json:"tasha"`
	TashaApplicable bool `json:"tasha_applicable"`
}

type FinalRoundInput struct {
	Dhol  *int `json:"dhol"`
	Tasha *int `json:"tasha"`
	Dhwaj *int `json:"dhwaj"`
}

// SaveFirstRound locks the submitted marks that are still unset. It returns
// the stored round and the marks this call locked.
func (s *Service) SaveFirstRound(ctx context.Context, actor account.Actor, studentID string, in FirstRoundInput) (FirstRound, []string, error) {
	if !actor.CanScore() {
		return FirstRound{}, nil, account.ErrForbidden
	}
	next := FirstRound{
		StudentID:       studentID,
		Dhol1:           FromPtr(in.Dhol1),
		Dhol2:           FromPtr(in.Dhol2),
		Maintenance:     FromPtr(in.Maintenance),
		Dhwaj:           FromPtr(in.Dhwaj),
		Tasha:           FromPtr(in.Tasha),
		TashaApplicable: in.TashaApplicable,
		SubmittedBy:     actor.UID,
		UpdatedAt:       s.now().UTC(),
	}
	for _, f := range next.Fields() {
		if !f.Score.valid() {
			return FirstRound{}, nil, ErrScoreOutOfRange
		}
	}
	if err := s.gradable(ctx, studentID); err != nil {
		return FirstRound{}, nil, err
	}

	cur, err := s.repo.FirstRound(ctx, studentID)
	if err != nil {
		return FirstRound{}, nil, err
	}
	if _, fresh := cur.Merge(next); len(fresh) == 0 {
		return cur, nil, nil
	}
	stored, err := s.repo.LockFirstRound(ctx, next)
	if err != nil {
		return FirstRound{}, nil, err
	}
	return stored, newlyLocked(cur.Fields(), stored.Fields()), nil
}

// SaveFinalRound is SaveFirstRound for the final round.
func (s *Service) SaveFinalRound(ctx context.Context, actor account.Actor, studentID string, in FinalRoundInput) (FinalRound, []string, error) {
	if !actor.CanScore() {
		return FinalRound{}, nil, account.ErrForbidden
	}
	next := FinalRound{
		StudentID:   studentID,
		Dhol:        FromPtr(in.Dhol),
		Tasha:       FromPtr(in.Tasha),
		Dhwaj:       FromPtr(in.Dhwaj),
		SubmittedBy: actor.UID,
		UpdatedAt:   s.now().UTC(),
	}
	for _, f := range next.Fields() {
		if !f.Score.valid() {
			return FinalRound{}, nil, ErrScoreOutOfRange
		}
	}
	if err := s.gradable(ctx, studentID); err != nil {
		return FinalRound{}, nil, err
	}

	cur, err := s.repo.FinalRound(ctx, studentID)
	if err != nil {
		return FinalRound{}, nil, err
	}
	if _, fresh := cur.Merge(next); len(fresh) == 0 {
		return cur, nil, nil
	}
	stored, err := s.repo.LockFinalRound(ctx, next)
	if err != nil {
		return FinalRound{}, nil, err
	}
	return stored, newlyLocked(cur.Fields(), stored.Fields()), nil
}

// gradable rejects ids that are not students so no score row is orphaned.
func (s *Service) gradable(ctx context.Context, studentID string) error {
	p, err := s.students.Profile(ctx, studentID)
	if err != nil {
		return err
	}
	if p.Role != account.RoleStudent {
		return account.ErrUserNotFound
	}
	return nil
}

func newlyLocked(before, after []Field) []string {
	var out []string
	for i := range after {
		if after[i].Score.IsLocked() && !before[i].Score.IsLocked() {
			out = append(out, after[i].Name)
		}
	}
	return out
}

// FieldView is a mark as shown to a grader. Value is hidden from scorers
// once the mark is locked.
type FieldView struct {
	Name   string `json:"name"`
	Locked bool   `json:"locked"`
	Value  *int   `json:"value"`
}

// Sheet is the grading view of one student.
type Sheet struct {
	StudentID       string      `json:"student_id"`
	First           []FieldView `json:"first_round"`
	Final           []FieldView `json:"final_round"`
	TashaApplicable bool        `json:"tasha_applicable"`
	Badge           Badge       `json:"badge"`
}

// Sheet returns both rounds for graders. Admins see values; scorers only see
// which marks are locked.
func (s *Service) Sheet(ctx context.Context, actor account.Actor, studentID string) (Sheet, error) {
	if !actor.CanScore() {
		return Sheet{}, account.ErrForbidden
	}
	first, err := s.repo.FirstRound(ctx, studentID)
	if err != nil {
		return Sheet{}, err
	}
	final, err := s.repo.FinalRound(ctx, studentID)
	if err != nil {
		return Sheet{}, err
	}
	return Sheet{
		StudentID:       studentID,
		First:           views(first.Fields(), actor.IsAdmin()),
		Final:           views(final.Fields(), actor.IsAdmin()),
		TashaApplicable: first.TashaApplicable,
		Badge:           first.Badge(),
	}, nil
}

func views(fields []Field, showValues bool) []FieldView {
	out := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		v := FieldView{Name: f.Name, Locked: f.Score.IsLocked()}
		if showValues {
			v.Value = f.Score.Ptr()
		}
		out = append(out, v)
	}
	return out
}

// RosterEntry is a student and their first-round grading state.
type RosterEntry struct {
	StudentID string `json:"student_id"`
	FullName  string `json:"fullname"`
	Badge     Badge  `json:"badge"`
}

var badgeRank = map[Badge]int{BadgePartial: 0, BadgeNone: 1, BadgeScored: 2}

// Roster lists every student, partially graded first, then ungraded, then
// fully graded, each group by name.
func (s *Service) Roster(ctx context.Context, actor account.Actor) ([]RosterEntry, error) {
	if !actor.CanScore() {
		return nil, account.ErrForbidden
	}
	students, err := s.students.Students(ctx)
	if err != nil {
		return nil, err
	}
	rounds, err := s.repo.ListFirstRounds(ctx)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]FirstRound, len(rounds))
	for _, r := range rounds {
		byStudent[r.StudentID] = r
	}

	out := make([]RosterEntry, 0, len(students))
	for _, st := range students {
		out = append(out, RosterEntry{
			StudentID: st.UID,
			FullName:  st.FullName,
			Badge:     byStudent[st.UID].Badge(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := badgeRank[out[i].Badge], badgeRank[out[j].Badge]
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	})
	return out, nil
}

// Result is what a student sees once results are released.
type Result struct {
	First        FirstRound `json:"first_round"`
	Final        FinalRound `json:"final_round"`
	Dhol         *float64   `json:"dhol"`
	FirstAverage *float64   `json:"first_average"`
	FinalAverage *float64   `json:"final_average"`
	Combined     *float64   `json:"combined"`
}

// MyScores returns the caller's results, or ErrResultsHidden before release.
func (s *Service) MyScores(ctx context.Context, actor account.Actor) (Result, error) {
	released, err := s.repo.Released(ctx)
	if err != nil {
		return Result{}, err
	}
	if !released {
		return Result{}, ErrResultsHidden
	}
	first, err := s.repo.FirstRound(ctx, actor.UID)
	if err != nil {
		return Result{}, err
	}
	final, err := s.repo.FinalRound(ctx, actor.UID)
	if err != nil {
		return Result{}, err
	}
	return Result{
		First:        first,
		Final:        final,
		Dhol:         optional(first.Dhol()),
		FirstAverage: optional(first.Average()),
		FinalAverage: optional(final.Average()),
		Combined:     optional(Combined(first, final)),
	}, nil
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Released reports whether students can see their results.
func (s *Service) Released(ctx context.Context) (bool, error) {
	return s.repo.Released(ctx)
}

// SetReleased toggles result visibility. Super admins only.
func (s *Service) SetReleased(ctx context.Context, actor account.Actor, released bool) error {
	if !actor.SuperAdmin {
		return account.ErrForbidden
	}
	return s.repo.SetReleased(ctx, released)
}
