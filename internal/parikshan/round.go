package parikshan

import "time"

// Field names as submitted and stored.
const (
	FieldDhol1       = "dhol1"
	FieldDhol2       = "dhol2"
	FieldMaintenance = "maintenance"
	FieldDhwaj       = "dhwaj"
	FieldTasha       = "tasha"
	FieldDhol        = "dhol"
)

// FirstRound holds a student's first Parikshan marks.
type FirstRound struct {
	StudentID       string    `json:"student_id"`
	Dhol1           Score     `json:"dhol1"`
	Dhol2           Score     `json:"dhol2"`
	Maintenance     Score     `json:"maintenance"`
	Dhwaj           Score     `json:"dhwaj"`
	Tasha           Score     `json:"tasha"`
	TashaApplicable bool      `json:"tasha_applicable"`
	SubmittedBy     string    `json:"submitted_by,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
	Exists          bool      `json:"-"`
}

// Fields lists the marks in display order.
func (r FirstRound) Fields() []Field {
	return []Field{
		{FieldDhol1, r.Dhol1},
		{FieldDhol2, r.Dhol2},
		{FieldMaintenance, r.Maintenance},
		{FieldDhwaj, r.Dhwaj},
		{FieldTasha, r.Tasha},
	}
}

// Dhol is the mean of both dhol marks, or whichever one is set.
func (r FirstRound) Dhol() (float64, bool) {
	return mean(collect(r.Dhol1, r.Dhol2)...)
}

// Average is the mean over dhol, maintenance, dhwaj and tasha, skipping
// categories without a mark.
func (r FirstRound) Average() (float64, bool) {
	parts := collect(r.Maintenance, r.Dhwaj, r.Tasha)
	if d, ok := r.Dhol(); ok {
		parts = append(parts, d)
	}
	return mean(parts...)
}

// Merge applies next on top of r without touching locked marks and returns
// the merged round plus the names of marks it locked.
func (r FirstRound) Merge(next FirstRound) (FirstRound, []string) {
	out := r
	out.StudentID = next.StudentID
	out.TashaApplicable = r.TashaApplicable || next.TashaApplicable || r.Tasha.IsLocked()

	var locked []string
	apply := func(name string, cur *Score, in Score) {
		if v, ok := cur.lock(in); ok {
			*cur = v
			locked = append(locked, name)
		}
	}
	apply(FieldDhol1, &out.Dhol1, next.Dhol1)
	apply(FieldDhol2, &out.Dhol2, next.Dhol2)
	apply(FieldMaintenance, &out.Maintenance, next.Maintenance)
	apply(FieldDhwaj, &out.Dhwaj, next.Dhwaj)
	if out.TashaApplicable {
		apply(FieldTasha, &out.Tasha, next.Tasha)
	}
	if len(locked) > 0 {
		out.SubmittedBy = next.SubmittedBy
		out.UpdatedAt = next.UpdatedAt
		out.Exists = true
	}
	return out, locked
}

// Badge summarises grading progress for the roster.
func (r FirstRound) Badge() Badge {
	if !r.Exists {
		return BadgeNone
	}
	base := r.Dhol1.IsLocked() && r.Dhol2.IsLocked() && r.Maintenance.IsLocked() && r.Dhwaj.IsLocked()
	tasha := !r.TashaApplicable || r.Tasha.IsLocked()
	if base && tasha {
		return BadgeScored
	}
	return BadgePartial
}

// FinalRound holds a student's final Parikshan marks.
type FinalRound struct {
	StudentID   string    `json:"student_id"`
	Dhol        Score     `json:"dhol"`
	Tasha       Score     `json:"tasha"`
	Dhwaj       Score     `json:"dhwaj"`
	SubmittedBy string    `json:"submitted_by,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	Exists      bool      `json:"-"`
}

func (r FinalRound) Fields() []Field {
	return []Field{
		{FieldDhol, r.Dhol},
		{FieldTasha, r.Tasha},
		{FieldDhwaj, r.Dhwaj},
	}
}

// Average is the mean over dhol, tasha and dhwaj, skipping unset marks.
func (r FinalRound) Average() (float64, bool) {
	return mean(collect(r.Dhol, r.Tasha, r.Dhwaj)...)
}

// Merge is the write-once merge for the final round.
func (r FinalRound) Merge(next FinalRound) (FinalRound, []string) {
	out := r
	out.StudentID = next.StudentID
	var locked []string
	apply := func(name string, cur *Score, in Score) {
		if v, ok := cur.lock(in); ok {
			*cur = v
			locked = append(locked, name)
		}
	}
	apply(FieldDhol, &out.Dhol, next.Dhol)
	apply(FieldTasha, &out.Tasha, next.Tasha)
	apply(FieldDhwaj, &out.Dhwaj, next.Dhwaj)
	if len(locked) > 0 {
		out.SubmittedBy = next.SubmittedBy
		out.UpdatedAt = next.UpdatedAt
		out.Exists = true
	}
	return out, locked
}

// Combined averages the two rounds when both have an average.
func Combined(first FirstRound, final FinalRound) (float64, bool) {
	a, okA := first.Average()
	b, okB := final.Average()
	if !okA || !okB {
		return 0, false
	}
	return (a + b) / 2, true
}

// Field pairs a mark with its name.
type Field struct {
	Name  string
	Score Score
}

// Badge values. BadgeNone means no score document exists.
type Badge string

const (
	BadgeNone    Badge = ""
	BadgePartial Badge = "partial"
	BadgeScored  Badge = "scored"
)
