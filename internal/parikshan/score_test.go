package parikshan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDholComponent(t *testing.T) {
	tests := []struct {
		name   string
		round  FirstRound
		want   float64
		wantOK bool
	}{
		{name: "both", round: FirstRound{Dhol1: Locked(8), Dhol2: Locked(6)}, want: 7, wantOK: true},
		{name: "first only", round: FirstRound{Dhol1: Locked(8)}, want: 8, wantOK: true},
		{name: "second only", round: FirstRound{Dhol2: Locked(5)}, want: 5, wantOK: true},
		{name: "neither", round: FirstRound{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.round.Dhol()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstRoundAverageSkipsMissing(t *testing.T) {
	r := FirstRound{Dhol1: Locked(8), Dhol2: Locked(6), Maintenance: Locked(9), Dhwaj: Locked(4), Tasha: Locked(10)}
	avg, ok := r.Average()
	require.True(t, ok)
	assert.InDelta(t, 7.5, avg, 1e-9)

	// no dhol marks: dhol is excluded, not counted as zero
	r = FirstRound{Maintenance: Locked(9), Dhwaj: Locked(3)}
	avg, ok = r.Average()
	require.True(t, ok)
	assert.InDelta(t, 6, avg, 1e-9)

	_, ok = FirstRound{}.Average()
	assert.False(t, ok)
}

func TestFinalAndCombined(t *testing.T) {
	final := FinalRound{Dhol: Locked(9), Tasha: Locked(6)}
	avg, ok := final.Average()
	require.True(t, ok)
	assert.InDelta(t, 7.5, avg, 1e-9)

	first := FirstRound{Maintenance: Locked(5)}
	combined, ok := Combined(first, final)
	require.True(t, ok)
	assert.InDelta(t, 6.25, combined, 1e-9)

	_, ok = Combined(FirstRound{}, final)
	assert.False(t, ok)
}

func TestMergeIsWriteOnce(t *testing.T) {
	cur := FirstRound{StudentID: "s"}
	next, locked := cur.Merge(FirstRound{StudentID: "s", Dhol1: Locked(5)})
	assert.Equal(t, []string{FieldDhol1}, locked)

	again, locked := next.Merge(FirstRound{StudentID: "s", Dhol1: Locked(9), Dhwaj: Locked(7)})
	assert.Equal(t, []string{FieldDhwaj}, locked)
	v, _ := again.Dhol1.Value()
	assert.Equal(t, 5, v)

	final, locked := FinalRound{}.Merge(FinalRound{Dhol: Locked(5)})
	assert.Equal(t, []string{FieldDhol}, locked)
	final, locked = final.Merge(FinalRound{Dhol: Locked(9)})
	assert.Empty(t, locked)
	v, _ = final.Dhol.Value()
	assert.Equal(t, 5, v)
}

func TestMergeTashaNeedsApplicability(t *testing.T) {
	r, locked := FirstRound{}.Merge(FirstRound{Tasha: Locked(8)})
	assert.Empty(t, locked)
	assert.False(t, r.Tasha.IsLocked())

	r, locked = FirstRound{}.Merge(FirstRound{Tasha: Locked(8), TashaApplicable: true})
	assert.Equal(t, []string{FieldTasha}, locked)
	assert.True(t, r.TashaApplicable)
}

func TestBadge(t *testing.T) {
	assert.Equal(t, BadgeNone, FirstRound{}.Badge())

	partial := FirstRound{Exists: true, Dhol1: Locked(5)}
	assert.Equal(t, BadgePartial, partial.Badge())

	base := FirstRound{Exists: true, Dhol1: Locked(5), Dhol2: Locked(5), Maintenance: Locked(5), Dhwaj: Locked(5)}
	assert.Equal(t, BadgeScored, base.Badge())

	base.TashaApplicable = true
	assert.Equal(t, BadgePartial, base.Badge())
	base.Tasha = Locked(3)
	assert.Equal(t, BadgeScored, base.Badge())
}

func TestScoreJSON(t *testing.T) {
	b, err := json.Marshal(FinalRound{Dhol: Locked(4)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"dhol":4`)
	assert.Contains(t, string(b), `"tasha":null`)

	var s Score
	require.NoError(t, json.Unmarshal([]byte("null"), &s))
	assert.False(t, s.IsLocked())
	require.NoError(t, json.Unmarshal([]byte("7"), &s))
	v, ok := s.Value()
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &s))
}
