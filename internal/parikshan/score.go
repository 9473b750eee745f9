package parikshan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Score bounds.
const (
	MinScore = 0
	MaxScore = 10
)

var ErrScoreOutOfRange = fmt.Errorf("score must be between %d and %d", MinScore, MaxScore)

// Score is one write-once mark: either unset or locked to a value.
type Score struct {
	value  int
	locked bool
}

// Locked returns a score fixed at v.
func Locked(v int) Score { return Score{value: v, locked: true} }

// FromPtr maps nil to an unset score.
func FromPtr(p *int) Score {
	if p == nil {
		return Score{}
	}
	return Locked(*p)
}

func (s Score) IsLocked() bool { return s.locked }

// Value returns the mark and whether it is set.
func (s Score) Value() (int, bool) { return s.value, s.locked }

// Ptr returns nil for an unset score.
func (s Score) Ptr() *int {
	if !s.locked {
		return nil
	}
	v := s.value
	return &v
}

func (s Score) valid() bool {
	return !s.locked || (s.value >= MinScore && s.value <= MaxScore)
}

// lock keeps an existing value and otherwise takes next.
func (s Score) lock(next Score) (Score, bool) {
	if s.locked || !next.locked {
		return s, false
	}
	return next, true
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.locked {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

func (s *Score) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Score{}
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.New("score must be an integer")
	}
	*s = Locked(v)
	return nil
}

// mean averages the set scores; ok is false when none are set.
func mean(values ...float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

func collect(scores ...Score) []float64 {
	out := make([]float64, 0, len(scores))
	for _, s := range scores {
		if v, ok := s.Value(); ok {
			out = append(out, float64(v))
		}
	}
	return out
}
