package srs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMastered(t *testing.T) {
	tests := []struct {
		name  string
		state *State
		want  bool
	}{
		{"never reviewed", nil, false},
		{"long interval", &State{Interval: 25, EaseFactor: 2.5, Repetitions: 5}, true},
		{"exactly 21 days", &State{Interval: 21, EaseFactor: 2.5, Repetitions: 0}, true},
		{"streak of three at a week", &State{Interval: 8, EaseFactor: 2.5, Repetitions: 3}, true},
		{"week interval but short streak", &State{Interval: 8, EaseFactor: 2.5, Repetitions: 2}, false},
		{"streak but interval too short", &State{Interval: 6, EaseFactor: 2.5, Repetitions: 5}, false},
		{"fresh card", &State{Interval: 1, EaseFactor: 2.5, Repetitions: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mastered(tt.state))
		})
	}
}

// Raising interval or repetitions can never un-master a card.
func TestMasteryMonotonic(t *testing.T) {
	for interval := 1; interval <= 30; interval++ {
		for reps := 0; reps <= 6; reps++ {
			s := &State{Interval: interval, EaseFactor: 2.5, Repetitions: reps}
			if !Mastered(s) {
				continue
			}
			up := *s
			up.Interval++
			assert.True(t, Mastered(&up), "interval %d->%d reps %d", interval, interval+1, reps)
			up = *s
			up.Repetitions++
			assert.True(t, Mastered(&up), "interval %d reps %d->%d", interval, reps, reps+1)
		}
	}
}

func TestAggregateMastery(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		m := AggregateMastery(nil)
		assert.Equal(t, SetMastery{}, m)
	})

	t.Run("mixed", func(t *testing.T) {
		m := AggregateMastery([]*State{
			nil,
			{Interval: 25, EaseFactor: 2.5, Repetitions: 5},
			{Interval: 8, EaseFactor: 2.5, Repetitions: 3},
		})
		assert.Equal(t, 2, m.MasteredCount)
		assert.Equal(t, 3, m.TotalCards)
		assert.Equal(t, 67, m.Percentage) // round(200/3)
	})

	t.Run("none mastered", func(t *testing.T) {
		m := AggregateMastery([]*State{nil, nil})
		assert.Equal(t, 0, m.Percentage)
		assert.Equal(t, 2, m.TotalCards)
	})
}
