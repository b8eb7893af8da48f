package srs

import "math"

// Mastery thresholds: a card is mastered once its interval reaches three
// weeks, or once it has a streak of three successes at a week or more.
const (
	masteredInterval       = 21
	masteredStreak         = 3
	masteredStreakInterval = 7
)

// Mastered reports whether a reviewed card counts as durably learned.
// A card that has never been reviewed (nil state) is never mastered.
func Mastered(state *State) bool {
	if state == nil {
		return false
	}
	if state.Interval >= masteredInterval {
		return true
	}
	return state.Repetitions >= masteredStreak && state.Interval >= masteredStreakInterval
}

// SetMastery is the aggregate mastery of a collection of cards. It is a
// derived view recomputed on demand, never the stored source of truth.
type SetMastery struct {
	MasteredCount int `json:"masteredCount"`
	TotalCards    int `json:"totalCards"`
	Percentage    int `json:"masteryPercentage"`
}

// AggregateMastery classifies every card state in the collection and
// returns the rolled-up counts. Nil entries are unreviewed cards; they
// count toward the total but are never mastered. An empty collection
// yields 0%.
func AggregateMastery(states []*State) SetMastery {
	m := SetMastery{TotalCards: len(states)}
	for _, s := range states {
		if Mastered(s) {
			m.MasteredCount++
		}
	}
	if m.TotalCards > 0 {
		m.Percentage = int(math.Round(100 * float64(m.MasteredCount) / float64(m.TotalCards)))
	}
	return m
}
