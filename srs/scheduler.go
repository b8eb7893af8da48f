// Package srs implements the SM-2 style spaced-repetition scheduler and the
// mastery classifier that drive flashcard review. Both are pure functions:
// no I/O, no clock access beyond the caller-supplied "now", safe to call
// concurrently from any number of sessions.
package srs

import (
	"math"
	"time"
)

// Defaults applied on a card's first review.
const (
	InitialEase    = 2.5
	MinEase        = 1.3
	FirstInterval  = 1 // days after the first successful review
	SecondInterval = 6 // days after the second consecutive success
)

// State is a card's scheduling state. A card that has never been reviewed
// has no State at all (represented as a nil *State), never a partial one.
type State struct {
	Interval    int     // days until the next review, assigned at last review
	EaseFactor  float64 // interval growth multiplier, >= MinEase
	Repetitions int     // consecutive successful reviews since the last lapse
}

// Review is the outcome of applying one rating to a card.
type Review struct {
	State
	Due        time.Time // ReviewedAt + Interval days
	ReviewedAt time.Time
}

// Apply computes the scheduling state after rating a card. A nil prior
// state means the card has never been reviewed. Apply is total over valid
// qualities: it has no failure mode and never mutates its input.
//
// On success (quality >= SuccessThreshold) the interval runs 1, 6, then
// round(interval * ease), and the ease factor moves by the SM-2 adjustment
// EF' = EF + (0.1 - (5-q)*(0.08 + (5-q)*0.02)), floored at MinEase.
// Any lower rating is a lapse: repetitions and interval reset, ease keeps
// its prior value.
func Apply(prior *State, quality Quality, now time.Time) Review {
	priorReps := 0
	priorInterval := FirstInterval
	priorEase := InitialEase
	if prior != nil {
		priorReps = prior.Repetitions
		priorInterval = prior.Interval
		priorEase = prior.EaseFactor
	}

	next := State{
		Repetitions: priorReps + 1,
		EaseFactor:  priorEase,
	}

	if quality >= SuccessThreshold {
		switch priorReps {
		case 0:
			next.Interval = FirstInterval
		case 1:
			next.Interval = SecondInterval
		default:
			next.Interval = int(math.Round(float64(priorInterval) * priorEase))
		}
		q := float64(quality)
		next.EaseFactor = math.Max(MinEase, priorEase+(0.1-(5-q)*(0.08+(5-q)*0.02)))
	} else {
		next.Repetitions = 0
		next.Interval = 1
	}

	return Review{
		State:      next,
		Due:        now.AddDate(0, 0, next.Interval),
		ReviewedAt: now,
	}
}
