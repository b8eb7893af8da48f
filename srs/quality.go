package srs

import (
	"errors"
	"fmt"
)

// Quality is the user's ordinal judgment of recall difficulty for a card.
type Quality int

const (
	Again Quality = iota // Could not recall.
	Hard                 // Recalled with significant difficulty.
	Good                 // Recalled with some effort.
	Easy                 // Recalled effortlessly.
)

// SuccessThreshold is the minimum quality that counts as a successful
// recall for interval and repetition growth. The ease-factor formula is
// the classic five-point SM-2 one, so on this four-point scale only Easy
// reaches the success branch; lower ratings reset the card. The constant
// exists so that choice stays visible and can be revisited deliberately.
const SuccessThreshold = Easy

// ErrInvalidQuality is returned when a rating outside Again..Easy is supplied.
var ErrInvalidQuality = errors.New("srs: invalid quality rating")

var qualityNames = [...]string{Again: "Again", Hard: "Hard", Good: "Good", Easy: "Easy"}

// IsValid reports whether q is a valid rating (Again through Easy).
func (q Quality) IsValid() bool {
	return q >= Again && q <= Easy
}

// String returns the name of the rating ("Again", "Hard", "Good", "Easy").
// For invalid values it returns "Quality(n)".
func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}
