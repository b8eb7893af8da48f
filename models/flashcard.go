package models

import (
	"time"

	"gorm.io/gorm"
)

// Flashcard represents an individual flashcard
type Flashcard struct {
	gorm.Model
	Term     string `gorm:"not null;size:200"`
	Solution string `gorm:"not null;size:1000"`
	Concept  string `gorm:"size:100"`
	PublicID string `gorm:"size:100;uniqueIndex"`

	SetID        uint         `gorm:"not null;index"`
	FlashcardSet FlashcardSet `gorm:"foreignKey:SetID" json:"-"`

	// Owner of the card, denormalized from the set so review queries
	// can be scoped by user without a join.
	UserID uint `gorm:"not null;index"`

	// Spaced-repetition scheduling state. All five fields are null together
	// until the card's first review; a card with null scheduling state is
	// "new" and always due.
	DueDate        *time.Time `gorm:"index;default:null"`
	IntervalDays   *int       `gorm:"default:null"`
	EaseFactor     *float64   `gorm:"default:null"`
	Repetitions    *int       `gorm:"default:null"`
	LastReviewedAt *time.Time `gorm:"default:null"`
}
