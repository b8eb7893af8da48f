package models

import (
	"time"
)

// StudySession is the persisted summary of one completed review session.
// Written exactly once when a session completes; never updated afterwards.
type StudySession struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"not null;index"`
	User   User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`

	// Null when the session spanned more than one set.
	FlashcardSetID *uint         `gorm:"index"`
	FlashcardSet   *FlashcardSet `gorm:"foreignKey:FlashcardSetID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	CardsReviewed int `gorm:"not null"`

	// Per-quality rating counts across the whole session.
	AgainCount int `gorm:"not null"`
	HardCount  int `gorm:"not null"`
	GoodCount  int `gorm:"not null"`
	EasyCount  int `gorm:"not null"`

	// Aggregate mastery of the studied set(s) at completion time.
	// Null when it could not be computed.
	MasteryPercent *int `gorm:"default:null"`

	CompletedAt time.Time `gorm:"autoCreateTime"`
}
