package models

import "gorm.io/gorm"

// User represents a user in the system
type User struct {
	gorm.Model
	Auth0ID       string         `gorm:"uniqueIndex;size:100"`
	Nickname      string         `gorm:"unique;not null;size:100"`
	GradeLevel    string         `gorm:"size:50"`
	FlashcardSets []FlashcardSet `gorm:"foreignKey:UserID"`
	StudySessions []StudySession `gorm:"foreignKey:UserID"`
}
