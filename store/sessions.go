package store

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/srs"
	"github.com/joshuaking1/cognispark-api/study"
)

// SessionStore persists completed study-session summaries.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// WriteSummary stores one completed session. The set foreign key is only
// populated for single-set sessions; a cross-set session is unscoped.
// Summaries are immutable once written.
func (s *SessionStore) WriteSummary(ctx context.Context, ownerID uint, sum study.Summary) error {
	row := models.StudySession{
		UserID:        ownerID,
		CardsReviewed: sum.CardsReviewed,
		AgainCount:    sum.Performance[srs.Again],
		HardCount:     sum.Performance[srs.Hard],
		GoodCount:     sum.Performance[srs.Good],
		EasyCount:     sum.Performance[srs.Easy],
		CompletedAt:   sum.CompletedAt,
	}
	if len(sum.SetIDs) == 1 {
		setID := sum.SetIDs[0]
		row.FlashcardSetID = &setID
	}
	if sum.Mastery != nil {
		pct := sum.Mastery.Percentage
		row.MasteryPercent = &pct
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("store: writing session summary: %w", err)
	}

	// Stamp every participating set. The timestamp is display metadata;
	// failing it must not fail the committed summary, or a retry would
	// write the summary twice.
	if len(sum.SetIDs) > 0 {
		err := s.db.WithContext(ctx).
			Model(&models.FlashcardSet{}).
			Where("id IN ? AND user_id = ?", sum.SetIDs, ownerID).
			Update("last_studied", sum.CompletedAt).Error
		if err != nil {
			log.Printf("SessionStore: last_studied stamp failed: %v", err)
		}
	}
	return nil
}

// ForUser returns a user's session history, most recent first.
func (s *SessionStore) ForUser(ctx context.Context, userID uint) ([]models.StudySession, error) {
	var sessions []models.StudySession
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("completed_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("store: loading session history: %w", err)
	}
	return sessions, nil
}
