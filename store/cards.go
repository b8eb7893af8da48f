// Package store is the persistence layer for the review core: due-card
// selection, scheduling writes, and session summaries, all on gorm. Every
// query is scoped by the owning user id.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/srs"
	"github.com/joshuaking1/cognispark-api/study"
)

// CardStore reads and writes flashcard scheduling state.
type CardStore struct {
	db *gorm.DB
}

func NewCardStore(db *gorm.DB) *CardStore {
	return &CardStore{db: db}
}

// DueCard is a due flashcard tagged with the set it came from.
type DueCard struct {
	Card     models.Flashcard
	SetID    uint
	SetTitle string
}

// dueScope filters to cards eligible for review: overdue by date, or never
// reviewed (a null due date means a new card, which is always due).
func dueScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where("due_date IS NULL OR due_date <= ?", now)
}

// dueOrder sorts most-overdue first. New cards sort before every dated
// card: NULLS FIRST treats "never reviewed" as infinitely overdue, the one
// consistent rule used by both selection variants.
const dueOrder = "due_date ASC NULLS FIRST"

// DueForSet returns the cards in one set that are eligible for review at
// the given instant, most overdue first.
func (s *CardStore) DueForSet(ctx context.Context, setID, ownerID uint, now time.Time) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	q := s.db.WithContext(ctx).
		Where("set_id = ? AND user_id = ?", setID, ownerID)
	if err := dueScope(q, now).Order(dueOrder).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("store: selecting due cards for set %d: %w", setID, err)
	}
	return cards, nil
}

// DueAcrossSets returns the merged, due-date-ordered eligible cards of all
// listed sets, each tagged with its originating set title. Sets not owned
// by ownerID are silently excluded; an empty set list is a caller error.
func (s *CardStore) DueAcrossSets(ctx context.Context, setIDs []uint, ownerID uint, now time.Time) ([]DueCard, error) {
	if len(setIDs) == 0 {
		return nil, ErrNoSets
	}

	var sets []models.FlashcardSet
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND user_id = ?", setIDs, ownerID).
		Find(&sets).Error; err != nil {
		return nil, fmt.Errorf("store: resolving sets: %w", err)
	}
	if len(sets) == 0 {
		return nil, nil
	}

	titles := make(map[uint]string, len(sets))
	owned := make([]uint, 0, len(sets))
	for _, set := range sets {
		titles[set.ID] = set.Title
		owned = append(owned, set.ID)
	}

	var cards []models.Flashcard
	q := s.db.WithContext(ctx).
		Where("set_id IN ? AND user_id = ?", owned, ownerID)
	if err := dueScope(q, now).Order(dueOrder).Find(&cards).Error; err != nil {
		return nil, fmt.Errorf("store: selecting due cards across sets: %w", err)
	}

	due := make([]DueCard, len(cards))
	for i, c := range cards {
		due[i] = DueCard{Card: c, SetID: c.SetID, SetTitle: titles[c.SetID]}
	}
	return due, nil
}

// LoadScheduling returns a card's scheduling state, nil for a card that
// has never been reviewed. The lookup is scoped by owner.
func (s *CardStore) LoadScheduling(ctx context.Context, cardID, ownerID uint) (*srs.State, error) {
	var card models.Flashcard
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cardID, ownerID).
		First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading scheduling for card %d: %w", cardID, err)
	}
	return SchedulingState(card), nil
}

// WriteScheduling persists one review outcome. Last-write-wins: two
// sessions rating the same card concurrently are not reconciled, the later
// write stands. Returns study.ErrCardNotFound for a deleted card and
// ErrForbidden for a card owned by someone else, so the session can skip
// or surface accordingly.
func (s *CardStore) WriteScheduling(ctx context.Context, cardID, ownerID uint, rev srs.Review) error {
	var card models.Flashcard
	err := s.db.WithContext(ctx).First(&card, cardID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return study.ErrCardNotFound
	}
	if err != nil {
		return fmt.Errorf("store: loading card %d: %w", cardID, err)
	}
	if card.UserID != ownerID {
		return ErrForbidden
	}

	updates := map[string]interface{}{
		"due_date":         rev.Due,
		"interval_days":    rev.Interval,
		"ease_factor":      rev.EaseFactor,
		"repetitions":      rev.Repetitions,
		"last_reviewed_at": rev.ReviewedAt,
	}
	if err := s.db.WithContext(ctx).Model(&card).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: writing scheduling for card %d: %w", cardID, err)
	}
	return nil
}

// SetMastery recomputes aggregate mastery across the given sets from the
// cards' current scheduling state. Always derived on demand, never read
// from a stored aggregate.
func (s *CardStore) SetMastery(ctx context.Context, ownerID uint, setIDs []uint) (srs.SetMastery, error) {
	if len(setIDs) == 0 {
		return srs.SetMastery{}, ErrNoSets
	}
	var cards []models.Flashcard
	if err := s.db.WithContext(ctx).
		Where("set_id IN ? AND user_id = ?", setIDs, ownerID).
		Find(&cards).Error; err != nil {
		return srs.SetMastery{}, fmt.Errorf("store: loading cards for mastery: %w", err)
	}
	states := make([]*srs.State, len(cards))
	for i, c := range cards {
		states[i] = SchedulingState(c)
	}
	return srs.AggregateMastery(states), nil
}

// SchedulingState converts a card row's nullable scheduling columns into
// the scheduler's state value. Nil means the card has never been reviewed.
func SchedulingState(c models.Flashcard) *srs.State {
	if c.IntervalDays == nil || c.EaseFactor == nil || c.Repetitions == nil {
		return nil
	}
	return &srs.State{
		Interval:    *c.IntervalDays,
		EaseFactor:  *c.EaseFactor,
		Repetitions: *c.Repetitions,
	}
}
