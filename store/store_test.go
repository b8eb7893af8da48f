package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/joshuaking1/cognispark-api/models"
	"github.com/joshuaking1/cognispark-api/srs"
	"github.com/joshuaking1/cognispark-api/study"
)

var now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.FlashcardSet{}, &models.Flashcard{}, &models.StudySession{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, nickname string) models.User {
	t.Helper()
	u := models.User{Nickname: nickname, Auth0ID: "auth0|" + nickname}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedSet(t *testing.T, db *gorm.DB, user models.User, title string) models.FlashcardSet {
	t.Helper()
	s := models.FlashcardSet{Title: title, UserID: user.ID, PublicID: "set-" + title}
	require.NoError(t, db.Create(&s).Error)
	return s
}

func seedCard(t *testing.T, db *gorm.DB, set models.FlashcardSet, term string, due *time.Time) models.Flashcard {
	t.Helper()
	c := models.Flashcard{
		Term:     term,
		Solution: "answer",
		PublicID: "card-" + term,
		SetID:    set.ID,
		UserID:   set.UserID,
		DueDate:  due,
	}
	if due != nil {
		interval, ease, reps := 3, 2.5, 1
		reviewed := due.AddDate(0, 0, -interval)
		c.IntervalDays = &interval
		c.EaseFactor = &ease
		c.Repetitions = &reps
		c.LastReviewedAt = &reviewed
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func ts(t time.Time) *time.Time { return &t }

func TestDueForSet(t *testing.T) {
	db := openTestDB(t)
	user := seedUser(t, db, "alice")
	set := seedSet(t, db, user, "Biology")
	ctx := context.Background()

	seedCard(t, db, set, "overdue", ts(now.AddDate(0, 0, -2)))
	seedCard(t, db, set, "new", nil)
	seedCard(t, db, set, "due-now", ts(now))
	seedCard(t, db, set, "future", ts(now.AddDate(0, 0, 5)))

	cards, err := NewCardStore(db).DueForSet(ctx, set.ID, user.ID, now)
	require.NoError(t, err)
	require.Len(t, cards, 3)

	// New cards sort first (most overdue), then by due date ascending.
	assert.Equal(t, "new", cards[0].Term)
	assert.Equal(t, "overdue", cards[1].Term)
	assert.Equal(t, "due-now", cards[2].Term)
}

func TestDueForSetScopedByOwner(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	set := seedSet(t, db, alice, "Biology")
	seedCard(t, db, set, "hers", nil)

	cards, err := NewCardStore(db).DueForSet(context.Background(), set.ID, bob.ID, now)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestDueAcrossSets(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	bio := seedSet(t, db, alice, "Biology")
	hist := seedSet(t, db, alice, "History")
	other := seedSet(t, db, bob, "Chemistry")

	seedCard(t, db, bio, "b1", ts(now.AddDate(0, 0, -3)))
	seedCard(t, db, bio, "b2", ts(now.AddDate(0, 0, -1)))
	seedCard(t, db, hist, "h1", ts(now.AddDate(0, 0, -2)))
	seedCard(t, db, other, "c1", nil)

	cards := NewCardStore(db)
	ctx := context.Background()

	t.Run("merged and ordered with provenance", func(t *testing.T) {
		due, err := cards.DueAcrossSets(ctx, []uint{bio.ID, hist.ID, other.ID}, alice.ID, now)
		require.NoError(t, err)
		require.Len(t, due, 3)

		assert.Equal(t, "b1", due[0].Card.Term)
		assert.Equal(t, "Biology", due[0].SetTitle)
		assert.Equal(t, "h1", due[1].Card.Term)
		assert.Equal(t, "History", due[1].SetTitle)
		assert.Equal(t, "b2", due[2].Card.Term)
	})

	t.Run("unowned sets are filtered, not errors", func(t *testing.T) {
		due, err := cards.DueAcrossSets(ctx, []uint{other.ID}, alice.ID, now)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("empty set list is a caller error", func(t *testing.T) {
		_, err := cards.DueAcrossSets(ctx, nil, alice.ID, now)
		assert.ErrorIs(t, err, ErrNoSets)
	})
}

func TestWriteScheduling(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	set := seedSet(t, db, alice, "Biology")
	card := seedCard(t, db, set, "cell", nil)

	cards := NewCardStore(db)
	ctx := context.Background()

	rev := srs.Apply(nil, srs.Easy, now)

	t.Run("forbidden for non-owner", func(t *testing.T) {
		assert.ErrorIs(t, cards.WriteScheduling(ctx, card.ID, bob.ID, rev), ErrForbidden)
	})

	t.Run("roundtrip", func(t *testing.T) {
		require.NoError(t, cards.WriteScheduling(ctx, card.ID, alice.ID, rev))

		state, err := cards.LoadScheduling(ctx, card.ID, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, rev.Interval, state.Interval)
		assert.Equal(t, rev.Repetitions, state.Repetitions)
		assert.InDelta(t, rev.EaseFactor, state.EaseFactor, 1e-9)

		var stored models.Flashcard
		require.NoError(t, db.First(&stored, card.ID).Error)
		require.NotNil(t, stored.DueDate)
		assert.WithinDuration(t, rev.Due, *stored.DueDate, time.Second)
		require.NotNil(t, stored.LastReviewedAt)
		assert.WithinDuration(t, rev.ReviewedAt, *stored.LastReviewedAt, time.Second)
	})

	t.Run("deleted card", func(t *testing.T) {
		require.NoError(t, db.Delete(&models.Flashcard{}, card.ID).Error)
		assert.ErrorIs(t, cards.WriteScheduling(ctx, card.ID, alice.ID, rev), study.ErrCardNotFound)
	})
}

func TestLoadScheduling(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice")
	set := seedSet(t, db, alice, "Biology")
	fresh := seedCard(t, db, set, "new", nil)

	cards := NewCardStore(db)
	ctx := context.Background()

	t.Run("never reviewed is nil", func(t *testing.T) {
		state, err := cards.LoadScheduling(ctx, fresh.ID, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("unknown card", func(t *testing.T) {
		_, err := cards.LoadScheduling(ctx, 9999, alice.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSetMastery(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice")
	set := seedSet(t, db, alice, "Biology")

	mastered := seedCard(t, db, set, "m1", ts(now.AddDate(0, 0, 20)))
	db.Model(&mastered).Updates(map[string]interface{}{"interval_days": 25, "repetitions": 5})
	streak := seedCard(t, db, set, "m2", ts(now.AddDate(0, 0, 5)))
	db.Model(&streak).Updates(map[string]interface{}{"interval_days": 8, "repetitions": 3})
	seedCard(t, db, set, "learning", ts(now.AddDate(0, 0, 1)))
	seedCard(t, db, set, "unseen", nil)

	m, err := NewCardStore(db).SetMastery(context.Background(), alice.ID, []uint{set.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, m.MasteredCount)
	assert.Equal(t, 4, m.TotalCards)
	assert.Equal(t, 50, m.Percentage)
}

func TestSessionStore(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice")
	bio := seedSet(t, db, alice, "Biology")
	hist := seedSet(t, db, alice, "History")

	sessions := NewSessionStore(db)
	ctx := context.Background()

	single := study.Summary{
		SetIDs:        []uint{bio.ID},
		CardsReviewed: 3,
		Performance:   map[srs.Quality]int{srs.Easy: 2, srs.Again: 1},
		Mastery:       &srs.SetMastery{MasteredCount: 1, TotalCards: 4, Percentage: 25},
		CompletedAt:   now,
	}
	require.NoError(t, sessions.WriteSummary(ctx, alice.ID, single))

	multi := study.Summary{
		SetIDs:        []uint{bio.ID, hist.ID},
		CardsReviewed: 5,
		Performance:   map[srs.Quality]int{srs.Good: 5},
		CompletedAt:   now.Add(time.Hour),
	}
	require.NoError(t, sessions.WriteSummary(ctx, alice.ID, multi))

	history, err := sessions.ForUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Most recent first.
	assert.Equal(t, 5, history[0].CardsReviewed)
	assert.Nil(t, history[0].FlashcardSetID, "cross-set session has no set scope")
	assert.Nil(t, history[0].MasteryPercent)
	assert.Equal(t, 5, history[0].GoodCount)

	require.NotNil(t, history[1].FlashcardSetID)
	assert.Equal(t, bio.ID, *history[1].FlashcardSetID)
	require.NotNil(t, history[1].MasteryPercent)
	assert.Equal(t, 25, *history[1].MasteryPercent)
	assert.Equal(t, 2, history[1].EasyCount)
	assert.Equal(t, 1, history[1].AgainCount)

	// Every set touched by a session gets its LastStudied stamped.
	var bioAfter, histAfter models.FlashcardSet
	require.NoError(t, db.First(&bioAfter, bio.ID).Error)
	require.NoError(t, db.First(&histAfter, hist.ID).Error)
	require.NotNil(t, bioAfter.LastStudied)
	require.NotNil(t, histAfter.LastStudied)
	assert.True(t, histAfter.LastStudied.Equal(now.Add(time.Hour)))
}
