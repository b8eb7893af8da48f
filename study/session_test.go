package study

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuaking1/cognispark-api/srs"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeCards struct {
	writes []uint
	fail   map[uint]error
}

func (f *fakeCards) WriteScheduling(_ context.Context, cardID, _ uint, _ srs.Review) error {
	if err := f.fail[cardID]; err != nil {
		return err
	}
	f.writes = append(f.writes, cardID)
	return nil
}

type fakeMastery struct {
	mastery srs.SetMastery
	err     error
	gotSets []uint
}

func (f *fakeMastery) SetMastery(_ context.Context, _ uint, setIDs []uint) (srs.SetMastery, error) {
	f.gotSets = setIDs
	return f.mastery, f.err
}

type fakeSummaries struct {
	wrote []Summary
	err   error
}

func (f *fakeSummaries) WriteSummary(_ context.Context, _ uint, s Summary) error {
	if f.err != nil {
		return f.err
	}
	f.wrote = append(f.wrote, s)
	return nil
}

type fixture struct {
	cards     *fakeCards
	mastery   *fakeMastery
	summaries *fakeSummaries
}

func newFixture() *fixture {
	return &fixture{
		cards:     &fakeCards{fail: map[uint]error{}},
		mastery:   &fakeMastery{mastery: srs.SetMastery{MasteredCount: 1, TotalCards: 3, Percentage: 33}},
		summaries: &fakeSummaries{},
	}
}

func (f *fixture) config() Config {
	return Config{
		Cards:     f.cards,
		Mastery:   f.mastery,
		Summaries: f.summaries,
		Now:       func() time.Time { return testNow },
		Seed:      42,
	}
}

func threeCards() []Card {
	return []Card{
		{ID: 1, PublicID: "c1", Term: "mitosis", SetID: 10, SetTitle: "Biology"},
		{ID: 2, PublicID: "c2", Term: "meiosis", SetID: 10, SetTitle: "Biology"},
		{ID: 3, PublicID: "c3", Term: "osmosis", SetID: 10, SetTitle: "Biology"},
	}
}

func TestNewRejectsEmptyQueue(t *testing.T) {
	f := newFixture()
	_, err := New(7, nil, f.config())
	assert.ErrorIs(t, err, ErrNoCards)
}

func TestNewRequiresWriters(t *testing.T) {
	_, err := New(7, threeCards(), Config{})
	assert.Error(t, err)
}

func TestFullSession(t *testing.T) {
	f := newFixture()
	s, err := New(7, threeCards(), f.config())
	require.NoError(t, err)
	assert.Equal(t, Ready, s.Phase())
	assert.Equal(t, []string{"Biology"}, s.SetTitles())

	ctx := context.Background()
	cur, ok := s.Current()
	require.True(t, ok)
	require.NoError(t, s.Rate(ctx, cur.PublicID, srs.Easy))
	assert.Equal(t, Reviewing, s.Phase())
	assert.Equal(t, 1, s.Position())

	cur, _ = s.Current()
	require.NoError(t, s.Rate(ctx, cur.PublicID, srs.Again))

	// Rating the last card completes the session.
	cur, _ = s.Current()
	require.NoError(t, s.Rate(ctx, cur.PublicID, srs.Good))
	assert.Equal(t, Closed, s.Phase())

	assert.Len(t, f.cards.writes, 3)
	require.Len(t, f.summaries.wrote, 1)

	sum := f.summaries.wrote[0]
	assert.Equal(t, 3, sum.CardsReviewed)
	assert.Equal(t, map[srs.Quality]int{srs.Easy: 1, srs.Again: 1, srs.Good: 1}, sum.Performance)
	require.NotNil(t, sum.Mastery)
	assert.Equal(t, 33, sum.Mastery.Percentage)
	assert.Equal(t, []uint{10}, f.mastery.gotSets)
	assert.Equal(t, testNow, sum.CompletedAt)

	got, ok := s.Summary()
	assert.True(t, ok)
	assert.Equal(t, sum, got)

	// The instance is dead now.
	assert.ErrorIs(t, s.Rate(ctx, "c1", srs.Easy), ErrSessionClosed)
	assert.ErrorIs(t, s.Complete(ctx), ErrSessionClosed)
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestAbandonedSessionWritesNoSummary(t *testing.T) {
	f := newFixture()
	s, err := New(7, threeCards(), f.config())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Rate(ctx, "c1", srs.Good))
	require.NoError(t, s.Rate(ctx, "c2", srs.Again))
	// Abandon: the session simply never completes.

	assert.Len(t, f.cards.writes, 2)
	assert.Empty(t, f.summaries.wrote)
}

func TestRateValidation(t *testing.T) {
	f := newFixture()
	s, err := New(7, threeCards(), f.config())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("wrong card", func(t *testing.T) {
		assert.ErrorIs(t, s.Rate(ctx, "c3", srs.Easy), ErrNotCurrentCard)
		assert.Empty(t, f.cards.writes)
	})

	t.Run("invalid quality", func(t *testing.T) {
		assert.ErrorIs(t, s.Rate(ctx, "c1", srs.Quality(4)), srs.ErrInvalidQuality)
		assert.ErrorIs(t, s.Rate(ctx, "c1", srs.Quality(-1)), srs.ErrInvalidQuality)
		assert.Empty(t, f.cards.writes)
	})

	t.Run("no partial effects", func(t *testing.T) {
		assert.Equal(t, 0, s.Position())
		assert.Empty(t, s.Records())
		assert.Equal(t, Ready, s.Phase())
	})
}

func TestRateWriteFailureKeepsCursor(t *testing.T) {
	f := newFixture()
	boom := errors.New("connection reset")
	f.cards.fail[1] = boom

	s, err := New(7, threeCards(), f.config())
	require.NoError(t, err)
	ctx := context.Background()

	err = s.Rate(ctx, "c1", srs.Easy)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Position())
	assert.Empty(t, s.Records())

	// Retry after the store recovers.
	delete(f.cards.fail, 1)
	require.NoError(t, s.Rate(ctx, "c1", srs.Easy))
	assert.Equal(t, 1, s.Position())
	assert.Equal(t, []uint{1}, f.cards.writes)
}

func TestRateSkipsDeletedCard(t *testing.T) {
	f := newFixture()
	f.cards.fail[2] = ErrCardNotFound

	s, err := New(7, threeCards(), f.config())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Rate(ctx, "c1", srs.Good))
	// Card 2 was deleted mid-session: skipped, not an error.
	require.NoError(t, s.Rate(ctx, "c2", srs.Good))
	assert.Equal(t, 2, s.Len())

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "c3", cur.PublicID)

	require.NoError(t, s.Rate(ctx, "c3", srs.Easy))
	assert.Equal(t, Closed, s.Phase())
	require.Len(t, f.summaries.wrote, 1)
	assert.Equal(t, 2, f.summaries.wrote[0].CardsReviewed)
}

func TestSummaryWriteFailureIsRetryable(t *testing.T) {
	f := newFixture()
	s, err := New(7, threeCards()[:1], f.config())
	require.NoError(t, err)
	ctx := context.Background()

	f.summaries.err = errors.New("session store down")
	err = s.Rate(ctx, "c1", srs.Easy)
	require.Error(t, err)
	assert.Equal(t, Completing, s.Phase())
	_, ok := s.Summary()
	assert.False(t, ok)

	// The per-card write is already durable; only the summary is retried.
	assert.Equal(t, []uint{1}, f.cards.writes)

	f.summaries.err = nil
	require.NoError(t, s.Complete(ctx))
	assert.Equal(t, Closed, s.Phase())
	assert.Len(t, f.summaries.wrote, 1)
	assert.Equal(t, []uint{1}, f.cards.writes)
}

func TestMasteryFailureLeavesSummaryMasteryUnset(t *testing.T) {
	f := newFixture()
	f.mastery.err = errors.New("read timeout")

	s, err := New(7, threeCards()[:1], f.config())
	require.NoError(t, err)
	require.NoError(t, s.Rate(context.Background(), "c1", srs.Easy))

	require.Len(t, f.summaries.wrote, 1)
	assert.Nil(t, f.summaries.wrote[0].Mastery)
}

func TestNavigate(t *testing.T) {
	f := newFixture()
	s, err := New(7, threeCards(), f.config())
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, s.Navigate(-1), ErrOutOfRange)
	assert.ErrorIs(t, s.Navigate(2), ErrInvalidDirection)

	require.NoError(t, s.Rate(ctx, "c1", srs.Easy))
	require.NoError(t, s.Navigate(-1))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "c1", cur.PublicID)

	// Re-look, not re-rate.
	assert.ErrorIs(t, s.Rate(ctx, "c1", srs.Again), ErrNotCurrentCard)

	require.NoError(t, s.Navigate(1))
	require.NoError(t, s.Rate(ctx, "c2", srs.Good))
	assert.Len(t, f.cards.writes, 2)
}

func TestShuffleReordersOnlyUnratedTail(t *testing.T) {
	cards := []Card{
		{ID: 1, PublicID: "c1", SetID: 10, SetTitle: "Biology"},
		{ID: 2, PublicID: "c2", SetID: 10, SetTitle: "Biology"},
		{ID: 3, PublicID: "c3", SetID: 10, SetTitle: "Biology"},
		{ID: 4, PublicID: "c4", SetID: 10, SetTitle: "Biology"},
		{ID: 5, PublicID: "c5", SetID: 10, SetTitle: "Biology"},
	}
	f := newFixture()
	s, err := New(7, cards, f.config())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Rate(ctx, "c1", srs.Easy))
	require.NoError(t, s.Rate(ctx, "c2", srs.Easy))

	require.NoError(t, s.Shuffle())
	assert.Equal(t, 2, s.Position())

	// Rated prefix untouched, tail is a permutation of the unrated cards.
	rated := s.Records()
	require.Len(t, rated, 2)
	assert.Equal(t, "c1", rated[0].PublicID)
	assert.Equal(t, "c2", rated[1].PublicID)

	remaining := map[string]bool{}
	for i := 2; i < s.Len(); i++ {
		require.NoError(t, err)
		cur, ok := s.Current()
		require.True(t, ok)
		remaining[cur.PublicID] = true
		if i < s.Len()-1 {
			require.NoError(t, s.Navigate(1))
		}
	}
	assert.Equal(t, map[string]bool{"c3": true, "c4": true, "c5": true}, remaining)
}

func TestCrossSetProvenance(t *testing.T) {
	cards := []Card{
		{ID: 1, PublicID: "c1", SetID: 10, SetTitle: "Biology"},
		{ID: 2, PublicID: "c2", SetID: 20, SetTitle: "History"},
		{ID: 3, PublicID: "c3", SetID: 10, SetTitle: "Biology"},
	}
	f := newFixture()
	s, err := New(7, cards, f.config())
	require.NoError(t, err)

	assert.Equal(t, []string{"Biology", "History"}, s.SetTitles())

	ctx := context.Background()
	require.NoError(t, s.Rate(ctx, "c1", srs.Easy))
	require.NoError(t, s.Rate(ctx, "c2", srs.Easy))
	require.NoError(t, s.Rate(ctx, "c3", srs.Easy))

	require.Len(t, f.summaries.wrote, 1)
	assert.Equal(t, []uint{10, 20}, f.summaries.wrote[0].SetIDs)
	assert.Equal(t, []uint{10, 20}, f.mastery.gotSets)
}
