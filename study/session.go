// Package study owns the lifecycle of one flashcard review session: queue
// construction, card-by-card rating through the srs scheduler, and the
// single summary commit at the end. One Session value per session, owned
// by its caller and discarded after completion or abandonment; the package
// keeps no global state.
package study

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/joshuaking1/cognispark-api/srs"
)

// Card is one queue entry, carrying the set it came from so cross-set
// sessions can display provenance.
type Card struct {
	ID         uint
	PublicID   string
	Term       string
	Solution   string
	SetID      uint
	SetTitle   string
	Scheduling *srs.State // nil for a never-reviewed card
}

// PerformanceRecord is one rating taken during the session. Term is a
// snapshot of the question at rating time, kept for later reporting.
type PerformanceRecord struct {
	CardID   uint
	PublicID string
	Term     string
	Quality  srs.Quality
}

// Summary is the immutable record of a completed session, emitted exactly
// once per session.
type Summary struct {
	SessionID     string
	SetIDs        []uint
	SetTitles     []string
	CardsReviewed int
	Performance   map[srs.Quality]int
	Mastery       *srs.SetMastery // nil when not computable
	CompletedAt   time.Time
}

// CardWriter persists one card's updated scheduling state. Writes are
// scoped by the owning user. A write against a card that no longer exists
// must return an error matching ErrCardNotFound; the session then skips
// the card. The persistence layer is last-write-wins: concurrent sessions
// rating the same card are not reconciled here.
type CardWriter interface {
	WriteScheduling(ctx context.Context, cardID, ownerID uint, rev srs.Review) error
}

// MasteryReader recomputes aggregate mastery for the given sets.
type MasteryReader interface {
	SetMastery(ctx context.Context, ownerID uint, setIDs []uint) (srs.SetMastery, error)
}

// SummaryWriter persists the session summary.
type SummaryWriter interface {
	WriteSummary(ctx context.Context, ownerID uint, s Summary) error
}

// Config wires a Session to its collaborators. Cards and Summaries are
// required; Mastery is optional (a nil reader leaves summary mastery
// unset). Now and Seed exist for tests.
type Config struct {
	Cards     CardWriter
	Mastery   MasteryReader
	Summaries SummaryWriter
	Shuffle   bool
	Now       func() time.Time
	Seed      int64
}

// Phase is the session lifecycle stage. Construction covers the loading
// phase: New refuses an empty queue with ErrNoCards, so a live Session is
// always Ready or further along.
type Phase int

const (
	Ready      Phase = iota + 1 // queue built, nothing rated yet
	Reviewing                   // at least one rating recorded
	Completing                  // summary pending; the write failed and may be retried
	Closed                      // summary committed; the instance is dead
)

var phaseNames = [...]string{Ready: "Ready", Reviewing: "Reviewing", Completing: "Completing", Closed: "Closed"}

func (p Phase) String() string {
	if p >= Ready && p <= Closed {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Session is a single review session. It is client-paced and not safe for
// concurrent use; callers serialize access.
type Session struct {
	id      string
	ownerID uint
	queue   []Card
	pos     int
	records []PerformanceRecord
	phase   Phase
	summary *Summary

	setIDs    []uint
	setTitles []string

	cards     CardWriter
	mastery   MasteryReader
	summaries SummaryWriter
	now       func() time.Time
	rng       *rand.Rand
}

// New builds a session over the selector's output. The card order is kept
// as given unless cfg.Shuffle is set. An empty queue returns ErrNoCards:
// the orchestrator never starts a session with no work.
func New(ownerID uint, cards []Card, cfg Config) (*Session, error) {
	if cfg.Cards == nil || cfg.Summaries == nil {
		return nil, errors.New("study: card writer and summary writer are required")
	}
	if len(cards) == 0 {
		return nil, ErrNoCards
	}

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Session{
		id:        uuid.NewString(),
		ownerID:   ownerID,
		queue:     append([]Card(nil), cards...),
		phase:     Ready,
		cards:     cfg.Cards,
		mastery:   cfg.Mastery,
		summaries: cfg.Summaries,
		now:       nowFn,
		rng:       rand.New(rand.NewSource(seed)),
	}

	seen := make(map[uint]bool)
	for _, c := range cards {
		if !seen[c.SetID] {
			seen[c.SetID] = true
			s.setIDs = append(s.setIDs, c.SetID)
			s.setTitles = append(s.setTitles, c.SetTitle)
		}
	}

	if cfg.Shuffle {
		s.rng.Shuffle(len(s.queue), func(i, j int) {
			s.queue[i], s.queue[j] = s.queue[j], s.queue[i]
		})
	}
	return s, nil
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// OwnerID returns the reviewing user's id.
func (s *Session) OwnerID() uint { return s.ownerID }

// Phase returns the current lifecycle stage.
func (s *Session) Phase() Phase { return s.phase }

// Len returns the number of cards remaining in the queue (rated and not).
func (s *Session) Len() int { return len(s.queue) }

// Position returns the cursor index within the queue.
func (s *Session) Position() int { return s.pos }

// SetTitles returns the display titles of the sets this session spans.
func (s *Session) SetTitles() []string {
	return append([]string(nil), s.setTitles...)
}

// Records returns a copy of the performance record so far.
func (s *Session) Records() []PerformanceRecord {
	return append([]PerformanceRecord(nil), s.records...)
}

// Current returns the card under the cursor, or false once the queue is
// exhausted or the session is closed.
func (s *Session) Current() (Card, bool) {
	if s.phase == Closed || s.phase == Completing || s.pos >= len(s.queue) {
		return Card{}, false
	}
	return s.queue[s.pos], true
}

// Navigate moves the presentation cursor one card forward or back without
// recording anything. It supports re-looking at an earlier card; rating is
// only ever accepted at the first unrated card, so a navigated-away
// session must step back before rating resumes.
func (s *Session) Navigate(direction int) error {
	if err := s.live(); err != nil {
		return err
	}
	if direction != 1 && direction != -1 {
		return ErrInvalidDirection
	}
	next := s.pos + direction
	if next < 0 || next >= len(s.queue) {
		return ErrOutOfRange
	}
	s.pos = next
	return nil
}

// Shuffle reorders the not-yet-rated tail of the queue. Rated cards keep
// their positions and are never duplicated. The cursor returns to the
// first unrated card.
func (s *Session) Shuffle() error {
	if err := s.live(); err != nil {
		return err
	}
	frontier := len(s.records)
	tail := s.queue[frontier:]
	s.rng.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
	s.pos = frontier
	return nil
}

// Rate applies one quality rating to the card awaiting review. The
// scheduling update is computed by srs.Apply and persisted before the
// cursor advances; a failed write keeps the cursor in place so the same
// card can be retried. A card deleted mid-session is skipped, not an
// error. Rating the last card completes the session.
func (s *Session) Rate(ctx context.Context, cardPublicID string, quality srs.Quality) error {
	if err := s.live(); err != nil {
		return err
	}
	if !quality.IsValid() {
		return fmt.Errorf("%w: %d", srs.ErrInvalidQuality, int(quality))
	}
	if s.pos != len(s.records) || s.pos >= len(s.queue) {
		return ErrNotCurrentCard
	}
	card := &s.queue[s.pos]
	if card.PublicID != cardPublicID {
		return fmt.Errorf("%w: %s", ErrNotCurrentCard, cardPublicID)
	}

	rev := srs.Apply(card.Scheduling, quality, s.now())

	err := s.cards.WriteScheduling(ctx, card.ID, s.ownerID, rev)
	switch {
	case errors.Is(err, ErrCardNotFound):
		// Deleted out from under the session; drop it and continue.
		log.Printf("Session %s: skipping deleted card %s", s.id, card.PublicID)
		s.queue = append(s.queue[:s.pos], s.queue[s.pos+1:]...)
		if s.pos >= len(s.queue) {
			return s.Complete(ctx)
		}
		return nil
	case err != nil:
		return fmt.Errorf("study: persisting review for card %s: %w", card.PublicID, err)
	}

	st := rev.State
	card.Scheduling = &st
	s.records = append(s.records, PerformanceRecord{
		CardID:   card.ID,
		PublicID: card.PublicID,
		Term:     card.Term,
		Quality:  quality,
	})
	s.phase = Reviewing
	s.pos++

	if s.pos == len(s.queue) {
		return s.Complete(ctx)
	}
	return nil
}

// Complete builds the performance snapshot, recomputes mastery for the
// studied sets, and commits the summary. It succeeds at most once; a
// failed summary write leaves the session in Completing so the commit can
// be retried (per-card writes are already durable either way).
func (s *Session) Complete(ctx context.Context) error {
	switch s.phase {
	case Closed:
		return ErrSessionClosed
	case Completing, Ready, Reviewing:
		s.phase = Completing
	default:
		return fmt.Errorf("study: complete from unexpected phase %s", s.phase)
	}

	perf := make(map[srs.Quality]int)
	for _, r := range s.records {
		perf[r.Quality]++
	}

	var mastery *srs.SetMastery
	if s.mastery != nil {
		m, err := s.mastery.SetMastery(ctx, s.ownerID, s.setIDs)
		if err != nil {
			log.Printf("Session %s: mastery unavailable at completion: %v", s.id, err)
		} else {
			mastery = &m
		}
	}

	sum := Summary{
		SessionID:     s.id,
		SetIDs:        append([]uint(nil), s.setIDs...),
		SetTitles:     append([]string(nil), s.setTitles...),
		CardsReviewed: len(s.records),
		Performance:   perf,
		Mastery:       mastery,
		CompletedAt:   s.now(),
	}

	if err := s.summaries.WriteSummary(ctx, s.ownerID, sum); err != nil {
		return fmt.Errorf("study: persisting session summary: %w", err)
	}

	s.summary = &sum
	s.phase = Closed
	return nil
}

// Summary returns the committed summary once the session is closed.
func (s *Session) Summary() (Summary, bool) {
	if s.summary == nil {
		return Summary{}, false
	}
	return *s.summary, true
}

func (s *Session) live() error {
	switch s.phase {
	case Ready, Reviewing:
		return nil
	default:
		return ErrSessionClosed
	}
}
