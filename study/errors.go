package study

import "errors"

// Sentinel errors for the study package. Check with errors.Is.
var (
	// ErrNoCards is returned by New when the due-card selection came back
	// empty: a session is never started with no work.
	ErrNoCards = errors.New("study: no cards due for review")

	// ErrSessionClosed is returned by every operation after the summary has
	// been committed. A closed session is discarded, never restarted.
	ErrSessionClosed = errors.New("study: session already completed")

	// ErrNotCurrentCard is returned by Rate when the supplied card id does
	// not match the card awaiting its rating, including after navigating
	// away from it. Each card is rated at most once per session.
	ErrNotCurrentCard = errors.New("study: card is not up for rating")

	// ErrInvalidDirection is returned by Navigate for steps other than +1 or -1.
	ErrInvalidDirection = errors.New("study: navigation direction must be +1 or -1")

	// ErrOutOfRange is returned by Navigate when the step would leave the queue.
	ErrOutOfRange = errors.New("study: navigation target outside queue bounds")

	// ErrCardNotFound is the contract between the orchestrator and the
	// CardWriter: a write against a card deleted mid-session must return an
	// error matching this sentinel, and the session skips the card instead
	// of aborting.
	ErrCardNotFound = errors.New("study: card no longer exists")
)
