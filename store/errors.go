package store

import "errors"

var (
	// ErrNoSets is returned when a due-card query is made with no set ids.
	ErrNoSets = errors.New("store: at least one set id is required")

	// ErrNotFound is returned when a referenced card or set does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrForbidden is returned when a write addresses a card owned by a
	// different user. Reads never return it: ownership scopes queries as a
	// filter instead.
	ErrForbidden = errors.New("store: not the owner")
)
