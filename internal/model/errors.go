// v0
// internal/model/errors.go
package model

import "errors"

// Sentinel errors surfaced by the core, checked with errors.Is by callers
// and mapped to transport status codes by adapters (see httpapi).
var (
	ErrUnknownSensor  = errors.New("unknown sensor")
	ErrDuplicateID    = errors.New("sensor externalId already registered")
	ErrInvalidReading = errors.New("reading payload invalid")
	ErrStoreError     = errors.New("store operation failed")
	ErrScorerError    = errors.New("scorer produced an invalid result")

	ErrUnknownTicket     = errors.New("unknown ticket")
	ErrInvalidTransition = errors.New("invalid ticket status transition")
)
