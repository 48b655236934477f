// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

// Sentinel errors for session-level preconditions.
var (
	// ErrSessionNotInitialized is returned when a turn, upload, or reset
	// arrives before POST init configured the session.
	ErrSessionNotInitialized = errors.New("session not initialized")

	// ErrTurnInFlight is returned when a turn arrives while another turn
	// of the same session is still streaming.
	ErrTurnInFlight = errors.New("a turn is already in flight for this session")
)

// SourceFetchError reports a single corpus source failing during the
// fetch phase. Non-fatal: the turn degrades to the remaining sources.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s fetch failed: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// StoreError reports a failed content-store write. Fatal for the turn:
// staged keyword additions are discarded and no session state mutates.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("content store write failed: %v", e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// RetrieveError reports a failed retrieval query. Fatal for the turn.
type RetrieveError struct {
	Err error
}

func (e *RetrieveError) Error() string {
	return fmt.Sprintf("content retrieval failed: %v", e.Err)
}

func (e *RetrieveError) Unwrap() error { return e.Err }

// GenerationStreamError reports the generation stream failing after
// data events may already have been emitted. The consumer sees an
// explicit failure event instead of end.
type GenerationStreamError struct {
	Err error
}

func (e *GenerationStreamError) Error() string {
	return fmt.Sprintf("generation stream failed: %v", e.Err)
}

func (e *GenerationStreamError) Unwrap() error { return e.Err }

// ValidationError reports malformed input at a session boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
