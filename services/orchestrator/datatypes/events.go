// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// =============================================================================
// Streaming Protocol Events
// =============================================================================

// EventKind discriminates the turn protocol event types.
//
// # Ordering Contract
//
// A successful turn emits, in this exact order:
//
//	status* clearStatus data+ citation* end
//
// with exactly one clearStatus (on the first generated fragment) and
// exactly one end. No event is valid after end. A turn that fails
// mid-generation emits a single failure event instead of end.
type EventKind string

const (
	// EventStatus is best-effort progress narration. Safe to coalesce
	// or drop without affecting correctness.
	EventStatus EventKind = "status"

	// EventClearStatus tells the consumer to remove transient status UI.
	// Emitted exactly once, on the first generated fragment.
	EventClearStatus EventKind = "clearStatus"

	// EventData carries one generated text fragment.
	EventData EventKind = "data"

	// EventCitation carries one citation line. Citations are
	// deduplicated with set semantics; no fixed order is guaranteed.
	EventCitation EventKind = "citation"

	// EventEnd terminates a successful turn stream.
	EventEnd EventKind = "end"

	// EventFailure reports a turn aborted after streaming began.
	// Distinguishable from "no relevant documents found", which is a
	// valid success with an empty citation list.
	EventFailure EventKind = "error"
)

// TurnEvent is one element of a turn's outbound event stream.
//
// # Description
//
// TurnEvent is the typed form of the protocol the session core produces
// and the SSE emitter serializes. Payload semantics depend on Kind:
// status carries a human-readable message, data a raw generated
// fragment (line breaks unescaped; the emitter rewrites them for the
// wire), citation a single citation line, failure a sanitized error
// message. clearStatus and end carry an empty payload.
type TurnEvent struct {
	Kind    EventKind `json:"kind"`
	Payload string    `json:"payload"`
}

// StatusEvent builds a status event.
func StatusEvent(message string) TurnEvent {
	return TurnEvent{Kind: EventStatus, Payload: message}
}

// DataEvent builds a data event for one generated fragment.
func DataEvent(fragment string) TurnEvent {
	return TurnEvent{Kind: EventData, Payload: fragment}
}

// CitationEvent builds a citation event for one citation line.
func CitationEvent(line string) TurnEvent {
	return TurnEvent{Kind: EventCitation, Payload: line}
}
