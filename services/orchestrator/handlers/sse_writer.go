// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter serializes turn protocol events onto an HTTP SSE response.
//
// # Description
//
// SSEWriter maps the typed turn events to the wire format the chat UI
// consumes. Data events are written as bare `data:` frames; every other
// kind carries an explicit `event:` line:
//
//	data: {fragment}
//
//	event: status
//	data: {message}
//
// Payload newlines are rewritten to `<br>` before framing, since a raw
// newline would terminate the SSE data field mid-payload.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the turn core and a
// keepalive ticker may write concurrently.
type SSEWriter interface {
	// WriteTurnEvent writes one protocol event and flushes immediately.
	WriteTurnEvent(event datatypes.TurnEvent) error

	// WriteKeepAlive sends an SSE comment line to hold the connection
	// open through long fetch or generation phases.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter creates an SSEWriter over the given ResponseWriter.
// The caller must set the SSE headers first via SetSSEHeaders.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// escapePayload rewrites newlines so the payload survives SSE framing.
// Double newlines first, so paragraph breaks come through as <br><br>.
func escapePayload(payload string) string {
	payload = strings.ReplaceAll(payload, "\n\n", "<br><br>")
	return strings.ReplaceAll(payload, "\n", "<br>")
}

func (w *sseWriter) WriteTurnEvent(event datatypes.TurnEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload := escapePayload(event.Payload)
	var frame string
	if event.Kind == datatypes.EventData {
		frame = fmt.Sprintf("data: %s\n\n", payload)
	} else {
		frame = fmt.Sprintf("event: %s\ndata: %s\n\n", event.Kind, payload)
	}
	if _, err := fmt.Fprint(w.writer, frame); err != nil {
		return fmt.Errorf("failed to write %s event: %w", event.Kind, err)
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("failed to write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders configures the response for server-sent events.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
