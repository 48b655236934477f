// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/observability"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/session"
)

var chatTracer = otel.Tracer("litora.orchestrator.handlers.chat_streaming")

// heartbeatInterval paces keepalive pings. 15s stays well under typical
// LB idle timeouts (60s for ALB/Nginx).
const heartbeatInterval = 15 * time.Second

// HandleChatTurn streams one conversation turn over SSE.
//
// # Description
//
// The prompt arrives as a query parameter so the browser's native
// EventSource can drive the stream. Session preconditions (initialized,
// prompt present and within size) are rejected with JSON errors before
// the stream opens; failures after that point arrive as an SSE error
// event, since headers are already on the wire.
func HandleChatTurn(machine *session.Machine, metrics *observability.SessionMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := chatTracer.Start(c.Request.Context(), "HandleChatTurn")
		defer span.End()

		req := datatypes.ChatTurnRequest{Prompt: c.Query("prompt")}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			metrics.ErrorsTotal.WithLabelValues(observability.ErrorKindValidation).Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required and must be within the size limit"})
			return
		}
		if !machine.Initialized() {
			metrics.ErrorsTotal.WithLabelValues(observability.ErrorKindNotInitialized).Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "no active session, call init first"})
			return
		}
		span.SetAttributes(
			attribute.String("session.id", machine.SessionID()),
			attribute.Int("prompt.length", len(req.Prompt)),
		)

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "SSE setup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		metrics.ActiveStreams.Inc()
		defer metrics.ActiveStreams.Dec()

		// Keepalive pings hold the connection open through long fetch
		// and generation phases. Writer serializes them against events.
		heartbeatDone := make(chan struct{})
		defer close(heartbeatDone)
		go runHeartbeat(ctx, writer, heartbeatInterval, heartbeatDone)

		start := time.Now()

		sink := func(event datatypes.TurnEvent) error {
			if event.Kind == datatypes.EventData {
				metrics.FragmentsTotal.Inc()
			}
			return writer.WriteTurnEvent(event)
		}

		err = machine.HandleTurn(ctx, req.Prompt, sink)
		duration := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "turn failed")
			metrics.TurnsTotal.WithLabelValues("error").Inc()
			metrics.TurnDurationSeconds.WithLabelValues("error").Observe(duration)
			metrics.ErrorsTotal.WithLabelValues(turnErrorKind(err)).Inc()
			slog.Error("Chat turn failed",
				"session_id", machine.SessionID(), "error", err)

			// Precondition failures produce no events of their own, so
			// the stream would otherwise close silently.
			if isTurnPrecondition(err) {
				_ = writer.WriteTurnEvent(datatypes.TurnEvent{
					Kind:    datatypes.EventFailure,
					Payload: err.Error(),
				})
			}
			return
		}

		metrics.TurnsTotal.WithLabelValues("success").Inc()
		metrics.TurnDurationSeconds.WithLabelValues("success").Observe(duration)
		slog.Info("Chat turn completed",
			"session_id", machine.SessionID(),
			"duration_seconds", duration)
	}
}

// runHeartbeat writes an SSE comment every interval until done closes
// or the request context ends. A write failure means the consumer is
// gone; the heartbeat just stops and lets the turn core observe the
// dead sink itself.
func runHeartbeat(ctx context.Context, writer SSEWriter, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				slog.Debug("Failed to write keepalive", "error", err)
				return
			}
		}
	}
}

// isTurnPrecondition reports whether the turn was rejected before any
// protocol event was emitted.
func isTurnPrecondition(err error) bool {
	var vErr *session.ValidationError
	return errors.Is(err, session.ErrTurnInFlight) ||
		errors.Is(err, session.ErrSessionNotInitialized) ||
		errors.As(err, &vErr)
}

// turnErrorKind maps a turn error to its metrics label.
func turnErrorKind(err error) string {
	var (
		storeErr    *session.StoreError
		retrieveErr *session.RetrieveError
		genErr      *session.GenerationStreamError
		fetchErr    *session.SourceFetchError
		vErr        *session.ValidationError
	)
	switch {
	case errors.Is(err, session.ErrTurnInFlight):
		return observability.ErrorKindTurnInFlight
	case errors.Is(err, session.ErrSessionNotInitialized):
		return observability.ErrorKindNotInitialized
	case errors.As(err, &storeErr):
		return observability.ErrorKindStore
	case errors.As(err, &retrieveErr):
		return observability.ErrorKindRetrieve
	case errors.As(err, &genErr):
		return observability.ErrorKindGeneration
	case errors.As(err, &fetchErr):
		return observability.ErrorKindSourceFetch
	case errors.As(err, &vErr):
		return observability.ErrorKindValidation
	default:
		return "unknown"
	}
}
