// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the orchestrator's HTTP surface onto a Gin
// engine.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LitoraAI/LitoraChat/services/corpus"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/handlers"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/observability"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/session"
)

// SetupRoutes registers every orchestrator route.
//
// # Description
//
// The session group carries the full chat lifecycle: init, the SSE
// chat stream, file upload, reset, and state inspection, plus the
// taxonomy lookups the init form needs.
//
// # Inputs
//
//   - router: Engine to register on
//   - machine: The session machine all session routes share
//   - taxonomy: Subject/subtopic catalog for the taxonomy endpoints
//   - metrics: Session metrics recorded by the chat stream
//
// # Assumptions
//
//   - metrics is non-nil (see observability.InitMetrics)
func SetupRoutes(router *gin.Engine, machine *session.Machine,
	taxonomy *corpus.Taxonomy, metrics *observability.SessionMetrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		sessionGroup := v1.Group("/session")
		{
			sessionGroup.POST("/init", handlers.InitSession(machine))
			sessionGroup.GET("/chat", handlers.HandleChatTurn(machine, metrics))
			sessionGroup.POST("/upload", handlers.UploadFiles(machine))
			sessionGroup.POST("/reset", handlers.ResetSession(machine))
			sessionGroup.GET("/state", handlers.GetSessionState(machine))
			sessionGroup.GET("/taxonomy", handlers.ListSubjects(taxonomy))
			sessionGroup.GET("/taxonomy/:subject", handlers.ListSubtopics(taxonomy))
		}
	}
}
