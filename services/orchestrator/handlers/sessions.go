// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers exposes the session orchestration core over HTTP:
// session lifecycle endpoints, file upload, taxonomy lookups and the
// SSE chat stream.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/LitoraAI/LitoraChat/services/corpus"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/session"
)

var (
	UPLOAD_CHUNK_SIZE    = 512
	UPLOAD_CHUNK_OVERLAP = 64
	uploadSeparators     = []string{"\n\n", "\n", " ", ""}
)

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// InitSession configures a fresh session from the request body.
//
// # Description
//
// Validates the topic list and source flags, then replaces any existing
// session on the machine (the previous session's collection is deleted).
func InitSession(machine *session.Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.InitSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			slog.Warn("Failed to parse init request", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			slog.Warn("Init request validation failed", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := machine.Init(c.Request.Context(), req.Topics, req.Flags(), req.Filter()); err != nil {
			if errors.Is(err, session.ErrTurnInFlight) {
				c.JSON(http.StatusConflict, gin.H{"error": "a turn is in progress"})
				return
			}
			slog.Error("Failed to initialize session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to initialize session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "session_id": machine.SessionID()})
	}
}

// ResetSession tears the current session down and deletes its content.
func ResetSession(machine *session.Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := machine.Reset(c.Request.Context())
		switch {
		case errors.Is(err, session.ErrSessionNotInitialized):
			c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
		case errors.Is(err, session.ErrTurnInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "a turn is in progress"})
		case err != nil:
			slog.Error("Failed to reset session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset session"})
		default:
			c.JSON(http.StatusOK, gin.H{"success": true})
		}
	}
}

// GetSessionState returns a read-only snapshot of the session.
func GetSessionState(machine *session.Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !machine.Initialized() {
			c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
			return
		}
		c.JSON(http.StatusOK, machine.Snapshot())
	}
}

// ListSubjects returns the taxonomy's subject names.
func ListSubjects(taxonomy *corpus.Taxonomy) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subjects": taxonomy.Subjects()})
	}
}

// ListSubtopics returns the subtopics under one subject.
func ListSubtopics(taxonomy *corpus.Taxonomy) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.Param("subject")
		subtopics := taxonomy.Subtopics(subject)
		if len(subtopics) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown subject %q", subject)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": subject, "subtopics": subtopics})
	}
}

// UploadFiles accepts multipart text files, chunks them, and stores the
// chunks in the session's collection.
//
// # Description
//
// Plain-text formats only (.txt, .md); anything else is rejected with a
// clear error rather than silently producing garbage chunks. Each chunk
// becomes a content record with a fresh file-scoped ID, a titled chunk
// index and an upload provenance string.
func UploadFiles(machine *session.Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !machine.Initialized() {
			c.JSON(http.StatusConflict, gin.H{"error": "no active session"})
			return
		}

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		files := form.File["files"]
		if len(files) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no files provided"})
			return
		}

		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(UPLOAD_CHUNK_SIZE),
			textsplitter.WithChunkOverlap(UPLOAD_CHUNK_OVERLAP),
			textsplitter.WithSeparators(uploadSeparators),
		)

		var (
			records   []datatypes.ContentRecord
			fileNames []string
		)
		for _, fileHeader := range files {
			name := filepath.Base(fileHeader.Filename)
			ext := strings.ToLower(filepath.Ext(name))
			if ext != ".txt" && ext != ".md" {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   fmt.Sprintf("unsupported file type %q for %s (txt and md only)", ext, name),
				})
				return
			}
			if fileHeader.Size > datatypes.MaxUploadFileBytes {
				c.JSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   fmt.Sprintf("%s exceeds the upload size limit", name),
				})
				return
			}

			content, err := readMultipartFile(fileHeader)
			if err != nil {
				slog.Error("Failed to read uploaded file", "file", name, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   fmt.Sprintf("error processing %s", name),
				})
				return
			}

			chunks, err := splitter.SplitText(content)
			if err != nil {
				slog.Error("Failed to split uploaded file", "file", name, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error":   fmt.Sprintf("error processing %s", name),
				})
				return
			}
			for i, chunk := range chunks {
				records = append(records, datatypes.ContentRecord{
					ID:     fmt.Sprintf("file_%s", uuid.NewString()[:8]),
					Title:  fmt.Sprintf("%s - Chunk %d", name, i+1),
					Text:   chunk,
					Source: fmt.Sprintf("Uploaded file: %s", name),
				})
			}
			fileNames = append(fileNames, name)
		}

		if err := machine.HandleUpload(c.Request.Context(), records, fileNames); err != nil {
			var vErr *session.ValidationError
			if errors.As(err, &vErr) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": vErr.Error()})
				return
			}
			if errors.Is(err, session.ErrTurnInFlight) {
				c.JSON(http.StatusConflict, gin.H{"success": false, "error": "a turn is in progress"})
				return
			}
			slog.Error("Failed to store uploaded content", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to store uploaded content"})
			return
		}

		c.JSON(http.StatusOK, datatypes.UploadResponse{
			Success:   true,
			FileCount: len(fileNames),
			Files:     fileNames,
			Chunks:    len(records),
		})
	}
}

// readMultipartFile opens and fully reads one multipart file.
func readMultipartFile(fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			slog.Warn("failed to close uploaded file", "error", cerr)
		}
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read: %w", err)
	}
	return string(data), nil
}
