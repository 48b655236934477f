// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants for Request Limits
// =============================================================================

const (
	// MaxTopicsPerSession bounds the topic list accepted at init.
	MaxTopicsPerSession = 20

	// MaxPromptBytes is the maximum size of a single user turn.
	// Oversized prompts are rejected before any fetch or generation work.
	MaxPromptBytes = 32 * 1024 // 32KB

	// MaxUploadFileBytes is the maximum size of one uploaded file.
	MaxUploadFileBytes = 8 * 1024 * 1024 // 8MB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// sessionValidate is the validator instance for session request types.
var sessionValidate *validator.Validate

func init() {
	sessionValidate = validator.New()
	_ = sessionValidate.RegisterValidation("maxpromptbytes", validatePromptBytes)
}

// validatePromptBytes enforces MaxPromptBytes on a string field. Byte
// length, not rune count, so large multi-byte payloads cannot slip under
// the limit.
func validatePromptBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxPromptBytes
}

// =============================================================================
// Session Boundary Requests
// =============================================================================

// InitSessionRequest is the POST /v1/session/init request body.
//
// # Description
//
// Configures a fresh session: the topic list the assistant should be
// knowledgeable about, the retrieval source flags, and an optional
// taxonomy filter for the paper source. Initializing while a session
// exists replaces it (the previous session's collection is deleted).
//
// # Fields
//
//   - Topics: Required. 1-20 topic strings, fixed for the session.
//   - UseEncyclopedia: fetch encyclopedia content.
//   - FetchByRelevance: fetch relevance-ranked papers.
//   - FetchByRecency: fetch recency-ranked papers.
//   - Subject / Subtopic: optional taxonomy scoping for paper queries.
//   - Uploaded: true when the caller already uploaded files before init.
type InitSessionRequest struct {
	Topics           []string `json:"topics" validate:"required,min=1,max=20,dive,required"`
	UseEncyclopedia  bool     `json:"use_encyclopedia"`
	FetchByRelevance bool     `json:"fetch_by_relevance"`
	FetchByRecency   bool     `json:"fetch_by_recency"`
	Subject          string   `json:"subject"`
	Subtopic         string   `json:"subtopic"`
	Uploaded         bool     `json:"uploaded"`
}

// Validate validates the InitSessionRequest fields.
func (r *InitSessionRequest) Validate() error {
	return sessionValidate.Struct(r)
}

// Flags assembles the retrieval flags declared by the request.
func (r *InitSessionRequest) Flags() RetrievalFlags {
	return RetrievalFlags{
		UseEncyclopedia:  r.UseEncyclopedia,
		FetchByRelevance: r.FetchByRelevance,
		FetchByRecency:   r.FetchByRecency,
		FileUploaded:     r.Uploaded,
	}
}

// Filter assembles the topic filter declared by the request.
func (r *InitSessionRequest) Filter() TopicFilter {
	return TopicFilter{Subject: r.Subject, Subtopic: r.Subtopic}
}

// ChatTurnRequest is the validated form of the GET /v1/session/chat
// query parameters.
type ChatTurnRequest struct {
	Prompt string `json:"prompt" validate:"required,maxpromptbytes"`
}

// Validate validates the ChatTurnRequest fields.
func (r *ChatTurnRequest) Validate() error {
	return sessionValidate.Struct(r)
}

// UploadResponse is the POST /v1/session/upload response body.
type UploadResponse struct {
	Success   bool     `json:"success"`
	FileCount int      `json:"file_count"`
	Files     []string `json:"files"`
	Chunks    int      `json:"chunks"`
}
