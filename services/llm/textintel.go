// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// =============================================================================
// Capability Interfaces
// =============================================================================

// KeywordExtractor extracts ranked key phrases from text.
//
// # Description
//
// Returns at most topN phrases whose relevance score is at or above
// threshold, in descending relevance order. The session core calls this
// with a higher threshold on the first turn (where the query is the
// only signal) and a lower one on follow-ups.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string, topN int, threshold float64) ([]string, error)
}

// Summarizer condenses text down to a token budget.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxInputTokens, maxOutputTokens int) (string, error)
}

// =============================================================================
// Text Intelligence Service Client
// =============================================================================

// TextIntelClient consumes the keyword-extraction and summarization
// models over HTTP from the text intelligence sidecar.
//
// # Description
//
// The sidecar hosts the small task models (key-phrase ranking and
// abstractive summarization) behind /keywords and /summarize endpoints.
// Both capabilities are pure functions of their input; the client keeps
// no state beyond the HTTP client.
//
// # Thread Safety
//
// Safe for concurrent use; http.Client is thread-safe.
type TextIntelClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewTextIntelClient creates a client for the text intelligence sidecar.
//
// # Inputs
//
//   - baseURL: sidecar base URL. Empty falls back to the
//     TEXT_INTEL_SERVICE_URL environment variable, then to the compose
//     default http://litora-text-intel:12230.
func NewTextIntelClient(baseURL string) *TextIntelClient {
	if baseURL == "" {
		baseURL = os.Getenv("TEXT_INTEL_SERVICE_URL")
	}
	if baseURL == "" {
		baseURL = "http://litora-text-intel:12230"
	}
	return &TextIntelClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type keywordRequest struct {
	Text      string  `json:"text"`
	TopN      int     `json:"top_n"`
	Threshold float64 `json:"threshold"`
}

type keywordResponse struct {
	Keywords []string `json:"keywords"`
}

type summarizeRequest struct {
	Text            string `json:"text"`
	MaxInputTokens  int    `json:"max_input_tokens"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

// Extract implements KeywordExtractor.
func (c *TextIntelClient) Extract(ctx context.Context, text string, topN int, threshold float64) ([]string, error) {
	var resp keywordResponse
	err := c.post(ctx, "/keywords", keywordRequest{Text: text, TopN: topN, Threshold: threshold}, &resp)
	if err != nil {
		return nil, fmt.Errorf("keyword extraction failed: %w", err)
	}
	return resp.Keywords, nil
}

// Summarize implements Summarizer.
func (c *TextIntelClient) Summarize(ctx context.Context, text string, maxInputTokens, maxOutputTokens int) (string, error) {
	var resp summarizeResponse
	err := c.post(ctx, "/summarize", summarizeRequest{
		Text:            text,
		MaxInputTokens:  maxInputTokens,
		MaxOutputTokens: maxOutputTokens,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return resp.Summary, nil
}

// post sends a JSON request to the sidecar and decodes the response.
func (c *TextIntelClient) post(ctx context.Context, path string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to setup request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to text intelligence service failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close text intelligence response body", "error", cerr)
		}
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("text intelligence service returned %d for %s: %s",
			resp.StatusCode, path, string(bodyBytes))
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

// Compile-time interface compliance.
var (
	_ KeywordExtractor = (*TextIntelClient)(nil)
	_ Summarizer       = (*TextIntelClient)(nil)
)
