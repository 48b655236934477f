// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// Number of parallel page fetches per query batch.
const wikipediaWorkers = 8

// =============================================================================
// Encyclopedia Client
// =============================================================================

// WikipediaClient fetches article sections from the MediaWiki action API.
//
// # Description
//
// For each query it runs a full-text search, then pulls the plaintext
// extract of every hit and splits it into sections. Individual query
// failures are logged and skipped; the call only fails when the context
// is cancelled or no query could be attempted at all.
//
// # Thread Safety
//
// Safe for concurrent use.
type WikipediaClient struct {
	baseURL    string
	httpClient HTTPClient
}

// HTTPClient allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewWikipediaClient creates a client against the given MediaWiki API
// endpoint. Empty baseURL defaults to English Wikipedia.
func NewWikipediaClient(baseURL string, httpClient HTTPClient) *WikipediaClient {
	if baseURL == "" {
		baseURL = "https://en.wikipedia.org/w/api.php"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WikipediaClient{baseURL: baseURL, httpClient: httpClient}
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int64  `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID  int64  `json:"pageid"`
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Fetch searches the encyclopedia for each query and returns section
// records.
//
// # Inputs
//
//   - queries: search phrases. Duplicates are tolerated; identical
//     sections produce identical record IDs downstream.
//   - numResults: max search hits per query.
//   - maxSections: max sections kept per article.
//
// # Outputs
//
//   - Section records with stable IDs derived from page ID and section
//     index, so refetching a page is idempotent at the store layer.
func (c *WikipediaClient) Fetch(ctx context.Context, queries []string, numResults, maxSections int) ([]datatypes.ContentRecord, error) {
	var (
		mu      sync.Mutex
		records []datatypes.ContentRecord
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(wikipediaWorkers)
	for _, query := range queries {
		group.Go(func() error {
			pageRecords, err := c.fetchQuery(groupCtx, query, numResults, maxSections)
			if err != nil {
				// A single bad query must not sink the batch.
				slog.Warn("encyclopedia query failed, skipping",
					"query", query, "error", err)
				return nil
			}
			mu.Lock()
			records = append(records, pageRecords...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("encyclopedia fetch cancelled: %w", err)
	}
	return records, nil
}

// fetchQuery runs one search and resolves every hit into section records.
func (c *WikipediaClient) fetchQuery(ctx context.Context, query string, numResults, maxSections int) ([]datatypes.ContentRecord, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprintf("%d", numResults)},
		"format":   {"json"},
	}
	var search wikiSearchResponse
	if err := c.get(ctx, params, &search); err != nil {
		return nil, fmt.Errorf("search for %q failed: %w", query, err)
	}

	var records []datatypes.ContentRecord
	for _, hit := range search.Query.Search {
		pageRecords, err := c.fetchPage(ctx, hit.Title, maxSections)
		if err != nil {
			slog.Warn("encyclopedia page fetch failed, skipping",
				"title", hit.Title, "error", err)
			continue
		}
		records = append(records, pageRecords...)
	}
	return records, nil
}

// fetchPage pulls the plaintext extract for one page and splits it into
// at most maxSections section records.
func (c *WikipediaClient) fetchPage(ctx context.Context, title string, maxSections int) ([]datatypes.ContentRecord, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"titles":      {title},
		"explaintext": {"1"},
		"format":      {"json"},
	}
	var extract wikiExtractResponse
	if err := c.get(ctx, params, &extract); err != nil {
		return nil, err
	}

	var records []datatypes.ContentRecord
	for _, page := range extract.Query.Pages {
		if page.Extract == "" {
			continue
		}
		source := fmt.Sprintf("https://en.wikipedia.org/?curid=%d", page.PageID)
		for i, section := range splitSections(page.Extract, maxSections) {
			records = append(records, datatypes.ContentRecord{
				ID:     fmt.Sprintf("wiki_%d_%d", page.PageID, i),
				Title:  page.Title,
				Text:   section,
				Source: source,
			})
		}
	}
	return records, nil
}

// splitSections breaks a plaintext extract at top-level "== Heading =="
// markers, keeping at most maxSections non-empty sections. The lead
// section (before the first heading) counts as a section.
func splitSections(extract string, maxSections int) []string {
	var sections []string
	for _, raw := range strings.Split(extract, "\n== ") {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		sections = append(sections, text)
		if len(sections) >= maxSections {
			break
		}
	}
	return sections
}

// get performs one API call and decodes the JSON payload.
func (c *WikipediaClient) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to setup request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close encyclopedia response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("encyclopedia API returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
