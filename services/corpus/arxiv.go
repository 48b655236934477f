// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package corpus

import (
	"context"
	"encoding/xml"
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

const arxivWorkers = 4

// =============================================================================
// Paper Archive Client
// =============================================================================

// ArxivClient fetches paper abstracts from the arXiv Atom API.
//
// # Description
//
// Each query becomes one archive search, optionally scoped to a
// category code resolved through the packaged taxonomy. Results can be
// ranked by relevance or by submission date. Individual query failures
// are logged and skipped, mirroring the encyclopedia client.
//
// # Thread Safety
//
// Safe for concurrent use.
type ArxivClient struct {
	baseURL    string
	httpClient HTTPClient
	taxonomy   *Taxonomy
}

// NewArxivClient creates a client against the given Atom API endpoint.
// Empty baseURL defaults to the public archive export endpoint.
func NewArxivClient(baseURL string, httpClient HTTPClient, taxonomy *Taxonomy) *ArxivClient {
	if baseURL == "" {
		baseURL = "https://export.arxiv.org/api/query"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ArxivClient{baseURL: baseURL, httpClient: httpClient, taxonomy: taxonomy}
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	PrimaryCategory struct {
		Term string `xml:"term,attr"`
	} `xml:"primary_category"`
}

// Fetch searches the archive for each query under the given topic filter.
//
// # Inputs
//
//   - filter: optional subject/subtopic scope. When the pair resolves to
//     a category code, queries are restricted to that category.
//   - queries: abstract search phrases.
//   - maxResults: cap per archive search.
//   - priority: relevance or recency ranking.
//
// # Outputs
//
//   - Abstract records with IDs derived from the archive identifier, so
//     refetching a paper is idempotent at the store layer.
func (c *ArxivClient) Fetch(ctx context.Context, filter datatypes.TopicFilter, queries []string, maxResults int, priority datatypes.FetchPriority) ([]datatypes.ContentRecord, error) {
	code, scoped := c.taxonomy.Code(filter.Subject, filter.Subtopic)

	var (
		mu      sync.Mutex
		records []datatypes.ContentRecord
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(arxivWorkers)
	for _, query := range queries {
		group.Go(func() error {
			searchQuery := fmt.Sprintf("abs:%q", query)
			if scoped {
				searchQuery = fmt.Sprintf("cat:%s AND %s", code, searchQuery)
			}
			entries, err := c.search(groupCtx, searchQuery, maxResults, priority)
			if err != nil {
				slog.Warn("archive query failed, skipping",
					"query", query, "error", err)
				return nil
			}
			mu.Lock()
			for _, entry := range entries {
				records = append(records, c.toRecord(entry))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("archive fetch cancelled: %w", err)
	}
	return records, nil
}

// search runs one Atom API query.
func (c *ArxivClient) search(ctx context.Context, searchQuery string, maxResults int, priority datatypes.FetchPriority) ([]atomEntry, error) {
	sortBy := "relevance"
	if priority == datatypes.PriorityRecency {
		sortBy = "submittedDate"
	}
	params := url.Values{
		"search_query": {searchQuery},
		"max_results":  {fmt.Sprintf("%d", maxResults)},
		"sortBy":       {sortBy},
		"sortOrder":    {"descending"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to setup request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close archive response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive API returned %d: %s", resp.StatusCode, string(body))
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed.Entries, nil
}

// toRecord maps an Atom entry to a content record. The abstract text is
// prefixed with authors and date so the generation context carries the
// paper's framing, not just its prose.
func (c *ArxivClient) toRecord(entry atomEntry) datatypes.ContentRecord {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}
	published := entry.Published
	if len(published) >= 10 {
		published = published[:10]
	}
	text := fmt.Sprintf("Authors: %s\nPublished: %s\nCategory: %s\nAbstract: %s",
		strings.Join(authors, ", "),
		published,
		c.taxonomy.Describe(entry.PrimaryCategory.Term),
		strings.TrimSpace(entry.Summary))

	return datatypes.ContentRecord{
		ID:     "arxiv_" + paperID(entry.ID),
		Title:  strings.Join(strings.Fields(entry.Title), " "),
		Text:   text,
		Source: entry.ID,
	}
}

// paperID extracts the bare archive identifier from an Atom entry ID
// like http://arxiv.org/abs/2401.01234v1.
func paperID(entryID string) string {
	if idx := strings.LastIndex(entryID, "/"); idx >= 0 {
		return entryID[idx+1:]
	}
	return entryID
}
