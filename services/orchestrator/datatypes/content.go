// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "fmt"

// =============================================================================
// Content Records
// =============================================================================

// ContentRecord is the uniform unit of fetched, uploaded, stored, and
// retrieved content.
//
// # Fields
//
//   - ID: stable identifier assigned by the producing fetcher or
//     uploader. Keys idempotent storage; deduplication compares whole
//     records.
//   - Title: human-readable title.
//   - Text: the passage body.
//   - Source: provenance string rendered into citations.
type ContentRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Citation renders the record's citation line.
func (r ContentRecord) Citation() string {
	return fmt.Sprintf("- %s (%s)", r.Title, r.Source)
}

// FetchPriority selects the ranking of a paper-source fetch.
type FetchPriority string

const (
	// PriorityRelevance ranks results by query relevance.
	PriorityRelevance FetchPriority = "relevance"

	// PriorityRecency ranks results by submission date, newest first.
	PriorityRecency FetchPriority = "recency"
)
