// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"sync"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// =============================================================================
// Corpus Source Interfaces
// =============================================================================

// EncyclopediaFetcher fetches encyclopedia article sections for a set
// of search queries.
type EncyclopediaFetcher interface {
	Fetch(ctx context.Context, queries []string, numResults, maxSections int) ([]datatypes.ContentRecord, error)
}

// PaperFetcher fetches paper abstracts for a set of queries, optionally
// scoped by a taxonomy filter and ranked by the given priority.
type PaperFetcher interface {
	Fetch(ctx context.Context, filter datatypes.TopicFilter, queries []string, maxResults int, priority datatypes.FetchPriority) ([]datatypes.ContentRecord, error)
}

// ContentStore persists and retrieves session content. Satisfied by the
// contentstore package.
type ContentStore interface {
	Store(ctx context.Context, namespace, sessionID string, records []datatypes.ContentRecord, batchSize int) error
	Retrieve(ctx context.Context, namespace, sessionID, query string, topK int, threshold float64) ([]datatypes.ContentRecord, error)
	DeleteCollection(ctx context.Context, namespace, sessionID string) error
}

// =============================================================================
// Fetch Phase
// =============================================================================

// Source names used in degradation reports.
const (
	sourceEncyclopedia    = "encyclopedia"
	sourcePapersRelevance = "papers/relevance"
	sourcePapersRecency   = "papers/recency"
)

// fetchResult is the outcome of one fetch phase: the deduplicated
// records of every source that answered, plus per-source failures.
type fetchResult struct {
	records  []datatypes.ContentRecord
	failures []*SourceFetchError
}

// fetchSources fans out to every enabled corpus source concurrently.
//
// # Description
//
// Each source runs independently; one failing source never cancels or
// poisons the others. Failures come back as SourceFetchErrors so the
// caller can narrate the degradation and continue with whatever
// arrived. Record order is fixed per source (encyclopedia, then
// relevance papers, then recency papers) regardless of completion
// order, keeping dedup results deterministic. Flags and filter come
// from the caller's snapshot of the session state.
func (m *Machine) fetchSources(ctx context.Context, queries []string, paperCap int, flags datatypes.RetrievalFlags, filter datatypes.TopicFilter) fetchResult {
	type sourceOutput struct {
		records []datatypes.ContentRecord
		failure *SourceFetchError
	}

	outputs := make([]sourceOutput, 3)
	var wg sync.WaitGroup

	if flags.UseEncyclopedia {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := m.deps.Encyclopedia.Fetch(ctx, queries,
				m.cfg.EncyclopediaResults, m.cfg.EncyclopediaSections)
			if err != nil {
				outputs[0].failure = &SourceFetchError{Source: sourceEncyclopedia, Err: err}
				return
			}
			outputs[0].records = records
		}()
	}
	if flags.FetchByRelevance {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := m.deps.Papers.Fetch(ctx, filter, queries,
				paperCap, datatypes.PriorityRelevance)
			if err != nil {
				outputs[1].failure = &SourceFetchError{Source: sourcePapersRelevance, Err: err}
				return
			}
			outputs[1].records = records
		}()
	}
	if flags.FetchByRecency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := m.deps.Papers.Fetch(ctx, filter, queries,
				paperCap, datatypes.PriorityRecency)
			if err != nil {
				outputs[2].failure = &SourceFetchError{Source: sourcePapersRecency, Err: err}
				return
			}
			outputs[2].records = records
		}()
	}
	wg.Wait()

	var result fetchResult
	for _, out := range outputs {
		if out.failure != nil {
			result.failures = append(result.failures, out.failure)
			continue
		}
		result.records = append(result.records, out.records...)
	}
	result.records = Dedup(result.records)
	return result
}
