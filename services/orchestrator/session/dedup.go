// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// Dedup removes records structurally equal to an earlier element,
// keeping the first occurrence and preserving order. Records are
// duplicates only when every field matches; two records sharing an ID
// but differing elsewhere both survive. Idempotent: a deduplicated
// slice passes through unchanged.
func Dedup(records []datatypes.ContentRecord) []datatypes.ContentRecord {
	seen := make(map[datatypes.ContentRecord]struct{}, len(records))
	out := make([]datatypes.ContentRecord, 0, len(records))
	for _, record := range records {
		if _, ok := seen[record]; ok {
			continue
		}
		seen[record] = struct{}{}
		out = append(out, record)
	}
	return out
}

// DedupAny deduplicates a dynamically typed batch at an ingestion
// boundary.
//
// # Description
//
// Accepts a value that must be a []any whose every element is a
// datatypes.ContentRecord. Anything else — a non-slice value, or a
// slice with even one foreign element — is rejected with a
// ValidationError before any element is processed, so a bad batch can
// never half-apply.
func DedupAny(batch any) ([]datatypes.ContentRecord, error) {
	items, ok := batch.([]any)
	if !ok {
		return nil, &ValidationError{
			Field:  "batch",
			Reason: fmt.Sprintf("expected a record slice, got %T", batch),
		}
	}

	records := make([]datatypes.ContentRecord, len(items))
	for i, item := range items {
		record, ok := item.(datatypes.ContentRecord)
		if !ok {
			return nil, &ValidationError{
				Field:  "batch",
				Reason: fmt.Sprintf("element %d is %T, not a content record", i, item),
			}
		}
		records[i] = record
	}
	return Dedup(records), nil
}
