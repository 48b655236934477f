// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package corpus fetches source material for a research session from
// external archives: encyclopedia articles and paper abstracts.
package corpus

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed sub2tag.json
var taxonomyJSON []byte

// =============================================================================
// Paper Archive Taxonomy
// =============================================================================

// Taxonomy maps human-readable subject and subtopic names to the paper
// archive's category codes (e.g. "Mathematics" / "Probability" -> "math.PR").
//
// # Description
//
// The mapping ships with the binary so the topic filter works without a
// network dependency. Lookups are read-only after construction.
//
// # Thread Safety
//
// Safe for concurrent reads.
type Taxonomy struct {
	sub2tag map[string]map[string]string
	tag2sub map[string][2]string
}

// LoadTaxonomy parses the packaged subject mapping.
func LoadTaxonomy() (*Taxonomy, error) {
	var sub2tag map[string]map[string]string
	if err := json.Unmarshal(taxonomyJSON, &sub2tag); err != nil {
		return nil, fmt.Errorf("failed to parse packaged taxonomy: %w", err)
	}
	tag2sub := make(map[string][2]string)
	for subject, subtopics := range sub2tag {
		for subtopic, code := range subtopics {
			tag2sub[code] = [2]string{subject, subtopic}
		}
	}
	return &Taxonomy{sub2tag: sub2tag, tag2sub: tag2sub}, nil
}

// Subjects returns all subject names in sorted order.
func (t *Taxonomy) Subjects() []string {
	subjects := make([]string, 0, len(t.sub2tag))
	for subject := range t.sub2tag {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Subtopics returns the subtopic names under a subject in sorted order.
// Unknown subjects return an empty slice.
func (t *Taxonomy) Subtopics(subject string) []string {
	subtopics := make([]string, 0, len(t.sub2tag[subject]))
	for subtopic := range t.sub2tag[subject] {
		subtopics = append(subtopics, subtopic)
	}
	sort.Strings(subtopics)
	return subtopics
}

// Code resolves a subject/subtopic pair to its category code.
func (t *Taxonomy) Code(subject, subtopic string) (string, bool) {
	code, ok := t.sub2tag[subject][subtopic]
	return code, ok
}

// Describe resolves a category code back to "Subject Subtopic". Unknown
// codes are returned unchanged so archive-side categories outside the
// packaged mapping still render.
func (t *Taxonomy) Describe(code string) string {
	if pair, ok := t.tag2sub[code]; ok {
		return pair[0] + " " + pair[1]
	}
	return code
}
