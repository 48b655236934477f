// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "strings"

// =============================================================================
// Session Configuration Views
// =============================================================================

// RetrievalFlags selects which corpus sources feed the session.
//
// # Description
//
// RetrievalFlags are fixed at session init. FileUploaded is the one
// exception: it flips to true when the user uploads a file mid-session,
// which makes retrieval eligible even with all fetch sources disabled.
//
// # Fields
//
//   - UseEncyclopedia: fetch encyclopedia articles for session keywords.
//   - FetchByRelevance: fetch relevance-ranked papers.
//   - FetchByRecency: fetch recency-ranked papers.
//   - FileUploaded: uploaded file content is present in the store.
type RetrievalFlags struct {
	UseEncyclopedia  bool `json:"use_encyclopedia"`
	FetchByRelevance bool `json:"fetch_by_relevance"`
	FetchByRecency   bool `json:"fetch_by_recency"`
	FileUploaded     bool `json:"file_uploaded"`
}

// AnySource reports whether at least one retrieval source is enabled or
// a file has been uploaded. A session with no sources degrades to
// plain-context answers.
func (f RetrievalFlags) AnySource() bool {
	return f.UseEncyclopedia || f.FetchByRelevance || f.FetchByRecency || f.FileUploaded
}

// AnyFetchSource reports whether any network fetch source is enabled.
// Uploaded files make retrieval eligible but never trigger fetches.
func (f RetrievalFlags) AnyFetchSource() bool {
	return f.UseEncyclopedia || f.FetchByRelevance || f.FetchByRecency
}

// TopicFilter optionally scopes paper-source queries to a taxonomy
// subject and subtopic. Empty fields mean unscoped.
type TopicFilter struct {
	Subject  string `json:"subject"`
	Subtopic string `json:"subtopic"`
}

// =============================================================================
// Prompt Context Turn Records
// =============================================================================

// Turn roles for TurnRecord.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnRecord is one role-tagged span of the rolling prompt context.
//
// # Description
//
// The prompt context is held as an ordered sequence of TurnRecords
// rather than a flat string with embedded role markers. Trimming under
// the context budget drops whole leading user/assistant pairs, so a
// malformed marker search can never leave an unterminated fragment
// behind.
//
// # Fields
//
//   - Role: RoleUser or RoleAssistant.
//   - Text: the span content. For user records this is the assembled
//     turn text (instruction preamble, summarized context, question);
//     for assistant records it is the generated answer.
type TurnRecord struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Words returns the whitespace-separated word count of the record text.
func (t TurnRecord) Words() int {
	return len(strings.Fields(t.Text))
}

// RenderPrompt renders an ordered turn sequence into the marker syntax
// the generation model expects, prefixed with the session preamble and
// terminated with an open assistant marker awaiting the completion.
//
// # Inputs
//
//   - preamble: session-level prefix (e.g. "Topics: ...\n\n").
//   - turns: ordered turn records, oldest first.
//
// # Outputs
//
//   - string: the full prompt for the streaming generator.
func RenderPrompt(preamble string, turns []TurnRecord) string {
	var b strings.Builder
	b.WriteString(preamble)
	for _, t := range turns {
		switch t.Role {
		case RoleAssistant:
			b.WriteString("<|assistant|>\n")
			b.WriteString(t.Text)
			b.WriteString("\n")
		default:
			b.WriteString("<|user|>\n")
			b.WriteString(t.Text)
			b.WriteString("\n<|end|>\n")
		}
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}

// ContextWords returns the total word count of a turn sequence.
func ContextWords(turns []TurnRecord) int {
	total := 0
	for _, t := range turns {
		total += t.Words()
	}
	return total
}

// =============================================================================
// Session Snapshot
// =============================================================================

// SessionSnapshot is a read-only copy of session state for handlers and
// tests. The orchestration core owns the live state; nothing outside it
// mutates session fields directly.
//
// # Fields
//
//   - Topics: topics fixed at init.
//   - KeyPhrases: sorted copy of the monotone keyword set.
//   - ConversationHistory: append-only display transcript.
//   - Citations: the current turn's citation lines.
//   - ContextTurns: copy of the prompt-context turn records.
//   - IsFirstTurn: true until the first turn's fetch phase completes.
//   - Flags: retrieval flags, including the live FileUploaded value.
//   - Filter: paper-source topic filter.
type SessionSnapshot struct {
	Topics              []string       `json:"topics"`
	KeyPhrases          []string       `json:"key_phrases"`
	ConversationHistory string         `json:"conversation_history"`
	Citations           []string       `json:"citations"`
	ContextTurns        []TurnRecord   `json:"context_turns"`
	IsFirstTurn         bool           `json:"is_first_turn"`
	Flags               RetrievalFlags `json:"flags"`
	Filter              TopicFilter    `json:"filter"`
}
