// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LitoraAI/LitoraChat/services/llm"
	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// groundingInstruction prefixes grounded user turns. It tells the model
// to lean on the retrieved context without fabricating.
const groundingInstruction = "Use the following context and your own knowledge to answer " +
	"the question at the end. If you don't know the answer, just say that you don't know, " +
	"don't try to make up an answer. Keep the answer as detailed, lucid and to the point " +
	"as possible. Answer should be at most of 1250 words."

// =============================================================================
// Context Assembly
// =============================================================================

// Assembler builds the user-turn text for the rolling prompt context
// from the current prompt and the turn's retrieved passages.
type Assembler struct {
	Summarizer      llm.Summarizer
	MaxInputTokens  int
	MaxOutputTokens int
}

// BuildUserTurn assembles one user turn.
//
// # Description
//
// With retrieved passages the turn is grounded: the passages are
// concatenated as "title\ntext" blocks, condensed through the
// summarizer, and framed by the grounding instruction and an explicit
// "Question:" line. Without passages the turn is the raw prompt.
// Summarizer failure degrades to the unsummarized concatenation rather
// than losing the turn.
//
// # Outputs
//
//   - datatypes.TurnRecord: the assembled user turn.
//   - []string: one citation line per passage, in retrieval order.
//   - bool: true when summarization was skipped due to a failure.
func (a *Assembler) BuildUserTurn(ctx context.Context, prompt string, passages []datatypes.ContentRecord) (datatypes.TurnRecord, []string, bool) {
	if len(passages) == 0 {
		return datatypes.TurnRecord{Role: datatypes.RoleUser, Text: prompt}, nil, false
	}

	citations := make([]string, 0, len(passages))
	var raw strings.Builder
	for _, passage := range passages {
		fmt.Fprintf(&raw, "%s\n%s\n\n", passage.Title, passage.Text)
		citations = append(citations, passage.Citation())
	}

	condensed := raw.String()
	degraded := false
	summary, err := a.Summarizer.Summarize(ctx, condensed, a.MaxInputTokens, a.MaxOutputTokens)
	if err != nil {
		slog.Warn("summarization failed, using unsummarized context", "error", err)
		degraded = true
	} else {
		condensed = summary
	}

	text := fmt.Sprintf("%s\n\n%s\nQuestion: %s", groundingInstruction, condensed, prompt)
	return datatypes.TurnRecord{Role: datatypes.RoleUser, Text: text}, citations, degraded
}

// TrimToBudget drops whole leading turns until the context fits the
// word budget.
//
// # Description
//
// Turns are removed oldest-first, a user/assistant pair at a time, so
// the context never starts with a dangling assistant answer. The most
// recent turn always survives even when it alone exceeds the budget;
// the budget bounds history growth, not single-turn size.
func TrimToBudget(turns []datatypes.TurnRecord, budget int) []datatypes.TurnRecord {
	for datatypes.ContextWords(turns) > budget && len(turns) > 1 {
		drop := 1
		if len(turns) > 2 && turns[0].Role == datatypes.RoleUser && turns[1].Role == datatypes.RoleAssistant {
			drop = 2
		}
		turns = turns[drop:]
	}
	return turns
}
