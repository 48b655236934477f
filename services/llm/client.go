// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for the external language-model
// capabilities the orchestrator consumes: streaming completion, keyword
// extraction and summarization.
package llm

import "context"

// GenerationParams holds sampling parameters for a completion call.
// Nil pointer fields mean "backend default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamCallback receives generated fragments in order. Returning a
// non-nil error aborts the stream; the call is not restartable.
type StreamCallback func(fragment string) error

// LLMClient defines the standard interface for any LLM backend.
//
// # Description
//
// GenerateStream wraps a single streaming-completion call: the prompt is
// sent once, fragments arrive through the callback in generation order,
// and the call returns when the stream finishes or fails. A mid-stream
// failure aborts the turn; callers must not retry the same turn against
// a partially consumed stream.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the orchestrator
// serializes turns, but summarization calls may overlap a stream.
type LLMClient interface {
	// Generate performs a blocking, non-streaming completion.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// GenerateStream performs a streaming completion, invoking callback
	// once per fragment. Finite, not restartable.
	GenerateStream(ctx context.Context, prompt string, params GenerationParams, callback StreamCallback) error
}

// TurnSamplingParams returns the fixed sampling configuration used for
// answer generation: low temperature for grounded answers, nucleus and
// top-k truncation, a bounded output length, and the turn-marker stop
// sequences.
func TurnSamplingParams() GenerationParams {
	temp := float32(0.15)
	topP := float32(0.9)
	topK := 40
	maxTokens := 1920
	return GenerationParams{
		Temperature: &temp,
		TopP:        &topP,
		TopK:        &topK,
		MaxTokens:   &maxTokens,
		Stop:        []string{"<|end|>", "<|assistant|>"},
	}
}
