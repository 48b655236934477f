// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package contentstore persists session content in Weaviate and serves
// semantic retrieval over it.
package contentstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// PassageClassName is the Weaviate class holding all session passages.
// Sessions share the class and are segmented by the collection property.
const PassageClassName = "SessionPassage"

// GetPassageSchema returns the class definition for session passages.
func GetPassageSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       PassageClassName,
		Description: "A passage of fetched or uploaded content belonging to a chat session.",
		Vectorizer:  "text2vec-transformers",
		Properties: []*models.Property{
			{
				Name:            "record_id",
				DataType:        []string{"text"},
				Description:     "Stable identifier assigned by the fetcher or uploader.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "Human-readable title of the passage.",
				Tokenization: "word",
			},
			{
				Name:         "text",
				DataType:     []string{"text"},
				Description:  "The passage body used for semantic retrieval.",
				Tokenization: "word",
			},
			{
				Name:         "source",
				DataType:     []string{"text"},
				Description:  "Provenance string rendered into citations.",
				Tokenization: "field",
			},
			{
				Name:            "collection",
				DataType:        []string{"text"},
				Description:     "Namespace-plus-session key segmenting passages per session.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureSchema creates the passage class if it does not exist yet.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	class := GetPassageSchema()
	slog.Info("Checking schema", "class", class.Class)

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		slog.Info("Schema already exists", "class", class.Class)
		return nil
	}

	// The getter errors when the class is missing. Create it.
	slog.Info("Schema not found, creating it...", "class", class.Class)
	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create schema for class %s: %w", class.Class, err)
	}
	slog.Info("Successfully created schema", "class", class.Class)
	return nil
}
