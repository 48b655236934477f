// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contentstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// =============================================================================
// Content Store
// =============================================================================

// ContentStore persists content records per session and retrieves the
// passages most relevant to a query.
//
// # Description
//
// Store is an idempotent upsert: object IDs are derived from the record
// ID and collection key, so repeating a batch overwrites rather than
// duplicates. Retrieve returns at most topK passages whose certainty is
// at or above threshold, most relevant first. DeleteCollection drops
// every passage of a session.
type ContentStore interface {
	Store(ctx context.Context, namespace, sessionID string, records []datatypes.ContentRecord, batchSize int) error
	Retrieve(ctx context.Context, namespace, sessionID, query string, topK int, threshold float64) ([]datatypes.ContentRecord, error)
	DeleteCollection(ctx context.Context, namespace, sessionID string) error
}

// ScoredRecord pairs a retrieved record with its certainty.
type ScoredRecord struct {
	Record    datatypes.ContentRecord
	Certainty float64
}

type weaviateStore struct {
	client *weaviate.Client
}

// NewWeaviateStore creates a ContentStore backed by the given client.
func NewWeaviateStore(client *weaviate.Client) ContentStore {
	return &weaviateStore{client: client}
}

// collectionKey builds the per-session segment value.
func collectionKey(namespace, sessionID string) string {
	return namespace + sessionID
}

// objectID derives a stable UUID from the collection key and record ID
// so re-storing the same record is an overwrite, not a duplicate.
func objectID(collection, recordID string) strfmt.UUID {
	hash := sha256.Sum256([]byte(collection + "/" + recordID))
	id, _ := uuid.FromBytes(hash[:16])
	return strfmt.UUID(id.String())
}

// Store writes records in batches of batchSize.
//
// # Limitations
//
//   - A partially applied batch is reported as an error; callers must
//     treat the turn as failed rather than assume the corpus grew.
func (s *weaviateStore) Store(ctx context.Context, namespace, sessionID string, records []datatypes.ContentRecord, batchSize int) error {
	if len(records) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(records)
	}
	collection := collectionKey(namespace, sessionID)

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		objects := make([]*models.Object, len(batch))
		for i, record := range batch {
			objects[i] = &models.Object{
				Class: PassageClassName,
				ID:    objectID(collection, record.ID),
				Properties: map[string]interface{}{
					"record_id":  record.ID,
					"title":      record.Title,
					"text":       record.Text,
					"source":     record.Source,
					"collection": collection,
				},
			}
		}

		resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			slog.Error("Failed to perform batch import to Weaviate", "error", err)
			return fmt.Errorf("failed to save passages to Weaviate: %w", err)
		}
		for _, item := range resp {
			if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
				continue
			}
			if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
				return fmt.Errorf("batch item failed: %s", item.Result.Errors.Error[0].Message)
			}
			return fmt.Errorf("batch item failed with unknown status")
		}
		slog.Info("Stored passage batch",
			"collection", collection, "count", len(batch))
	}
	return nil
}

// Retrieve runs a nearText search scoped to the session's collection.
func (s *weaviateStore) Retrieve(ctx context.Context, namespace, sessionID, query string, topK int, threshold float64) ([]datatypes.ContentRecord, error) {
	collection := collectionKey(namespace, sessionID)

	whereFilter := filters.Where().
		WithPath([]string{"collection"}).
		WithOperator(filters.Equal).
		WithValueString(collection)

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query}).
		WithCertainty(float32(threshold))

	fields := []graphql.Field{
		{Name: "record_id"},
		{Name: "title"},
		{Name: "text"},
		{Name: "source"},
		{Name: "_additional { certainty }"},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(PassageClassName).
		WithFields(fields...).
		WithWhere(whereFilter).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	scored := parsePassages(result)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Certainty > scored[j].Certainty
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	records := make([]datatypes.ContentRecord, 0, len(scored))
	for _, sr := range scored {
		records = append(records, sr.Record)
	}
	slog.Info("Retrieved passages",
		"collection", collection, "count", len(records))
	return records, nil
}

// DeleteCollection removes every passage of a session.
func (s *weaviateStore) DeleteCollection(ctx context.Context, namespace, sessionID string) error {
	collection := collectionKey(namespace, sessionID)

	whereFilter := filters.Where().
		WithPath([]string{"collection"}).
		WithOperator(filters.Equal).
		WithValueString(collection)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(PassageClassName).
		WithOutput("minimal").
		WithWhere(whereFilter).
		Do(ctx)
	if err != nil {
		slog.Error("failed to delete session passages from the Weaviate DB",
			"collection", collection, "error", err)
		return fmt.Errorf("failed to delete passages for %s: %w", collection, err)
	}
	slog.Info("Deleted session passages", "collection", collection)
	return nil
}

// parsePassages converts a GraphQL response into scored records. Skips
// malformed objects rather than failing the whole retrieval.
func parsePassages(result *models.GraphQLResponse) []ScoredRecord {
	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := data[PassageClassName].([]interface{})
	if !ok {
		return nil
	}

	scored := make([]ScoredRecord, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		record := datatypes.ContentRecord{
			ID:     getString(m, "record_id"),
			Title:  getString(m, "title"),
			Text:   getString(m, "text"),
			Source: getString(m, "source"),
		}
		certainty := 0.0
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if c, ok := additional["certainty"].(float64); ok {
				certainty = c
			}
		}
		scored = append(scored, ScoredRecord{Record: record, Certainty: certainty})
	}
	return scored
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

var _ ContentStore = (*weaviateStore)(nil)
