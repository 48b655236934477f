// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// Tests for the content store helpers.

package contentstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestObjectIDDeterministic(t *testing.T) {
	a := objectID("rag_session_abc", "wiki_42_0")
	b := objectID("rag_session_abc", "wiki_42_0")
	assert.Equal(t, a, b, "same record must map to the same object ID")

	c := objectID("rag_session_other", "wiki_42_0")
	assert.NotEqual(t, a, c, "collections must not collide")

	d := objectID("rag_session_abc", "wiki_42_1")
	assert.NotEqual(t, a, d, "records must not collide")
}

func TestParsePassages(t *testing.T) {
	result := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				PassageClassName: []interface{}{
					map[string]interface{}{
						"record_id": "wiki_42_0",
						"title":     "Markov chain",
						"text":      "A stochastic model.",
						"source":    "https://en.wikipedia.org/?curid=42",
						"_additional": map[string]interface{}{
							"certainty": 0.91,
						},
					},
					"not an object",
					map[string]interface{}{
						"record_id": "arxiv_2401.01234v1",
						"title":     "Mixing Times",
						"text":      "Abstract: ...",
						"source":    "http://arxiv.org/abs/2401.01234v1",
					},
				},
			},
		},
	}

	scored := parsePassages(result)
	require.Len(t, scored, 2, "malformed entries are skipped")
	assert.Equal(t, "wiki_42_0", scored[0].Record.ID)
	assert.InDelta(t, 0.91, scored[0].Certainty, 1e-9)
	assert.Equal(t, "arxiv_2401.01234v1", scored[1].Record.ID)
	assert.Zero(t, scored[1].Certainty, "missing certainty defaults to zero")
}

func TestParsePassagesEmptyResponse(t *testing.T) {
	assert.Empty(t, parsePassages(&models.GraphQLResponse{Data: map[string]models.JSONObject{}}))
}
