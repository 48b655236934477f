// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// Tests for content deduplication.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

func rec(id string) datatypes.ContentRecord {
	return datatypes.ContentRecord{ID: id, Title: "t-" + id, Text: "x", Source: "s"}
}

func TestDedupKeepsFirstOccurrenceInOrder(t *testing.T) {
	in := []datatypes.ContentRecord{rec("a"), rec("b"), rec("a"), rec("c"), rec("b")}
	out := Dedup(in)

	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "c", out[2].ID)
}

func TestDedupComparesWholeRecords(t *testing.T) {
	// Same ID, different bodies: distinct records, both survive.
	a := datatypes.ContentRecord{ID: "shared", Title: "A", Text: "alpha", Source: "s1"}
	b := datatypes.ContentRecord{ID: "shared", Title: "B", Text: "beta", Source: "s2"}
	out := Dedup([]datatypes.ContentRecord{a, b, a})

	require.Len(t, out, 2)
	assert.Equal(t, a, out[0])
	assert.Equal(t, b, out[1])
}

func TestDedupIdempotent(t *testing.T) {
	in := []datatypes.ContentRecord{rec("a"), rec("b"), rec("a")}
	once := Dedup(in)
	twice := Dedup(once)
	assert.Equal(t, once, twice)
}

func TestDedupEmpty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
	assert.Empty(t, Dedup([]datatypes.ContentRecord{}))
}

func TestDedupAnyValidBatch(t *testing.T) {
	batch := []any{rec("a"), rec("b"), rec("a")}
	out, err := DedupAny(batch)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestDedupAnyRejectsNonSlice(t *testing.T) {
	_, err := DedupAny("not a slice")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "batch", vErr.Field)
}

func TestDedupAnyRejectsMixedBatchEntirely(t *testing.T) {
	batch := []any{rec("a"), 42, rec("b")}
	out, err := DedupAny(batch)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Nil(t, out, "a bad batch must not half-apply")
}
