// Copyright (C) 2025 Litora AI (engineering@litora.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contentstore

import (
	"context"
	"errors"

	"github.com/LitoraAI/LitoraChat/services/orchestrator/datatypes"
)

// ErrStoreDisabled is returned by every operation of the disabled store.
var ErrStoreDisabled = errors.New("content store not configured")

// Disabled returns a ContentStore for deployments without a vector
// database. Sessions still work for plain chat; any turn that needs to
// store or retrieve passages fails with ErrStoreDisabled.
func Disabled() ContentStore {
	return disabledStore{}
}

type disabledStore struct{}

func (disabledStore) Store(ctx context.Context, namespace, sessionID string, records []datatypes.ContentRecord, batchSize int) error {
	return ErrStoreDisabled
}

func (disabledStore) Retrieve(ctx context.Context, namespace, sessionID, query string, topK int, threshold float64) ([]datatypes.ContentRecord, error) {
	return nil, ErrStoreDisabled
}

func (disabledStore) DeleteCollection(ctx context.Context, namespace, sessionID string) error {
	return ErrStoreDisabled
}

var _ ContentStore = disabledStore{}
