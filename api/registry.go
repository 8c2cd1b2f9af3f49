// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Record is implemented by every generated record type.
type Record interface {
	LexiconTypeID() string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func() Record{}
)

// RegisterRecordType maps a record $type NSID to a constructor.
// Generated packages call this from init; later registrations for
// the same ID replace earlier ones.
func RegisterRecordType(id string, fn func() Record) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[id] = fn
}

// NewRecord returns a fresh instance of the record type registered
// under id, or false when the type is unknown.
func NewRecord(id string) (Record, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[id]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// DecodeRecord parses raw JSON into the registered type named by its
// $type field. Unknown types return an error; callers that want a
// schema-less fallback use data.UnmarshalJSON instead.
func DecodeRecord(raw json.RawMessage) (Record, error) {
	var probe struct {
		Type string `json:"$type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("api: probe record type: %w", err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("api: record has no $type field")
	}
	record, ok := NewRecord(probe.Type)
	if !ok {
		return nil, fmt.Errorf("api: unregistered record type %q", probe.Type)
	}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("api: decode %s: %w", probe.Type, err)
	}
	return record, nil
}

// RegisteredTypeIDs lists the registered record NSIDs in sorted
// order.
func RegisteredTypeIDs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
