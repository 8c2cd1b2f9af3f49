// Copyright 2026 The Tapestry Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"fmt"
)

// DecodeExtra collects the fields of raw that are not in known (and
// not $type) into extra. Generated UnmarshalJSON methods call it
// after decoding the declared fields, so lexicon evolution does not
// silently drop data. extra stays nil when nothing is left over.
func DecodeExtra(raw json.RawMessage, extra *map[string]json.RawMessage, known ...string) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return fmt.Errorf("api: decode extra fields: %w", err)
	}
	delete(all, "$type")
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		*extra = nil
		return nil
	}
	*extra = all
	return nil
}

// EncodeWithExtra marshals v, then splices in the record's $type and
// any retained extra fields. Declared fields win over extras with
// the same name.
func EncodeWithExtra(v any, typeID string, extra map[string]json.RawMessage) ([]byte, error) {
	declared, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(declared, &all); err != nil {
		return nil, fmt.Errorf("api: reshape %s: %w", typeID, err)
	}
	for key, value := range extra {
		if _, taken := all[key]; !taken {
			all[key] = value
		}
	}
	if typeID != "" {
		all["$type"] = json.RawMessage(`"` + typeID + `"`)
	}
	return json.Marshal(all)
}
