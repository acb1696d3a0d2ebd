package sqlite

import (
	"encoding/json"
	"fmt"
)

// marshalMap encodes an opaque map column. Nil maps are stored as {}.
func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode map: %w", err)
	}
	return string(data), nil
}

// unmarshalMap decodes an opaque map column. Empty columns decode to an
// empty map, never nil.
func unmarshalMap(data string) (map[string]any, error) {
	if data == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to decode map: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// marshalStrings encodes a string-list column. Nil slices are stored as [].
func marshalStrings(s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

// unmarshalStrings decodes a string-list column.
func unmarshalStrings(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var s []string
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	if s == nil {
		s = []string{}
	}
	return s, nil
}
