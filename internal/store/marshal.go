package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/audd/internal/ir"
)

// marshalRecord converts a record to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal records are stored byte-identical.
func marshalRecord(rec ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

// marshalKey converts a primary key value to its canonical JSON form, the
// records table's lookup key.
func marshalKey(key ir.Key) (string, error) {
	data, err := ir.MarshalCanonical(key)
	if err != nil {
		return "", fmt.Errorf("marshal key: %w", err)
	}
	return string(data), nil
}

// unmarshalRecord parses canonical JSON TEXT to a record, re-typing values
// with the schema so dates and whole floats survive the round trip.
func unmarshalRecord(data string, hints map[string]ir.Type) (ir.IRObject, error) {
	rec, err := ir.DecodeRecord([]byte(data), hints)
	if err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// unmarshalKey parses a stored key.
func unmarshalKey(data string) (ir.Key, error) {
	var key ir.Key
	if err := json.Unmarshal([]byte(data), &key); err != nil {
		return nil, fmt.Errorf("unmarshal key: %w", err)
	}
	return key, nil
}

// typedKey re-types a decoded key with the key fields' types.
func typedKey(key ir.Key, pk []string, hints map[string]ir.Type) ir.Key {
	for i := range key {
		if i < len(pk) {
			key[i] = ir.ApplyHint(key[i], hints[pk[i]])
		}
	}
	return key
}

// marshalJSON stores a non-IR value (source info, key fields, apply
// results) as canonical JSON.
func marshalJSON(v any) (string, error) {
	data, err := ir.CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
