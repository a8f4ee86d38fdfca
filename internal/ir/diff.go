package ir

import (
	"encoding/json"
	"fmt"
)

// ChangeKind classifies a detected difference.
type ChangeKind string

const (
	ChangeAdded       ChangeKind = "added"
	ChangeRemoved     ChangeKind = "removed"
	ChangeModified    ChangeKind = "modified"
	ChangeTypeChanged ChangeKind = "type_changed"
)

// Diff describes the differences between a baseline IR (A) and a candidate IR (B).
type Diff struct {
	Version    string  `json:"version"`
	Strategy   string  `json:"strategy"`
	Threshold  float64 `json:"threshold"`
	Comparator string  `json:"comparator"`

	// KeyFields are the primary key fields row keys are expressed in.
	KeyFields []string `json:"key_fields"`

	// SyntheticKey is set when either side was keyed positionally.
	SyntheticKey bool `json:"synthetic_key,omitempty"`

	SchemaChanges []SchemaChange `json:"schema_changes"`
	RowChanges    []RowChange    `json:"row_changes"`
}

// SchemaChange is a field-level structural difference.
type SchemaChange struct {
	Field   string     `json:"field"`
	Kind    ChangeKind `json:"kind"`
	OldType Type       `json:"old_type,omitempty"`
	NewType Type       `json:"new_type,omitempty"`

	// Rows holds the per-record type conflicts a hybrid comparison folds
	// into a type_changed field instead of reporting them as row changes.
	Rows []RowChange `json:"rows,omitempty"`
}

// RowChange is a record- or field-level content difference. An empty Field
// means the whole record was added or removed and the values are the records.
type RowChange struct {
	Key        Key        `json:"key"`
	Field      string     `json:"field,omitempty"`
	Kind       ChangeKind `json:"kind"`
	OldValue   IRValue    `json:"old_value"`
	NewValue   IRValue    `json:"new_value"`
	OldType    Type       `json:"old_type"`
	NewType    Type       `json:"new_type"`
	Confidence float64    `json:"confidence"`

	// Synthetic marks a change keyed by a positional key.
	Synthetic bool `json:"synthetic,omitempty"`
}

// WholeRecord reports whether the change adds or removes an entire record.
func (c RowChange) WholeRecord() bool {
	return c.Field == ""
}

// TypeConflict reports whether both sides hold values of incompatible types.
func (c RowChange) TypeConflict() bool {
	if c.OldType == TypeNull || c.NewType == TypeNull {
		return false
	}
	return !Compatible(c.OldType, c.NewType)
}

// UnmarshalJSON restores typed values using the recorded old/new types.
func (c *RowChange) UnmarshalJSON(data []byte) error {
	var aux struct {
		Key        Key             `json:"key"`
		Field      string          `json:"field"`
		Kind       ChangeKind      `json:"kind"`
		OldValue   json.RawMessage `json:"old_value"`
		NewValue   json.RawMessage `json:"new_value"`
		OldType    Type            `json:"old_type"`
		NewType    Type            `json:"new_type"`
		Confidence float64         `json:"confidence"`
		Synthetic  bool            `json:"synthetic"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	oldVal, err := decodeOptional(aux.OldValue, aux.OldType)
	if err != nil {
		return fmt.Errorf("old_value: %w", err)
	}
	newVal, err := decodeOptional(aux.NewValue, aux.NewType)
	if err != nil {
		return fmt.Errorf("new_value: %w", err)
	}
	*c = RowChange{
		Key:        aux.Key,
		Field:      aux.Field,
		Kind:       aux.Kind,
		OldValue:   oldVal,
		NewValue:   newVal,
		OldType:    aux.OldType,
		NewType:    aux.NewType,
		Confidence: aux.Confidence,
		Synthetic:  aux.Synthetic,
	}
	return nil
}

func decodeOptional(raw json.RawMessage, hint Type) (IRValue, error) {
	if len(raw) == 0 {
		return IRNull{}, nil
	}
	return DecodeValue(raw, hint)
}

// Key is a primary key value, one element per key field.
type Key []IRValue

// MarshalJSON implements json.Marshaler for Key.
func (k Key) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(k)
}

// UnmarshalJSON implements json.Unmarshaler for Key.
func (k *Key) UnmarshalJSON(data []byte) error {
	var arr IRArray
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*k = Key(arr)
	return nil
}

// String returns the canonical JSON form, used as a map index.
func (k Key) String() string {
	b, err := MarshalCanonical(k)
	if err != nil {
		return fmt.Sprintf("%v", []IRValue(k))
	}
	return string(b)
}

// CompareKeys orders keys element-wise with CompareValues.
func CompareKeys(a, b Key) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// KeyOf extracts the key of record under the given key fields.
func KeyOf(record IRObject, fields []string) Key {
	key := make(Key, len(fields))
	for i, f := range fields {
		key[i] = record.Get(f)
	}
	return key
}
