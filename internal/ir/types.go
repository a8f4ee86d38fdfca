package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// IR is the canonical, schema-tagged record set produced from one source.
// Two builds of the same source content differ only in Metadata.CreatedAt.
type IR struct {
	Version  string     `json:"version"`
	Source   SourceInfo `json:"source"`
	Schema   Schema     `json:"schema"`
	Data     []IRObject `json:"data"`
	Metadata Metadata   `json:"metadata"`
}

// SourceInfo describes where an IR came from. Credentials are never recorded.
type SourceInfo struct {
	Type     string `json:"type"`   // "file", "db" or "memory"
	Format   string `json:"format"` // "json", "csv", "sqlite", "mysql", "postgres"
	Location string `json:"location,omitempty"`
	Table    string `json:"table,omitempty"`
	Query    string `json:"query,omitempty"`
}

// Schema is the ordered field list plus the primary key.
type Schema struct {
	Fields     []Field  `json:"fields"`
	PrimaryKey []string `json:"primary_key"`

	// SyntheticKey marks a positional fallback key. Keys are then not stable
	// across builds, so the diff treats every change under them as low confidence.
	SyntheticKey bool `json:"synthetic_key,omitempty"`

	// Declared is true when the source supplied the schema (db table or query).
	Declared bool `json:"declared,omitempty"`
}

// Field is a named, typed column.
type Field struct {
	Name     string `json:"name"`
	Type     Type   `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// Metadata carries build bookkeeping.
type Metadata struct {
	RowCount  int       `json:"row_count"`
	CreatedAt time.Time `json:"created_at"`

	// LowConfidence is set when the primary key is synthetic.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// SyntheticKeyField is the positional key column added when no natural key exists.
const SyntheticKeyField = "_row"

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether the schema declares the named field.
func (s Schema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Names returns field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Types returns a name → type map for decode hints.
func (s Schema) Types() map[string]Type {
	m := make(map[string]Type, len(s.Fields))
	for _, f := range s.Fields {
		m[f.Name] = f.Type
	}
	return m
}

// UnmarshalJSON decodes an IR, using the schema to re-type record values
// whose JSON form is ambiguous (dates, whole floats).
func (x *IR) UnmarshalJSON(data []byte) error {
	var aux struct {
		Version  string            `json:"version"`
		Source   SourceInfo        `json:"source"`
		Schema   Schema            `json:"schema"`
		Data     []json.RawMessage `json:"data"`
		Metadata Metadata          `json:"metadata"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	hints := aux.Schema.Types()
	records := make([]IRObject, len(aux.Data))
	for i, raw := range aux.Data {
		rec, err := decodeObject(raw, hints)
		if err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}
		records[i] = rec
	}

	*x = IR{
		Version:  aux.Version,
		Source:   aux.Source,
		Schema:   aux.Schema,
		Data:     records,
		Metadata: aux.Metadata,
	}
	return nil
}

// DecodeRecord decodes one canonical record using schema type hints.
func DecodeRecord(data []byte, hints map[string]Type) (IRObject, error) {
	return decodeObject(data, hints)
}
