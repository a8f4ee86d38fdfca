package source

import "github.com/roach88/audd/internal/ir"

// Cell is one named value of a raw row.
//
// Values are loosely typed Go values: nil, bool, string, json.Number, int64,
// float64, time.Time, []byte, []any or map[string]any.
type Cell struct {
	Name  string
	Value any
}

// RawRow is a record whose fields keep their first-seen order.
type RawRow []Cell

// Get returns the named value.
func (r RawRow) Get(name string) (any, bool) {
	for _, c := range r {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

// Set replaces the named value, appending it when absent.
func (r *RawRow) Set(name string, value any) {
	for i, c := range *r {
		if c.Name == name {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Cell{Name: name, Value: value})
}

// Names returns field names in order.
func (r RawRow) Names() []string {
	names := make([]string, len(r))
	for i, c := range r {
		names[i] = c.Name
	}
	return names
}

// Column is a declared column. An empty Type means the source declared no
// usable type and the column must be inferred.
type Column struct {
	Name     string
	Type     ir.Type
	Nullable bool
}

// RawSet is everything a Normalizer read from a source.
type RawSet struct {
	Info ir.SourceInfo

	// Columns is the declared column list (database sources) or the header
	// (CSV); nil for schemaless sources.
	Columns []Column

	// Declared is true when Columns carries types from the source itself.
	Declared bool

	// PrimaryKey is the declared primary key, if any.
	PrimaryKey []string

	Rows []RawRow

	// Textual marks sources whose cells are all strings (CSV); the builder
	// classifies such cells by their text.
	Textual bool
}
