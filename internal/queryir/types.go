package queryir

import "github.com/roach88/audd/internal/ir"

// Query represents an abstract read query.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition on a Scan.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Scan reads records from a table.
//
// Semantics:
//
//	SELECT <columns> FROM <table> WHERE <filter> ORDER BY <order_by>
//
// Example:
//
//	Scan{
//	  Table:   "customers",
//	  Columns: []string{"id", "name"},
//	  Filter:  Equals{Field: "region", Value: ir.IRString("emea")},
//	  OrderBy: []string{"id"},
//	}
//
// An empty Columns list selects every column. An empty OrderBy orders by
// Columns; a Scan with neither is rejected by Validate.
type Scan struct {
	Table   string    // Table name, optionally schema-qualified ("sales.customers")
	Columns []string  // Selected columns in output order
	Filter  Predicate // WHERE conditions (nil = no filter)
	OrderBy []string  // Ascending sort columns
}

func (Scan) queryNode() {}

// TableColumns reads a table's declared columns in ordinal order.
//
// Compiled queries return (name, declared_type, not_null) rows.
type TableColumns struct {
	Table string
}

func (TableColumns) queryNode() {}

// TableKey reads a table's declared primary key.
//
// Compiled queries return one (name) row per key column, in key order.
type TableKey struct {
	Table string
}

func (TableKey) queryNode() {}

// Raw is a caller-supplied query, passed through unchanged.
//
// Only SELECT and WITH statements are accepted.
type Raw struct {
	SQL string
}

func (Raw) queryNode() {}

// Equals represents a column-equals-literal predicate.
//
// Semantics:
//
//	<field> = ?
//
// Value must be a non-null scalar; NULL never compares equal in SQL.
type Equals struct {
	Field string     // Column name
	Value ir.IRValue // Literal value, bound as a parameter
}

func (Equals) predicateNode() {}

// And requires all predicates to hold. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// FilterFromRecord builds an And of Equals predicates from a record, one per
// field in canonical key order. An empty record yields nil.
func FilterFromRecord(rec ir.IRObject) Predicate {
	if len(rec) == 0 {
		return nil
	}
	keys := rec.SortedKeys()
	preds := make([]Predicate, len(keys))
	for i, k := range keys {
		preds[i] = Equals{Field: k, Value: rec[k]}
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return And{Predicates: preds}
}
