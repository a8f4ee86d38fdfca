package apply

import (
	"context"

	"github.com/roach88/audd/internal/ir"
)

// Op is a record-level mutation.
type Op string

const (
	OpUpsert Op = "upsert" // the record must exist with exactly these values
	OpDelete Op = "delete" // the record must not exist
	OpSet    Op = "set"    // one field of an existing record takes a value
)

// Mutation is a record-level change. Key is expressed in the target's
// primary key fields.
type Mutation struct {
	Op     Op
	Key    ir.Key
	Field  string      // OpSet
	Value  ir.IRValue  // OpSet
	Record ir.IRObject // OpUpsert
}

// SchemaMutation declares a field with a type, or drops it when Drop is set.
// Dropping a field removes its values from every record. Declaring a type
// also sets Values on the records that exist, then converts every stored
// value of the field to the type (see Retype); a value that does not fit
// fails the mutation without effect.
type SchemaMutation struct {
	Field  string
	Type   ir.Type
	Drop   bool
	Values []FieldValue
}

// FieldValue is one record's value of the field a SchemaMutation declares.
type FieldValue struct {
	Key   ir.Key
	Value ir.IRValue
}

// Target is the dataset a plan is applied to. Each Mutate and MutateSchema
// call must be atomic: it either takes effect completely or not at all.
// Concurrent applies touching the same records must be serialized by the
// target; the applier holds no locks.
type Target interface {
	Schema(ctx context.Context) (ir.Schema, error)
	Lookup(ctx context.Context, key ir.Key) (ir.IRObject, bool, error)
	Mutate(ctx context.Context, m Mutation) error
	MutateSchema(ctx context.Context, m SchemaMutation) error

	// CheckSchema reports the error MutateSchema would return for m,
	// without changing anything.
	CheckSchema(ctx context.Context, m SchemaMutation) error
}

// BackupStore snapshots records before they are mutated. Nil keys means the
// whole dataset. It returns the snapshot id and the number of records saved.
type BackupStore interface {
	Snapshot(ctx context.Context, keys []ir.Key) (id string, records int, err error)
}
