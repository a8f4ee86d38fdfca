// Package build turns raw source records into an IR.
//
// Build reads a source through internal/source, settles the schema (declared
// by the source or inferred from a bounded sample), coerces every record to
// it, and picks a primary key: the declared one, the smallest unique field
// combination, or a synthetic positional key as a last resort.
//
// Type inference takes the most specific type every sampled value fits:
//
//	integer + float  → float
//	null + T         → T (nullable)
//	all null         → null
//	any other mix    → string
//
// Build has no side effects besides reading the source. Apart from
// metadata.created_at, two builds of the same content are identical.
package build
