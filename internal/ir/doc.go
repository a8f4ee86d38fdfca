// Package ir provides the canonical intermediate representation shared by
// every reconciliation stage.
//
// It holds the four pipeline entities (IR, Diff, Plan, ApplyResult), the
// sealed IRValue family used for record data, canonical JSON serialization and
// content hashing. ir imports only internal/errs; every other internal package
// imports ir.
//
// Key design constraints:
//   - Entities are immutable once produced; stages build new values.
//   - Every entity carries a "major.minor" version; decoders reject unknown majors.
//   - All JSON tags use snake_case.
//   - Floats must be finite; NaN and Inf never enter an IR.
package ir
