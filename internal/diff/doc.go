// Package diff compares two IRs and reports their differences.
//
// Three strategies are supported:
//
//   - structural: schema differences only (fields added, removed or retyped)
//   - semantic: whole records added or removed, plus per-field comparison of
//     records present on both sides, judged by a per-type similarity score
//   - hybrid: both of the above; a field reported as type_changed does not
//     also produce one row change per record holding the other type
//
// A field value is reported as modified when its similarity falls below the
// threshold. Values of incompatible types are always modified with
// confidence 1.0. The comparators are described in similarity.go and are
// versioned by ComparatorVersion, which every Diff records.
//
// Compare is pure: it never mutates its inputs and may run concurrently over
// shared IRs.
package diff
