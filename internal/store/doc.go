// Package store provides a SQLite-backed reconciliation target.
//
// A store holds named datasets, each an IR's schema and records. A Dataset
// handle implements apply.Target and apply.BackupStore, so plans can be
// applied to it directly:
//
//   - datasets, dataset_fields: schema and source metadata
//   - records: one row per record, canonical JSON keyed by its primary key
//   - backups, backup_records: snapshots taken before an apply mutates
//   - apply_log: every apply outcome, keyed by plan id
//
// Each mutation runs in its own transaction, so a record is never left
// half-written. Record values are re-typed on read with the dataset schema,
// since dates travel through JSON as strings.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
