// Package source reads raw records from heterogeneous sources.
//
// A Descriptor names one source: a JSON or CSV file, a SQLite, MySQL or
// PostgreSQL table or query, or records held in memory. Each Kind has one
// Normalizer that turns the source into a RawSet: ordered rows of loosely
// typed cells plus, for database sources, the declared columns and primary
// key. Typing the cells is left to internal/build.
//
// Descriptors are validated before any I/O. Errors are classified with
// internal/errs kinds (unsupported_source, unsupported_format, invalid_input,
// connection_failure, io_failure, parse_failure).
package source
