// Package queryir describes the read queries a database source issues,
// independent of SQL dialect.
//
// QueryIR is the boundary between the db normalizers and the dialect
// compilers in internal/querysql:
//
//	[source descriptor] → [Query IR] → [querysql: sqlite | mysql | postgres]
//
// QUERY NODES:
//
//   - Scan(table, columns, filter, order_by) reads a table's records
//   - TableColumns(table) reads declared column names, types, nullability
//   - TableKey(table) reads the declared primary key columns in key order
//   - Raw(sql) passes a caller-supplied read-only query through untouched
//
// Predicates are limited to Equals and And; values are ir.IRValue scalars
// and are always bound as parameters, never interpolated.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed with marker methods so every compiler can
// switch exhaustively over the node types.
//
// DETERMINISM:
//
// A Scan always compiles with an ORDER BY: the explicit OrderBy columns, or
// every selected column in declaration order when none is given. Two reads of
// the same table content therefore return rows in the same order.
package queryir
