package querysql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/queryir"
)

// Dialect selects identifier quoting, placeholder style and catalog queries.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// SQLCompiler compiles QueryIR to parameterized SQL for one dialect.
//
// Every Scan includes an ORDER BY for deterministic row order.
// All values are parameterized, never interpolated.
type SQLCompiler struct {
	dialect Dialect
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(d Dialect) (*SQLCompiler, error) {
	switch d {
	case SQLite, MySQL, Postgres:
		return &SQLCompiler{dialect: d}, nil
	default:
		return nil, errs.New(errs.KindUnsupportedFormat, "querysql", "unsupported dialect %q", d)
	}
}

// Dialect returns the compiler's dialect.
func (c *SQLCompiler) Dialect() Dialect {
	return c.dialect
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.OK {
		return "", nil, errs.New(errs.KindInvalidInput, "querysql", "%s", strings.Join(res.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Scan:
		return c.compileScan(query)
	case *queryir.Scan:
		return c.compileScan(*query)
	case queryir.TableColumns:
		return c.compileColumns(query.Table)
	case *queryir.TableColumns:
		return c.compileColumns(query.Table)
	case queryir.TableKey:
		return c.compileKey(query.Table)
	case *queryir.TableKey:
		return c.compileKey(query.Table)
	case queryir.Raw:
		return strings.TrimSpace(query.SQL), nil, nil
	case *queryir.Raw:
		return strings.TrimSpace(query.SQL), nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

// compileScan compiles a queryir.Scan to SQL.
func (c *SQLCompiler) compileScan(q queryir.Scan) (string, []any, error) {
	selectClause := "*"
	if len(q.Columns) > 0 {
		selectClause = c.quoteList(q.Columns)
	}

	var whereClause string
	var params []any
	if q.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(q.Filter, 0)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		whereClause = " WHERE " + filterSQL
		params = filterParams
	}

	order := q.OrderBy
	if len(order) == 0 {
		order = q.Columns
	}
	orderByClause := " ORDER BY " + c.orderList(order)

	sql := fmt.Sprintf("SELECT %s FROM %s%s%s",
		selectClause,
		c.QuoteIdent(q.Table),
		whereClause,
		orderByClause)

	return sql, params, nil
}

// compileColumns returns the catalog query yielding (name, declared_type, not_null).
func (c *SQLCompiler) compileColumns(table string) (string, []any, error) {
	switch c.dialect {
	case SQLite:
		return `SELECT name, type, "notnull" FROM pragma_table_info(?) ORDER BY cid`, []any{table}, nil
	case MySQL:
		schema, name := splitQualified(table)
		if schema == "" {
			return "SELECT column_name, column_type, is_nullable = 'NO' FROM information_schema.columns " +
				"WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position", []any{name}, nil
		}
		return "SELECT column_name, column_type, is_nullable = 'NO' FROM information_schema.columns " +
			"WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position", []any{schema, name}, nil
	default:
		schema, name := splitQualified(table)
		if schema == "" {
			return "SELECT column_name, data_type, is_nullable = 'NO' FROM information_schema.columns " +
				"WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position", []any{name}, nil
		}
		return "SELECT column_name, data_type, is_nullable = 'NO' FROM information_schema.columns " +
			"WHERE table_schema = $1 AND table_name = $2 ORDER BY ordinal_position", []any{schema, name}, nil
	}
}

// compileKey returns the catalog query yielding primary key column names in key order.
func (c *SQLCompiler) compileKey(table string) (string, []any, error) {
	switch c.dialect {
	case SQLite:
		return "SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk", []any{table}, nil
	case MySQL:
		schema, name := splitQualified(table)
		if schema == "" {
			return "SELECT column_name FROM information_schema.key_column_usage " +
				"WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY' ORDER BY ordinal_position", []any{name}, nil
		}
		return "SELECT column_name FROM information_schema.key_column_usage " +
			"WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY' ORDER BY ordinal_position", []any{schema, name}, nil
	default:
		return "SELECT a.attname FROM pg_index i " +
			"JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey) " +
			"WHERE i.indrelid = $1::regclass AND i.indisprimary " +
			"ORDER BY array_position(i.indkey::int2[], a.attnum)", []any{c.QuoteIdent(table)}, nil
	}
}

// compilePredicate compiles a predicate to a WHERE fragment. n is the number
// of parameters already bound, used for numbered placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, n int) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(pred, n)
	case *queryir.Equals:
		return c.compileEquals(*pred, n)
	case queryir.And:
		return c.compileAnd(pred, n)
	case *queryir.And:
		return c.compileAnd(*pred, n)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compiles an Equals predicate to "field = ?".
func (c *SQLCompiler) compileEquals(eq queryir.Equals, n int) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	sql := fmt.Sprintf("%s = %s", c.QuoteIdent(eq.Field), c.placeholder(n+1))
	return sql, []any{param}, nil
}

// compileAnd compiles an And predicate to conjunction with AND.
func (c *SQLCompiler) compileAnd(and queryir.And, n int) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil // Always true (vacuous truth)
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range and.Predicates {
		sql, params, err := c.compilePredicate(pred, n+len(allParams))
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, sql)
		allParams = append(allParams, params...)
	}

	return "(" + strings.Join(sqlParts, " AND ") + ")", allParams, nil
}

// QuoteIdent quotes a bare or schema-qualified identifier for the dialect.
func (c *SQLCompiler) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if c.dialect == MySQL {
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		} else {
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

func (c *SQLCompiler) quoteList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = c.QuoteIdent(col)
	}
	return strings.Join(quoted, ", ")
}

// orderList renders ascending sort columns. SQLite text ordering uses
// COLLATE BINARY so the order is stable across versions.
func (c *SQLCompiler) orderList(cols []string) string {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = c.QuoteIdent(col)
		if c.dialect == SQLite {
			parts[i] += " COLLATE BINARY"
		}
		parts[i] += " ASC"
	}
	return strings.Join(parts, ", ")
}

func (c *SQLCompiler) placeholder(i int) string {
	if c.dialect == Postgres {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

func splitQualified(table string) (schema, name string) {
	if s, n, ok := strings.Cut(table, "."); ok {
		return s, n
	}
	return "", table
}

// irValueToParam converts an ir.IRValue to a Go native type for a SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRFloat:
		return float64(val), nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRDate:
		if val.DateOnly() {
			return val.Time().Format(time.DateOnly), nil
		}
		return val.Time(), nil
	case ir.IRNull, nil:
		return nil, fmt.Errorf("NULL cannot be used as an equality parameter")
	default:
		return nil, fmt.Errorf("unsupported IRValue type for SQL parameter: %T", v)
	}
}
