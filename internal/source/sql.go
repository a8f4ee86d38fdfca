package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/queryir"
	"github.com/roach88/audd/internal/querysql"
)

// connectTimeout bounds dialing a database server.
const connectTimeout = 10 * time.Second

// sqlNormalizer reads a table or query through database/sql.
type sqlNormalizer struct {
	driver  string
	dialect querysql.Dialect
	dsn     func(Descriptor) (string, error)
}

var (
	sqliteNormalizer   = sqlNormalizer{driver: "sqlite3", dialect: querysql.SQLite, dsn: sqliteDSN}
	mysqlNormalizer    = sqlNormalizer{driver: "mysql", dialect: querysql.MySQL, dsn: mysqlDSN}
	postgresNormalizer = sqlNormalizer{driver: "pgx", dialect: querysql.Postgres, dsn: postgresDSN}
)

// sqliteDSN opens the database read-only. The file must exist; the driver
// would otherwise create an empty one.
func sqliteDSN(d Descriptor) (string, error) {
	if _, err := os.Stat(d.Location); err != nil {
		return "", errs.Wrap(errs.KindConnection, "source.sqlite", err, "open %s", d.Location)
	}
	return "file:" + d.Location + "?mode=ro&_busy_timeout=5000", nil
}

func mysqlDSN(d Descriptor) (string, error) {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = d.address()
	cfg.User = d.Username
	cfg.Passwd = d.Password
	cfg.DBName = d.Database
	cfg.ParseTime = true
	cfg.Timeout = connectTimeout
	if len(d.Params) > 0 {
		cfg.Params = make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			cfg.Params[k] = v
		}
	}
	return cfg.FormatDSN(), nil
}

func postgresDSN(d Descriptor) (string, error) {
	q := url.Values{}
	q.Set("connect_timeout", fmt.Sprintf("%d", int(connectTimeout.Seconds())))
	for k, v := range d.Params {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.address(),
		Path:     "/" + d.Database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

func (n sqlNormalizer) Read(ctx context.Context, d Descriptor) (*RawSet, error) {
	op := "source." + string(n.dialect)

	dsn, err := n.dsn(d)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(n.driver, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnection, op, err, "open %s", d)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, errs.FromContext(op, ctx.Err())
		}
		return nil, errs.Wrap(errs.KindConnection, op, err, "connect %s", d)
	}

	compiler, err := querysql.NewSQLCompiler(n.dialect)
	if err != nil {
		return nil, err
	}
	r := &sqlReader{db: db, compiler: compiler, op: op}

	if d.Table != "" {
		return r.readTable(ctx, d)
	}
	return r.readQuery(ctx, queryir.Raw{SQL: d.Query})
}

type sqlReader struct {
	db       *sql.DB
	compiler *querysql.SQLCompiler
	op       string
}

func (r *sqlReader) query(ctx context.Context, q queryir.Query) (*sql.Rows, error) {
	stmt, params, err := r.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.FromContext(r.op, ctx.Err())
		}
		return nil, errs.Wrap(errs.KindIO, r.op, err, "query")
	}
	return rows, nil
}

func (r *sqlReader) readTable(ctx context.Context, d Descriptor) (*RawSet, error) {
	cols, err := r.tableColumns(ctx, d.Table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, errs.InvalidInput(r.op, "table %q not found or has no columns", d.Table)
	}
	key, err := r.tableKey(ctx, d.Table)
	if err != nil {
		return nil, err
	}

	filter, err := d.filter()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	scan := queryir.Scan{
		Table:   d.Table,
		Columns: names,
		Filter:  queryir.FilterFromRecord(filter),
		OrderBy: key,
	}

	rows, err := r.query(ctx, scan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	data, err := r.scanRows(ctx, rows, names)
	if err != nil {
		return nil, err
	}
	return &RawSet{Columns: cols, Declared: true, PrimaryKey: key, Rows: data}, nil
}

func (r *sqlReader) readQuery(ctx context.Context, q queryir.Raw) (*RawSet, error) {
	rows, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, r.op, err, "column types")
	}
	cols := make([]Column, len(types))
	names := make([]string, len(types))
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		cols[i] = Column{
			Name:     ct.Name(),
			Type:     querysql.CanonicalType(r.compiler.Dialect(), ct.DatabaseTypeName()),
			Nullable: nullable || !ok,
		}
		names[i] = ct.Name()
	}

	data, err := r.scanRows(ctx, rows, names)
	if err != nil {
		return nil, err
	}
	return &RawSet{Columns: cols, Declared: true, Rows: data}, nil
}

func (r *sqlReader) tableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := r.query(ctx, queryir.TableColumns{Table: table})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, declared string
		var notNull bool
		if err := rows.Scan(&name, &declared, &notNull); err != nil {
			return nil, errs.Wrap(errs.KindIO, r.op, err, "scan column metadata")
		}
		cols = append(cols, Column{
			Name:     name,
			Type:     querysql.CanonicalType(r.compiler.Dialect(), declared),
			Nullable: !notNull,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindIO, r.op, err, "read column metadata")
	}
	return cols, nil
}

func (r *sqlReader) tableKey(ctx context.Context, table string) ([]string, error) {
	rows, err := r.query(ctx, queryir.TableKey{Table: table})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var key []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.Wrap(errs.KindIO, r.op, err, "scan key metadata")
		}
		key = append(key, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindIO, r.op, err, "read key metadata")
	}
	return key, nil
}

// scanRows reads every row as ordered cells.
func (r *sqlReader) scanRows(ctx context.Context, rows *sql.Rows, names []string) ([]RawRow, error) {
	var out []RawRow
	dest := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range dest {
		ptrs[i] = &dest[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errs.Wrap(errs.KindIO, r.op, err, "scan row %d", len(out)+1)
		}
		row := make(RawRow, len(names))
		for i, name := range names {
			row[i] = Cell{Name: name, Value: sqlValue(dest[i])}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, errs.FromContext(r.op, ctx.Err())
		}
		return nil, errs.Wrap(errs.KindIO, r.op, err, "read rows")
	}
	return out, nil
}

// sqlValue normalizes driver values. Text protocols hand back []byte.
func sqlValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case int8:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		return val.UTC()
	case fmt.Stringer:
		return val.String()
	default:
		return v
	}
}

// Values converts a record's cells to IR values without type hints.
func Values(row RawRow) (ir.IRObject, error) {
	obj := make(ir.IRObject, len(row))
	for _, c := range row {
		v, err := ir.FromGo(c.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", c.Name, err)
		}
		obj[c.Name] = v
	}
	return obj, nil
}
