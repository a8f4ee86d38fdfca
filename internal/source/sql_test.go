package source

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// seedSQLite creates a database file with a customers table.
func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crm.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE customers (
			region TEXT NOT NULL,
			id INTEGER NOT NULL,
			name VARCHAR(40),
			balance REAL,
			note,
			PRIMARY KEY (region, id)
		)`,
		`INSERT INTO customers VALUES ('emea', 2, 'Bob', 3.5, 'x')`,
		`INSERT INTO customers VALUES ('emea', 1, 'Ann', NULL, 7)`,
		`INSERT INTO customers VALUES ('apac', 9, 'Cy', 1, NULL)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
	return path
}

func TestReadSQLiteTable(t *testing.T) {
	path := seedSQLite(t)

	set, err := Read(context.Background(), Descriptor{Kind: KindSQLite, Location: path, Table: "customers"})
	require.NoError(t, err)

	assert.True(t, set.Declared)
	assert.Equal(t, []string{"region", "id"}, set.PrimaryKey)
	assert.Equal(t, []Column{
		{Name: "region", Type: ir.TypeString},
		{Name: "id", Type: ir.TypeInteger},
		{Name: "name", Type: ir.TypeString, Nullable: true},
		{Name: "balance", Type: ir.TypeFloat, Nullable: true},
		{Name: "note", Type: "", Nullable: true},
	}, set.Columns)

	// Rows come back in primary key order.
	require.Len(t, set.Rows, 3)
	first, _ := set.Rows[0].Get("region")
	assert.Equal(t, "apac", first)
	id, _ := set.Rows[1].Get("id")
	assert.Equal(t, int64(1), id)
	balance, _ := set.Rows[1].Get("balance")
	assert.Nil(t, balance)
	assert.Equal(t, "db", set.Info.Type)
	assert.Equal(t, "sqlite", set.Info.Format)
}

func TestReadSQLiteTableWithFilter(t *testing.T) {
	path := seedSQLite(t)

	set, err := Read(context.Background(), Descriptor{
		Kind:     KindSQLite,
		Location: path,
		Table:    "customers",
		Filter:   map[string]any{"region": "emea"},
	})
	require.NoError(t, err)
	require.Len(t, set.Rows, 2)
	for _, row := range set.Rows {
		region, _ := row.Get("region")
		assert.Equal(t, "emea", region)
	}
}

func TestReadSQLiteQuery(t *testing.T) {
	path := seedSQLite(t)

	set, err := Read(context.Background(), Descriptor{
		Kind:     KindSQLite,
		Location: path,
		Query:    "SELECT id, name FROM customers WHERE region = 'emea' ORDER BY id",
	})
	require.NoError(t, err)

	assert.Empty(t, set.PrimaryKey)
	require.Len(t, set.Columns, 2)
	assert.Equal(t, "id", set.Columns[0].Name)
	assert.Equal(t, ir.TypeInteger, set.Columns[0].Type)
	require.Len(t, set.Rows, 2)
	name, _ := set.Rows[0].Get("name")
	assert.Equal(t, "Ann", name)
}

func TestReadSQLiteMissingTable(t *testing.T) {
	path := seedSQLite(t)

	_, err := Read(context.Background(), Descriptor{Kind: KindSQLite, Location: path, Table: "ghosts"})
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}

func TestReadSQLiteMissingFileIsConnectionFailure(t *testing.T) {
	_, err := Read(context.Background(), Descriptor{
		Kind:     KindSQLite,
		Location: filepath.Join(t.TempDir(), "missing.db"),
		Table:    "customers",
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindConnection, errs.KindOf(err))
}

func TestReadMySQLUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("dials the network")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Read(ctx, Descriptor{Kind: KindMySQL, Host: "127.0.0.1", Port: 1, Database: "d", Username: "u", Table: "t"})
	require.Error(t, err)
	kind := errs.KindOf(err)
	assert.True(t, kind == errs.KindConnection || kind == errs.KindTimeout, "got %s", kind)
}

func TestServerDSNs(t *testing.T) {
	d := Descriptor{Kind: KindMySQL, Host: "db", Database: "shop", Username: "app", Password: "p@ss", Table: "orders"}
	dsn, err := mysqlDSN(d)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "app:p@ss@tcp(db:3306)/shop?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")

	d = Descriptor{Kind: KindPostgres, Host: "db", Port: 6543, Database: "crm", Username: "app", Password: "s/cret", Params: map[string]string{"sslmode": "disable"}}
	dsn, err = postgresDSN(d)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "postgres://app:s%2Fcret@db:6543/crm?"), dsn)
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "connect_timeout=10")
}

func TestReadMemory(t *testing.T) {
	rows := []RawRow{
		{{Name: "id", Value: int64(1)}, {Name: "name", Value: "Ann"}},
	}
	set, err := Read(context.Background(), Descriptor{Kind: KindMemory, Records: rows})
	require.NoError(t, err)
	require.Len(t, set.Rows, 1)

	// The set does not alias the caller's rows.
	set.Rows[0][1].Value = "changed"
	assert.Equal(t, "Ann", rows[0][1].Value)
}

func TestValues(t *testing.T) {
	obj, err := Values(RawRow{{Name: "a", Value: int64(1)}, {Name: "b", Value: nil}})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"a": ir.IRInt(1), "b": ir.IRNull{}}, obj)
}
