package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/audd/internal/ir"
)

func TestCanonicalType(t *testing.T) {
	tests := []struct {
		dialect  Dialect
		declared string
		want     ir.Type
	}{
		{SQLite, "INTEGER", ir.TypeInteger},
		{SQLite, "VARCHAR(20)", ir.TypeString},
		{SQLite, "REAL", ir.TypeFloat},
		{SQLite, "", ""},
		{SQLite, "BLOB", ""},
		{SQLite, "NUMERIC", ir.TypeFloat},
		{SQLite, "BOOLEAN", ir.TypeBoolean},
		{SQLite, "DATE", ir.TypeDate},
		{SQLite, "DATETIME", ir.TypeDate},
		{MySQL, "tinyint(1)", ir.TypeBoolean},
		{MySQL, "int(11)", ir.TypeInteger},
		{MySQL, "decimal(10,2)", ir.TypeFloat},
		{MySQL, "varchar(255)", ir.TypeString},
		{MySQL, "geometry", ir.TypeString},
		{Postgres, "character varying", ir.TypeString},
		{Postgres, "double precision", ir.TypeFloat},
		{Postgres, "timestamp with time zone", ir.TypeDate},
		{Postgres, "time without time zone", ir.TypeString},
		{Postgres, "interval", ir.TypeString},
		{Postgres, "point", ir.TypeString},
		{Postgres, "uuid", ir.TypeString},
		{Postgres, "bigint", ir.TypeInteger},
	}
	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalType(tt.dialect, tt.declared))
		})
	}
}
