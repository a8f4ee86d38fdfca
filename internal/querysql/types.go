package querysql

import (
	"strings"

	"github.com/roach88/audd/internal/ir"
)

// CanonicalType maps a declared column type to a canonical IR type.
//
// It returns "" when the declared type says nothing useful (SQLite columns
// without a type, BLOB affinity); the builder then infers the column from
// its values.
func CanonicalType(d Dialect, declared string) ir.Type {
	t := strings.ToLower(strings.TrimSpace(declared))
	if t == "" {
		return ""
	}
	base, _, _ := strings.Cut(t, "(")
	base = strings.TrimSpace(base)

	switch {
	case d == MySQL && (t == "tinyint(1)" || t == "bit(1)"):
		return ir.TypeBoolean
	case base == "bool" || base == "boolean":
		return ir.TypeBoolean
	case base == "interval" || base == "point" || base == "polygon" || base == "linestring":
		return ir.TypeString
	case strings.Contains(base, "int") || base == "serial" || base == "bigserial" || base == "smallserial":
		return ir.TypeInteger
	case base == "date" || strings.HasPrefix(base, "timestamp") || base == "datetime":
		return ir.TypeDate
	case strings.Contains(base, "real") || strings.Contains(base, "floa") || strings.Contains(base, "doub") ||
		base == "numeric" || base == "decimal" || base == "money":
		return ir.TypeFloat
	case strings.Contains(base, "char") || strings.Contains(base, "text") || strings.Contains(base, "clob") ||
		base == "uuid" || base == "enum" || base == "set" || base == "time" || strings.HasPrefix(base, "time ") ||
		base == "json" || base == "jsonb" || base == "xml":
		return ir.TypeString
	}

	if d == SQLite && strings.Contains(base, "blob") {
		return ""
	}
	if d == SQLite {
		// NUMERIC affinity holds integers or reals; let the values decide.
		return ""
	}
	return ir.TypeString
}
