package queryir

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/audd/internal/ir"
)

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	// OK is true when the query can be compiled for every dialect.
	OK bool

	// Errors lists the problems found. Empty when OK is true.
	Errors []string
}

// identPattern matches a bare SQL identifier. Identifiers are quoted when
// compiled, but are still restricted so catalog lookups and error messages
// stay unambiguous.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidIdentifier reports whether name is a bare or schema-qualified
// identifier ("customers", "sales.customers").
func ValidIdentifier(name string) bool {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return false
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return false
		}
	}
	return true
}

// Validate checks a query before compilation.
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		errors: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		OK:     len(v.errors) == 0,
		Errors: v.errors,
	}
}

// validator accumulates errors during traversal.
type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	if q == nil {
		v.addError("nil query")
		return
	}

	switch query := q.(type) {
	case Scan:
		v.validateScan(query)
	case *Scan:
		v.validateScan(*query)
	case TableColumns:
		v.validateTable(query.Table)
	case *TableColumns:
		v.validateTable(query.Table)
	case TableKey:
		v.validateTable(query.Table)
	case *TableKey:
		v.validateTable(query.Table)
	case Raw:
		v.validateRaw(query)
	case *Raw:
		v.validateRaw(*query)
	default:
		v.addError("unknown query type: %T", q)
	}
}

func (v *validator) validateTable(table string) {
	if table == "" {
		v.addError("table name is required")
		return
	}
	if !ValidIdentifier(table) {
		v.addError("invalid table name %q", table)
	}
}

func (v *validator) validateColumn(kind, name string) {
	if !identPattern.MatchString(name) {
		v.addError("invalid %s column %q", kind, name)
	}
}

func (v *validator) validateScan(scan Scan) {
	v.validateTable(scan.Table)
	for _, c := range scan.Columns {
		v.validateColumn("selected", c)
	}
	for _, c := range scan.OrderBy {
		v.validateColumn("order", c)
	}
	if len(scan.Columns) == 0 && len(scan.OrderBy) == 0 {
		v.addError("scan of %q has no columns to order by", scan.Table)
	}
	if scan.Filter != nil {
		v.validatePredicate(scan.Filter)
	}
}

func (v *validator) validateRaw(raw Raw) {
	sql := strings.TrimSpace(raw.SQL)
	if sql == "" {
		v.addError("query is empty")
		return
	}
	head := strings.Fields(sql)[0]
	switch strings.ToUpper(head) {
	case "SELECT", "WITH":
	default:
		v.addError("only SELECT or WITH queries are allowed, got %q", head)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addError("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	v.validateColumn("filter", eq.Field)
	switch ir.TypeOf(eq.Value) {
	case ir.TypeNull:
		v.addError("field %q compared to NULL", eq.Field)
	case ir.TypeArray, ir.TypeObject:
		v.addError("field %q compared to a non-scalar value", eq.Field)
	}
}

func (v *validator) validateAnd(and And) {
	for _, sub := range and.Predicates {
		v.validatePredicate(sub)
	}
}
