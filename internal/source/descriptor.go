package source

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/queryir"
)

// Kind is the tagged variant of a source descriptor.
type Kind string

const (
	KindFileJSON Kind = "file-json"
	KindFileCSV  Kind = "file-csv"
	KindSQLite   Kind = "db-sqlite"
	KindMySQL    Kind = "db-mysql"
	KindPostgres Kind = "db-postgres"
	KindMemory   Kind = "memory"
)

// Default server ports.
const (
	defaultMySQL    = 3306
	defaultPostgres = 5432
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindFileJSON, KindFileCSV, KindSQLite, KindMySQL, KindPostgres, KindMemory}

var formatsByType = map[string]map[string]Kind{
	"file":   {"json": KindFileJSON, "csv": KindFileCSV},
	"db":     {"sqlite": KindSQLite, "mysql": KindMySQL, "postgres": KindPostgres, "postgresql": KindPostgres},
	"memory": {"": KindMemory, "json": KindMemory, "memory": KindMemory},
}

// ParseKind maps a (type, format) pair such as ("file", "csv") to a Kind.
// An unknown type is unsupported_source; an unknown format for a known type
// is unsupported_format.
func ParseKind(typ, format string) (Kind, error) {
	formats, ok := formatsByType[strings.ToLower(typ)]
	if !ok {
		return "", errs.New(errs.KindUnsupportedSource, "source", "unsupported source type %q", typ)
	}
	k, ok := formats[strings.ToLower(format)]
	if !ok {
		return "", errs.New(errs.KindUnsupportedFormat, "source", "unsupported %s format %q", typ, format)
	}
	return k, nil
}

// Type returns the source family: "file", "db" or "memory".
func (k Kind) Type() string {
	t, _, _ := strings.Cut(string(k), "-")
	return t
}

// Format returns the format within the family ("csv", "postgres", ...).
func (k Kind) Format() string {
	if k == KindMemory {
		return "memory"
	}
	_, f, _ := strings.Cut(string(k), "-")
	return f
}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Descriptor identifies one source. Which fields apply depends on Kind.
type Descriptor struct {
	Kind Kind `yaml:"kind" json:"kind" mapstructure:"kind"`

	// Location is the file path for file sources and SQLite databases.
	Location string `yaml:"location,omitempty" json:"location,omitempty" mapstructure:"location"`

	// Table and Query are mutually exclusive for database sources.
	Table string `yaml:"table,omitempty" json:"table,omitempty" mapstructure:"table"`
	Query string `yaml:"query,omitempty" json:"query,omitempty" mapstructure:"query"`

	// Filter restricts a table read to rows whose columns equal the given values.
	Filter map[string]any `yaml:"filter,omitempty" json:"filter,omitempty" mapstructure:"filter"`

	Host     string            `yaml:"host,omitempty" json:"host,omitempty" mapstructure:"host"`
	Port     int               `yaml:"port,omitempty" json:"port,omitempty" mapstructure:"port"`
	Database string            `yaml:"database,omitempty" json:"database,omitempty" mapstructure:"database"`
	Username string            `yaml:"username,omitempty" json:"username,omitempty" mapstructure:"username"`
	Password string            `yaml:"password,omitempty" json:"-" mapstructure:"password"`
	Params   map[string]string `yaml:"params,omitempty" json:"params,omitempty" mapstructure:"params"`

	// CSV options. Encoding is an IANA charset name; empty means UTF-8.
	Encoding  string `yaml:"encoding,omitempty" json:"encoding,omitempty" mapstructure:"encoding"`
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty" mapstructure:"delimiter"`
	NoHeader  bool   `yaml:"no_header,omitempty" json:"no_header,omitempty" mapstructure:"no_header"`

	// Records holds the rows of a memory source.
	Records []RawRow `yaml:"-" json:"-" mapstructure:"-"`
}

// Validate checks the descriptor without touching the source.
func (d Descriptor) Validate() error {
	const op = "source.validate"

	if d.Kind == "" {
		return errs.InvalidInput(op, "source kind is required")
	}
	if !d.Kind.Known() {
		return errs.New(errs.KindUnsupportedSource, op, "unsupported source kind %q", d.Kind)
	}

	switch d.Kind {
	case KindFileJSON, KindFileCSV:
		if d.Location == "" {
			return errs.InvalidInput(op, "%s source requires a location", d.Kind)
		}
		if d.Kind == KindFileCSV {
			if d.Delimiter != "" && utf8.RuneCountInString(d.Delimiter) != 1 {
				return errs.InvalidInput(op, "delimiter must be a single character, got %q", d.Delimiter)
			}
			if d.Delimiter == "\"" || d.Delimiter == "\n" || d.Delimiter == "\r" {
				return errs.InvalidInput(op, "invalid delimiter %q", d.Delimiter)
			}
			if _, err := lookupEncoding(d.Encoding); err != nil {
				return err
			}
		}
	case KindSQLite, KindMySQL, KindPostgres:
		if d.Kind == KindSQLite {
			if d.Location == "" {
				return errs.InvalidInput(op, "sqlite source requires a location")
			}
		} else {
			var missing []string
			if d.Host == "" {
				missing = append(missing, "host")
			}
			if d.Database == "" {
				missing = append(missing, "database")
			}
			if d.Username == "" {
				missing = append(missing, "username")
			}
			if len(missing) > 0 {
				return errs.InvalidInput(op, "%s source missing %s", d.Kind, strings.Join(missing, ", "))
			}
			if d.Port < 0 || d.Port > 65535 {
				return errs.InvalidInput(op, "port %d out of range", d.Port)
			}
		}
		if (d.Table == "") == (d.Query == "") {
			return errs.InvalidInput(op, "%s source requires exactly one of table or query", d.Kind)
		}
		if d.Table != "" && !queryir.ValidIdentifier(d.Table) {
			return errs.InvalidInput(op, "invalid table name %q", d.Table)
		}
		if d.Query != "" {
			if res := queryir.Validate(queryir.Raw{SQL: d.Query}); !res.OK {
				return errs.InvalidInput(op, "%s", strings.Join(res.Errors, "; "))
			}
			if len(d.Filter) > 0 {
				return errs.InvalidInput(op, "filter applies to table sources only")
			}
		}
		if _, err := d.filter(); err != nil {
			return err
		}
	}
	return nil
}

// filter converts Filter to a record of IR values.
func (d Descriptor) filter() (ir.IRObject, error) {
	if len(d.Filter) == 0 {
		return nil, nil
	}
	rec := make(ir.IRObject, len(d.Filter))
	for k, v := range d.Filter {
		val, err := ir.FromGo(v)
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "source.validate", err, "filter %q", k)
		}
		rec[k] = val
	}
	if res := queryir.Validate(queryir.Scan{Table: "t", Columns: []string{"c"}, Filter: queryir.FilterFromRecord(rec)}); !res.OK {
		return nil, errs.InvalidInput("source.validate", "%s", strings.Join(res.Errors, "; "))
	}
	return rec, nil
}

// port returns the configured port or the kind's default.
func (d Descriptor) port() int {
	if d.Port != 0 {
		return d.Port
	}
	switch d.Kind {
	case KindMySQL:
		return defaultMySQL
	case KindPostgres:
		return defaultPostgres
	}
	return 0
}

// address returns host:port for server databases.
func (d Descriptor) address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.port()))
}

// Info describes the source for the IR. Credentials are never included.
func (d Descriptor) Info() ir.SourceInfo {
	info := ir.SourceInfo{
		Type:   d.Kind.Type(),
		Format: d.Kind.Format(),
		Table:  d.Table,
		Query:  d.Query,
	}
	switch d.Kind {
	case KindMySQL, KindPostgres:
		info.Location = fmt.Sprintf("%s/%s", d.address(), d.Database)
	default:
		info.Location = d.Location
	}
	return info
}

// String renders the descriptor for logs, without credentials.
func (d Descriptor) String() string {
	info := d.Info()
	s := string(d.Kind)
	if info.Location != "" {
		s += " " + info.Location
	}
	if info.Table != "" {
		s += " table=" + info.Table
	}
	if info.Query != "" {
		s += " query"
	}
	return s
}
