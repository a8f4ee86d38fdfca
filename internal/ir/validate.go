package ir

import (
	"fmt"
)

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult is the outcome of ValidateIR.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// ValidateIR checks structural and semantic rules of an IR.
// Returns all errors (not fail-fast).
func ValidateIR(x *IR) ValidationResult {
	verrs := validateIR(x)
	res := ValidationResult{OK: len(verrs) == 0, Errors: make([]string, len(verrs))}
	for i, e := range verrs {
		res.Errors[i] = e.Error()
	}
	return res
}

func validateIR(x *IR) []ValidationError {
	var verrs []ValidationError
	add := func(field, format string, args ...any) {
		verrs = append(verrs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := CheckVersion("ir", x.Version); err != nil {
		add("version", "unsupported version %q", x.Version)
	}

	if len(x.Schema.Fields) == 0 {
		add("schema.fields", "at least one field is required")
	}

	fields := make(map[string]Field, len(x.Schema.Fields))
	for i, f := range x.Schema.Fields {
		path := fmt.Sprintf("schema.fields[%d]", i)
		if f.Name == "" {
			add(path+".name", "field name is empty")
		}
		if _, dup := fields[f.Name]; dup {
			add(path+".name", "duplicate field name %q", f.Name)
		}
		if !ValidTypes[f.Type] {
			add(path+".type", "invalid type %q for field %q", f.Type, f.Name)
		}
		fields[f.Name] = f
	}

	if len(x.Schema.PrimaryKey) == 0 && len(x.Data) > 0 {
		add("schema.primary_key", "primary key is required")
	}
	for i, k := range x.Schema.PrimaryKey {
		if _, ok := fields[k]; !ok {
			add(fmt.Sprintf("schema.primary_key[%d]", i), "key field %q is not declared", k)
		}
	}

	if x.Metadata.RowCount != len(x.Data) {
		add("metadata.row_count", "row_count %d does not match %d records", x.Metadata.RowCount, len(x.Data))
	}

	seen := make(map[string]int, len(x.Data))
	for i, rec := range x.Data {
		path := fmt.Sprintf("data[%d]", i)
		for _, name := range rec.SortedKeys() {
			f, ok := fields[name]
			if !ok {
				add(path+"."+name, "field not declared in schema")
				continue
			}
			v := rec.Get(name)
			vt := TypeOf(v)
			switch {
			case vt == TypeNull:
				if !f.Nullable {
					add(path+"."+name, "null in non-nullable field")
				}
			case vt != f.Type && !(f.Type == TypeFloat && vt == TypeInteger):
				add(path+"."+name, "value of type %s in field of type %s", vt, f.Type)
			}
		}
		for _, f := range x.Schema.Fields {
			if _, ok := rec[f.Name]; !ok && !f.Nullable {
				add(path+"."+f.Name, "missing value for non-nullable field")
			}
		}

		if len(x.Schema.PrimaryKey) == 0 {
			continue
		}
		key := KeyOf(rec, x.Schema.PrimaryKey)
		for j, kv := range key {
			if IsNull(kv) {
				add(path+"."+x.Schema.PrimaryKey[j], "null primary key value")
			}
		}
		ks := key.String()
		if prev, dup := seen[ks]; dup {
			add(path, "duplicate primary key %s (first at data[%d])", ks, prev)
		} else {
			seen[ks] = i
		}
	}

	return verrs
}
