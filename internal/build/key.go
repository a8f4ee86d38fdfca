package build

import (
	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/source"
)

// chooseKey returns the primary key fields, or nil when no natural key
// exists and a positional key must be synthesized.
func chooseKey(set *source.RawSet, opts Options, fields []ir.Field, data []ir.IRObject) ([]string, error) {
	schema := ir.Schema{Fields: fields}

	if len(opts.PrimaryKey) > 0 {
		for _, k := range opts.PrimaryKey {
			if !schema.Has(k) {
				return nil, errs.InvalidInput("build", "primary key field %q not found", k)
			}
		}
		if row, ok := uniqueKey(data, opts.PrimaryKey); !ok {
			return nil, errs.InvalidInput("build", "primary key %v is null or duplicated at row %d", opts.PrimaryKey, row)
		}
		return append([]string(nil), opts.PrimaryKey...), nil
	}

	if len(set.PrimaryKey) > 0 {
		return append([]string(nil), set.PrimaryKey...), nil
	}

	candidates := keyCandidates(fields)
	sample := data
	if len(sample) > opts.SampleSize {
		sample = sample[:opts.SampleSize]
	}

	for width := 1; width <= opts.MaxKeyWidth && width <= len(candidates); width++ {
		var found []string
		combinations(len(candidates), width, func(idx []int) bool {
			key := make([]string, len(idx))
			for i, j := range idx {
				key[i] = candidates[j]
			}
			if _, ok := uniqueKey(sample, key); !ok {
				return true
			}
			if _, ok := uniqueKey(data, key); !ok {
				return true
			}
			found = key
			return false
		})
		if found != nil {
			return found, nil
		}
	}
	return nil, nil
}

// keyCandidates lists scalar fields that can identify a record, "id" first,
// then in schema order. Floats and booleans never qualify.
func keyCandidates(fields []ir.Field) []string {
	var out []string
	for _, f := range fields {
		if f.Nullable {
			continue
		}
		switch f.Type {
		case ir.TypeInteger, ir.TypeString, ir.TypeDate:
		default:
			continue
		}
		if f.Name == "id" {
			out = append([]string{f.Name}, out...)
		} else {
			out = append(out, f.Name)
		}
	}
	return out
}

// uniqueKey reports whether key is non-null and unique across data. On
// failure it returns the 1-based row where the problem was found.
func uniqueKey(data []ir.IRObject, key []string) (int, bool) {
	seen := make(map[string]struct{}, len(data))
	for i, rec := range data {
		k := ir.KeyOf(rec, key)
		for _, v := range k {
			if ir.IsNull(v) {
				return i + 1, false
			}
		}
		s := k.String()
		if _, dup := seen[s]; dup {
			return i + 1, false
		}
		seen[s] = struct{}{}
	}
	return 0, true
}

// combinations calls fn with every ascending k-subset of [0,n) in
// lexicographic order until fn returns false.
func combinations(n, k int, fn func([]int) bool) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// withSyntheticKey prepends a 1-based positional key field.
func withSyntheticKey(schema ir.Schema, data []ir.IRObject) (ir.Schema, []ir.IRObject) {
	name := ir.SyntheticKeyField
	for schema.Has(name) {
		name = "_" + name
	}

	fields := make([]ir.Field, 0, len(schema.Fields)+1)
	fields = append(fields, ir.Field{Name: name, Type: ir.TypeInteger})
	fields = append(fields, schema.Fields...)

	out := make([]ir.IRObject, len(data))
	for i, rec := range data {
		r := rec.Clone()
		r[name] = ir.IRInt(int64(i + 1))
		out[i] = r
	}

	schema.Fields = fields
	schema.PrimaryKey = []string{name}
	schema.SyntheticKey = true
	return schema, out
}
