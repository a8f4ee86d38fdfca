package build

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/source"
)

// Build reads the source described by d and produces its IR.
func Build(ctx context.Context, d source.Descriptor, opts Options) (*ir.IR, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	set, err := source.Read(ctx, d)
	if err != nil {
		return nil, err
	}
	return FromRaw(ctx, set, opts)
}

// FromRaw produces an IR from records already read by a Normalizer.
func FromRaw(ctx context.Context, set *source.RawSet, opts Options) (*ir.IR, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	names, declared := fieldOrder(set)

	// Convert every cell once; inference looks at a prefix, coercion at all.
	cells := make([]map[string]cell, len(set.Rows))
	for i, row := range set.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.FromContext("build", err)
			}
		}
		m := make(map[string]cell, len(row))
		for _, c := range row {
			conv, err := toCell(c.Value, set.Textual)
			if err != nil {
				return nil, parseFailure(i+1, c.Name, err)
			}
			m[c.Name] = conv
		}
		cells[i] = m
	}

	fields := inferFields(names, declared, cells, opts.SampleSize)

	data := make([]ir.IRObject, len(cells))
	for i, m := range cells {
		rec := make(ir.IRObject, len(fields))
		for fi := range fields {
			f := &fields[fi]
			c, ok := m[f.Name]
			if !ok {
				c = cell{val: ir.IRNull{}}
			}
			v, err := coerce(c, f.Type)
			if err != nil {
				return nil, parseFailure(i+1, f.Name, err)
			}
			if ir.IsNull(v) {
				f.Nullable = true
			}
			rec[f.Name] = v
		}
		data[i] = rec
	}

	schema := ir.Schema{Fields: fields, Declared: set.Declared}
	key, err := chooseKey(set, opts, fields, data)
	if err != nil {
		return nil, err
	}
	if key == nil {
		schema, data = withSyntheticKey(schema, data)
		slog.Debug("no natural key, using positional key", "source", set.Info.Location, "field", schema.PrimaryKey[0])
	} else {
		schema.PrimaryKey = key
		slog.Debug("primary key selected", "source", set.Info.Location, "key", strings.Join(key, ","))
	}

	return &ir.IR{
		Version: ir.IRVersion,
		Source:  set.Info,
		Schema:  schema,
		Data:    data,
		Metadata: ir.Metadata{
			RowCount:      len(data),
			CreatedAt:     opts.Clock.Now().UTC(),
			LowConfidence: schema.SyntheticKey,
		},
	}, nil
}

// fieldOrder returns field names in first-seen order (declared columns
// first) and the declared type of each declared column.
func fieldOrder(set *source.RawSet) ([]string, map[string]source.Column) {
	var names []string
	seen := make(map[string]bool)
	declared := make(map[string]source.Column)
	for _, c := range set.Columns {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
		if set.Declared {
			declared[c.Name] = c
		}
	}
	for _, row := range set.Rows {
		for _, c := range row {
			if !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	return names, declared
}

// inferFields settles each field's type: a declared type is used verbatim,
// anything else is inferred from the first sampleSize records.
func inferFields(names []string, declared map[string]source.Column, cells []map[string]cell, sampleSize int) []ir.Field {
	sample := cells
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}

	fields := make([]ir.Field, len(names))
	for i, name := range names {
		f := ir.Field{Name: name}
		if col, ok := declared[name]; ok && col.Type != "" {
			f.Type = col.Type
			f.Nullable = col.Nullable
			fields[i] = f
			continue
		}

		var t ir.Type
		for _, m := range sample {
			c, ok := m[name]
			vt := ir.TypeNull
			if ok {
				vt = ir.TypeOf(c.val)
			}
			if vt == ir.TypeNull {
				f.Nullable = true
			}
			t = widen(t, vt)
		}
		if t == "" || t == ir.TypeNull {
			for _, m := range cells[len(sample):] {
				if c, ok := m[name]; ok && !ir.IsNull(c.val) {
					t = widen(t, ir.TypeOf(c.val))
					break
				}
			}
		}
		if t == "" {
			t = ir.TypeNull
		}
		if t == ir.TypeNull {
			f.Nullable = true
		}
		f.Type = t
		fields[i] = f
	}
	return fields
}
