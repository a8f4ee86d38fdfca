package diff

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// Compare reports the differences between baseline a and candidate b.
func Compare(a, b *ir.IR, opts Options) (*ir.Diff, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	if err := checkInput("a", a); err != nil {
		return nil, err
	}
	if err := checkInput("b", b); err != nil {
		return nil, err
	}

	k, err := chooseKeying(a, b)
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]bool, len(opts.IgnoreFields))
	for _, f := range opts.IgnoreFields {
		ignore[f] = true
	}

	c := &comparison{a: a, b: b, opts: opts, key: k, ignore: ignore}
	d := &ir.Diff{
		Version:       ir.IRVersion,
		Strategy:      string(opts.Strategy),
		Threshold:     opts.Threshold,
		Comparator:    ComparatorVersion,
		KeyFields:     k.fields,
		SyntheticKey:  k.positional,
		SchemaChanges: c.schemaChanges(),
		RowChanges:    []ir.RowChange{},
	}

	if opts.rowChanges() {
		rows, err := c.rowChanges(d.SchemaChanges)
		if err != nil {
			return nil, err
		}
		d.RowChanges = rows
	}

	slog.Debug("compared datasets",
		"strategy", d.Strategy,
		"key", fmt.Sprint(d.KeyFields),
		"synthetic", d.SyntheticKey,
		"schema_changes", len(d.SchemaChanges),
		"row_changes", len(d.RowChanges))
	return d, nil
}

func checkInput(side string, x *ir.IR) error {
	if x == nil {
		return errs.InvalidInput("compare", "%s: IR is missing", side)
	}
	if err := ir.CheckVersion("ir", x.Version); err != nil {
		return errs.Wrap(errs.KindInvalidInput, "compare", err, "%s", side)
	}
	if res := ir.ValidateIR(x); !res.OK {
		return errs.InvalidInput("compare", "%s: invalid IR: %s", side, res.Errors[0])
	}
	return nil
}

type comparison struct {
	a, b   *ir.IR
	opts   Options
	key    keying
	ignore map[string]bool
}

// compared reports whether a field takes part in the comparison.
func (c *comparison) compared(name string) bool {
	return !c.ignore[name] && !c.key.skip[name]
}

// schemaChanges lists field differences ordered by field name. The semantic
// strategy keeps only added and removed fields, as notes for the row changes
// they explain.
func (c *comparison) schemaChanges() []ir.SchemaChange {
	out := []ir.SchemaChange{}
	for _, name := range c.fieldUnion() {
		fa, inA := c.a.Schema.Field(name)
		fb, inB := c.b.Schema.Field(name)
		switch {
		case inA && !inB:
			out = append(out, ir.SchemaChange{Field: name, Kind: ir.ChangeRemoved, OldType: fa.Type})
		case !inA && inB:
			out = append(out, ir.SchemaChange{Field: name, Kind: ir.ChangeAdded, NewType: fb.Type})
		case c.opts.schemaChanges() && typeChanged(fa.Type, fb.Type):
			out = append(out, ir.SchemaChange{Field: name, Kind: ir.ChangeTypeChanged, OldType: fa.Type, NewType: fb.Type})
		}
	}
	return out
}

// typeChanged treats an all-null field as untyped.
func typeChanged(a, b ir.Type) bool {
	return a != b && a != ir.TypeNull && b != ir.TypeNull
}

// fieldUnion returns every compared field name of either side, sorted.
func (c *comparison) fieldUnion() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range []ir.Schema{c.a.Schema, c.b.Schema} {
		for _, f := range s.Fields {
			if !seen[f.Name] && c.compared(f.Name) {
				seen[f.Name] = true
				names = append(names, f.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (c *comparison) rowChanges(schema []ir.SchemaChange) ([]ir.RowChange, error) {
	ia, err := c.key.index("a", c.a)
	if err != nil {
		return nil, err
	}
	ib, err := c.key.index("b", c.b)
	if err != nil {
		return nil, err
	}

	// Hybrid reports a retyped field once; its conflicting values ride on
	// the schema change.
	suppressed := make(map[string]*ir.SchemaChange)
	if c.opts.Strategy == Hybrid {
		for i := range schema {
			if schema[i].Kind == ir.ChangeTypeChanged {
				suppressed[schema[i].Field] = &schema[i]
			}
		}
	}

	keys := make([]ir.Key, 0, len(ia.keys)+len(ib.keys))
	keys = append(keys, ia.keys...)
	for _, k := range ib.keys {
		if _, ok := ia.lookup(k); !ok {
			keys = append(keys, k)
		}
	}
	slices.SortStableFunc(keys, ir.CompareKeys)

	fields := c.fieldUnion()
	out := []ir.RowChange{}
	for _, key := range keys {
		i, inA := ia.lookup(key)
		j, inB := ib.lookup(key)
		switch {
		case inA && !inB:
			out = append(out, c.mark(ir.RowChange{
				Key: key, Kind: ir.ChangeRemoved,
				OldValue: c.a.Data[i], NewValue: ir.IRNull{},
				OldType: ir.TypeObject, NewType: ir.TypeNull,
				Confidence: 1,
			}))
		case !inA && inB:
			out = append(out, c.mark(ir.RowChange{
				Key: key, Kind: ir.ChangeAdded,
				OldValue: ir.IRNull{}, NewValue: c.b.Data[j],
				OldType: ir.TypeNull, NewType: ir.TypeObject,
				Confidence: 1,
			}))
		default:
			for _, f := range fields {
				sc := suppressed[f]
				ch, ok := c.compareField(key, f, c.a.Data[i], c.b.Data[j])
				switch {
				case !ok:
				case sc != nil && ch.TypeConflict():
					sc.Rows = append(sc.Rows, c.mark(ch))
				default:
					out = append(out, c.mark(ch))
				}
			}
		}
	}
	return out, nil
}

// compareField compares one field of a record present on both sides. A
// field missing from a record is null there.
func (c *comparison) compareField(key ir.Key, field string, ra, rb ir.IRObject) (ir.RowChange, bool) {
	va, vb := ra.Get(field), rb.Get(field)
	ta, tb := ir.TypeOf(va), ir.TypeOf(vb)
	ch := ir.RowChange{
		Key: key, Field: field, Kind: ir.ChangeModified,
		OldValue: va, NewValue: vb, OldType: ta, NewType: tb,
	}

	switch {
	case ta == ir.TypeNull && tb == ir.TypeNull:
		return ch, false
	case ta == ir.TypeNull || tb == ir.TypeNull:
		// Presence changed: a structural difference.
		ch.Confidence = 1
		return ch, true
	case !ir.Compatible(ta, tb):
		ch.Confidence = 1
		return ch, true
	}

	sim := Similarity(va, vb)
	if sim >= c.opts.Threshold {
		return ch, false
	}
	ch.Confidence = sim
	return ch, true
}

func (c *comparison) mark(ch ir.RowChange) ir.RowChange {
	ch.Synthetic = c.key.positional
	return ch
}
