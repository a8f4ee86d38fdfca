package apply

import (
	"context"
	"fmt"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// view is the target as earlier actions of this apply left it. It lets a
// dry run judge each action as if the previous ones had taken effect.
type view struct {
	target  Target
	fields  map[string]ir.Type
	keys    map[string]bool
	present map[string]bool // overlay of records upserted or deleted so far
}

func newView(t Target, s ir.Schema) *view {
	v := &view{
		target:  t,
		fields:  s.Types(),
		keys:    make(map[string]bool, len(s.PrimaryKey)),
		present: make(map[string]bool),
	}
	for _, k := range s.PrimaryKey {
		v.keys[k] = true
	}
	return v
}

func (v *view) exists(ctx context.Context, key ir.Key) (bool, error) {
	if ok, known := v.present[key.String()]; known {
		return ok, nil
	}
	_, ok, err := v.target.Lookup(ctx, key)
	if err != nil {
		return false, errs.Wrap(errs.KindIO, "apply", err, "lookup %s", key)
	}
	return ok, nil
}

// redundant reports whether a step is already satisfied without touching
// the target: clearing a field the schema does not declare.
func (v *view) redundant(st step) bool {
	m := st.row
	if m == nil || m.Op != OpSet || !ir.IsNull(m.Value) {
		return false
	}
	_, declared := v.fields[m.Field]
	return !declared
}

// check reports why a step cannot be applied, or nil.
func (v *view) check(ctx context.Context, st step) error {
	if sm := st.schema; sm != nil {
		if v.keys[sm.Field] {
			return errs.InvalidInput("apply", "cannot change key field %q", sm.Field)
		}
		if err := v.target.CheckSchema(ctx, *sm); err != nil {
			if errs.KindOf(err) == errs.KindInvalidInput {
				return err
			}
			return errs.Wrap(errs.KindIO, "apply", err, "check field %q", sm.Field)
		}
		return nil
	}

	m := st.row
	switch m.Op {
	case OpDelete:
		return nil
	case OpUpsert:
		for _, name := range m.Record.SortedKeys() {
			if err := v.fits(name, m.Record[name]); err != nil {
				return err
			}
		}
		return nil
	case OpSet:
		if v.keys[m.Field] {
			return errs.InvalidInput("apply", "cannot change key field %q", m.Field)
		}
		if err := v.fits(m.Field, m.Value); err != nil {
			return err
		}
		ok, err := v.exists(ctx, m.Key)
		if err != nil {
			return err
		}
		if !ok {
			return errs.InvalidInput("apply", "record %s not found", m.Key)
		}
		return nil
	}
	return errs.Internal("apply", "unknown mutation %q", m.Op)
}

// fits reports whether value may be stored in the named field.
func (v *view) fits(field string, value ir.IRValue) error {
	t, ok := v.fields[field]
	if !ok {
		return errs.InvalidInput("apply", "field %q is not in the target schema", field)
	}
	vt := ir.TypeOf(value)
	if vt == ir.TypeNull || vt == t || t == ir.TypeNull || (t == ir.TypeFloat && vt == ir.TypeInteger) {
		return nil
	}
	return errs.InvalidInput("apply", "field %q holds %s values, got %s", field, t, describeType(vt, value))
}

func describeType(t ir.Type, v ir.IRValue) string {
	return fmt.Sprintf("%s %s", t, describe(v))
}

// record folds a step that took effect into the view.
func (v *view) record(st step) {
	if sm := st.schema; sm != nil {
		if sm.Drop {
			delete(v.fields, sm.Field)
		} else {
			v.fields[sm.Field] = sm.Type
		}
		return
	}
	switch st.row.Op {
	case OpUpsert:
		v.present[st.row.Key.String()] = true
	case OpDelete:
		v.present[st.row.Key.String()] = false
	}
}
