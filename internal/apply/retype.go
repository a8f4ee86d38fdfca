package apply

import (
	"math"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// KeyedRecord is a stored record and its primary key.
type KeyedRecord struct {
	Key    ir.Key
	Record ir.IRObject
}

// Retype computes the records a retype of m.Field to m.Type rewrites, in
// input order. A value listed in m.Values replaces the record's value; the
// result is then converted to the new type. Retype fails with invalid_input
// on the first value that does not fit, so a target can reject the whole
// mutation. The input records are not modified.
func Retype(m SchemaMutation, records []KeyedRecord) ([]KeyedRecord, error) {
	values := make(map[string]ir.IRValue, len(m.Values))
	for _, fv := range m.Values {
		values[fv.Key.String()] = fv.Value
	}

	var out []KeyedRecord
	for _, r := range records {
		old, had := r.Record[m.Field]
		v := r.Record.Get(m.Field)
		listed, ok := values[r.Key.String()]
		if ok {
			v = listed
		}
		conv, fits := Convert(v, m.Type)
		if !fits {
			return nil, errs.InvalidInput("apply", "cannot retype field %q to %s: record %s holds %s",
				m.Field, m.Type, r.Key, describeType(ir.TypeOf(v), v))
		}
		if !had && ir.IsNull(conv) {
			continue
		}
		if had && ir.Equal(old, conv) {
			continue
		}
		rec := r.Record.Clone()
		rec[m.Field] = conv
		out = append(out, KeyedRecord{Key: r.Key, Record: rec})
	}
	return out, nil
}

// Convert returns v as a value of type t, and whether it fits. Null fits
// every type; integers widen to float and integral floats narrow to
// integer; date strings become dates.
func Convert(v ir.IRValue, t ir.Type) (ir.IRValue, bool) {
	if v == nil {
		return ir.IRNull{}, true
	}
	if f, ok := v.(ir.IRFloat); ok && t == ir.TypeInteger {
		x := float64(f)
		if x == math.Trunc(x) && math.Abs(x) < math.MaxInt64 {
			return ir.IRInt(int64(x)), true
		}
		return v, false
	}
	v = ir.ApplyHint(v, t)
	vt := ir.TypeOf(v)
	return v, vt == ir.TypeNull || vt == t || t == ir.TypeNull
}
