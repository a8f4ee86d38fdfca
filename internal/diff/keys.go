package diff

import (
	"slices"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// keying is the key both sides are indexed by.
type keying struct {
	fields     []string
	positional bool

	// skip holds fields that identify records and are not compared as values.
	skip map[string]bool
}

// chooseKeying picks the key: identical primary keys are used directly, a
// synthetic key on either side keys both sides by position, otherwise the
// primary key of whichever side the other side can also be keyed by.
func chooseKeying(a, b *ir.IR) (keying, error) {
	pa, pb := a.Schema.PrimaryKey, b.Schema.PrimaryKey

	if a.Schema.SyntheticKey || b.Schema.SyntheticKey {
		// Keys are named by A's positional field, or by B's when only B
		// is positional; a build may rename the field to avoid a clash.
		k := keying{positional: true, skip: map[string]bool{}}
		if b.Schema.SyntheticKey {
			k.fields = slices.Clone(pb)
			for _, f := range pb {
				k.skip[f] = true
			}
		}
		if a.Schema.SyntheticKey {
			k.fields = slices.Clone(pa)
			for _, f := range pa {
				k.skip[f] = true
			}
		}
		return k, nil
	}

	var fields []string
	switch {
	case slices.Equal(pa, pb):
		fields = pa
	case len(pa) > 0 && hasAll(b.Schema, pa):
		fields = pa
	case len(pb) > 0 && hasAll(a.Schema, pb):
		fields = pb
	default:
		return keying{}, errs.InvalidInput("compare", "primary keys %v and %v share no common key", pa, pb)
	}
	if len(fields) == 0 {
		return keying{}, errs.InvalidInput("compare", "no primary key to match records by")
	}

	skip := make(map[string]bool, len(fields))
	for _, f := range fields {
		skip[f] = true
	}
	return keying{fields: slices.Clone(fields), skip: skip}, nil
}

func hasAll(s ir.Schema, fields []string) bool {
	for _, f := range fields {
		if !s.Has(f) {
			return false
		}
	}
	return true
}

// index maps a canonical key to its record position.
type index struct {
	keys []ir.Key
	pos  map[string]int
}

func (k keying) index(side string, x *ir.IR) (index, error) {
	idx := index{keys: make([]ir.Key, len(x.Data)), pos: make(map[string]int, len(x.Data))}
	for i, rec := range x.Data {
		var key ir.Key
		if k.positional {
			key = ir.Key{ir.IRInt(int64(i + 1))}
		} else {
			key = ir.KeyOf(rec, k.fields)
		}
		s := key.String()
		if prev, dup := idx.pos[s]; dup {
			return index{}, errs.InvalidInput("compare", "%s: duplicate key %s at records %d and %d", side, s, prev+1, i+1)
		}
		idx.keys[i] = key
		idx.pos[s] = i
	}
	return idx, nil
}

func (idx index) lookup(key ir.Key) (int, bool) {
	i, ok := idx.pos[key.String()]
	return i, ok
}
