package apply

import (
	"fmt"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// step is the mutation an executable action translates to. Exactly one of
// row and schema is set.
type step struct {
	row    *Mutation
	schema *SchemaMutation
}

// translate maps an action to the mutation that realizes it. Dry runs and
// live applies both go through here.
func translate(a ir.Action, keyFields []string) (step, error) {
	if a.Value == nil {
		return step{}, errs.InvalidInput("apply", "%s action for %s has no value", a.Kind, a.Ref)
	}

	if a.Ref.Section == ir.SectionSchema {
		if a.Field == "" {
			return step{}, errs.InvalidInput("apply", "schema action %s names no field", a.Ref)
		}
		if ir.IsNull(a.Value) {
			return step{schema: &SchemaMutation{Field: a.Field, Drop: true}}, nil
		}
		name, ok := a.Value.(ir.IRString)
		if !ok || !ir.ValidTypes[ir.Type(name)] {
			return step{}, errs.InvalidInput("apply", "schema action %s: %s is not a field type", a.Ref, describe(a.Value))
		}
		sm := &SchemaMutation{Field: a.Field, Type: ir.Type(name)}
		for _, fv := range a.Values {
			if len(fv.Key) != len(keyFields) {
				return step{}, errs.InvalidInput("apply", "schema action %s: key %s does not match key fields %v", a.Ref, fv.Key, keyFields)
			}
			sm.Values = append(sm.Values, FieldValue{Key: fv.Key, Value: orNull(fv.Value)})
		}
		return step{schema: sm}, nil
	}

	if len(a.Key) != len(keyFields) {
		return step{}, errs.InvalidInput("apply", "action %s: key %s does not match key fields %v", a.Ref, a.Key, keyFields)
	}

	if a.Field != "" {
		return step{row: &Mutation{Op: OpSet, Key: a.Key, Field: a.Field, Value: a.Value}}, nil
	}

	switch v := a.Value.(type) {
	case ir.IRNull:
		return step{row: &Mutation{Op: OpDelete, Key: a.Key}}, nil
	case ir.IRObject:
		rec := v.Clone()
		for i, f := range keyFields {
			rec[f] = a.Key[i]
		}
		return step{row: &Mutation{Op: OpUpsert, Key: a.Key, Record: rec}}, nil
	default:
		return step{}, errs.InvalidInput("apply", "record action %s: %s is not a record", a.Ref, describe(a.Value))
	}
}

func orNull(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return v
}

func describe(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
