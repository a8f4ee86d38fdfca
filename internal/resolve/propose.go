// Package resolve turns a Diff into a Plan of actions.
//
// Every change gets exactly one action, in two steps. The strategy first
// decides whether the change may resolve automatically; a change that may
// not becomes a manual action with no value. The preferred source then
// picks the value. Under merge, values of different types always become
// manual, whatever the strategy: the planner never coerces.
package resolve

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
)

// Propose plans a resolution for every change in d. It performs no I/O.
func Propose(d *ir.Diff, opts Options) (*ir.Plan, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errs.InvalidInput("propose", "diff is missing")
	}
	if err := ir.CheckVersion("diff", d.Version); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "propose", err, "diff")
	}

	p := &ir.Plan{
		Version:      ir.IRVersion,
		Strategy:     string(opts.Strategy),
		PreferSource: string(opts.PreferSource),
		KeyFields:    slices.Clone(d.KeyFields),
		Actions:      make([]ir.Action, 0, len(d.SchemaChanges)+len(d.RowChanges)),
	}

	for i, sc := range d.SchemaChanges {
		a := decide(opts, schemaChange(sc))
		a.Ref = ir.ChangeRef{Section: ir.SectionSchema, Index: i}
		a.Field = sc.Field
		a.Change = sc.Kind
		if sc.Kind == ir.ChangeTypeChanged {
			a.Values = retypeValues(a.Kind, sc.Rows)
		}
		p.Actions = append(p.Actions, a)
	}

	rows := make([]ir.Action, 0, len(d.RowChanges))
	for i, rc := range d.RowChanges {
		a := decide(opts, rowChange(rc))
		a.Ref = ir.ChangeRef{Section: ir.SectionRow, Index: i}
		a.Key = rc.Key
		a.Field = rc.Field
		a.Change = rc.Kind
		rows = append(rows, a)
	}
	slices.SortStableFunc(rows, func(x, y ir.Action) int {
		return ir.CompareKeys(x.Key, y.Key)
	})
	p.Actions = append(p.Actions, rows...)

	counts := make(map[ir.ActionKind]int)
	for _, a := range p.Actions {
		counts[a.Kind]++
	}
	slog.Debug("proposed resolution",
		"strategy", p.Strategy,
		"prefer", p.PreferSource,
		"accept", counts[ir.ActionAccept],
		"reject", counts[ir.ActionReject],
		"merge", counts[ir.ActionMerge],
		"manual", counts[ir.ActionManual])
	return p, nil
}

// change is the part of a schema or row change the decision depends on.
type change struct {
	kind       ir.ChangeKind
	old, new   ir.IRValue
	oldT, newT ir.Type
	confidence float64
	synthetic  bool
}

// typeConflict compares types exactly: integer against float conflicts too,
// since a merged value would have to pick one of them.
func (c change) typeConflict() bool {
	return c.oldT != ir.TypeNull && c.newT != ir.TypeNull && c.oldT != c.newT
}

// schemaChange presents a field change with type names as values. An
// absent side is null; a retyped field is a conflict between type names.
func schemaChange(sc ir.SchemaChange) change {
	c := change{kind: sc.Kind, old: ir.IRNull{}, new: ir.IRNull{}, oldT: ir.TypeNull, newT: ir.TypeNull, confidence: 1}
	if sc.OldType != "" {
		c.old, c.oldT = ir.IRString(sc.OldType), ir.TypeString
	}
	if sc.NewType != "" {
		c.new, c.newT = ir.IRString(sc.NewType), ir.TypeString
	}
	if sc.Kind == ir.ChangeTypeChanged {
		// Both sides are strings, but the types they name are what conflict.
		c.oldT, c.newT = sc.OldType, sc.NewType
	}
	return c
}

// retypeValues carries the kept side's values of a retyped field, so the
// target holds values of the type it is given.
func retypeValues(kind ir.ActionKind, rows []ir.RowChange) []ir.FieldValue {
	var pick func(ir.RowChange) ir.IRValue
	switch kind {
	case ir.ActionAccept:
		pick = func(rc ir.RowChange) ir.IRValue { return rc.NewValue }
	case ir.ActionReject:
		pick = func(rc ir.RowChange) ir.IRValue { return rc.OldValue }
	default:
		return nil
	}
	var out []ir.FieldValue
	for _, rc := range rows {
		v := orNull(pick(rc))
		out = append(out, ir.FieldValue{Key: rc.Key, Value: v, ValueType: ir.TypeOf(v)})
	}
	slices.SortStableFunc(out, func(x, y ir.FieldValue) int {
		return ir.CompareKeys(x.Key, y.Key)
	})
	return out
}

func rowChange(rc ir.RowChange) change {
	return change{
		kind:       rc.Kind,
		old:        orNull(rc.OldValue),
		new:        orNull(rc.NewValue),
		oldT:       ir.TypeOf(rc.OldValue),
		newT:       ir.TypeOf(rc.NewValue),
		confidence: rc.Confidence,
		synthetic:  rc.Synthetic,
	}
}

func orNull(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return v
}

func decide(opts Options, c change) ir.Action {
	if opts.PreferSource == PreferMerge && c.typeConflict() {
		return manual(fmt.Sprintf("merge: types differ (%s vs %s) and are never coerced", c.oldT, c.newT))
	}

	switch opts.Strategy {
	case Conservative:
		if c.kind != ir.ChangeAdded {
			return manual("conservative: only additions resolve automatically")
		}
		return valued(ir.ActionAccept, c.new, "conservative: addition accepted")
	case Balanced:
		if c.synthetic {
			return manual("balanced: positional keys are not stable across builds")
		}
		if c.confidence <= opts.AutoResolveThreshold {
			return manual(fmt.Sprintf("balanced: confidence %s is not above %s",
				formatScore(c.confidence), formatScore(opts.AutoResolveThreshold)))
		}
	}

	switch opts.PreferSource {
	case PreferA:
		return valued(ir.ActionReject, c.old, "prefer a: baseline value kept")
	case PreferB:
		return valued(ir.ActionAccept, c.new, "prefer b: candidate value taken")
	}

	switch {
	case ir.IsNull(c.old) && ir.IsNull(c.new):
		return valued(ir.ActionAccept, c.new, "merge: both sides null")
	case ir.IsNull(c.old):
		return valued(ir.ActionAccept, c.new, "merge: baseline is null, candidate value taken")
	case ir.IsNull(c.new):
		return valued(ir.ActionReject, c.old, "merge: candidate is null, baseline value kept")
	}
	return valued(ir.ActionMerge, c.new, fmt.Sprintf("merge: both sides hold %s values, candidate value taken", c.newT))
}

func manual(rationale string) ir.Action {
	return ir.Action{Kind: ir.ActionManual, Rationale: rationale}
}

func valued(kind ir.ActionKind, v ir.IRValue, rationale string) ir.Action {
	return ir.Action{Kind: kind, Value: v, ValueType: ir.TypeOf(v), Rationale: rationale}
}

func formatScore(f float64) string {
	return fmt.Sprintf("%.4g", f)
}
