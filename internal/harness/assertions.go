package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/audd/internal/engine"
	"github.com/roach88/audd/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkExpect compares whole-run counts and the applied flag.
func checkExpect(rep *engine.Report, exp Expect) []string {
	var errors []string
	if exp.SchemaChanges != nil && *exp.SchemaChanges != len(rep.Diff.SchemaChanges) {
		errors = append(errors, fmt.Sprintf("schema_changes: expected %d, got %d", *exp.SchemaChanges, len(rep.Diff.SchemaChanges)))
	}
	if exp.RowChanges != nil && *exp.RowChanges != len(rep.Diff.RowChanges) {
		errors = append(errors, fmt.Sprintf("row_changes: expected %d, got %d", *exp.RowChanges, len(rep.Diff.RowChanges)))
	}
	if exp.Actions != nil {
		got := make(map[string]int)
		for _, a := range rep.Plan.Actions {
			got[string(a.Kind)]++
		}
		kinds := make([]string, 0, len(exp.Actions))
		for k := range exp.Actions {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			if got[k] != exp.Actions[k] {
				errors = append(errors, fmt.Sprintf("actions[%s]: expected %d, got %d", k, exp.Actions[k], got[k]))
			}
		}
	}
	if exp.Applied != nil && *exp.Applied != rep.Result.Applied {
		errors = append(errors, fmt.Sprintf("applied: expected %t, got %t", *exp.Applied, rep.Result.Applied))
	}
	return errors
}

// EvaluateAssertions evaluates all assertions against a report.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(rep *engine.Report, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertSchemaChange:
			err = assertSchemaChange(rep.Diff, a)
		case AssertRowChange:
			err = assertRowChange(rep.Diff, a)
		case AssertAction:
			err = assertAction(rep.Plan, a)
		case AssertActionStatus:
			err = assertActionStatus(rep.Plan, rep.Result, a)
		case AssertFinalState:
			err = assertFinalState(rep.Final, a)
		case AssertFinalCount:
			err = assertFinalCount(rep.Final, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertSchemaChange(d *ir.Diff, a Assertion) error {
	var seen []string
	for _, c := range d.SchemaChanges {
		if c.Field == a.Field && string(c.Kind) == a.Kind {
			return nil
		}
		seen = append(seen, fmt.Sprintf("%s:%s", c.Field, c.Kind))
	}
	return &AssertionError{
		Type:     AssertSchemaChange,
		Expected: fmt.Sprintf("field %s %s", a.Field, a.Kind),
		Actual:   fmt.Sprintf("schema changes %v", seen),
	}
}

func assertRowChange(d *ir.Diff, a Assertion) error {
	key, err := toKey(a.Key)
	if err != nil {
		return err
	}
	for _, c := range d.RowChanges {
		if ir.CompareKeys(c.Key, key) != 0 || c.Field != a.Field {
			continue
		}
		if string(c.Kind) == a.Kind {
			return nil
		}
		return &AssertionError{
			Type:     AssertRowChange,
			Expected: fmt.Sprintf("%s %s %s", key, fieldName(a.Field), a.Kind),
			Actual:   string(c.Kind),
		}
	}
	return &AssertionError{
		Type:     AssertRowChange,
		Expected: fmt.Sprintf("%s %s %s", key, fieldName(a.Field), a.Kind),
		Actual:   "no such change",
	}
}

// findAction returns the index of the action for key and field. An empty
// key selects a schema action.
func findAction(p *ir.Plan, a Assertion) (int, error) {
	var key ir.Key
	if len(a.Key) > 0 {
		k, err := toKey(a.Key)
		if err != nil {
			return -1, err
		}
		key = k
	}
	for i, act := range p.Actions {
		if act.Field != a.Field {
			continue
		}
		if key == nil && act.Ref.Section == ir.SectionSchema {
			return i, nil
		}
		if key != nil && act.Ref.Section == ir.SectionRow && ir.CompareKeys(act.Key, key) == 0 {
			return i, nil
		}
	}
	return -1, nil
}

func assertAction(p *ir.Plan, a Assertion) error {
	i, err := findAction(p, a)
	if err != nil {
		return err
	}
	expected := fmt.Sprintf("%s %s resolved as %s", keyName(a.Key), fieldName(a.Field), a.Kind)
	if i < 0 {
		return &AssertionError{Type: AssertAction, Expected: expected, Actual: "no such action"}
	}
	if got := string(p.Actions[i].Kind); got != a.Kind {
		return &AssertionError{Type: AssertAction, Expected: expected, Actual: fmt.Sprintf("%s (%s)", got, p.Actions[i].Rationale)}
	}
	return nil
}

func assertActionStatus(p *ir.Plan, res *ir.ApplyResult, a Assertion) error {
	i, err := findAction(p, a)
	if err != nil {
		return err
	}
	expected := fmt.Sprintf("%s %s %s", keyName(a.Key), fieldName(a.Field), a.Kind)
	if i < 0 {
		return &AssertionError{Type: AssertActionStatus, Expected: expected, Actual: "no such action"}
	}
	for _, r := range res.Results {
		if r.Index != i {
			continue
		}
		if string(r.Status) == a.Kind {
			return nil
		}
		return &AssertionError{Type: AssertActionStatus, Expected: expected, Actual: fmt.Sprintf("%s %s", r.Status, r.Error)}
	}
	return &AssertionError{Type: AssertActionStatus, Expected: expected, Actual: "action was not processed"}
}

// assertFinalState checks that exactly one final record matches Where and
// that it holds every Expect value (subset semantics).
func assertFinalState(final *ir.IR, a Assertion) error {
	if final == nil {
		return &AssertionError{Type: AssertFinalState, Expected: "a final dataset", Actual: "none"}
	}
	var matches []ir.IRObject
	for _, rec := range final.Data {
		ok, err := recordMatches(rec, a.Where)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, rec)
		}
	}
	whereDesc := formatWhere(a.Where)
	switch len(matches) {
	case 0:
		return &AssertionError{Type: AssertFinalState, Expected: "record where " + whereDesc, Actual: "record not found"}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "exactly one record where " + whereDesc,
			Actual:   fmt.Sprintf("%d records matched (assertion is ambiguous)", len(matches)),
		}
	}

	rec := matches[0]
	for _, name := range sortedNames(a.Expect) {
		want, err := ir.FromGo(rawValue(a.Expect[name]))
		if err != nil {
			return fmt.Errorf("final_state expect %q: %w", name, err)
		}
		got, exists := rec[name]
		if !exists {
			got = ir.IRNull{}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %s", name, describe(want)),
				Actual:   fmt.Sprintf("field %q = %s", name, describe(got)),
			}
		}
	}
	return nil
}

func assertFinalCount(final *ir.IR, a Assertion) error {
	n := 0
	if final != nil {
		n = len(final.Data)
	}
	if n != *a.Count {
		return &AssertionError{Type: AssertFinalCount, Expected: fmt.Sprintf("%d records", *a.Count), Actual: fmt.Sprintf("%d records", n)}
	}
	return nil
}

func recordMatches(rec ir.IRObject, where map[string]any) (bool, error) {
	for name, raw := range where {
		want, err := ir.FromGo(rawValue(raw))
		if err != nil {
			return false, fmt.Errorf("final_state where %q: %w", name, err)
		}
		if !stateValuesEqual(want, rec.Get(name)) {
			return false, nil
		}
	}
	return true, nil
}

// stateValuesEqual compares an expected value written in YAML with a
// record value. Numbers compare by magnitude and dates by their text form,
// since YAML cannot say which IR type it means.
func stateValuesEqual(want, got ir.IRValue) bool {
	if wf, ok := ir.AsFloat(want); ok {
		gf, ok := ir.AsFloat(got)
		return ok && wf == gf
	}
	if d, ok := got.(ir.IRDate); ok {
		switch w := want.(type) {
		case ir.IRString:
			return d.String() == string(w)
		case ir.IRDate:
			return d.Time().Equal(w.Time())
		}
	}
	return ir.Equal(want, got)
}

func toKey(raw []any) (ir.Key, error) {
	key := make(ir.Key, len(raw))
	for i, r := range raw {
		v, err := ir.FromGo(rawValue(r))
		if err != nil {
			return nil, fmt.Errorf("key[%d]: %w", i, err)
		}
		key[i] = v
	}
	return key, nil
}

func keyName(raw []any) string {
	if len(raw) == 0 {
		return "schema"
	}
	key, err := toKey(raw)
	if err != nil {
		return fmt.Sprint(raw)
	}
	return key.String()
}

func fieldName(f string) string {
	if f == "" {
		return "(record)"
	}
	return f
}

func describe(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%s (%s)", b, ir.TypeOf(v))
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// formatWhere creates a human-readable description of the where conditions.
func formatWhere(where map[string]any) string {
	parts := make([]string, 0, len(where))
	for _, k := range sortedNames(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}
