package ir

import (
	"encoding/json"
	"fmt"
)

// ActionKind is the resolution chosen for one change.
type ActionKind string

const (
	ActionAccept ActionKind = "accept" // take the candidate (B) value
	ActionReject ActionKind = "reject" // keep the baseline (A) value
	ActionMerge  ActionKind = "merge"  // both present; merged value recorded for audit
	ActionManual ActionKind = "manual" // needs a human; carries no value
)

// Section identifies which list of a Diff a change lives in.
type Section string

const (
	SectionSchema Section = "schema"
	SectionRow    Section = "row"
)

// ChangeRef points at exactly one Diff entry.
type ChangeRef struct {
	Section Section `json:"section"`
	Index   int     `json:"index"`
}

// String formats the reference as "schema[3]" or "row[12]".
func (r ChangeRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Section, r.Index)
}

// Plan is the ordered list of actions resolving a Diff.
// Schema actions precede row actions; row actions ascend by key.
type Plan struct {
	Version      string   `json:"version"`
	Strategy     string   `json:"strategy"`
	PreferSource string   `json:"prefer_source"`
	KeyFields    []string `json:"key_fields"`
	Actions      []Action `json:"actions"`
}

// Action is one concrete resolution. Value is nil for manual actions; a null
// Value on a whole-record action means the record must not exist.
type Action struct {
	Ref       ChangeRef  `json:"ref"`
	Key       Key        `json:"key,omitempty"`
	Field     string     `json:"field,omitempty"`
	Change    ChangeKind `json:"change"`
	Kind      ActionKind `json:"kind"`
	Value     IRValue    `json:"value,omitempty"`
	ValueType Type       `json:"value_type,omitempty"`
	Rationale string     `json:"rationale"`

	// Values are the per-record values of a retyped field, taken from the
	// side the action keeps.
	Values []FieldValue `json:"values,omitempty"`
}

// FieldValue is one record's value of a field.
type FieldValue struct {
	Key       Key     `json:"key"`
	Value     IRValue `json:"value"`
	ValueType Type    `json:"value_type"`
}

// UnmarshalJSON restores the typed value using ValueType.
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var aux struct {
		Key       Key             `json:"key"`
		Value     json.RawMessage `json:"value"`
		ValueType Type            `json:"value_type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := decodeOptional(aux.Value, aux.ValueType)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	*f = FieldValue{Key: aux.Key, Value: v, ValueType: aux.ValueType}
	return nil
}

// Executable reports whether the applier acts on this action.
func (a Action) Executable() bool {
	return a.Kind != ActionManual
}

// UnmarshalJSON restores the typed value using ValueType.
func (a *Action) UnmarshalJSON(data []byte) error {
	type plain Action
	var aux struct {
		plain
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := Action(aux.plain)
	out.Value = nil
	if len(aux.Value) > 0 {
		v, err := DecodeValue(aux.Value, aux.ValueType)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		out.Value = v
	}
	*a = out
	return nil
}

// ActionStatus is the outcome of one action.
type ActionStatus string

const (
	StatusSucceeded ActionStatus = "succeeded"
	StatusFailed    ActionStatus = "failed"
	StatusSkipped   ActionStatus = "skipped" // manual actions: pending, not failed
)

// ApplyResult is the outcome of executing or simulating a Plan.
type ApplyResult struct {
	Version string `json:"version"`

	// Applied is true iff every executable action succeeded (or, in a dry
	// run, would succeed).
	Applied bool           `json:"applied"`
	DryRun  bool           `json:"dry_run"`
	Results []ActionResult `json:"results"`
	Backup  *BackupRef     `json:"backup,omitempty"`

	// Interrupted is "cancelled" or "timeout" when the apply stopped early;
	// Results then hold only the actions processed before the stop.
	Interrupted string `json:"interrupted,omitempty"`
}

// ActionResult records one action's outcome.
type ActionResult struct {
	Index     int          `json:"index"`
	Ref       ChangeRef    `json:"ref"`
	Kind      ActionKind   `json:"kind"`
	Status    ActionStatus `json:"status"`
	Value     IRValue      `json:"value,omitempty"`
	ValueType Type         `json:"value_type,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
}

// UnmarshalJSON restores the typed value using ValueType.
func (r *ActionResult) UnmarshalJSON(data []byte) error {
	type plain ActionResult
	var aux struct {
		plain
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	out := ActionResult(aux.plain)
	out.Value = nil
	if len(aux.Value) > 0 {
		v, err := DecodeValue(aux.Value, aux.ValueType)
		if err != nil {
			return fmt.Errorf("value: %w", err)
		}
		out.Value = v
	}
	*r = out
	return nil
}

// BackupRef identifies a snapshot captured before mutation.
type BackupRef struct {
	ID      string `json:"id"`
	Records int    `json:"records"`
}

// Counts tallies results by status.
func (r *ApplyResult) Counts() map[ActionStatus]int {
	counts := make(map[ActionStatus]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}
