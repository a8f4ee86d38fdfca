package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/source"
)

// Scenario defines one reconciliation test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// A is the baseline, B the candidate.
	A Side `yaml:"a"`
	B Side `yaml:"b"`

	// Target seeds the store dataset. When absent the dataset is seeded
	// from A.
	Target *Side `yaml:"target,omitempty"`

	// PrimaryKey overrides key detection for every side.
	PrimaryKey []string `yaml:"primary_key,omitempty"`

	Compare CompareSettings `yaml:"compare,omitempty"`
	Resolve ResolveSettings `yaml:"resolve,omitempty"`
	Apply   ApplySettings   `yaml:"apply,omitempty"`

	Expect     Expect      `yaml:"expect,omitempty"`
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the scenario file's directory; relative source locations
	// resolve against it.
	dir string
}

// Side is a record set given inline or by source descriptor.
type Side struct {
	Records Records            `yaml:"records,omitempty"`
	Source  *source.Descriptor `yaml:"source,omitempty"`
}

// Descriptor returns the source the side describes.
func (s Side) Descriptor(dir string) source.Descriptor {
	if s.Source == nil {
		return source.Descriptor{Kind: source.KindMemory, Records: s.Records}
	}
	d := *s.Source
	if d.Location != "" && !filepath.IsAbs(d.Location) && dir != "" {
		d.Location = filepath.Join(dir, d.Location)
	}
	return d
}

// Records are inline rows. Field order follows the YAML mapping order.
type Records []source.RawRow

// UnmarshalYAML decodes a sequence of mappings, keeping key order.
func (r *Records) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: records must be a sequence", node.Line)
	}
	out := make(Records, 0, len(node.Content))
	for i, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: records[%d] must be a mapping", item.Line, i)
		}
		row := make(source.RawRow, 0, len(item.Content)/2)
		for j := 0; j+1 < len(item.Content); j += 2 {
			var v any
			if err := item.Content[j+1].Decode(&v); err != nil {
				return fmt.Errorf("records[%d].%s: %w", i, item.Content[j].Value, err)
			}
			row.Set(item.Content[j].Value, rawValue(v))
		}
		out = append(out, row)
	}
	*r = out
	return nil
}

// rawValue maps YAML-decoded values onto the loosely typed values sources
// produce.
func rawValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case time.Time:
		return val.UTC()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = rawValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = rawValue(e)
		}
		return out
	}
	return v
}

// CompareSettings override the compare configuration.
type CompareSettings struct {
	Strategy     string   `yaml:"strategy,omitempty"`
	Threshold    *float64 `yaml:"threshold,omitempty"`
	IgnoreFields []string `yaml:"ignore_fields,omitempty"`
}

// ResolveSettings override the resolve configuration.
type ResolveSettings struct {
	Strategy             string   `yaml:"strategy,omitempty"`
	PreferSource         string   `yaml:"prefer_source,omitempty"`
	AutoResolveThreshold *float64 `yaml:"auto_resolve_threshold,omitempty"`
}

// ApplySettings override the apply configuration.
type ApplySettings struct {
	DryRun bool  `yaml:"dry_run,omitempty"`
	Backup *bool `yaml:"backup,omitempty"`
}

// Expect holds whole-run expectations. Nil fields are not checked.
type Expect struct {
	// Error is the errs.Kind the run must fail with.
	Error string `yaml:"error,omitempty"`

	SchemaChanges *int `yaml:"schema_changes,omitempty"`
	RowChanges    *int `yaml:"row_changes,omitempty"`

	// Actions counts plan actions by kind (accept, reject, merge, manual).
	Actions map[string]int `yaml:"actions,omitempty"`

	Applied *bool `yaml:"applied,omitempty"`
}

// Assertion checks one detail of the run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Key and Field locate a row change, action or action result. An empty
	// field means the whole record.
	Key   []any  `yaml:"key,omitempty"`
	Field string `yaml:"field,omitempty"`

	// Kind is the change kind, action kind or action status expected.
	Kind string `yaml:"kind,omitempty"`

	// Where selects a final record (final_state); all fields must match.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect lists field values the selected record must hold (final_state).
	// Subset match: only listed fields are checked.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of final records (final_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSchemaChange = "schema_change"
	AssertRowChange    = "row_change"
	AssertAction       = "action"
	AssertActionStatus = "action_status"
	AssertFinalState   = "final_state"
	AssertFinalCount   = "final_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown keys are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "scenario", err, "read %s", path)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, errs.Wrap(errs.KindParse, "scenario", err, "parse YAML")
	}
	if err := validateScenario(&sc); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "scenario", err, "invalid scenario")
	}
	return &sc, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "scenario", err, "glob %s", dir)
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	for name, side := range map[string]*Side{"a": &sc.A, "b": &sc.B, "target": sc.Target} {
		if side == nil {
			continue
		}
		if side.Source != nil && len(side.Records) > 0 {
			return fmt.Errorf("%s: records and source are mutually exclusive", name)
		}
	}
	for i, a := range sc.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSchemaChange:
		if a.Field == "" || a.Kind == "" {
			return fmt.Errorf("assertions[%d]: field and kind are required for schema_change", index)
		}
	case AssertRowChange, AssertAction, AssertActionStatus:
		if len(a.Key) == 0 && a.Type != AssertAction {
			return fmt.Errorf("assertions[%d]: key is required for %s", index, a.Type)
		}
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for %s", index, a.Type)
		}
	case AssertFinalState:
		if len(a.Where) == 0 {
			return fmt.Errorf("assertions[%d]: where is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertFinalCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: a non-negative count is required for final_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
