package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/audd/internal/ir"
)

// Snapshot is the part of a run a golden file pins down. Run ids, backup ids
// and timestamps come from deterministic generators, so snapshots are stable.
type Snapshot struct {
	Scenario  string          `json:"scenario"`
	Diff      *ir.Diff        `json:"diff,omitempty"`
	Plan      *ir.Plan        `json:"plan,omitempty"`
	Result    *ir.ApplyResult `json:"result,omitempty"`
	Final     []ir.IRObject   `json:"final,omitempty"`
	ErrorKind string          `json:"error_kind,omitempty"`
}

// NewSnapshot extracts the snapshot of a result.
func NewSnapshot(name string, r *Result) Snapshot {
	s := Snapshot{Scenario: name, ErrorKind: r.ErrorKind}
	if rep := r.Report; rep != nil {
		s.Diff, s.Plan, s.Result = rep.Diff, rep.Plan, rep.Result
		if rep.Final != nil {
			s.Final = rep.Final.Data
		}
	}
	return s
}

// SnapshotJSON renders the snapshot of a result in canonical JSON, the form
// golden files hold.
func SnapshotJSON(name string, r *Result) ([]byte, error) {
	return ir.CanonicalJSON(NewSnapshot(name, r))
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, sc *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(sc)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	return AssertGoldenIn(t, "testdata/golden", name, result)
}

// AssertGoldenIn is AssertGolden with an explicit fixture directory.
func AssertGoldenIn(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
