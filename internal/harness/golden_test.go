package harness

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audd/internal/ir"
)

// Two runs of a scenario must produce byte-identical snapshots: the first
// run writes the golden file, the second is asserted against it.
func TestGolden_Deterministic(t *testing.T) {
	for _, name := range []string{"ann_anne", "aggressive_prefer_b", "partial_failure", "duplicate_key_override"} {
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
			require.NoError(t, err)
			dir := t.TempDir()

			first, err := Run(sc)
			require.NoError(t, err)
			data, err := ir.CanonicalJSON(NewSnapshot(sc.Name, first))
			require.NoError(t, err)
			g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
			require.NoError(t, g.Update(t, sc.Name, data))

			second, err := Run(sc)
			require.NoError(t, err)
			require.NoError(t, AssertGoldenIn(t, dir, sc.Name, second))
		})
	}
}

func TestNewSnapshot(t *testing.T) {
	sc, err := LoadScenario(filepath.Join(scenarioDir, "ann_anne.yaml"))
	require.NoError(t, err)
	result, err := Run(sc)
	require.NoError(t, err)

	snap := NewSnapshot(sc.Name, result)
	assert.Equal(t, "ann_anne", snap.Scenario)
	require.NotNil(t, snap.Diff)
	require.NotNil(t, snap.Plan)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Final, 2)
	assert.Empty(t, snap.ErrorKind)
}

func TestNewSnapshot_ErrorOnly(t *testing.T) {
	snap := NewSnapshot("broken", &Result{ErrorKind: "invalid_input"})
	assert.Nil(t, snap.Diff)
	assert.Nil(t, snap.Final)
	assert.Equal(t, "invalid_input", snap.ErrorKind)
}
