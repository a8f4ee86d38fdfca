package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audd/internal/ir"
)

const scenarioDir = "testdata/scenarios"

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			result, err := Run(sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failures: %v", result.Errors)
		})
	}
}

func TestRun_ExpectedErrorIsAnOutcome(t *testing.T) {
	sc, err := LoadScenario(filepath.Join(scenarioDir, "duplicate_key_override.yaml"))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
	assert.Equal(t, "invalid_input", result.ErrorKind)
	assert.Nil(t, result.Report)
}

func TestRun_UnexpectedErrorIsReturned(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: bad_threshold
a:
  records: [{id: 1}]
b:
  records: [{id: 1}]
compare:
  threshold: 1.5
`))
	require.NoError(t, err)

	_, err = Run(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad_threshold")
}

func TestRun_InvalidSettingsCanBeExpected(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: bad_threshold
a:
  records: [{id: 1}]
b:
  records: [{id: 1}]
compare:
  threshold: 1.5
expect:
  error: invalid_input
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "failures: %v", result.Errors)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: wrong_expectations
a:
  records: [{id: 1, name: Ann}]
b:
  records: [{id: 1, name: Zed}]
expect:
  row_changes: 2
  actions: {accept: 1}
assertions:
  - type: final_state
    where: {id: 1}
    expect: {name: Zed}
  - type: final_count
    count: 3
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "row_changes: expected 2, got 1")
	assert.Contains(t, result.Errors[1], "actions[accept]: expected 1, got 0")
	assert.Contains(t, result.Errors[2], "final_state")
	assert.Contains(t, result.Errors[3], "final_count")
}

func TestRun_ExpectedErrorButSucceeded(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: no_error
a:
  records: [{id: 1}]
b:
  records: [{id: 1}]
expect:
  error: invalid_input
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected error invalid_input")
	assert.Empty(t, result.ErrorKind)
}

func TestStateValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		want ir.IRValue
		got  ir.IRValue
		eq   bool
	}{
		{"int matches float", ir.IRInt(10), ir.IRFloat(10), true},
		{"strings", ir.IRString("a"), ir.IRString("a"), true},
		{"string differs", ir.IRString("a"), ir.IRString("b"), false},
		{"date as string", ir.IRString("2023-01-15"), ir.NewCalendarDate(2023, 1, 15), true},
		{"null", ir.IRNull{}, ir.IRNull{}, true},
		{"null vs value", ir.IRNull{}, ir.IRInt(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.eq, stateValuesEqual(tt.want, tt.got))
		})
	}
}
