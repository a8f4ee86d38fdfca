package ir

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audd/internal/errs"
)

func TestJSONFieldNaming(t *testing.T) {
	x := sampleIR(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err := json.Marshal(x)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"primary_key"`)
	assert.Contains(t, string(data), `"row_count"`)
	assert.Contains(t, string(data), `"created_at"`)
	assert.NotContains(t, string(data), `"PrimaryKey"`)
	assert.NotContains(t, string(data), `"rowCount"`)
}

func TestIRRoundTripWithHints(t *testing.T) {
	x := &IR{
		Version: IRVersion,
		Source:  SourceInfo{Type: "memory", Format: "memory"},
		Schema: Schema{
			Fields: []Field{
				{Name: "id", Type: TypeInteger},
				{Name: "joined", Type: TypeDate},
				{Name: "score", Type: TypeFloat, Nullable: true},
			},
			PrimaryKey: []string{"id"},
		},
		Data: []IRObject{
			{"id": IRInt(1), "joined": NewCalendarDate(2023, time.July, 4), "score": IRFloat(10)},
			{"id": IRInt(2), "joined": NewCalendarDate(2023, time.July, 5), "score": IRNull{}},
		},
		Metadata: Metadata{RowCount: 2, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	data, err := json.Marshal(x)
	require.NoError(t, err)

	got, err := DecodeIR(data)
	require.NoError(t, err)
	assert.Equal(t, x.Schema, got.Schema)
	assert.Equal(t, x.Data, got.Data)
	assert.True(t, x.Metadata.CreatedAt.Equal(got.Metadata.CreatedAt))
	assert.Equal(t, MustContentHash(x), MustContentHash(got))
}

func TestDiffRoundTrip(t *testing.T) {
	d := &Diff{
		Version:    IRVersion,
		Strategy:   "hybrid",
		Threshold:  0.8,
		Comparator: ComparatorVersion,
		KeyFields:  []string{"id"},
		SchemaChanges: []SchemaChange{
			{Field: "age", Kind: ChangeTypeChanged, OldType: TypeInteger, NewType: TypeString},
		},
		RowChanges: []RowChange{
			{Key: Key{IRInt(1)}, Field: "name", Kind: ChangeModified, OldValue: IRString("Ann"), NewValue: IRString("Anne"), OldType: TypeString, NewType: TypeString, Confidence: 0.75},
			{Key: Key{IRInt(1)}, Field: "seen", Kind: ChangeModified, OldValue: NewCalendarDate(2024, 1, 1), NewValue: IRNull{}, OldType: TypeDate, NewType: TypeNull, Confidence: 0},
			{Key: Key{IRInt(2)}, Kind: ChangeAdded, OldValue: IRNull{}, NewValue: IRObject{"id": IRInt(2)}, OldType: TypeNull, NewType: TypeObject, Confidence: 1},
		},
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	got, err := DecodeDiff(data)
	require.NoError(t, err)
	assert.Equal(t, d, got)
	assert.True(t, got.RowChanges[2].WholeRecord())
	assert.False(t, got.RowChanges[0].TypeConflict())
}

func TestPlanRoundTrip(t *testing.T) {
	p := &Plan{
		Version:      IRVersion,
		Strategy:     "balanced",
		PreferSource: "merge",
		KeyFields:    []string{"id"},
		Actions: []Action{
			{Ref: ChangeRef{Section: SectionRow, Index: 2}, Key: Key{IRInt(2)}, Change: ChangeAdded, Kind: ActionAccept, Value: IRObject{"id": IRInt(2)}, ValueType: TypeObject, Rationale: "added"},
			{Ref: ChangeRef{Section: SectionRow, Index: 0}, Key: Key{IRInt(1)}, Field: "name", Change: ChangeModified, Kind: ActionManual, Rationale: "low confidence"},
			{Ref: ChangeRef{Section: SectionRow, Index: 1}, Key: Key{IRInt(3)}, Change: ChangeRemoved, Kind: ActionAccept, Value: IRNull{}, ValueType: TypeNull, Rationale: "removed"},
		},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	got, err := DecodePlan(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Nil(t, got.Actions[1].Value, "manual actions carry no value")
	assert.False(t, got.Actions[1].Executable())
	assert.Equal(t, "row[2]", got.Actions[0].Ref.String())
}

func TestApplyResultRoundTrip(t *testing.T) {
	r := &ApplyResult{
		Version: IRVersion,
		Applied: false,
		DryRun:  true,
		Results: []ActionResult{
			{Index: 0, Ref: ChangeRef{Section: SectionRow, Index: 0}, Kind: ActionAccept, Status: StatusSucceeded, Value: IRFloat(2), ValueType: TypeFloat},
			{Index: 1, Ref: ChangeRef{Section: SectionRow, Index: 1}, Kind: ActionManual, Status: StatusSkipped},
			{Index: 2, Ref: ChangeRef{Section: SectionRow, Index: 2}, Kind: ActionMerge, Status: StatusFailed, Error: "record not found", ErrorKind: "invalid_input"},
		},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	got, err := DecodeApplyResult(data)
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.Equal(t, map[ActionStatus]int{StatusSucceeded: 1, StatusSkipped: 1, StatusFailed: 1}, got.Counts())
}

func TestDecodeRejectsUnknownMajorVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"major 2", `{"version":"2.0","schema":{"fields":[]}}`},
		{"missing", `{"schema":{"fields":[]}}`},
		{"malformed", `{"version":"one"}`},
		{"not json", `{"version":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIR([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.KindInvalidInput))

			_, err = DecodePlan([]byte(tt.data))
			assert.True(t, errs.Is(err, errs.KindInvalidInput))
		})
	}
}

func TestCheckVersionAcceptsMinorBumps(t *testing.T) {
	assert.NoError(t, CheckVersion("ir", "1.0"))
	assert.NoError(t, CheckVersion("ir", "1.7"))
	assert.NoError(t, CheckVersion("ir", "1"))
}

func TestKeyOrdering(t *testing.T) {
	assert.Equal(t, -1, CompareKeys(Key{IRInt(1)}, Key{IRInt(2)}))
	assert.Equal(t, 1, CompareKeys(Key{IRString("b"), IRInt(1)}, Key{IRString("a"), IRInt(9)}))
	assert.Equal(t, -1, CompareKeys(Key{IRInt(1)}, Key{IRInt(1), IRInt(0)}))
	assert.Equal(t, `[1,"a"]`, Key{IRInt(1), IRString("a")}.String())
}
