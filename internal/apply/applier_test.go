package apply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/audd/internal/diff"
	"github.com/roach88/audd/internal/errs"
	"github.com/roach88/audd/internal/ir"
	"github.com/roach88/audd/internal/resolve"
	"github.com/roach88/audd/internal/testutil"
)

func dataset(fields []ir.Field, records ...ir.IRObject) *ir.IR {
	return &ir.IR{
		Version:  ir.IRVersion,
		Source:   ir.SourceInfo{Type: "memory", Format: "memory"},
		Schema:   ir.Schema{Fields: fields, PrimaryKey: []string{"id"}},
		Data:     records,
		Metadata: ir.Metadata{RowCount: len(records), CreatedAt: testutil.Epoch},
	}
}

func rec(id int64, name string) ir.IRObject {
	return ir.IRObject{"id": ir.IRInt(id), "name": ir.IRString(name)}
}

var people = []ir.Field{{Name: "id", Type: ir.TypeInteger}, {Name: "name", Type: ir.TypeString}}

// baseline and candidate differ by one modified name, one added record,
// one removed record and one added field.
func baseline() *ir.IR {
	return dataset(people, rec(1, "Ann"), rec(2, "Bo"), rec(4, "Di"))
}

func candidate() *ir.IR {
	fields := append(append([]ir.Field(nil), people...), ir.Field{Name: "email", Type: ir.TypeString, Nullable: true})
	return dataset(fields,
		ir.IRObject{"id": ir.IRInt(1), "name": ir.IRString("Anne"), "email": ir.IRString("anne@x")},
		ir.IRObject{"id": ir.IRInt(2), "name": ir.IRString("Bo"), "email": ir.IRNull{}},
		ir.IRObject{"id": ir.IRInt(3), "name": ir.IRString("Cy"), "email": ir.IRString("cy@x")},
	)
}

func plan(t *testing.T, a, b *ir.IR, opts resolve.Options) *ir.Plan {
	t.Helper()
	d, err := diff.Compare(a, b, diff.Options{Strategy: diff.Hybrid, Threshold: 1})
	require.NoError(t, err)
	p, err := resolve.Propose(d, opts)
	require.NoError(t, err)
	return p
}

func acceptAll() resolve.Options {
	return resolve.Options{Strategy: resolve.Aggressive, PreferSource: resolve.PreferB, AutoResolveThreshold: 1}
}

func target(t *testing.T, x *ir.IR) *MemoryTarget {
	t.Helper()
	m, err := NewMemoryTarget(x)
	require.NoError(t, err)
	m.SetIDGenerator(testutil.NewSequentialIDs("backup").Generate)
	return m
}

func TestApplyAcceptAllReachesCandidate(t *testing.T) {
	a, b := baseline(), candidate()
	m := target(t, a)

	res, err := New(m).Apply(context.Background(), plan(t, a, b, acceptAll()), Options{})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Empty(t, res.Interrupted)

	after := m.IR(a)
	require.True(t, ir.ValidateIR(after).OK, ir.ValidateIR(after).Errors)
	d, err := diff.Compare(after, b, diff.Options{Strategy: diff.Hybrid, Threshold: 1})
	require.NoError(t, err)
	assert.Empty(t, d.SchemaChanges)
	assert.Empty(t, d.RowChanges)
}

func TestApplyRejectAllKeepsBaseline(t *testing.T) {
	a, b := baseline(), candidate()
	m := target(t, a)
	before := ir.MustContentHash(m.IR(a))

	opts := resolve.Options{Strategy: resolve.Aggressive, PreferSource: resolve.PreferA, AutoResolveThreshold: 1}
	res, err := New(m).Apply(context.Background(), plan(t, a, b, opts), Options{})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, before, ir.MustContentHash(m.IR(a)))
}

func TestDryRunNeverMutates(t *testing.T) {
	a, b := baseline(), candidate()
	m := target(t, a)
	before := ir.MustContentHash(m.IR(a))
	p := plan(t, a, b, acceptAll())

	dry, err := New(m).Apply(context.Background(), p, Options{DryRun: true, Backup: true})
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Nil(t, dry.Backup, "dry runs take no backup")
	assert.Equal(t, before, ir.MustContentHash(m.IR(a)))

	live, err := New(m).Apply(context.Background(), p, Options{})
	require.NoError(t, err)
	require.Len(t, dry.Results, len(live.Results))
	for i := range live.Results {
		assert.Equal(t, live.Results[i].Status, dry.Results[i].Status, "action %d", i)
	}
	assert.Equal(t, live.Applied, dry.Applied)
}

func TestDryRunSeesEarlierActions(t *testing.T) {
	a := baseline()
	m := target(t, a)
	p := &ir.Plan{
		Version:   ir.IRVersion,
		KeyFields: []string{"id"},
		Actions: []ir.Action{
			{Ref: ir.ChangeRef{Section: ir.SectionSchema}, Field: "email", Change: ir.ChangeAdded, Kind: ir.ActionAccept, Value: ir.IRString("string")},
			{Ref: ir.ChangeRef{Section: ir.SectionRow}, Key: ir.Key{ir.IRInt(1)}, Field: "email", Kind: ir.ActionAccept, Value: ir.IRString("a@x")},
		},
	}

	res, err := New(m).Apply(context.Background(), p, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.Applied, "the field exists once the schema action has run")
	_, declared := m.schema.Field("email")
	assert.False(t, declared)
}

func TestApplyPartialFailure(t *testing.T) {
	a := baseline()
	m := target(t, a)
	p := &ir.Plan{
		Version:   ir.IRVersion,
		KeyFields: []string{"id"},
		Actions: []ir.Action{
			{Ref: ir.ChangeRef{Section: ir.SectionRow, Index: 0}, Key: ir.Key{ir.IRInt(9)}, Field: "name", Kind: ir.ActionAccept, Value: ir.IRString("ghost")},
			{Ref: ir.ChangeRef{Section: ir.SectionRow, Index: 1}, Key: ir.Key{ir.IRInt(1)}, Field: "name", Kind: ir.ActionManual},
			{Ref: ir.ChangeRef{Section: ir.SectionRow, Index: 2}, Key: ir.Key{ir.IRInt(2)}, Field: "name", Kind: ir.ActionMerge, Value: ir.IRString("Bob")},
			{Ref: ir.ChangeRef{Section: ir.SectionRow, Index: 3}, Key: ir.Key{ir.IRInt(2)}, Field: "name", Kind: ir.ActionAccept, Value: ir.IRInt(7)},
		},
	}

	res, err := New(m).Apply(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.False(t, res.Applied)

	require.Len(t, res.Results, 4)
	assert.Equal(t, ir.StatusFailed, res.Results[0].Status)
	assert.Contains(t, res.Results[0].Error, "not found")
	assert.Equal(t, string(errs.KindInvalidInput), res.Results[0].ErrorKind)
	assert.Equal(t, ir.StatusSkipped, res.Results[1].Status)
	assert.Equal(t, ir.StatusSucceeded, res.Results[2].Status)
	assert.Equal(t, ir.StatusFailed, res.Results[3].Status, "a string field never takes an integer")

	got, ok, err := m.Lookup(context.Background(), ir.Key{ir.IRInt(2)})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRString("Bob"), got["name"])
}

func TestApplyManualOnlyIsApplied(t *testing.T) {
	a := baseline()
	m := target(t, a)
	p := &ir.Plan{
		Version: ir.IRVersion,
		Actions: []ir.Action{{Ref: ir.ChangeRef{Section: ir.SectionRow}, Key: ir.Key{ir.IRInt(1)}, Field: "name", Kind: ir.ActionManual}},
	}
	res, err := New(m).Apply(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, ir.StatusSkipped, res.Results[0].Status)
}

func TestApplyBackupAndRestore(t *testing.T) {
	a, b := baseline(), candidate()
	m := target(t, a)
	before := ir.MustContentHash(m.IR(a))

	res, err := New(m).Apply(context.Background(), plan(t, a, b, acceptAll()), Options{Backup: true})
	require.NoError(t, err)
	require.NotNil(t, res.Backup)
	assert.Equal(t, "backup-0001", res.Backup.ID)
	assert.Equal(t, 2, res.Backup.Records, "records 1 and 4 existed, 3 did not")
	assert.NotEqual(t, before, ir.MustContentHash(m.IR(a)))

	// The email field was added, not dropped, so the backup is keyed.
	require.NoError(t, m.MutateSchema(context.Background(), SchemaMutation{Field: "email", Drop: true}))
	require.NoError(t, m.Restore(context.Background(), res.Backup.ID))
	assert.Equal(t, before, ir.MustContentHash(m.IR(a)))
}

func TestApplyWholeBackupWhenDroppingField(t *testing.T) {
	a, b := candidate(), baseline()
	m := target(t, a)
	before := ir.MustContentHash(m.IR(a))

	res, err := New(m).Apply(context.Background(), plan(t, a, b, acceptAll()), Options{Backup: true})
	require.NoError(t, err)
	require.NotNil(t, res.Backup)
	assert.Equal(t, 3, res.Backup.Records)

	require.NoError(t, m.Restore(context.Background(), res.Backup.ID))
	assert.Equal(t, before, ir.MustContentHash(m.IR(a)))
}

// codes is retyped from integer to string between the two sides.
func codes(t ir.Type, values ...ir.IRValue) *ir.IR {
	fields := []ir.Field{{Name: "id", Type: ir.TypeInteger}, {Name: "code", Type: t}}
	var records []ir.IRObject
	for i, v := range values {
		records = append(records, ir.IRObject{"id": ir.IRInt(int64(i + 1)), "code": v})
	}
	return dataset(fields, records...)
}

func TestApplyRetypeTakesCandidateValues(t *testing.T) {
	a := codes(ir.TypeInteger, ir.IRInt(10), ir.IRInt(20))
	b := codes(ir.TypeString, ir.IRString("X1"), ir.IRString("X2"))
	m := target(t, a)
	p := plan(t, a, b, acceptAll())
	require.Len(t, p.Actions, 1, "hybrid reports the retype once")
	require.Len(t, p.Actions[0].Values, 2)

	dry, err := New(m).Apply(context.Background(), p, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, dry.Applied)

	res, err := New(m).Apply(context.Background(), p, Options{Backup: true})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.NotNil(t, res.Backup)
	assert.Equal(t, 2, res.Backup.Records, "a retype backs up the whole dataset")

	after := m.IR(a)
	require.True(t, ir.ValidateIR(after).OK, ir.ValidateIR(after).Errors)
	assert.Equal(t, ir.MustContentHash(b), ir.MustContentHash(after))

	require.NoError(t, m.Restore(context.Background(), res.Backup.ID))
	assert.Equal(t, ir.MustContentHash(a), ir.MustContentHash(m.IR(a)))
}

func TestApplyRetypeFailsWhenValuesDoNotFit(t *testing.T) {
	a := codes(ir.TypeInteger, ir.IRInt(10), ir.IRInt(20))
	m := target(t, a)
	before := ir.MustContentHash(m.IR(a))

	// Only record 1 gets a string; record 2 would keep an integer.
	p := &ir.Plan{
		Version:   ir.IRVersion,
		KeyFields: []string{"id"},
		Actions: []ir.Action{{
			Ref: ir.ChangeRef{Section: ir.SectionSchema}, Field: "code", Change: ir.ChangeTypeChanged,
			Kind: ir.ActionAccept, Value: ir.IRString("string"), ValueType: ir.TypeString,
			Values: []ir.FieldValue{{Key: ir.Key{ir.IRInt(1)}, Value: ir.IRString("X1"), ValueType: ir.TypeString}},
		}},
	}

	dry, err := New(m).Apply(context.Background(), p, Options{DryRun: true})
	require.NoError(t, err)
	assert.False(t, dry.Applied)

	res, err := New(m).Apply(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	require.Len(t, res.Results, 1)
	assert.Equal(t, ir.StatusFailed, res.Results[0].Status)
	assert.Equal(t, string(errs.KindInvalidInput), res.Results[0].ErrorKind)
	assert.Contains(t, res.Results[0].Error, "[2]")
	assert.Equal(t, before, ir.MustContentHash(m.IR(a)), "a failed retype changes nothing")
}

func TestApplyRetypeConvertsNumbers(t *testing.T) {
	a := codes(ir.TypeInteger, ir.IRInt(10), ir.IRNull{})
	m := target(t, a)
	ctx := context.Background()

	require.NoError(t, m.MutateSchema(ctx, SchemaMutation{Field: "code", Type: ir.TypeFloat}))
	got, _, err := m.Lookup(ctx, ir.Key{ir.IRInt(1)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRFloat(10), got["code"])

	require.NoError(t, m.MutateSchema(ctx, SchemaMutation{Field: "code", Type: ir.TypeInteger}))
	got, _, err = m.Lookup(ctx, ir.Key{ir.IRInt(1)})
	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(10), got["code"])

	require.NoError(t, m.MutateSchema(ctx, SchemaMutation{Field: "code", Type: ir.TypeFloat,
		Values: []FieldValue{{Key: ir.Key{ir.IRInt(1)}, Value: ir.IRFloat(10.5)}}}))
	err = m.MutateSchema(ctx, SchemaMutation{Field: "code", Type: ir.TypeInteger})
	assert.True(t, errs.Is(err, errs.KindInvalidInput), "10.5 is not an integer")
	assert.True(t, errs.Is(m.CheckSchema(ctx, SchemaMutation{Field: "code", Type: ir.TypeInteger}), errs.KindInvalidInput))

	schema, err := m.Schema(ctx)
	require.NoError(t, err)
	f, _ := schema.Field("code")
	assert.Equal(t, ir.TypeFloat, f.Type)
}

type failingBackups struct{}

func (failingBackups) Snapshot(context.Context, []ir.Key) (string, int, error) {
	return "", 0, errors.New("disk full")
}

func TestApplyBackupFailureMutatesNothing(t *testing.T) {
	a, b := baseline(), candidate()
	m := target(t, a)
	before := ir.MustContentHash(m.IR(a))

	_, err := New(m, WithBackupStore(failingBackups{})).Apply(context.Background(), plan(t, a, b, acceptAll()), Options{Backup: true})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindIO))
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, before, ir.MustContentHash(m.IR(a)))
}

// bareTarget hides MemoryTarget's BackupStore and can run a hook on each
// mutation.
type bareTarget struct {
	*MemoryTarget
	onMutate func()
}

func (b bareTarget) Snapshot() {}

func (b bareTarget) Mutate(ctx context.Context, m Mutation) error {
	if b.onMutate != nil {
		b.onMutate()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.MemoryTarget.Mutate(ctx, m)
}

func TestApplyBackupWithoutStore(t *testing.T) {
	a, b := baseline(), candidate()
	_, err := New(bareTarget{MemoryTarget: target(t, a)}).Apply(context.Background(), plan(t, a, b, acceptAll()), Options{Backup: true})
	assert.True(t, errs.Is(err, errs.KindInvalidInput))
}

func TestApplyCancelledBetweenActions(t *testing.T) {
	a, b := baseline(), candidate()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tgt := bareTarget{MemoryTarget: target(t, a), onMutate: cancel}
	p := plan(t, a, b, resolve.Options{Strategy: resolve.Aggressive, PreferSource: resolve.PreferB, AutoResolveThreshold: 1})

	res, err := New(tgt).Apply(ctx, p, Options{})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", res.Interrupted)
	assert.False(t, res.Applied)

	// The schema action ran through MutateSchema; the first record mutation
	// cancelled the context but still completed.
	var processed []ir.ActionStatus
	for _, r := range res.Results {
		processed = append(processed, r.Status)
	}
	assert.Equal(t, []ir.ActionStatus{ir.StatusSucceeded, ir.StatusSucceeded}, processed)
	assert.Less(t, len(res.Results), len(p.Actions))
}

func TestApplyTimeout(t *testing.T) {
	a, b := baseline(), candidate()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	res, err := New(target(t, a)).Apply(ctx, plan(t, a, b, acceptAll()), Options{})
	require.NoError(t, err)
	assert.Equal(t, "timeout", res.Interrupted)
	assert.Empty(t, res.Results)
}

func TestApplyRejectsBadPlan(t *testing.T) {
	m := target(t, baseline())

	_, err := New(m).Apply(context.Background(), nil, Options{})
	assert.True(t, errs.Is(err, errs.KindInvalidInput))

	_, err = New(m).Apply(context.Background(), &ir.Plan{Version: "3.0"}, Options{})
	assert.True(t, errs.Is(err, errs.KindInvalidInput))

	_, err = New(m).Apply(context.Background(), &ir.Plan{Version: ir.IRVersion, KeyFields: []string{"email"}}, Options{})
	assert.True(t, errs.Is(err, errs.KindInvalidInput))
}

func TestApplyRefusesKeyChanges(t *testing.T) {
	m := target(t, baseline())
	p := &ir.Plan{
		Version: ir.IRVersion,
		Actions: []ir.Action{
			{Ref: ir.ChangeRef{Section: ir.SectionSchema}, Field: "id", Kind: ir.ActionAccept, Value: ir.IRNull{}},
			{Ref: ir.ChangeRef{Section: ir.SectionRow}, Key: ir.Key{ir.IRInt(1)}, Field: "id", Kind: ir.ActionAccept, Value: ir.IRInt(5)},
		},
	}
	res, err := New(m).Apply(context.Background(), p, Options{})
	require.NoError(t, err)
	assert.Equal(t, ir.StatusFailed, res.Results[0].Status)
	assert.Equal(t, ir.StatusFailed, res.Results[1].Status)
}
