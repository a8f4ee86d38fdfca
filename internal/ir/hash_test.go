package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIR(created time.Time) *IR {
	return &IR{
		Version: IRVersion,
		Source:  SourceInfo{Type: "file", Format: "json", Location: "a.json"},
		Schema: Schema{
			Fields:     []Field{{Name: "id", Type: TypeInteger}, {Name: "name", Type: TypeString}},
			PrimaryKey: []string{"id"},
		},
		Data: []IRObject{
			{"id": IRInt(1), "name": IRString("Ann")},
			{"id": IRInt(2), "name": IRString("Bob")},
		},
		Metadata: Metadata{RowCount: 2, CreatedAt: created},
	}
}

func TestContentHashIgnoresCreatedAt(t *testing.T) {
	a := sampleIR(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := sampleIR(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64, "SHA-256 hex is 64 characters")
}

func TestContentHashChangesWithData(t *testing.T) {
	a := sampleIR(time.Time{})
	b := sampleIR(time.Time{})
	b.Data[1]["name"] = IRString("Bobby")

	assert.NotEqual(t, MustContentHash(a), MustContentHash(b))
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainIR, data), hashWithDomain(DomainPlan, data))
	assert.NotEqual(t, hashWithDomain(DomainDiff, data), hashWithDomain(DomainPlan, data))
}

func TestPlanIDDeterministic(t *testing.T) {
	p := &Plan{Version: IRVersion, Strategy: "balanced", PreferSource: "merge", KeyFields: []string{"id"}}
	id1, err := PlanID(p)
	require.NoError(t, err)
	id2, err := PlanID(p)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	p.Strategy = "aggressive"
	id3, err := PlanID(p)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}
