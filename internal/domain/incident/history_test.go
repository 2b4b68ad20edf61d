package incident

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFixture(id string, ral []IncidentRecord) *Snapshot {
	return &Snapshot{
		ID:        id,
		UpdatedAt: "12/01/2026 11:15",
		FetchedAt: time.Date(2026, 1, 12, 11, 15, 0, 0, time.UTC),
		RAL:       Dataset{Name: DatasetRAL, Total: len(ral), Items: ral},
		REC:       Dataset{Name: DatasetREC, Total: 1, Items: []IncidentRecord{{Cluster: "RJO", Type: "CLIENTE X"}}},
	}
}

func TestSummarize(t *testing.T) {
	s := snapshotFixture("s1", []IncidentRecord{
		{Cluster: "A", Type: "T", Description: "SWAP", Duration: "1d.00h00m"},
		{Cluster: "B", Type: "T"},
	})

	sum := Summarize(s)
	assert.Equal(t, "s1", sum.SnapshotID)
	require.Len(t, sum.Datasets, 2)

	ral, ok := sum.Dataset(DatasetRAL)
	require.True(t, ok)
	assert.Equal(t, 2, ral.Items)
	assert.True(t, ral.Critical)
	assert.Equal(t, []ClusterStat{{Name: "A", Count: 1, Critical: true}, {Name: "B", Count: 1}}, ral.Clusters)

	rec, ok := sum.Dataset(DatasetREC)
	require.True(t, ok)
	assert.Equal(t, 1, rec.Total)
	assert.False(t, rec.Critical)

	_, ok = sum.Dataset("XYZ")
	assert.False(t, ok)
}

func TestDiffCritical_FirstSnapshot(t *testing.T) {
	next := Summarize(snapshotFixture("s1", []IncidentRecord{
		{Cluster: "A", Description: "SWAP", Duration: "1d.00h00m"},
		{Cluster: "B"},
	}))

	got := DiffCritical(nil, next)
	require.Len(t, got, 1)
	assert.Equal(t, DatasetRAL, got[0].Dataset)
	assert.Equal(t, "A", got[0].Cluster)
	assert.True(t, got[0].Critical)
	assert.Equal(t, "s1", got[0].SnapshotID)
}

func TestDiffCritical_RaisedClearedAndVanished(t *testing.T) {
	prev := Summarize(snapshotFixture("s1", []IncidentRecord{
		{Cluster: "A", Description: "SWAP", Duration: "1d.00h00m"},
		{Cluster: "B"},
		{Cluster: "C", Description: "RUP CABO", Duration: "0d.12h00m"},
	}))
	next := Summarize(snapshotFixture("s2", []IncidentRecord{
		{Cluster: "A"},
		{Cluster: "B", Description: "SWAP", Duration: "2d.00h00m"},
	}))

	got := DiffCritical(&prev, next)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Cluster)
	assert.False(t, got[0].Critical)
	assert.Equal(t, "B", got[1].Cluster)
	assert.True(t, got[1].Critical)
	assert.Equal(t, "C", got[2].Cluster)
	assert.False(t, got[2].Critical)
	assert.Zero(t, got[2].Count)
}

func TestDiffCritical_NoChange(t *testing.T) {
	s := Summarize(snapshotFixture("s1", []IncidentRecord{{Cluster: "A", Description: "SWAP", Duration: "1d.00h00m"}}))
	assert.Empty(t, DiffCritical(&s, s))
}

func TestApplyHistoryOptions(t *testing.T) {
	assert.Equal(t, 20, ApplyHistoryOptions().Limit)
	assert.Equal(t, 20, ApplyHistoryOptions(WithLimit(-1)).Limit)
	assert.Equal(t, 500, ApplyHistoryOptions(WithLimit(10_000)).Limit)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := ApplyHistoryOptions(WithLimit(5), WithSince(since))
	assert.Equal(t, 5, o.Limit)
	assert.Equal(t, since, o.Since)
}
