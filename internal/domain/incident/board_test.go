package incident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardDataset() Dataset {
	return Dataset{
		Name:  DatasetRAL,
		Total: 6,
		Items: []IncidentRecord{
			{Cluster: "RJO", Region: "NITEROI", Type: "FOTONICA", Description: "SWAP", Duration: "2d.00h00m"},
			{Cluster: "RJO", Region: "NITEROI", Type: "BACKBONE", Description: "TROCA", Duration: "2d.00h00m"},
			{Cluster: "RJO", Region: "CAMPOS", Type: "FOTONICA", Description: "RUP CABO", Duration: "0d.03h00m"},
			{Cluster: "BHE", Region: "CONTAGEM", Type: "PPC", Description: "RUP CABO", Duration: "0d.15h00m"},
			{Cluster: "", Type: "N/A"},
		},
	}
}

func TestBuildBoard_Unfiltered(t *testing.T) {
	b := BuildBoard(boardDataset(), DatasetPolicy{Name: DatasetRAL, Filterable: true}, nil)

	assert.Equal(t, DatasetRAL, b.Dataset)
	assert.Equal(t, 6, b.Total)
	assert.Equal(t, 5, b.Filtered)
	assert.True(t, b.Critical)
	assert.Equal(t, SeverityNormal, b.Severity)
	assert.Equal(t, []string{"BACKBONE", "FOTONICA", "PPC"}, b.TypeOptions)
	assert.Empty(t, b.SelectedTypes)

	require.Len(t, b.Clusters, 3)
	assert.Equal(t, "BHE", b.Clusters[0].Name)
	assert.Equal(t, "RJO", b.Clusters[1].Name)
	assert.Equal(t, "Unknown", b.Clusters[2].Name)

	rjo := b.Clusters[1]
	assert.Equal(t, 3, rjo.Count)
	assert.True(t, rjo.Critical)
	require.Len(t, rjo.Regions, 2)
	assert.Equal(t, RegionSummary{Name: "CAMPOS", Count: 1, Critical: false, Severity: SeverityNormal}, rjo.Regions[0])
	assert.Equal(t, RegionSummary{Name: "NITEROI", Count: 2, Critical: true, Severity: SeverityNormal}, rjo.Regions[1])

	assert.Equal(t, []string{"BHE", "RJO"}, b.CriticalClusters())
}

func TestBuildBoard_FilterApplied(t *testing.T) {
	b := BuildBoard(boardDataset(), DatasetPolicy{Name: DatasetRAL, Filterable: true}, []string{"BACKBONE"})

	assert.Equal(t, 1, b.Filtered)
	assert.False(t, b.Critical)
	assert.Equal(t, []string{"BACKBONE"}, b.SelectedTypes)
	require.Len(t, b.Clusters, 1)
	assert.Equal(t, "RJO", b.Clusters[0].Name)
	assert.False(t, b.Clusters[0].Critical)
	// type options always describe the full dataset
	assert.Len(t, b.TypeOptions, 3)
}

func TestBuildBoard_NonFilterableIgnoresSelection(t *testing.T) {
	ds := boardDataset()
	ds.Name = DatasetREC
	b := BuildBoard(ds, DatasetPolicy{Name: DatasetREC, Filterable: false}, []string{"BACKBONE"})

	assert.False(t, b.Filterable)
	assert.Empty(t, b.SelectedTypes)
	assert.Equal(t, 5, b.Filtered)
}

func TestBuildBoard_RegionCountsSumToCluster(t *testing.T) {
	b := BuildBoard(boardDataset(), DatasetPolicy{Filterable: true}, []string{"FOTONICA", "PPC"})
	for _, c := range b.Clusters {
		sum := 0
		for _, r := range c.Regions {
			sum += r.Count
		}
		assert.Equal(t, c.Count, sum, c.Name)
	}
}

func TestClusterDetail(t *testing.T) {
	policy := DatasetPolicy{Filterable: true}

	summary, items, ok := ClusterDetail(boardDataset(), policy, "RJO", []string{"FOTONICA"})
	require.True(t, ok)
	assert.Equal(t, 2, summary.Count)
	assert.Len(t, items, 2)
	assert.True(t, summary.Critical)

	_, _, ok = ClusterDetail(boardDataset(), policy, "SPO", nil)
	assert.False(t, ok)
}

func TestDrillDownRegion(t *testing.T) {
	policy := DatasetPolicy{Filterable: true}

	d, ok := DrillDownRegion(boardDataset(), policy, "RJO", "NITEROI", nil)
	require.True(t, ok)
	assert.Equal(t, "RJO", d.Cluster)
	assert.Equal(t, 2, d.Summary.Count)
	assert.True(t, d.Summary.Critical)
	assert.Len(t, d.Records, 2)
	require.NotEmpty(t, d.Critical)
	assert.Equal(t, "SWAP", d.Critical[0].Description)

	d, ok = DrillDownRegion(boardDataset(), policy, "RJO", "CAMPOS", nil)
	require.True(t, ok)
	assert.False(t, d.Summary.Critical)
	assert.NotNil(t, d.Critical)
	assert.Empty(t, d.Critical)

	_, ok = DrillDownRegion(boardDataset(), policy, "RJO", "NITEROI", []string{"PPC"})
	assert.False(t, ok)
	_, ok = DrillDownRegion(boardDataset(), policy, "BHE", "NITEROI", nil)
	assert.False(t, ok)

	d, ok = DrillDownRegion(boardDataset(), policy, UnknownGroup, UnknownGroup, nil)
	require.True(t, ok)
	assert.Equal(t, 1, d.Summary.Count)
}

func TestSeverityTiers(t *testing.T) {
	assert.Equal(t, SeverityNone, RegionSeverity(0))
	assert.Equal(t, SeverityNormal, RegionSeverity(4))
	assert.Equal(t, SeverityWarning, RegionSeverity(5))
	assert.Equal(t, SeverityWarning, RegionSeverity(9))
	assert.Equal(t, SeverityCritical, RegionSeverity(10))

	assert.Equal(t, SeverityNormal, ClusterSeverity(10))
	assert.Equal(t, SeverityWarning, ClusterSeverity(11))
	assert.Equal(t, SeverityCritical, ClusterSeverity(31))

	assert.Equal(t, SeverityNormal, DatasetSeverity(20))
	assert.Equal(t, SeverityWarning, DatasetSeverity(21))
	assert.Equal(t, SeverityCritical, DatasetSeverity(51))
}

func TestDatasetPolicies(t *testing.T) {
	p := DefaultPolicies()
	assert.True(t, p[DatasetRAL].Filterable)
	assert.False(t, p[DatasetREC].Filterable)
	assert.Nil(t, p[DatasetREC].EffectiveTypes([]string{"X"}))
	assert.Equal(t, []string{"X"}, p[DatasetRAL].EffectiveTypes([]string{"X"}))
}

func TestParseDatasetName(t *testing.T) {
	n, ok := ParseDatasetName(" rec ")
	assert.True(t, ok)
	assert.Equal(t, DatasetREC, n)
	_, ok = ParseDatasetName("OTHER")
	assert.False(t, ok)

	var s *Snapshot
	_, ok = s.Dataset(DatasetRAL)
	assert.False(t, ok)
}
