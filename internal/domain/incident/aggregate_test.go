package incident

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []IncidentRecord {
	return []IncidentRecord{
		{Cluster: "RJO", Region: "NITEROI", Type: "FOTONICA"},
		{Cluster: "RJO", Region: "NITEROI", Type: "BACKBONE"},
		{Cluster: "RJO", Region: "", Type: "FOTONICA"},
		{Cluster: "BHE", Region: "CONTAGEM", Type: "PPC"},
		{Cluster: "", Region: "CONTAGEM", Type: "N/A"},
		{Cluster: "bhe", Region: "CONTAGEM", Type: "PPC"},
	}
}

func TestCountByGroup_UnknownBucket(t *testing.T) {
	records := []IncidentRecord{
		{Cluster: "", Type: "SWAP"},
		{Type: "SWAP"},
	}
	assert.Equal(t, Counts{"Unknown": 2}, CountByCluster(records, nil))
}

func TestCountByGroup_EmptyInput(t *testing.T) {
	got := CountByCluster(nil, []string{"SWAP"})
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCountByGroup_SumMatchesPassingRecords(t *testing.T) {
	records := sampleRecords()
	filters := [][]string{nil, {}, {"FOTONICA"}, {"PPC", "N/A"}, {"MISSING"}}
	for _, f := range filters {
		want := 0
		set := map[string]bool{}
		for _, typ := range f {
			set[typ] = true
		}
		for _, r := range records {
			if len(f) == 0 || set[r.Type] {
				want++
			}
		}
		assert.Equal(t, want, CountByCluster(records, f).Total(), "filter %v", f)
	}
}

func TestCountByGroup_EmptySelectionEqualsAllTypes(t *testing.T) {
	records := sampleRecords()
	all := make([]string, 0)
	for _, r := range records {
		all = append(all, r.Type)
	}
	assert.Equal(t, CountByCluster(records, all), CountByCluster(records, nil))
	assert.Equal(t, CountByCluster(records, all), CountByCluster(records, []string{}))
}

func TestCountByGroup_CaseSensitiveKeys(t *testing.T) {
	got := CountByCluster(sampleRecords(), nil)
	assert.Equal(t, Counts{"RJO": 3, "BHE": 1, "bhe": 1, "Unknown": 1}, got)
}

func TestCountByGroup_TypesMatchExactly(t *testing.T) {
	records := []IncidentRecord{
		{Cluster: "RJO", Type: "BACKBONE "},
		{Cluster: "RJO", Type: "BACKBONE"},
		{Cluster: "BHE", Type: "ACESSO, CLIENTE"},
	}
	assert.Equal(t, Counts{"RJO": 1}, CountByCluster(records, []string{"BACKBONE "}))
	assert.Equal(t, Counts{"BHE": 1}, CountByCluster(records, []string{"ACESSO, CLIENTE"}))
	assert.Empty(t, CountByCluster(records, []string{"ACESSO"}))
}

func TestCountByGroup_DoesNotMutateInput(t *testing.T) {
	records := sampleRecords()
	before := append([]IncidentRecord(nil), records...)
	_ = CountByCluster(records, []string{"PPC"})
	_ = FilterByTypes(records, []string{"PPC"})
	assert.Equal(t, before, records)
}

func TestCountByRegion_SumsToClusterTotal(t *testing.T) {
	records := sampleRecords()
	clusters := CountByCluster(records, nil)
	for cluster, total := range clusters {
		regions := CountByRegion(records, cluster, nil)
		assert.Equal(t, total, regions.Total(), cluster)
	}
	assert.Equal(t, Counts{"NITEROI": 2, "Unknown": 1}, CountByRegion(records, "RJO", nil))
	assert.Equal(t, Counts{"NITEROI": 1, "Unknown": 1}, CountByRegion(records, "RJO", []string{"FOTONICA"}))
}

func TestCountByGroup_Deterministic(t *testing.T) {
	records := sampleRecords()
	first := CountByCluster(records, []string{"FOTONICA", "PPC"})
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]IncidentRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, first, CountByCluster(shuffled, []string{"PPC", "FOTONICA"}))
	}
}

func TestExtractTypeOptions(t *testing.T) {
	records := make([]IncidentRecord, 0)
	for _, typ := range []string{"REC", "N/A", "", "RAL", "nan", "REC"} {
		records = append(records, IncidentRecord{Type: typ})
	}
	assert.Equal(t, []string{"RAL", "REC"}, ExtractTypeOptions(records))
}

func TestExtractTypeOptions_SentinelsAreCaseSensitive(t *testing.T) {
	records := []IncidentRecord{{Type: "NaN"}, {Type: "n/a"}, {Type: "nan"}}
	assert.Equal(t, []string{"NaN", "n/a"}, ExtractTypeOptions(records))
	assert.Empty(t, ExtractTypeOptions(nil))
}

func TestInCluster_Unknown(t *testing.T) {
	got := InCluster(sampleRecords(), UnknownGroup)
	require.Len(t, got, 1)
	assert.Equal(t, "N/A", got[0].Type)
	assert.Len(t, InRegion(sampleRecords(), "CONTAGEM"), 3)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "Unknown", "a"}, SortedKeys(Counts{"B": 1, "a": 1, "Unknown": 3, "A": 2}))
}
