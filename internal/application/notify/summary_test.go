package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/testutil"
)

var generatedAt = time.Date(2026, 1, 12, 11, 30, 0, 0, time.UTC)

func TestBuildSummary_Fixture(t *testing.T) {
	s := BuildSummary(testutil.SampleSnapshot(), generatedAt, "")

	assert.Equal(t, 4, s.RALTotal)
	assert.Equal(t, 1, s.RECTotal)
	assert.Equal(t, DefaultDashboardURL, s.DashboardURL)
	assert.Equal(t, []ClusterCount{{"RJO", 2}, {"BHE", 1}, {incident.UnknownGroup, 1}}, s.RALClusters)
	assert.Equal(t, []ClusterCount{{"SPO", 1}}, s.RECClusters)
}

func TestBuildSummary_ExcludesQuality(t *testing.T) {
	snap := testutil.SampleSnapshot()
	snap.RAL.Items = append(snap.RAL.Items,
		incident.IncidentRecord{Cluster: "RJO", Type: "Qualidade de Rede", Date: "01/01/2020 - 00:00"})

	s := BuildSummary(snap, generatedAt, "https://sir.example/dashboard")
	assert.Equal(t, 4, s.RALTotal)
	assert.Equal(t, 0, s.TypeCounts[BucketQualidade])
	assert.Equal(t, "RJO-001", s.OldestRAL[0].Code, "quality item must not be the oldest")
	assert.Equal(t, "https://sir.example/dashboard", s.DashboardURL)
}

func TestTopClusters_LimitAndTies(t *testing.T) {
	items := []incident.IncidentRecord{
		{Cluster: "C"}, {Cluster: "A"}, {Cluster: "B"}, {Cluster: "B"},
	}
	assert.Equal(t, []ClusterCount{{"B", 2}, {"A", 1}}, TopClusters(items, 2))
	assert.Empty(t, TopClusters(nil, 10))
}

func TestTypeBuckets(t *testing.T) {
	counts := TypeBuckets([]incident.IncidentRecord{
		{Type: "Fotônica"}, {Type: "FOTONICA DWDM"}, {Type: "BACKBONE"},
		{Type: "Rede Coletor"}, {Type: "PPC"}, {Type: "ACESSO"}, {Type: "CLIENTE VIP"},
		{Type: "N/A"},
	})
	assert.Equal(t, map[string]int{
		BucketFotonica:      2,
		BucketBackbone:      1,
		BucketColetor:       1,
		BucketPPC:           1,
		BucketAcessoCliente: 2,
		BucketQualidade:     0,
	}, counts)
}

func TestOldest(t *testing.T) {
	items := append(testutil.SampleRAL().Items,
		incident.IncidentRecord{Code: "BAD-1", Date: "ontem"},
		incident.IncidentRecord{Code: "BAD-2", Date: "anteontem"},
	)

	got := Oldest(items, 10)
	codes := make([]string, len(got))
	for i, r := range got {
		codes[i] = r.Code
	}
	assert.Equal(t, []string{"RJO-001", "BHE-001", "RJO-002", "BAD-1", "BAD-2"}, codes)
	assert.Len(t, Oldest(items, 2), 2)
}

func TestFormatDuration(t *testing.T) {
	cases := map[string]string{
		"31d.04h12m": "31d 4h",
		"0d.00h30m":  "0d 0h",
		"2d.12h00m":  "2d 12h",
		"5d":         "5d 0h",
		"":           "N/A",
		"N/A":        "N/A",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatDuration(in), in)
	}
}

func TestFormatDateShort(t *testing.T) {
	assert.Equal(t, "12/01 11:45", FormatDateShort("12/01/2026 - 11:45"))
	assert.Equal(t, "N/A", FormatDateShort("N/A"))
}

func TestSummary_Render(t *testing.T) {
	msg := BuildSummary(testutil.SampleSnapshot(), generatedAt, "").Render()

	require.True(t, strings.HasPrefix(msg, "💎 *COP REDE INF:*\n📡 *SIR MONITORAMENTO*\n\n"))
	for _, want := range []string{
		"📅 *ATUALIZADO:* 12/01/2026 11:30",
		"🔴 *RAL:* 4\n*POR CLUSTERS:*\n• RJO: 2\n• BHE: 1\n• Unknown: 1",
		"🟢 *REC:* 1\n*POR CLUSTERS:*\n• SPO: 1",
		"🔹 BACKBONE: 2\n",
		"🔹 ACESSO CLIENTE: 1\n",
		"🔹 QUALIDADE: 0\n",
		"#1 ▓▓▓▓▓▓▓▓▓ ⏳ 31d 4h\n🪪 RAL N/A\n🌐 BACKBONE • 🗺️ NITEROI\n📅 11/12 10:03",
		"🪪 REC N/A - DESIGNAÇÃO: Recorrencia de swap",
	} {
		assert.Contains(t, msg, want)
	}
	assert.True(t, strings.HasSuffix(msg, "🔗 [Dashboard]("+DefaultDashboardURL+")"))
}

func TestSummary_RenderEmpty(t *testing.T) {
	snap := &incident.Snapshot{}
	msg := BuildSummary(snap, generatedAt, "").Render()
	assert.Equal(t, 2, strings.Count(msg, "Nenhum registro encontrado."))
	assert.Contains(t, msg, "🔴 *RAL:* 0")
}
