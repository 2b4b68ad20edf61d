package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
)

const (
	// RecordDateLayout is the layout of IncidentRecord.Date.
	RecordDateLayout = "02/01/2006 - 15:04"
	shortDateLayout  = "02/01 15:04"
	stampLayout      = "02/01/2006 15:04"

	topClusters  = 10
	oldestPerSet = 5

	DefaultDashboardURL = "http://localhost:5173/dashboard"
)

// RAL type buckets in message order. QUALIDADE items are dropped before
// bucketing, so its count is always zero.
const (
	BucketFotonica      = "FOTÔNICA"
	BucketBackbone      = "BACKBONE"
	BucketColetor       = "COLETOR"
	BucketPPC           = "PPC"
	BucketAcessoCliente = "ACESSO CLIENTE"
	BucketQualidade     = "QUALIDADE"
)

var bucketOrder = []string{BucketFotonica, BucketBackbone, BucketColetor, BucketPPC, BucketAcessoCliente, BucketQualidade}

// ClusterCount is one line of a top-clusters block.
type ClusterCount struct {
	Cluster string
	Count   int
}

// Summary is the content of the periodic status message.
type Summary struct {
	GeneratedAt  time.Time
	RALTotal     int
	RECTotal     int
	RALClusters  []ClusterCount
	RECClusters  []ClusterCount
	TypeCounts   map[string]int
	OldestRAL    []incident.IncidentRecord
	OldestREC    []incident.IncidentRecord
	DashboardURL string
}

// excludeQuality drops RAL items of the QUALIDADE type.
func excludeQuality(items []incident.IncidentRecord) []incident.IncidentRecord {
	out := make([]incident.IncidentRecord, 0, len(items))
	for _, r := range items {
		if strings.Contains(strings.ToUpper(r.Type), BucketQualidade) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// BuildSummary computes the message content. The RAL total counts the
// items left after the QUALIDADE exclusion; the REC total is the one
// reported by the feed.
func BuildSummary(snap *incident.Snapshot, now time.Time, dashboardURL string) Summary {
	if dashboardURL == "" {
		dashboardURL = DefaultDashboardURL
	}
	ral := excludeQuality(snap.RAL.Items)
	rec := snap.REC.Items

	return Summary{
		GeneratedAt:  now,
		RALTotal:     len(ral),
		RECTotal:     snap.REC.Total,
		RALClusters:  TopClusters(ral, topClusters),
		RECClusters:  TopClusters(rec, topClusters),
		TypeCounts:   TypeBuckets(ral),
		OldestRAL:    Oldest(ral, oldestPerSet),
		OldestREC:    Oldest(rec, oldestPerSet),
		DashboardURL: dashboardURL,
	}
}

// TopClusters returns the n largest clusters, ties broken by name.
func TopClusters(items []incident.IncidentRecord, n int) []ClusterCount {
	counts := incident.CountByCluster(items, nil)
	out := make([]ClusterCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, ClusterCount{Cluster: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cluster < out[j].Cluster
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TypeBuckets counts RAL items per display bucket. Each item lands in the
// first bucket it matches.
func TypeBuckets(items []incident.IncidentRecord) map[string]int {
	counts := make(map[string]int, len(bucketOrder))
	for _, b := range bucketOrder {
		counts[b] = 0
	}
	for _, r := range items {
		t := strings.ToUpper(r.Type)
		switch {
		case strings.Contains(t, "FOTÔNICA") || strings.Contains(t, "FOTONICA"):
			counts[BucketFotonica]++
		case strings.Contains(t, "BACKBONE"):
			counts[BucketBackbone]++
		case strings.Contains(t, "COLETOR"):
			counts[BucketColetor]++
		case strings.Contains(t, "PPC"):
			counts[BucketPPC]++
		case strings.Contains(t, "ACESSO") || strings.Contains(t, "CLIENTE"):
			counts[BucketAcessoCliente]++
		}
	}
	return counts
}

// Oldest returns up to n items ordered by opening date. Items without a date
// are left out; dates that do not parse sort last in input order.
func Oldest(items []incident.IncidentRecord, n int) []incident.IncidentRecord {
	type dated struct {
		rec incident.IncidentRecord
		at  time.Time
		ok  bool
	}
	candidates := make([]dated, 0, len(items))
	for _, r := range items {
		if r.Date == "" || r.Date == "N/A" {
			continue
		}
		at, err := time.Parse(RecordDateLayout, r.Date)
		candidates = append(candidates, dated{rec: r, at: at, ok: err == nil})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ok != b.ok {
			return a.ok
		}
		return a.ok && a.at.Before(b.at)
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]incident.IncidentRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}

// FormatDuration shortens "31d.04h12m" to "31d 4h".
func FormatDuration(s string) string {
	if s == "" || s == "N/A" {
		return "N/A"
	}
	parts := strings.Fields(strings.ReplaceAll(s, ".", " "))
	day, hour := "0d", "0h"
	if len(parts) > 0 {
		day = parts[0]
	}
	if len(parts) > 1 {
		h := parts[1]
		if len(h) > 3 {
			h = h[:3]
		}
		hour = strings.TrimLeft(h, "0")
		if hour == "" || hour == "h" {
			hour = "0h"
		}
	}
	return day + " " + hour
}

// FormatDateShort renders "12/01/2026 - 11:15" as "12/01 11:15" and returns
// anything else unchanged.
func FormatDateShort(s string) string {
	at, err := time.Parse(RecordDateLayout, s)
	if err != nil {
		return s
	}
	return at.Format(shortDateLayout)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func clusterLines(counts []ClusterCount) string {
	lines := make([]string, len(counts))
	for i, c := range counts {
		lines[i] = fmt.Sprintf("• %s: %d", c.Cluster, c.Count)
	}
	return strings.Join(lines, "\n")
}

func oldestBlocks(items []incident.IncidentRecord, label string) string {
	if len(items) == 0 {
		return "Nenhum registro encontrado."
	}
	blocks := make([]string, len(items))
	for i, r := range items {
		suffix := ""
		if label == string(incident.DatasetREC) && r.Description != "" {
			suffix = " - DESIGNAÇÃO: " + r.Description
		}
		blocks[i] = fmt.Sprintf("#%d ▓▓▓▓▓▓▓▓▓ ⏳ %s\n🪪 %s %s%s\n🌐 %s • 🗺️ %s\n📅 %s",
			i+1,
			FormatDuration(r.Duration),
			label, orDefault(r.RecoveryNumber, "N/A"), suffix,
			orDefault(r.Type, incident.UnknownGroup), orDefault(r.Region, incident.UnknownGroup),
			FormatDateShort(orDefault(r.Date, "N/A")))
	}
	return strings.Join(blocks, "\n\n")
}

// Render lays the summary out as the WhatsApp message text.
func (s Summary) Render() string {
	var b strings.Builder
	b.WriteString("💎 *COP REDE INF:*\n")
	b.WriteString("📡 *SIR MONITORAMENTO*\n\n")
	fmt.Fprintf(&b, "📅 *ATUALIZADO:* %s\n\n", s.GeneratedAt.Format(stampLayout))
	b.WriteString("📊 *TOTAL DE ATIVIDADES*\n")
	fmt.Fprintf(&b, "🔴 *RAL:* %d\n", s.RALTotal)
	b.WriteString("*POR CLUSTERS:*\n")
	fmt.Fprintf(&b, "%s\n\n", clusterLines(s.RALClusters))
	fmt.Fprintf(&b, "🟢 *REC:* %d\n", s.RECTotal)
	b.WriteString("*POR CLUSTERS:*\n")
	fmt.Fprintf(&b, "%s\n\n", clusterLines(s.RECClusters))
	b.WriteString("🏷️ *TIPO DE RAL*\n")
	for _, bucket := range bucketOrder {
		fmt.Fprintf(&b, "🔹 %s: %d\n", bucket, s.TypeCounts[bucket])
	}
	b.WriteString("\n🏁 *Top 5 RALS mais antigos:*\n")
	fmt.Fprintf(&b, "%s\n\n", oldestBlocks(s.OldestRAL, string(incident.DatasetRAL)))
	b.WriteString("🏁 *Top 5 REC mais antigos:*\n")
	fmt.Fprintf(&b, "%s\n\n", oldestBlocks(s.OldestREC, string(incident.DatasetREC)))
	fmt.Fprintf(&b, "🔗 [Dashboard](%s)", s.DashboardURL)
	return b.String()
}
