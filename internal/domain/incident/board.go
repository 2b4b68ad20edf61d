package incident

// Severity is the colour tier of a count on the dashboard.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Count thresholds for each level of the board.
const (
	regionWarnAt     = 5
	regionCriticalAt = 10
	clusterWarnOver  = 10
	clusterCritOver  = 30
	datasetWarnOver  = 20
	datasetCritOver  = 50
)

// RegionSeverity grades a region card: 0 none, under 5 normal, under 10
// warning, otherwise critical.
func RegionSeverity(count int) Severity {
	switch {
	case count <= 0:
		return SeverityNone
	case count < regionWarnAt:
		return SeverityNormal
	case count < regionCriticalAt:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// ClusterSeverity grades a cluster total: over 30 critical, over 10 warning.
func ClusterSeverity(count int) Severity {
	return overThresholds(count, clusterWarnOver, clusterCritOver)
}

// DatasetSeverity grades a dataset total: over 50 critical, over 20 warning.
func DatasetSeverity(count int) Severity {
	return overThresholds(count, datasetWarnOver, datasetCritOver)
}

func overThresholds(count, warn, crit int) Severity {
	switch {
	case count > crit:
		return SeverityCritical
	case count > warn:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// RegionSummary is one region of a cluster on the board.
type RegionSummary struct {
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Critical bool     `json:"critical"`
	Severity Severity `json:"severity"`
}

// ClusterSummary is one cluster on the board with its regions sorted by name.
type ClusterSummary struct {
	Name     string          `json:"name"`
	Count    int             `json:"count"`
	Critical bool            `json:"critical"`
	Severity Severity        `json:"severity"`
	Regions  []RegionSummary `json:"regions"`
}

// Board is the computed view of one dataset for one type selection.
type Board struct {
	Dataset       DatasetName      `json:"dataset"`
	Filterable    bool             `json:"filterable"`
	SelectedTypes []string         `json:"selectedTypes"`
	Total         int              `json:"total"`
	Filtered      int              `json:"filtered"`
	Severity      Severity         `json:"severity"`
	Critical      bool             `json:"critical"`
	TypeOptions   []string         `json:"typeOptions"`
	Clusters      []ClusterSummary `json:"clusters"`
}

// CriticalClusters returns the names of the clusters flagged critical.
func (b Board) CriticalClusters() []string {
	out := make([]string, 0)
	for _, c := range b.Clusters {
		if c.Critical {
			out = append(out, c.Name)
		}
	}
	return out
}

// BuildBoard aggregates a dataset under its policy. The type selection is
// dropped for datasets that are not filterable.
func BuildBoard(ds Dataset, policy DatasetPolicy, selected []string) Board {
	effective := policy.EffectiveTypes(selected)
	items := FilterByTypes(ds.Items, effective)

	board := Board{
		Dataset:       ds.Name,
		Filterable:    policy.Filterable,
		SelectedTypes: append([]string{}, effective...),
		Total:         ds.Total,
		Filtered:      len(items),
		Severity:      DatasetSeverity(len(items)),
		Critical:      IsCritical(items),
		TypeOptions:   ExtractTypeOptions(ds.Items),
	}

	counts := CountByCluster(items, nil)
	board.Clusters = make([]ClusterSummary, 0, len(counts))
	for _, name := range SortedKeys(counts) {
		board.Clusters = append(board.Clusters, summarizeCluster(name, InCluster(items, name)))
	}
	return board
}

// ClusterDetail returns the summary and the filtered records of one cluster.
// The boolean is false when no record of the selection belongs to cluster.
func ClusterDetail(ds Dataset, policy DatasetPolicy, cluster string, selected []string) (ClusterSummary, []IncidentRecord, bool) {
	items := InCluster(FilterByTypes(ds.Items, policy.EffectiveTypes(selected)), cluster)
	if len(items) == 0 {
		return ClusterSummary{}, nil, false
	}
	return summarizeCluster(cluster, items), items, true
}

// RegionDrillDown is one region of a cluster under a type selection.
// Critical holds the subset of Records that are critical.
type RegionDrillDown struct {
	Cluster  string           `json:"cluster"`
	Summary  RegionSummary    `json:"summary"`
	Records  []IncidentRecord `json:"records"`
	Critical []IncidentRecord `json:"critical"`
}

// DrillDownRegion narrows ClusterDetail to one region. The boolean is false
// when the selection leaves no record in that region.
func DrillDownRegion(ds Dataset, policy DatasetPolicy, cluster, region string, selected []string) (RegionDrillDown, bool) {
	items := InRegion(InCluster(FilterByTypes(ds.Items, policy.EffectiveTypes(selected)), cluster), region)
	if len(items) == 0 {
		return RegionDrillDown{}, false
	}
	critical := CriticalRecords(items)
	return RegionDrillDown{
		Cluster: cluster,
		Summary: RegionSummary{
			Name:     region,
			Count:    len(items),
			Critical: len(critical) > 0,
			Severity: RegionSeverity(len(items)),
		},
		Records:  items,
		Critical: critical,
	}, true
}

func summarizeCluster(name string, items []IncidentRecord) ClusterSummary {
	regionCounts := CountByGroup(items, nil, RegionKey)
	regionCritical := CriticalByGroup(items, RegionKey)

	summary := ClusterSummary{
		Name:     name,
		Count:    len(items),
		Severity: ClusterSeverity(len(items)),
		Regions:  make([]RegionSummary, 0, len(regionCounts)),
	}
	for _, region := range SortedKeys(regionCounts) {
		crit := regionCritical[region]
		summary.Critical = summary.Critical || crit
		summary.Regions = append(summary.Regions, RegionSummary{
			Name:     region,
			Count:    regionCounts[region],
			Critical: crit,
			Severity: RegionSeverity(regionCounts[region]),
		})
	}
	return summary
}
