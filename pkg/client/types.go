package client

import "time"

// Dataset names accepted by the API.
const (
	DatasetRAL = "RAL"
	DatasetREC = "REC"
)

// Record is one incident as returned by the cluster endpoint.
type Record struct {
	Cluster        string `json:"cluster"`
	Region         string `json:"region,omitempty"`
	Type           string `json:"type"`
	Description    string `json:"description,omitempty"`
	Duration       string `json:"duration,omitempty"`
	Code           string `json:"code,omitempty"`
	Date           string `json:"date,omitempty"`
	RecoveryNumber string `json:"recoveryNumber,omitempty"`
}

// RegionSummary is one region of a cluster.
type RegionSummary struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Critical bool   `json:"critical"`
	Severity string `json:"severity"`
}

// ClusterSummary is one cluster on the board with its regions sorted by name.
type ClusterSummary struct {
	Name     string          `json:"name"`
	Count    int             `json:"count"`
	Critical bool            `json:"critical"`
	Severity string          `json:"severity"`
	Regions  []RegionSummary `json:"regions"`
}

// Board is the aggregated view of one dataset.
type Board struct {
	Dataset       string           `json:"dataset"`
	Filterable    bool             `json:"filterable"`
	SelectedTypes []string         `json:"selectedTypes"`
	Total         int              `json:"total"`
	Filtered      int              `json:"filtered"`
	Severity      string           `json:"severity"`
	Critical      bool             `json:"critical"`
	TypeOptions   []string         `json:"typeOptions"`
	Clusters      []ClusterSummary `json:"clusters"`
}

// Cluster returns the summary of the named cluster.
func (b *Board) Cluster(name string) (ClusterSummary, bool) {
	for _, c := range b.Clusters {
		if c.Name == name {
			return c, true
		}
	}
	return ClusterSummary{}, false
}

// ClusterView is one cluster with its filtered records.
type ClusterView struct {
	Dataset       string         `json:"dataset"`
	SelectedTypes []string       `json:"selectedTypes"`
	Summary       ClusterSummary `json:"summary"`
	Records       []Record       `json:"records"`
}

// RegionView is one region of a cluster with its filtered records and the
// critical subset of them.
type RegionView struct {
	Dataset       string        `json:"dataset"`
	SelectedTypes []string      `json:"selectedTypes"`
	Cluster       string        `json:"cluster"`
	Summary       RegionSummary `json:"summary"`
	Records       []Record      `json:"records"`
	Critical      []Record      `json:"critical"`
}

// DatasetTotals is the total the feed reports for a dataset and the number
// of records it actually carried.
type DatasetTotals struct {
	Total int `json:"total"`
	Items int `json:"items"`
}

// SnapshotInfo is the metadata of the snapshot being served.
type SnapshotInfo struct {
	ID        string                   `json:"id"`
	UpdatedAt string                   `json:"updatedAt"`
	FetchedAt time.Time                `json:"fetchedAt"`
	Source    string                   `json:"source,omitempty"`
	Totals    map[string]DatasetTotals `json:"totals"`
}

type ClusterStat struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Critical bool   `json:"critical"`
}

type DatasetSummary struct {
	Name     string        `json:"name"`
	Total    int           `json:"total"`
	Items    int           `json:"items"`
	Critical bool          `json:"critical"`
	Clusters []ClusterStat `json:"clusters"`
}

// SnapshotSummary is one entry of the refresh history.
type SnapshotSummary struct {
	SnapshotID string           `json:"snapshotId"`
	UpdatedAt  string           `json:"updatedAt"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	Datasets   []DatasetSummary `json:"datasets"`
}

// TrendPoint is one cluster count in the refresh history.
type TrendPoint struct {
	SnapshotID string    `json:"snapshotId"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Count      int       `json:"count"`
	Critical   bool      `json:"critical"`
}

// Transition is a cluster entering (Critical true) or leaving the critical
// state.
type Transition struct {
	Dataset    string    `json:"dataset"`
	Cluster    string    `json:"cluster"`
	Critical   bool      `json:"critical"`
	Count      int       `json:"count"`
	SnapshotID string    `json:"snapshotId"`
	At         time.Time `json:"at"`
}

// RefreshResult reports an on-demand refresh. SinkErrors lists the side
// outputs that failed without failing the refresh.
type RefreshResult struct {
	SnapshotID  string            `json:"snapshotId"`
	Source      string            `json:"source"`
	FetchedAt   time.Time         `json:"fetchedAt"`
	Summary     SnapshotSummary   `json:"summary"`
	Transitions []Transition      `json:"transitions"`
	ArchiveKey  string            `json:"archiveKey,omitempty"`
	SinkErrors  map[string]string `json:"sinkErrors,omitempty"`
	Duration    time.Duration     `json:"duration"`
}
