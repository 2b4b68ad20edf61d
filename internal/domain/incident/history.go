package incident

import (
	"context"
	"sort"
	"time"
)

// ClusterStat is the unfiltered count and flag of one cluster at refresh time.
type ClusterStat struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Critical bool   `json:"critical"`
}

// DatasetSummary condenses one dataset of a snapshot for history storage.
type DatasetSummary struct {
	Name     DatasetName   `json:"name"`
	Total    int           `json:"total"`
	Items    int           `json:"items"`
	Critical bool          `json:"critical"`
	Clusters []ClusterStat `json:"clusters"`
}

// SnapshotSummary is what the history store keeps per refresh.
type SnapshotSummary struct {
	SnapshotID string           `json:"snapshotId"`
	UpdatedAt  string           `json:"updatedAt"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	Datasets   []DatasetSummary `json:"datasets"`
}

// Dataset returns the summary of the named dataset.
func (s SnapshotSummary) Dataset(name DatasetName) (DatasetSummary, bool) {
	for _, d := range s.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetSummary{}, false
}

// Summarize computes the unfiltered per-cluster view of every dataset.
func Summarize(s *Snapshot) SnapshotSummary {
	sum := SnapshotSummary{
		SnapshotID: s.ID,
		UpdatedAt:  s.UpdatedAt,
		FetchedAt:  s.FetchedAt,
		Datasets:   make([]DatasetSummary, 0, len(AllDatasets)),
	}
	for _, name := range AllDatasets {
		ds, _ := s.Dataset(name)
		board := BuildBoard(ds, DatasetPolicy{Name: name}, nil)
		d := DatasetSummary{
			Name:     name,
			Total:    ds.Total,
			Items:    board.Filtered,
			Critical: board.Critical,
			Clusters: make([]ClusterStat, 0, len(board.Clusters)),
		}
		for _, c := range board.Clusters {
			d.Clusters = append(d.Clusters, ClusterStat{Name: c.Name, Count: c.Count, Critical: c.Critical})
		}
		sum.Datasets = append(sum.Datasets, d)
	}
	return sum
}

// CriticalTransition records a cluster entering or leaving the critical state
// between two consecutive refreshes.
type CriticalTransition struct {
	Dataset    DatasetName `json:"dataset"`
	Cluster    string      `json:"cluster"`
	Critical   bool        `json:"critical"`
	Count      int         `json:"count"`
	SnapshotID string      `json:"snapshotId"`
	At         time.Time   `json:"at"`
}

// DiffCritical lists the clusters whose flag changed from prev to next. A nil
// prev counts every cluster as previously not critical. A critical cluster
// that disappears from next is reported as cleared.
func DiffCritical(prev *SnapshotSummary, next SnapshotSummary) []CriticalTransition {
	var out []CriticalTransition
	for _, nd := range next.Datasets {
		before := make(map[string]bool)
		if prev != nil {
			if pd, ok := prev.Dataset(nd.Name); ok {
				for _, c := range pd.Clusters {
					before[c.Name] = c.Critical
				}
			}
		}
		seen := make(map[string]struct{}, len(nd.Clusters))
		for _, c := range nd.Clusters {
			seen[c.Name] = struct{}{}
			if before[c.Name] != c.Critical {
				out = append(out, CriticalTransition{
					Dataset: nd.Name, Cluster: c.Name, Critical: c.Critical, Count: c.Count,
					SnapshotID: next.SnapshotID, At: next.FetchedAt,
				})
			}
		}
		for name, wasCritical := range before {
			if _, ok := seen[name]; !ok && wasCritical {
				out = append(out, CriticalTransition{
					Dataset: nd.Name, Cluster: name, Critical: false,
					SnapshotID: next.SnapshotID, At: next.FetchedAt,
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Dataset != out[j].Dataset {
			return out[i].Dataset < out[j].Dataset
		}
		return out[i].Cluster < out[j].Cluster
	})
	return out
}

// TrendPoint is one cluster count in the refresh history.
type TrendPoint struct {
	SnapshotID string    `json:"snapshotId"`
	FetchedAt  time.Time `json:"fetchedAt"`
	Count      int       `json:"count"`
	Critical   bool      `json:"critical"`
}

// HistoryQueryOptions bounds history queries.
type HistoryQueryOptions struct {
	Limit int
	Since time.Time
}

// HistoryQueryOption configures a history query.
type HistoryQueryOption func(*HistoryQueryOptions)

// WithLimit caps the number of rows returned.
func WithLimit(limit int) HistoryQueryOption {
	return func(o *HistoryQueryOptions) { o.Limit = limit }
}

// WithSince drops entries fetched before t.
func WithSince(t time.Time) HistoryQueryOption {
	return func(o *HistoryQueryOptions) { o.Since = t }
}

// ApplyHistoryOptions resolves options; the limit defaults to 20 and is
// capped at 500.
func ApplyHistoryOptions(opts ...HistoryQueryOption) HistoryQueryOptions {
	o := HistoryQueryOptions{Limit: 20}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	return o
}

// HistoryRepository persists refresh summaries.
type HistoryRepository interface {
	Save(ctx context.Context, summary SnapshotSummary) error
	ListRecent(ctx context.Context, opts ...HistoryQueryOption) ([]SnapshotSummary, error)
	ClusterTrend(ctx context.Context, dataset DatasetName, cluster string, opts ...HistoryQueryOption) ([]TrendPoint, error)
}

// TransitionLog records critical transitions as they are detected.
type TransitionLog interface {
	RecordTransitions(ctx context.Context, transitions []CriticalTransition) error
	ListTransitions(ctx context.Context, datasets []DatasetName, opts ...HistoryQueryOption) ([]CriticalTransition, error)
}
