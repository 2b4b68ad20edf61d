// Package incident holds the pure aggregation and criticality rules of the
// incident dashboard. Nothing in this package performs I/O or keeps state
// between calls; every function takes the record collection and the filter
// selection as arguments and returns freshly allocated results.
package incident

import (
	"strings"
	"time"
)

// UnknownGroup is the group key used when a record has no cluster or region.
const UnknownGroup = "Unknown"

// IncidentRecord is one network incident as seen by the dashboard.
type IncidentRecord struct {
	Cluster     string `json:"cluster"`
	Region      string `json:"region,omitempty"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	// Duration is the elapsed open time, "{days}d.{hours}h{minutes}m".
	Duration string `json:"duration,omitempty"`

	// Display-only fields.
	Code           string `json:"code,omitempty"`
	Date           string `json:"date,omitempty"`
	RecoveryNumber string `json:"recoveryNumber,omitempty"`
}

// DatasetName identifies one of the incident collections in a snapshot.
type DatasetName string

const (
	DatasetRAL DatasetName = "RAL"
	DatasetREC DatasetName = "REC"
)

// AllDatasets lists the datasets in display order.
var AllDatasets = []DatasetName{DatasetRAL, DatasetREC}

// ParseDatasetName accepts a case-insensitive dataset name.
func ParseDatasetName(s string) (DatasetName, bool) {
	switch DatasetName(strings.ToUpper(strings.TrimSpace(s))) {
	case DatasetRAL:
		return DatasetRAL, true
	case DatasetREC:
		return DatasetREC, true
	}
	return "", false
}

// Dataset is one record collection. Total is the row count reported by the
// producer of the feed and can differ from len(Items) when rows were dropped
// during enrichment.
type Dataset struct {
	Name  DatasetName      `json:"name"`
	Total int              `json:"total"`
	Items []IncidentRecord `json:"items"`
}

// DatasetPolicy carries the per-dataset rules that are configuration rather
// than code. A dataset that is not Filterable ignores the type selection.
type DatasetPolicy struct {
	Name       DatasetName `json:"name" mapstructure:"name"`
	Filterable bool        `json:"filterable" mapstructure:"filterable"`
}

// DefaultPolicies mirrors the dashboard's historical behaviour: RAL honours
// the type filter, REC is always shown unfiltered.
func DefaultPolicies() map[DatasetName]DatasetPolicy {
	return map[DatasetName]DatasetPolicy{
		DatasetRAL: {Name: DatasetRAL, Filterable: true},
		DatasetREC: {Name: DatasetREC, Filterable: false},
	}
}

// EffectiveTypes returns the selection to apply to this dataset.
func (p DatasetPolicy) EffectiveTypes(selected []string) []string {
	if !p.Filterable {
		return nil
	}
	return selected
}

// Snapshot is a complete decoded feed. It is replaced wholesale on refresh.
type Snapshot struct {
	ID string `json:"id"`
	// UpdatedAt is the producer's display timestamp, kept verbatim.
	UpdatedAt string    `json:"updatedAt"`
	FetchedAt time.Time `json:"fetchedAt"`
	Source    string    `json:"source,omitempty"`
	RAL       Dataset   `json:"RAL"`
	REC       Dataset   `json:"REC"`
}

// Dataset returns the named collection.
func (s *Snapshot) Dataset(name DatasetName) (Dataset, bool) {
	if s == nil {
		return Dataset{}, false
	}
	switch name {
	case DatasetRAL:
		return s.RAL, true
	case DatasetREC:
		return s.REC, true
	}
	return Dataset{}, false
}
