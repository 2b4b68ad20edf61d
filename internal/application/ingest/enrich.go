package ingest

import (
	"io"
	"strings"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// enrichedColumns are appended to every row of the enriched export.
var enrichedColumns = []string{"Cluster", "Cidade", "Region", "Type"}

// Result is one enriched dataset.
type Result struct {
	Dataset incident.Dataset
	// Unmapped counts rows whose code is not in the cluster table.
	Unmapped int
	// Excluded counts /SG rows.
	Excluded int
	// Enriched is the export with the enrichment columns, header first.
	Enriched [][]string
}

// Enricher maps export rows onto clusters.
type Enricher struct {
	clusters ClusterMap
	logger   logging.Logger
}

func NewEnricher(clusters ClusterMap, logger logging.Logger) *Enricher {
	return &Enricher{clusters: clusters, logger: logger}
}

// Enrich reads one ';'-separated export. Total is the number of parsed
// rows, including the excluded ones.
func (e *Enricher) Enrich(name incident.DatasetName, r io.Reader) (*Result, error) {
	log := e.logger.With(logging.String("dataset", string(name)))
	t, err := readTable(r, func(line int) {
		log.Warn("skipping malformed csv line", logging.Int("line", line))
	})
	if err != nil {
		return nil, err
	}

	cols := ColumnsFor(name)
	if !t.has(cols.Code) {
		return nil, errors.New(errors.ErrCodeIngestColumnMissing, "code column missing").
			WithDetailf("%s: %q not in %v", name, cols.Code, t.header)
	}

	res := &Result{
		Dataset: incident.Dataset{
			Name:  name,
			Total: len(t.rows),
			Items: make([]incident.IncidentRecord, 0, len(t.rows)),
		},
		Enriched: make([][]string, 0, len(t.rows)+1),
	}
	res.Enriched = append(res.Enriched, append(append([]string{}, t.header...), enrichedColumns...))

	for _, row := range t.rows {
		code := t.raw(row, cols.Code)
		norm := NormalizeCode(code)
		info, mapped := e.clusters.Lookup(code)
		if !mapped {
			info = ClusterInfo{Cluster: incident.UnknownGroup, Region: incident.UnknownGroup, Type: incident.UnknownGroup}
		}
		res.Enriched = append(res.Enriched, enrichedRow(row, len(t.header), info))

		if excluded(norm) {
			res.Excluded++
			continue
		}
		if !mapped {
			res.Unmapped++
		}
		res.Dataset.Items = append(res.Dataset.Items, incident.IncidentRecord{
			Cluster:        info.Cluster,
			Region:         info.Region,
			Type:           cell(t, row, cols.Type),
			Description:    cell(t, row, cols.Description),
			Duration:       cell(t, row, cols.Duration),
			Code:           cell(t, row, cols.Code),
			Date:           cell(t, row, cols.Date),
			RecoveryNumber: cell(t, row, cols.Number),
		})
	}
	return res, nil
}

// cell returns the trimmed value, or "N/A" for an empty cell or an absent
// column.
func cell(t *table, row []string, col string) string {
	if col == "" {
		return missingCell
	}
	v := t.raw(row, col)
	if v == "" {
		return missingCell
	}
	return strings.TrimSpace(v)
}

func enrichedRow(row []string, width int, info ClusterInfo) []string {
	out := make([]string, width, width+len(enrichedColumns))
	copy(out, row)
	return append(out, info.Cluster, info.Region, info.Region, info.Type)
}
