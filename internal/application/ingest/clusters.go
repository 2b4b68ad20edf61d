package ingest

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/coprede/sir-dashboard/pkg/errors"
)

// excludedMarker tags codes that never reach the dashboard.
const excludedMarker = "/SG"

// ClusterInfo is the enrichment attached to one equipment code.
type ClusterInfo struct {
	Cluster string
	Region  string
	Type    string
}

// ClusterMap looks up equipment codes after NormalizeCode.
type ClusterMap map[string]ClusterInfo

// NormalizeCode removes every space and upper-cases the code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, " ", ""))
}

func excluded(normalized string) bool {
	return strings.Contains(normalized, excludedMarker)
}

// Lookup returns the enrichment for a raw code.
func (m ClusterMap) Lookup(code string) (ClusterInfo, bool) {
	norm := NormalizeCode(code)
	if norm == "" {
		return ClusterInfo{}, false
	}
	info, ok := m[norm]
	return info, ok
}

// LoadClusterMap reads the ';'-separated reference table with the columns
// Code, Cluster, Region and an optional Type. Later rows win on duplicate
// codes.
func LoadClusterMap(r io.Reader) (ClusterMap, error) {
	table, err := readTable(r, nil)
	if err != nil {
		return nil, err
	}
	for _, col := range []string{"Code", "Cluster", "Region"} {
		if !table.has(col) {
			return nil, errors.New(errors.ErrCodeIngestColumnMissing, "cluster table column missing").WithDetail(col)
		}
	}

	m := make(ClusterMap, len(table.rows))
	for _, row := range table.rows {
		norm := NormalizeCode(table.raw(row, "Code"))
		if norm == "" || excluded(norm) {
			continue
		}
		typ := table.raw(row, "Type")
		if typ == "" {
			typ = "Unknown"
		}
		m[norm] = ClusterInfo{
			Cluster: strings.TrimSpace(table.raw(row, "Cluster")),
			Region:  strings.TrimSpace(table.raw(row, "Region")),
			Type:    strings.TrimSpace(typ),
		}
	}
	return m, nil
}

// table is a parsed CSV with a header row.
type table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// raw returns the untrimmed cell, "" when the column or cell is absent.
func (t *table) raw(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// readTable parses a ';'-separated file. Rows with more fields than the
// header are skipped and reported through skipped; short rows are kept.
func readTable(r io.Reader, skipped func(line int)) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New(errors.ErrCodeIngestReadFailed, "empty csv file")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIngestReadFailed, "read csv header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &table{header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeIngestReadFailed, "read csv row")
		}
		if len(row) > len(header) {
			if skipped != nil {
				line, _ := cr.FieldPos(0)
				skipped(line)
			}
			continue
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}
