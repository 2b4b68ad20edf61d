// Package feed turns the dashboard JSON document into incident snapshots and
// fetches it from wherever the exporter publishes it.
package feed

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/pkg/errors"
	wire "github.com/coprede/sir-dashboard/pkg/types/feed"
)

// now is replaced in tests.
var now = time.Now

// Decode reads one feed document and converts it to a snapshot.
func Decode(r io.Reader) (*incident.Snapshot, error) {
	var doc wire.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeFeedMalformed, "decode feed document")
	}
	return FromDocument(&doc)
}

// FromDocument validates doc and maps it to the domain model. Both datasets
// must be present and carry an items array; every other field is optional.
func FromDocument(doc *wire.Document) (*incident.Snapshot, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeFeedIncomplete, "empty feed document")
	}
	if err := requireItems("RAL", doc.RAL); err != nil {
		return nil, err
	}
	if err := requireItems("REC", doc.REC); err != nil {
		return nil, err
	}

	return &incident.Snapshot{
		ID:        uuid.NewString(),
		UpdatedAt: doc.UpdatedAt,
		FetchedAt: now().UTC(),
		RAL:       toDataset(incident.DatasetRAL, doc.RAL),
		REC:       toDataset(incident.DatasetREC, doc.REC),
	}, nil
}

func requireItems(name string, ds *wire.Dataset) error {
	if ds == nil {
		return errors.New(errors.ErrCodeFeedIncomplete, "dataset missing").WithDetail(name)
	}
	if ds.Items == nil {
		return errors.New(errors.ErrCodeFeedIncomplete, "dataset has no items array").WithDetail(name)
	}
	return nil
}

func toDataset(name incident.DatasetName, ds *wire.Dataset) incident.Dataset {
	items := ds.ItemList()
	records := make([]incident.IncidentRecord, 0, len(items))
	for _, it := range items {
		records = append(records, incident.IncidentRecord{
			Cluster:        it.Cluster,
			Region:         it.Cidade,
			Type:           it.RalType,
			Description:    it.Description,
			Duration:       it.Duration,
			Code:           it.Code,
			Date:           it.Date,
			RecoveryNumber: it.Num,
		})
	}
	return incident.Dataset{Name: name, Total: ds.Total, Items: records}
}

// ToDocument is the inverse of FromDocument. The cluster and region count
// maps are filled from the items.
func ToDocument(s *incident.Snapshot) *wire.Document {
	return &wire.Document{
		UpdatedAt: s.UpdatedAt,
		RAL:       fromDataset(s.RAL),
		REC:       fromDataset(s.REC),
	}
}

func fromDataset(ds incident.Dataset) *wire.Dataset {
	items := make([]wire.Item, 0, len(ds.Items))
	for _, r := range ds.Items {
		items = append(items, wire.Item{
			Cluster:     r.Cluster,
			Cidade:      r.Region,
			RalType:     r.Type,
			Code:        r.Code,
			Description: r.Description,
			Date:        r.Date,
			Duration:    r.Duration,
			Num:         r.RecoveryNumber,
		})
	}
	return &wire.Dataset{
		Total:    ds.Total,
		Clusters: incident.CountByCluster(ds.Items, nil),
		Cities:   incident.CountByGroup(ds.Items, nil, incident.RegionKey),
		Items:    &items,
	}
}

// Encode writes s as an indented feed document.
func Encode(w io.Writer, s *incident.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ToDocument(s)); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode feed document")
	}
	return nil
}
