// Package ingest turns the SIR CSV exports into the dashboard feed document,
// enriching every row with the cluster and region of its equipment code.
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/feed"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
	wire "github.com/coprede/sir-dashboard/pkg/types/feed"
)

const missingCell = "N/A"

// ColumnMap names the export columns read for one dataset. An empty name
// means the export has no such column.
type ColumnMap struct {
	Code        string
	Type        string
	Description string
	Date        string
	Duration    string
	Number      string
}

var (
	RALColumns = ColumnMap{
		Code:        "CF Exec.",
		Type:        "Tipo Ral",
		Description: "Designação",
		Date:        "Abertura",
		Duration:    "Duração",
		Number:      "Num.Recup.",
	}
	// RECColumns reads the client as the type; REC exports carry no duration.
	RECColumns = ColumnMap{
		Code:        "CF Exec.",
		Type:        "Cliente",
		Description: "Designação",
		Date:        "Abertura",
		Number:      "Num.Recup.",
	}
)

// ColumnsFor returns the column map of a dataset.
func ColumnsFor(name incident.DatasetName) ColumnMap {
	if name == incident.DatasetREC {
		return RECColumns
	}
	return RALColumns
}

// Request names the input files of one ingest run.
type Request struct {
	ClustersPath string
	RALPath      string
	RECPath      string
	// EnrichedDir, when set, receives <name>_enriched.csv copies of the
	// exports with the Cluster, Cidade, Region and Type columns appended.
	EnrichedDir string
}

// Uploader publishes the produced document, typically to MinIO.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Service runs the enrichment.
type Service struct {
	logger   logging.Logger
	now      func() time.Time
	location *time.Location
	encoding string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now for the updatedAt stamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone updatedAt is rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.location = loc }
}

// WithEncoding declares the charset of the exports: "utf-8" (default),
// "latin1" or "windows-1252".
func WithEncoding(enc string) Option {
	return func(s *Service) { s.encoding = strings.ToLower(enc) }
}

func NewService(logger logging.Logger, opts ...Option) *Service {
	s := &Service{logger: logger, now: time.Now, location: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) decode(r io.Reader) (io.Reader, error) {
	switch s.encoding {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported csv encoding").WithDetail(s.encoding)
	}
}

// Run reads the cluster table and both exports and returns the snapshot the
// feed document is written from.
func (s *Service) Run(ctx context.Context, req Request) (*incident.Snapshot, error) {
	f, err := os.Open(req.ClustersPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeIngestReadFailed, "open cluster table %s", req.ClustersPath)
	}
	defer f.Close()
	r, err := s.decode(f)
	if err != nil {
		return nil, err
	}
	clusters, err := LoadClusterMap(r)
	if err != nil {
		return nil, err
	}
	s.logger.Info("cluster table loaded", logging.Int("codes", len(clusters)))

	snap := &incident.Snapshot{
		ID:        uuid.NewString(),
		UpdatedAt: s.now().In(s.location).Format(wire.UpdatedAtLayout),
		FetchedAt: s.now(),
		Source:    "ingest",
	}
	enricher := NewEnricher(clusters, s.logger)

	for _, job := range []struct {
		name incident.DatasetName
		path string
		dest *incident.Dataset
	}{
		{incident.DatasetRAL, req.RALPath, &snap.RAL},
		{incident.DatasetREC, req.RECPath, &snap.REC},
	} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.ingestFile(enricher, job.name, job.path)
		if err != nil {
			return nil, err
		}
		*job.dest = result.Dataset
		s.logger.Info("dataset ingested",
			logging.String("dataset", string(job.name)),
			logging.Int("total", result.Dataset.Total),
			logging.Int("items", len(result.Dataset.Items)),
			logging.Int("unmapped", result.Unmapped))

		if req.EnrichedDir != "" && result.Enriched != nil {
			if err := s.writeEnriched(req.EnrichedDir, job.path, result.Enriched); err != nil {
				return nil, err
			}
		}
	}
	return snap, nil
}

func (s *Service) ingestFile(e *Enricher, name incident.DatasetName, path string) (*Result, error) {
	empty := &Result{Dataset: incident.Dataset{Name: name, Items: []incident.IncidentRecord{}}}
	if path == "" {
		return empty, nil
	}
	f, err := os.Open(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("export file not found", logging.String("dataset", string(name)), logging.String("path", path))
		return empty, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeIngestReadFailed, "open %s export", name)
	}
	defer f.Close()

	r, err := s.decode(f)
	if err != nil {
		return nil, err
	}
	return e.Enrich(name, r)
}

// EnrichedPath returns where the enriched copy of exportPath is written.
func EnrichedPath(dir, exportPath string) string {
	base := filepath.Base(exportPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_enriched.csv")
}

func (s *Service) writeEnriched(dir, exportPath string, rows [][]string) error {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode enriched csv")
	}
	path := EnrichedPath(dir, exportPath)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrCodeIngestReadFailed, "write %s", path)
	}
	s.logger.Info("enriched export written", logging.String("path", path))
	return nil
}

// WriteDocument encodes snap as the feed document.
func WriteDocument(w io.Writer, snap *incident.Snapshot) error {
	return feed.Encode(w, snap)
}

// Publish encodes snap and uploads it under key.
func Publish(ctx context.Context, up Uploader, key string, snap *incident.Snapshot) error {
	var buf bytes.Buffer
	if err := feed.Encode(&buf, snap); err != nil {
		return err
	}
	if err := up.Upload(ctx, key, buf.Bytes(), "application/json"); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "publish feed document %s", key)
	}
	return nil
}
