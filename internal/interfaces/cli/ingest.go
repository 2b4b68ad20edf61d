package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coprede/sir-dashboard/internal/app"
	"github.com/coprede/sir-dashboard/internal/application/ingest"
	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/interfaces/scheduler"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

type ingestOptions struct {
	clusters    string
	ral         string
	rec         string
	out         string
	encoding    string
	enrichedDir string
	publish     bool
	key         string
}

// IngestReport summarizes one ingest run.
type IngestReport struct {
	SnapshotID string         `json:"snapshotId"`
	UpdatedAt  string         `json:"updatedAt"`
	Records    map[string]int `json:"records"`
	Output     string         `json:"output,omitempty"`
	Published  string         `json:"published,omitempty"`
}

func newIngestCmd() *cobra.Command {
	o := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the feed document from the RAL and REC CSV exports",
		Long: "ingest maps every export row to its cluster through the cluster table and\n" +
			"writes the feed document the dashboard reads. With --publish the document\n" +
			"is uploaded to the configured MinIO object.",
		Args: cobra.NoArgs,
		RunE: runE(func(ctx context.Context, cliCtx *CLIContext, args []string) error {
			return runIngest(ctx, cliCtx, o)
		}),
	}
	f := cmd.Flags()
	f.StringVar(&o.clusters, "clusters", "", "cluster table CSV (required)")
	f.StringVar(&o.ral, "ral", "", "RAL export CSV")
	f.StringVar(&o.rec, "rec", "", "REC export CSV")
	f.StringVar(&o.out, "out", "dashboard_data.json", "output file; - writes to stdout, empty skips the file")
	f.StringVar(&o.encoding, "encoding", "utf-8", "charset of the CSV files (utf-8, latin1, windows-1252)")
	f.StringVar(&o.enrichedDir, "enriched-dir", "", "directory receiving enriched copies of the exports")
	f.BoolVar(&o.publish, "publish", false, "upload the document to object storage")
	f.StringVar(&o.key, "key", "", "object key for --publish (default: feed.object)")
	_ = cmd.MarkFlagRequired("clusters")
	return cmd
}

func runIngest(ctx context.Context, cliCtx *CLIContext, o *ingestOptions) error {
	if o.ral == "" && o.rec == "" {
		return errors.New(errors.ErrCodeValidation, "at least one of --ral or --rec is required")
	}
	loc, err := scheduler.LoadLocation(cliCtx.Config.Scheduler.Timezone)
	if err != nil {
		return err
	}

	svc := ingest.NewService(cliCtx.Logger, ingest.WithEncoding(o.encoding), ingest.WithLocation(loc))
	snap, err := svc.Run(ctx, ingest.Request{
		ClustersPath: o.clusters,
		RALPath:      o.ral,
		RECPath:      o.rec,
		EnrichedDir:  o.enrichedDir,
	})
	if err != nil {
		return err
	}

	report := IngestReport{
		SnapshotID: snap.ID,
		UpdatedAt:  snap.UpdatedAt,
		Records:    make(map[string]int, len(incident.AllDatasets)),
	}
	for _, name := range incident.AllDatasets {
		ds, _ := snap.Dataset(name)
		report.Records[string(name)] = len(ds.Items)
	}

	switch o.out {
	case "":
	case "-":
		if err := ingest.WriteDocument(cliCtx.Printer.w, snap); err != nil {
			return err
		}
	default:
		if err := writeDocumentFile(o.out, snap); err != nil {
			return err
		}
		report.Output = o.out
	}

	if o.publish {
		key, err := publishDocument(ctx, cliCtx, o.key, snap)
		if err != nil {
			return err
		}
		report.Published = key
	}

	if o.out == "-" {
		return nil
	}
	return cliCtx.Printer.Print(report, func(s styles) string { return renderIngest(s, report) })
}

// writeDocumentFile replaces path atomically so a reader never sees a
// partial document.
func writeDocumentFile(path string, snap *incident.Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sirdash-*.json")
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "create %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := writeAndClose(tmp, snap); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "write %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, errors.ErrCodeStorageError, "rename %s", path)
	}
	return nil
}

func writeAndClose(f *os.File, snap *incident.Snapshot) error {
	if err := ingest.WriteDocument(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func publishDocument(ctx context.Context, cliCtx *CLIContext, key string, snap *incident.Snapshot) (string, error) {
	if key == "" {
		key = cliCtx.Config.Feed.Object
	}
	if key == "" {
		return "", errors.New(errors.ErrCodeInvalidConfig, "no object key: pass --key or set feed.object")
	}
	infra, err := cliCtx.Infra(ctx)
	if err != nil {
		return "", err
	}
	if infra.Objects == nil {
		return "", errors.New(errors.ErrCodeInvalidConfig, "minio is not enabled")
	}
	if err := ingest.Publish(ctx, app.ObjectUploader{Infra: infra}, key, snap); err != nil {
		return "", err
	}
	return key, nil
}

func renderIngest(s styles, r IngestReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s snapshot %s (%s)\n", s.normal.Render("ingested"), r.SnapshotID, r.UpdatedAt)
	for _, name := range incident.AllDatasets {
		fmt.Fprintf(&sb, "  %s %d records\n", name, r.Records[string(name)])
	}
	if r.Output != "" {
		fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("written to"), r.Output)
	}
	if r.Published != "" {
		fmt.Fprintf(&sb, "%s %s\n", s.muted.Render("published as"), r.Published)
	}
	return strings.TrimRight(sb.String(), "\n")
}
