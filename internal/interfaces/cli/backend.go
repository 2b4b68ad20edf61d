package cli

import (
	"context"
	"encoding/json"

	"github.com/coprede/sir-dashboard/internal/app"
	"github.com/coprede/sir-dashboard/internal/application/dashboard"
	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/pkg/client"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Backend answers the read commands either from an API server or from the
// feed and stores configured locally. Results use the wire types of the SDK
// so both modes print identically.
type Backend interface {
	Board(ctx context.Context, dataset string, types []string) (*client.Board, error)
	Cluster(ctx context.Context, dataset, cluster string, types []string) (*client.ClusterView, error)
	Types(ctx context.Context, dataset string) ([]string, error)
	Snapshot(ctx context.Context) (*client.SnapshotInfo, error)
	History(ctx context.Context, limit int) ([]client.SnapshotSummary, error)
	Trend(ctx context.Context, dataset, cluster string, limit int) ([]client.TrendPoint, error)
	Transitions(ctx context.Context, datasets []string, limit int) ([]client.Transition, error)
	Refresh(ctx context.Context) (*client.RefreshResult, error)
}

// remoteBackend is the SDK itself.
var _ Backend = (*client.Client)(nil)

// localBackend serves from app.Infrastructure. When nothing has been
// refreshed into any store yet, the first read pulls the feed once.
type localBackend struct {
	infra     *app.Infrastructure
	query     *dashboard.QueryService
	refresher *dashboard.Refresher
}

func newLocalBackend(infra *app.Infrastructure) (*localBackend, error) {
	refresher, err := infra.NewRefresher()
	if err != nil {
		return nil, err
	}
	return &localBackend{infra: infra, query: infra.NewQueryService(), refresher: refresher}, nil
}

func (b *localBackend) ensure(ctx context.Context) error {
	if _, err := b.query.Snapshot(ctx); !errors.IsCode(err, errors.ErrCodeSnapshotMissing) {
		return nil
	}
	_, err := b.refresher.Refresh(ctx)
	return err
}

// recode converts between the domain types and their wire twins.
func recode[T any](src interface{}) (T, error) {
	var out T
	data, err := json.Marshal(src)
	if err != nil {
		return out, errors.Wrap(err, errors.ErrCodeSerialization, "encode result")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, errors.Wrap(err, errors.ErrCodeSerialization, "decode result")
	}
	return out, nil
}

func (b *localBackend) Board(ctx context.Context, dataset string, types []string) (*client.Board, error) {
	if err := b.ensure(ctx); err != nil {
		return nil, err
	}
	board, err := b.query.Board(ctx, dataset, types)
	if err != nil {
		return nil, err
	}
	out, err := recode[client.Board](board)
	return &out, err
}

func (b *localBackend) Cluster(ctx context.Context, dataset, cluster string, types []string) (*client.ClusterView, error) {
	if err := b.ensure(ctx); err != nil {
		return nil, err
	}
	view, err := b.query.Cluster(ctx, dataset, cluster, types)
	if err != nil {
		return nil, err
	}
	out, err := recode[client.ClusterView](view)
	return &out, err
}

func (b *localBackend) Types(ctx context.Context, dataset string) ([]string, error) {
	if err := b.ensure(ctx); err != nil {
		return nil, err
	}
	return b.query.TypeOptions(ctx, dataset)
}

func (b *localBackend) Snapshot(ctx context.Context) (*client.SnapshotInfo, error) {
	if err := b.ensure(ctx); err != nil {
		return nil, err
	}
	snap, err := b.query.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	info := &client.SnapshotInfo{
		ID:        snap.ID,
		UpdatedAt: snap.UpdatedAt,
		FetchedAt: snap.FetchedAt,
		Source:    snap.Source,
		Totals:    make(map[string]client.DatasetTotals, len(incident.AllDatasets)),
	}
	for _, name := range incident.AllDatasets {
		ds, _ := snap.Dataset(name)
		info.Totals[string(name)] = client.DatasetTotals{Total: ds.Total, Items: len(ds.Items)}
	}
	return info, nil
}

func (b *localBackend) History(ctx context.Context, limit int) ([]client.SnapshotSummary, error) {
	history, err := b.query.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	return recode[[]client.SnapshotSummary](history)
}

func (b *localBackend) Trend(ctx context.Context, dataset, cluster string, limit int) ([]client.TrendPoint, error) {
	points, err := b.query.Trend(ctx, dataset, cluster, limit)
	if err != nil {
		return nil, err
	}
	return recode[[]client.TrendPoint](points)
}

func (b *localBackend) Transitions(ctx context.Context, datasets []string, limit int) ([]client.Transition, error) {
	transitions, err := b.query.Transitions(ctx, datasets, limit)
	if err != nil {
		return nil, err
	}
	return recode[[]client.Transition](transitions)
}

func (b *localBackend) Refresh(ctx context.Context) (*client.RefreshResult, error) {
	result, err := b.refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	out, err := recode[client.RefreshResult](result)
	return &out, err
}
