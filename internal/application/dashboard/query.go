package dashboard

import (
	"context"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/prometheus"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

const cacheSnapshot = "snapshot"

// SnapshotReader returns the latest snapshot.
type SnapshotReader interface {
	Latest(ctx context.Context) (*incident.Snapshot, error)
}

// ClusterView is the detail of one cluster on the board.
type ClusterView struct {
	Dataset       incident.DatasetName      `json:"dataset"`
	SelectedTypes []string                  `json:"selectedTypes"`
	Summary       incident.ClusterSummary   `json:"summary"`
	Records       []incident.IncidentRecord `json:"records"`
}

// RegionView is the drill-down into one region of a cluster.
type RegionView struct {
	Dataset       incident.DatasetName `json:"dataset"`
	SelectedTypes []string             `json:"selectedTypes"`
	incident.RegionDrillDown
}

// QueryDeps wires a QueryService. Store, History and Transitions are
// optional.
type QueryDeps struct {
	Store       SnapshotReader
	Local       *LocalStore
	History     incident.HistoryRepository
	Transitions incident.TransitionLog
	Policies    map[incident.DatasetName]incident.DatasetPolicy
	Metrics     *prometheus.AppMetrics
	Logger      logging.Logger
}

// QueryService answers board queries on the latest snapshot.
type QueryService struct {
	deps QueryDeps
}

func NewQueryService(deps QueryDeps) *QueryService {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Local == nil {
		deps.Local = NewLocalStore()
	}
	if deps.Policies == nil {
		deps.Policies = incident.DefaultPolicies()
	}
	deps.Logger = deps.Logger.Named("query")
	return &QueryService{deps: deps}
}

// Snapshot returns the latest snapshot from the shared store, falling back
// to the in-process copy when the store is absent or failing.
func (s *QueryService) Snapshot(ctx context.Context) (*incident.Snapshot, error) {
	var storeErr error
	if s.deps.Store != nil {
		snap, err := s.deps.Store.Latest(ctx)
		prometheus.RecordCacheAccess(s.deps.Metrics, cacheSnapshot, err == nil)
		if err == nil {
			return snap, nil
		}
		storeErr = err
		if !errors.IsCode(err, errors.ErrCodeSnapshotMissing) {
			s.deps.Logger.Warn("snapshot store unavailable, using local copy", logging.Err(err))
		}
	}
	if snap, _, ok := s.deps.Local.Get(); ok {
		return snap, nil
	}
	if storeErr != nil {
		return nil, storeErr
	}
	return nil, errors.ErrSnapshotMissing
}

// Latest lets QueryService stand in as a SnapshotReader.
func (s *QueryService) Latest(ctx context.Context) (*incident.Snapshot, error) {
	return s.Snapshot(ctx)
}

func (s *QueryService) policy(name incident.DatasetName) incident.DatasetPolicy {
	if p, ok := s.deps.Policies[name]; ok {
		return p
	}
	return incident.DatasetPolicy{Name: name, Filterable: true}
}

func (s *QueryService) dataset(ctx context.Context, name string) (incident.Dataset, incident.DatasetPolicy, error) {
	dn, ok := incident.ParseDatasetName(name)
	if !ok {
		return incident.Dataset{}, incident.DatasetPolicy{}, errors.New(errors.ErrCodeUnknownDataset, "unknown dataset").WithDetail(name)
	}
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return incident.Dataset{}, incident.DatasetPolicy{}, err
	}
	ds, _ := snap.Dataset(dn)
	return ds, s.policy(dn), nil
}

// Board aggregates a dataset for the given type selection.
func (s *QueryService) Board(ctx context.Context, dataset string, types []string) (incident.Board, error) {
	ds, policy, err := s.dataset(ctx, dataset)
	if err != nil {
		return incident.Board{}, err
	}
	return incident.BuildBoard(ds, policy, types), nil
}

// Cluster returns the regions and records of one cluster.
func (s *QueryService) Cluster(ctx context.Context, dataset, cluster string, types []string) (*ClusterView, error) {
	ds, policy, err := s.dataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	summary, records, ok := incident.ClusterDetail(ds, policy, cluster, types)
	if !ok {
		return nil, errors.New(errors.ErrCodeClusterNotFound, "cluster has no records").WithDetailf("%s/%s", ds.Name, cluster)
	}
	return &ClusterView{
		Dataset:       ds.Name,
		SelectedTypes: policy.EffectiveTypes(types),
		Summary:       summary,
		Records:       records,
	}, nil
}

// Region drills into one region of a cluster.
func (s *QueryService) Region(ctx context.Context, dataset, cluster, region string, types []string) (*RegionView, error) {
	ds, policy, err := s.dataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	d, ok := incident.DrillDownRegion(ds, policy, cluster, region, types)
	if !ok {
		return nil, errors.New(errors.ErrCodeClusterNotFound, "region has no records").WithDetailf("%s/%s/%s", ds.Name, cluster, region)
	}
	return &RegionView{
		Dataset:         ds.Name,
		SelectedTypes:   policy.EffectiveTypes(types),
		RegionDrillDown: d,
	}, nil
}

// TypeOptions lists the selectable types of a dataset.
func (s *QueryService) TypeOptions(ctx context.Context, dataset string) ([]string, error) {
	ds, _, err := s.dataset(ctx, dataset)
	if err != nil {
		return nil, err
	}
	return incident.ExtractTypeOptions(ds.Items), nil
}

// History lists recent refresh summaries, newest first.
func (s *QueryService) History(ctx context.Context, limit int) ([]incident.SnapshotSummary, error) {
	if s.deps.History == nil {
		if _, sum, ok := s.deps.Local.Get(); ok {
			return []incident.SnapshotSummary{sum}, nil
		}
		return []incident.SnapshotSummary{}, nil
	}
	return s.deps.History.ListRecent(ctx, incident.WithLimit(limit))
}

// Trend returns one cluster's count across recent refreshes.
func (s *QueryService) Trend(ctx context.Context, dataset, cluster string, limit int) ([]incident.TrendPoint, error) {
	dn, ok := incident.ParseDatasetName(dataset)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownDataset, "unknown dataset").WithDetail(dataset)
	}
	if s.deps.History == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "history is not enabled")
	}
	return s.deps.History.ClusterTrend(ctx, dn, cluster, incident.WithLimit(limit))
}

// Transitions lists recent critical transitions of the given datasets, all
// datasets when none is given.
func (s *QueryService) Transitions(ctx context.Context, datasets []string, limit int) ([]incident.CriticalTransition, error) {
	names := make([]incident.DatasetName, 0, len(datasets))
	for _, d := range datasets {
		dn, ok := incident.ParseDatasetName(d)
		if !ok {
			return nil, errors.New(errors.ErrCodeUnknownDataset, "unknown dataset").WithDetail(d)
		}
		names = append(names, dn)
	}
	if s.deps.Transitions == nil {
		return nil, errors.New(errors.ErrCodeServiceUnavailable, "history is not enabled")
	}
	return s.deps.Transitions.ListTransitions(ctx, names, incident.WithLimit(limit))
}
