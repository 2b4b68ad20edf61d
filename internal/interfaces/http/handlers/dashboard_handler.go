package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coprede/sir-dashboard/internal/application/dashboard"
	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// DashboardQuerier is the read side served by DashboardHandler.
type DashboardQuerier interface {
	Board(ctx context.Context, dataset string, types []string) (incident.Board, error)
	Cluster(ctx context.Context, dataset, cluster string, types []string) (*dashboard.ClusterView, error)
	Region(ctx context.Context, dataset, cluster, region string, types []string) (*dashboard.RegionView, error)
	TypeOptions(ctx context.Context, dataset string) ([]string, error)
	Snapshot(ctx context.Context) (*incident.Snapshot, error)
	History(ctx context.Context, limit int) ([]incident.SnapshotSummary, error)
	Trend(ctx context.Context, dataset, cluster string, limit int) ([]incident.TrendPoint, error)
	Transitions(ctx context.Context, datasets []string, limit int) ([]incident.CriticalTransition, error)
}

// Refresher runs an on-demand refresh.
type Refresher interface {
	Refresh(ctx context.Context) (*dashboard.RefreshResult, error)
}

// DashboardHandler serves the board API. A nil refresher disables
// POST /refresh.
type DashboardHandler struct {
	query     DashboardQuerier
	refresher Refresher
	logger    logging.Logger
}

func NewDashboardHandler(query DashboardQuerier, refresher Refresher, logger logging.Logger) *DashboardHandler {
	return &DashboardHandler{query: query, refresher: refresher, logger: logger}
}

// SnapshotInfo is the body of GET /snapshot: the feed metadata without the
// record lists.
type SnapshotInfo struct {
	ID        string                   `json:"id"`
	UpdatedAt string                   `json:"updatedAt"`
	FetchedAt time.Time                `json:"fetchedAt"`
	Source    string                   `json:"source,omitempty"`
	Totals    map[string]DatasetTotals `json:"totals"`
}

// DatasetTotals compares the producer's total with the records received.
type DatasetTotals struct {
	Total int `json:"total"`
	Items int `json:"items"`
}

// Board handles GET /datasets/{dataset}/board.
func (h *DashboardHandler) Board(w http.ResponseWriter, r *http.Request) {
	board, err := h.query.Board(r.Context(), chi.URLParam(r, "dataset"), parseTypes(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, board)
}

// Cluster handles GET /datasets/{dataset}/clusters/{cluster}.
func (h *DashboardHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	view, err := h.query.Cluster(r.Context(), chi.URLParam(r, "dataset"), chi.URLParam(r, "cluster"), parseTypes(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, view)
}

// Region handles GET /datasets/{dataset}/clusters/{cluster}/regions/{region}.
func (h *DashboardHandler) Region(w http.ResponseWriter, r *http.Request) {
	view, err := h.query.Region(r.Context(), chi.URLParam(r, "dataset"), chi.URLParam(r, "cluster"), chi.URLParam(r, "region"), parseTypes(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, view)
}

// Types handles GET /datasets/{dataset}/types.
func (h *DashboardHandler) Types(w http.ResponseWriter, r *http.Request) {
	types, err := h.query.TypeOptions(r.Context(), chi.URLParam(r, "dataset"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, types)
}

// Trend handles GET /datasets/{dataset}/clusters/{cluster}/trend.
func (h *DashboardHandler) Trend(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	points, err := h.query.Trend(r.Context(), chi.URLParam(r, "dataset"), chi.URLParam(r, "cluster"), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, points)
}

// Snapshot handles GET /snapshot.
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.query.Snapshot(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	info := SnapshotInfo{
		ID:        snap.ID,
		UpdatedAt: snap.UpdatedAt,
		FetchedAt: snap.FetchedAt,
		Source:    snap.Source,
		Totals:    make(map[string]DatasetTotals, len(incident.AllDatasets)),
	}
	for _, name := range incident.AllDatasets {
		ds, _ := snap.Dataset(name)
		info.Totals[string(name)] = DatasetTotals{Total: ds.Total, Items: len(ds.Items)}
	}
	writeOK(w, r, info)
}

// History handles GET /history.
func (h *DashboardHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	sums, err := h.query.History(r.Context(), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, sums)
}

// Transitions handles GET /transitions?datasets=RAL,REC&limit=.
func (h *DashboardHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	trs, err := h.query.Transitions(r.Context(), parseDatasets(r), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeOK(w, r, trs)
}

// Refresh handles POST /refresh.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		writeAppError(w, r, errors.New(errors.ErrCodeServiceUnavailable, "refresh is handled by the worker"))
		return
	}
	res, err := h.refresher.Refresh(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	h.logger.Info("manual refresh", logging.String("snapshot_id", res.SnapshotID))
	writeOK(w, r, res)
}
