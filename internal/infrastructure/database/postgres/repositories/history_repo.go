package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/postgres"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

const (
	insertSummarySQL = `
		INSERT INTO snapshot_summaries (id, updated_at_label, fetched_at, datasets)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`

	insertClusterCountSQL = `
		INSERT INTO cluster_counts (snapshot_id, dataset, cluster, count, critical)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (snapshot_id, dataset, cluster) DO NOTHING`

	listRecentSQL = `
		SELECT id, updated_at_label, fetched_at, datasets
		FROM snapshot_summaries
		WHERE fetched_at >= $1
		ORDER BY fetched_at DESC
		LIMIT $2`

	clusterTrendSQL = `
		SELECT c.snapshot_id, s.fetched_at, c.count, c.critical
		FROM cluster_counts c
		JOIN snapshot_summaries s ON s.id = c.snapshot_id
		WHERE c.dataset = $1 AND c.cluster = $2 AND s.fetched_at >= $3
		ORDER BY s.fetched_at DESC
		LIMIT $4`

	insertTransitionSQL = `
		INSERT INTO critical_transitions (snapshot_id, dataset, cluster, critical, count, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listTransitionsSQL = `
		SELECT snapshot_id, dataset, cluster, critical, count, occurred_at
		FROM critical_transitions
		WHERE dataset = ANY($1) AND occurred_at >= $2
		ORDER BY occurred_at DESC, id DESC
		LIMIT $3`
)

// HistoryRepo stores refresh summaries and critical transitions in
// PostgreSQL.
type HistoryRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

var (
	_ incident.HistoryRepository = (*HistoryRepo)(nil)
	_ incident.TransitionLog     = (*HistoryRepo)(nil)
)

func NewHistoryRepo(conn *postgres.Connection, log logging.Logger) *HistoryRepo {
	return &HistoryRepo{conn: conn, log: log}
}

// Save writes the summary and its per-cluster rows in one transaction.
// Saving the same snapshot twice is a no-op.
func (r *HistoryRepo) Save(ctx context.Context, summary incident.SnapshotSummary) error {
	datasets, err := json.Marshal(summary.Datasets)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal dataset summaries")
	}

	return r.withTx(ctx, func(q queryExecutor) error {
		if _, err := q.ExecContext(ctx, insertSummarySQL,
			summary.SnapshotID, summary.UpdatedAt, summary.FetchedAt, datasets); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert snapshot summary")
		}
		for _, d := range summary.Datasets {
			for _, c := range d.Clusters {
				if _, err := q.ExecContext(ctx, insertClusterCountSQL,
					summary.SnapshotID, string(d.Name), c.Name, c.Count, c.Critical); err != nil {
					return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert cluster count")
				}
			}
		}
		return nil
	})
}

func (r *HistoryRepo) ListRecent(ctx context.Context, opts ...incident.HistoryQueryOption) ([]incident.SnapshotSummary, error) {
	o := incident.ApplyHistoryOptions(opts...)
	rows, err := r.conn.DB().QueryContext(ctx, listRecentSQL, o.Since, o.Limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query snapshot history")
	}
	defer rows.Close()

	out := make([]incident.SnapshotSummary, 0)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate snapshot history")
	}
	return out, nil
}

func scanSummary(row scanner) (incident.SnapshotSummary, error) {
	var (
		s        incident.SnapshotSummary
		datasets []byte
	)
	if err := row.Scan(&s.SnapshotID, &s.UpdatedAt, &s.FetchedAt, &datasets); err != nil {
		return s, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan snapshot summary")
	}
	if err := json.Unmarshal(datasets, &s.Datasets); err != nil {
		return s, errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal dataset summaries")
	}
	return s, nil
}

// ClusterTrend returns the cluster's counts oldest first.
func (r *HistoryRepo) ClusterTrend(ctx context.Context, dataset incident.DatasetName, cluster string, opts ...incident.HistoryQueryOption) ([]incident.TrendPoint, error) {
	o := incident.ApplyHistoryOptions(opts...)
	rows, err := r.conn.DB().QueryContext(ctx, clusterTrendSQL, string(dataset), cluster, o.Since, o.Limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query cluster trend")
	}
	defer rows.Close()

	out := make([]incident.TrendPoint, 0)
	for rows.Next() {
		var p incident.TrendPoint
		if err := rows.Scan(&p.SnapshotID, &p.FetchedAt, &p.Count, &p.Critical); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan trend point")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate cluster trend")
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *HistoryRepo) RecordTransitions(ctx context.Context, transitions []incident.CriticalTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	return r.withTx(ctx, func(q queryExecutor) error {
		for _, t := range transitions {
			if _, err := q.ExecContext(ctx, insertTransitionSQL,
				t.SnapshotID, string(t.Dataset), t.Cluster, t.Critical, t.Count, t.At); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "insert critical transition")
			}
		}
		return nil
	})
}

// ListTransitions returns transitions of the given datasets, newest first.
// An empty dataset list means all datasets.
func (r *HistoryRepo) ListTransitions(ctx context.Context, datasets []incident.DatasetName, opts ...incident.HistoryQueryOption) ([]incident.CriticalTransition, error) {
	o := incident.ApplyHistoryOptions(opts...)
	if len(datasets) == 0 {
		datasets = incident.AllDatasets
	}
	names := make([]string, len(datasets))
	for i, d := range datasets {
		names[i] = string(d)
	}

	rows, err := r.conn.DB().QueryContext(ctx, listTransitionsSQL, pq.Array(names), o.Since, o.Limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "query critical transitions")
	}
	defer rows.Close()

	out := make([]incident.CriticalTransition, 0)
	for rows.Next() {
		var (
			t       incident.CriticalTransition
			dataset string
		)
		if err := rows.Scan(&t.SnapshotID, &dataset, &t.Cluster, &t.Critical, &t.Count, &t.At); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "scan critical transition")
		}
		t.Dataset = incident.DatasetName(dataset)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "iterate critical transitions")
	}
	return out, nil
}

func (r *HistoryRepo) withTx(ctx context.Context, fn func(q queryExecutor) error) error {
	start := time.Now()
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warn("Rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "commit transaction")
	}
	r.log.Debug("History transaction committed", logging.Duration("took", time.Since(start)))
	return nil
}
