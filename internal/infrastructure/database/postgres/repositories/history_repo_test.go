package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/database/postgres"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	apperrors "github.com/coprede/sir-dashboard/pkg/errors"
)

type HistoryRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo *HistoryRepo
}

func (s *HistoryRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)
	s.repo = NewHistoryRepo(postgres.NewConnectionWithDB(s.db, logging.NewNopLogger()), logging.NewNopLogger())
}

func (s *HistoryRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

var fetchedAt = time.Date(2026, 1, 12, 14, 15, 0, 0, time.UTC)

func sampleSummary() incident.SnapshotSummary {
	return incident.SnapshotSummary{
		SnapshotID: "snap-1",
		UpdatedAt:  "12/01/2026 11:15",
		FetchedAt:  fetchedAt,
		Datasets: []incident.DatasetSummary{
			{Name: incident.DatasetRAL, Total: 3, Items: 3, Critical: true, Clusters: []incident.ClusterStat{
				{Name: "BHE", Count: 1},
				{Name: "RJO", Count: 2, Critical: true},
			}},
			{Name: incident.DatasetREC, Total: 0, Items: 0, Clusters: []incident.ClusterStat{}},
		},
	}
}

func (s *HistoryRepoTestSuite) TestSave() {
	sum := sampleSummary()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshot_summaries")).
		WithArgs("snap-1", "12/01/2026 11:15", fetchedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cluster_counts")).
		WithArgs("snap-1", "RAL", "BHE", 1, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cluster_counts")).
		WithArgs("snap-1", "RAL", "RJO", 2, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	s.NoError(s.repo.Save(context.Background(), sum))
}

func (s *HistoryRepoTestSuite) TestSave_RollsBackOnError() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshot_summaries")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cluster_counts")).
		WillReturnError(errors.New("disk full"))
	s.mock.ExpectRollback()

	err := s.repo.Save(context.Background(), sampleSummary())
	s.True(apperrors.IsCode(err, apperrors.ErrCodeDatabaseError))
}

func (s *HistoryRepoTestSuite) TestListRecent() {
	sum := sampleSummary()
	datasets, _ := json.Marshal(sum.Datasets)

	s.mock.ExpectQuery(regexp.QuoteMeta("FROM snapshot_summaries")).
		WithArgs(time.Time{}, 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at_label", "fetched_at", "datasets"}).
			AddRow("snap-1", "12/01/2026 11:15", fetchedAt, datasets))

	got, err := s.repo.ListRecent(context.Background(), incident.WithLimit(5))
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(sum, got[0])
}

func (s *HistoryRepoTestSuite) TestListRecent_QueryError() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM snapshot_summaries")).
		WillReturnError(errors.New("connection reset"))

	_, err := s.repo.ListRecent(context.Background())
	s.True(apperrors.IsCode(err, apperrors.ErrCodeDatabaseError))
}

func (s *HistoryRepoTestSuite) TestClusterTrend_OldestFirst() {
	since := fetchedAt.Add(-24 * time.Hour)
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM cluster_counts c")).
		WithArgs("RAL", "RJO", since, 20).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_id", "fetched_at", "count", "critical"}).
			AddRow("snap-2", fetchedAt, 4, true).
			AddRow("snap-1", fetchedAt.Add(-5*time.Minute), 2, false))

	got, err := s.repo.ClusterTrend(context.Background(), incident.DatasetRAL, "RJO", incident.WithSince(since))
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("snap-1", got[0].SnapshotID)
	s.Equal(4, got[1].Count)
	s.True(got[1].Critical)
}

func (s *HistoryRepoTestSuite) TestRecordTransitions() {
	s.NoError(s.repo.RecordTransitions(context.Background(), nil))

	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO critical_transitions")).
		WithArgs("snap-1", "RAL", "RJO", true, 2, fetchedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectCommit()

	s.NoError(s.repo.RecordTransitions(context.Background(), []incident.CriticalTransition{
		{Dataset: incident.DatasetRAL, Cluster: "RJO", Critical: true, Count: 2, SnapshotID: "snap-1", At: fetchedAt},
	}))
}

func (s *HistoryRepoTestSuite) TestListTransitions() {
	s.mock.ExpectQuery(regexp.QuoteMeta("FROM critical_transitions")).
		WithArgs(sqlmock.AnyArg(), time.Time{}, 20).
		WillReturnRows(sqlmock.NewRows([]string{"snapshot_id", "dataset", "cluster", "critical", "count", "occurred_at"}).
			AddRow("snap-2", "RAL", "RJO", false, 0, fetchedAt))

	got, err := s.repo.ListTransitions(context.Background(), nil)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(incident.DatasetRAL, got[0].Dataset)
	s.False(got[0].Critical)
}

func TestHistoryRepoTestSuite(t *testing.T) {
	suite.Run(t, new(HistoryRepoTestSuite))
}
