package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

const (
	keyLatestSnapshot = "snapshot:latest"
	keyLatestSummary  = "snapshot:summary"
)

// SnapshotStore holds the latest decoded snapshot and its summary so that
// every API replica serves the same board.
type SnapshotStore struct {
	client *Client
	logger logging.Logger
	group  singleflight.Group
}

func NewSnapshotStore(client *Client, log logging.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, logger: log}
}

// Save replaces the latest snapshot and its summary in one transaction.
func (s *SnapshotStore) Save(ctx context.Context, snap *incident.Snapshot, summary incident.SnapshotSummary) error {
	rdb, err := s.client.Universal()
	if err != nil {
		return err
	}
	snapData, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal snapshot")
	}
	sumData, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "marshal snapshot summary")
	}

	ttl := s.client.Config().SnapshotTTL
	_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.client.Key(keyLatestSnapshot), snapData, ttl)
		pipe.Set(ctx, s.client.Key(keyLatestSummary), sumData, ttl)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "store snapshot")
	}
	s.logger.Debug("Snapshot stored",
		logging.String("snapshot_id", snap.ID),
		logging.Int("bytes", len(snapData)))
	return nil
}

// Latest returns the stored snapshot or errors.ErrSnapshotMissing. Concurrent
// readers share one round trip.
func (s *SnapshotStore) Latest(ctx context.Context) (*incident.Snapshot, error) {
	v, err, _ := s.group.Do(keyLatestSnapshot, func() (interface{}, error) {
		var snap incident.Snapshot
		if err := s.get(ctx, keyLatestSnapshot, &snap); err != nil {
			return nil, err
		}
		return &snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*incident.Snapshot), nil
}

// LatestSummary returns the summary stored with the latest snapshot.
func (s *SnapshotStore) LatestSummary(ctx context.Context) (*incident.SnapshotSummary, error) {
	var sum incident.SnapshotSummary
	if err := s.get(ctx, keyLatestSummary, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *SnapshotStore) get(ctx context.Context, name string, dest interface{}) error {
	rdb, err := s.client.Universal()
	if err != nil {
		return err
	}
	data, err := rdb.Get(ctx, s.client.Key(name)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return errors.ErrSnapshotMissing
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "load "+name)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "unmarshal "+name)
	}
	return nil
}
