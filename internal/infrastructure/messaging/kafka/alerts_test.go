package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
)

type capturePublisher struct {
	msgs []*Message
	err  error
}

func (c *capturePublisher) PublishBatch(ctx context.Context, msgs []*Message) error {
	c.msgs = append(c.msgs, msgs...)
	return c.err
}

var at = time.Date(2026, 1, 12, 14, 15, 0, 0, time.UTC)

func TestAlertPublisher_PublishTransitions(t *testing.T) {
	pub := &capturePublisher{}
	ap := NewAlertPublisher(pub, "", logging.NewNopLogger())

	require.NoError(t, ap.PublishTransitions(context.Background(), nil))
	assert.Empty(t, pub.msgs)

	transitions := []incident.CriticalTransition{
		{Dataset: incident.DatasetRAL, Cluster: "RJO", Critical: true, Count: 2, SnapshotID: "snap-2", At: at},
		{Dataset: incident.DatasetRAL, Cluster: "BHE", Critical: false, SnapshotID: "snap-2", At: at},
	}
	require.NoError(t, ap.PublishTransitions(context.Background(), transitions))
	require.Len(t, pub.msgs, 2)

	msg := pub.msgs[0]
	assert.Equal(t, TopicCriticalTransitions, msg.Topic)
	assert.Equal(t, "RAL/RJO", string(msg.Key))

	got, err := DecodeTransition(msg)
	require.NoError(t, err)
	assert.Equal(t, transitions[0], got)

	env, err := MessageToEventEnvelope(msg)
	require.NoError(t, err)
	assert.Equal(t, "sir-dashboard", env.Source)
	assert.Equal(t, "snap-2", env.Metadata["snapshot_id"])
}

func TestAlertPublisher_PublishRefreshed(t *testing.T) {
	pub := &capturePublisher{}
	ap := NewAlertPublisher(pub, "worker", logging.NewNopLogger())

	summary := incident.SnapshotSummary{
		SnapshotID: "snap-3",
		FetchedAt:  at,
		Datasets: []incident.DatasetSummary{
			{Name: incident.DatasetRAL, Items: 4, Clusters: []incident.ClusterStat{{Name: "RJO", Count: 4, Critical: true}, {Name: "BHE", Count: 1}}},
			{Name: incident.DatasetREC, Items: 0, Clusters: []incident.ClusterStat{}},
		},
	}
	require.NoError(t, ap.PublishRefreshed(context.Background(), summary))
	require.Len(t, pub.msgs, 1)

	env, err := MessageToEventEnvelope(pub.msgs[0])
	require.NoError(t, err)
	var payload SnapshotRefreshedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, 4, payload.Totals["RAL"])
	assert.Equal(t, []string{"RJO"}, payload.CriticalClusters["RAL"])
	assert.Equal(t, []string{}, payload.CriticalClusters["REC"])
}

func TestAlertPublisher_PropagatesError(t *testing.T) {
	ap := NewAlertPublisher(&capturePublisher{err: errors.New("down")}, "", logging.NewNopLogger())
	err := ap.PublishTransitions(context.Background(), []incident.CriticalTransition{{Dataset: incident.DatasetREC, Cluster: "X"}})
	assert.Error(t, err)
}

func TestTransitionHandler(t *testing.T) {
	var got []incident.CriticalTransition
	h := TransitionHandler(func(ctx context.Context, tr incident.CriticalTransition) error {
		got = append(got, tr)
		return nil
	}, logging.NewNopLogger())

	env, err := NewEventEnvelope(EventCriticalTransition, "test", incident.CriticalTransition{Dataset: incident.DatasetRAL, Cluster: "RJO", Critical: true})
	require.NoError(t, err)
	msg, err := env.ToMessage(TopicCriticalTransitions, "RAL/RJO")
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), msg))
	require.NoError(t, h(context.Background(), &Message{Value: []byte("not json")}))

	other, err := NewEventEnvelope(EventSnapshotRefreshed, "test", SnapshotRefreshedPayload{})
	require.NoError(t, err)
	otherMsg, err := other.ToMessage(TopicCriticalTransitions, "")
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), otherMsg))

	require.Len(t, got, 1)
	assert.Equal(t, "RJO", got[0].Cluster)
}
