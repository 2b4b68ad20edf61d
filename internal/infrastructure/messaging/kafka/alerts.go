package kafka

import (
	"context"

	"github.com/coprede/sir-dashboard/internal/domain/incident"
	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, msgs []*Message) error
}

// AlertPublisher turns refresh outcomes into events on the dashboard topics.
type AlertPublisher struct {
	producer batchPublisher
	source   string
	logger   logging.Logger
}

// NewAlertPublisher publishes through producer, stamping events with source.
func NewAlertPublisher(producer batchPublisher, source string, logger logging.Logger) *AlertPublisher {
	if source == "" {
		source = "sir-dashboard"
	}
	return &AlertPublisher{producer: producer, source: source, logger: logger}
}

// TransitionKey keeps every event of one cluster on the same partition.
func TransitionKey(t incident.CriticalTransition) string {
	return string(t.Dataset) + "/" + t.Cluster
}

// PublishTransitions writes one event per transition in a single batch.
func (p *AlertPublisher) PublishTransitions(ctx context.Context, transitions []incident.CriticalTransition) error {
	if len(transitions) == 0 {
		return nil
	}
	msgs := make([]*Message, 0, len(transitions))
	for _, t := range transitions {
		env, err := NewEventEnvelope(EventCriticalTransition, p.source, t)
		if err != nil {
			return err
		}
		env.Metadata = map[string]string{"snapshot_id": t.SnapshotID}
		msg, err := env.ToMessage(TopicCriticalTransitions, TransitionKey(t))
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.producer.PublishBatch(ctx, msgs); err != nil {
		return err
	}
	p.logger.Info("Critical transitions published", logging.Int("count", len(msgs)))
	return nil
}

// PublishRefreshed announces a stored snapshot.
func (p *AlertPublisher) PublishRefreshed(ctx context.Context, summary incident.SnapshotSummary) error {
	payload := SnapshotRefreshedPayload{
		SnapshotID:       summary.SnapshotID,
		UpdatedAt:        summary.UpdatedAt,
		FetchedAt:        summary.FetchedAt,
		Totals:           make(map[string]int, len(summary.Datasets)),
		CriticalClusters: make(map[string][]string, len(summary.Datasets)),
	}
	for _, d := range summary.Datasets {
		payload.Totals[string(d.Name)] = d.Items
		critical := make([]string, 0)
		for _, c := range d.Clusters {
			if c.Critical {
				critical = append(critical, c.Name)
			}
		}
		payload.CriticalClusters[string(d.Name)] = critical
	}
	env, err := NewEventEnvelope(EventSnapshotRefreshed, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(TopicSnapshotRefreshed, summary.SnapshotID)
	if err != nil {
		return err
	}
	return p.producer.PublishBatch(ctx, []*Message{msg})
}

// DecodeTransition reads a transition event.
func DecodeTransition(msg *Message) (incident.CriticalTransition, error) {
	var t incident.CriticalTransition
	env, err := MessageToEventEnvelope(msg)
	if err != nil {
		return t, err
	}
	if env.EventType != EventCriticalTransition {
		return t, errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
	}
	err = env.DecodePayload(&t)
	return t, err
}

// TransitionHandler adapts fn to a MessageHandler. Undecodable messages are
// logged and skipped since retrying them cannot succeed.
func TransitionHandler(fn func(ctx context.Context, t incident.CriticalTransition) error, logger logging.Logger) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		t, err := DecodeTransition(msg)
		if err != nil {
			logger.Warn("Skipping undecodable transition event",
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
			return nil
		}
		return fn(ctx, t)
	}
}
