package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	apperrors "github.com/coprede/sir-dashboard/pkg/errors"
)

type mockKafkaWriter struct {
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closeFunc func() error
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, msgs...)
	}
	return nil
}

func (m *mockKafkaWriter) Close() error {
	if m.closeFunc != nil {
		return m.closeFunc()
	}
	return nil
}

func (m *mockKafkaWriter) Stats() kafka.WriterStats {
	return kafka.WriterStats{}
}

func newTestProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:         []string{"localhost:9092"},
		MaxMessageBytes: 1024,
	}
}

func newTestMessage(topic, key, value string) *Message {
	return &Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   []byte(value),
		Headers: map[string]string{"event_type": "test"},
	}
}

func newTestProducer(w WriterInterface) *Producer {
	return NewProducerWithWriter(w, newTestProducerConfig(), logging.NewNopLogger())
}

func TestValidateProducerConfig(t *testing.T) {
	cfg := newTestProducerConfig()
	assert.NoError(t, ValidateProducerConfig(cfg))

	cfg.Brokers = nil
	assert.Error(t, ValidateProducerConfig(cfg))

	cfg = newTestProducerConfig()
	cfg.Security.SASLEnabled = true
	cfg.Security.SASLMechanism = "PLAIN"
	assert.Error(t, ValidateProducerConfig(cfg), "credentials missing")
}

func TestSecurityConfig_Mechanism(t *testing.T) {
	mech, err := SecurityConfig{}.mechanism()
	assert.NoError(t, err)
	assert.Nil(t, mech)

	mech, err = SecurityConfig{SASLEnabled: true, SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"}.mechanism()
	require.NoError(t, err)
	assert.Equal(t, "SCRAM-SHA-512", mech.Name())

	_, err = SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI"}.mechanism()
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidConfig))
}

func TestSecurityConfig_TLSMissingCert(t *testing.T) {
	_, err := SecurityConfig{TLSEnabled: true, TLSCertPath: "/nonexistent/ca.pem"}.tlsConfig()
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidConfig))
}

func TestPublish_Success(t *testing.T) {
	var captured []kafka.Message
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			captured = msgs
			return nil
		},
	})

	require.NoError(t, p.Publish(context.Background(), newTestMessage("test", "k", "v")))
	require.Len(t, captured, 1)
	assert.Equal(t, "test", captured[0].Topic)
	assert.Equal(t, "k", string(captured[0].Key))
	assert.Equal(t, "v", string(captured[0].Value))
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte("test")}}, captured[0].Headers)
	assert.False(t, captured[0].Time.IsZero())

	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesSent)
	assert.Equal(t, int64(1), m.BytesSent)
	assert.False(t, m.LastSentAt.IsZero())
}

func TestPublish_Validation(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{})
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, newTestMessage("", "k", "v")))
	assert.Error(t, p.Publish(ctx, newTestMessage("test", "k", "")))
	big := make([]byte, 2048)
	err := p.Publish(ctx, &Message{Topic: "test", Value: big})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
}

func TestPublish_Failure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("write failed")
		},
	})

	err := p.Publish(context.Background(), newTestMessage("test", "k", "v"))
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessagingError))
	assert.Equal(t, int64(1), p.GetMetrics().MessagesFailed)
}

func TestPublishBatch_PartialFailure(t *testing.T) {
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			errs := make(kafka.WriteErrors, len(msgs))
			errs[1] = errors.New("fail")
			return errs
		},
	})

	err := p.PublishBatch(context.Background(), []*Message{
		newTestMessage("test", "1", "1"),
		newTestMessage("test", "2", "2"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	m := p.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesSent)
	assert.Equal(t, int64(1), m.MessagesFailed)
}

func TestPublishBatch_Empty(t *testing.T) {
	called := false
	p := newTestProducer(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			called = true
			return nil
		},
	})
	assert.NoError(t, p.PublishBatch(context.Background(), nil))
	assert.False(t, called)
}

func TestClose(t *testing.T) {
	closes := 0
	p := newTestProducer(&mockKafkaWriter{
		closeFunc: func() error {
			closes++
			return nil
		},
	})
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
	assert.Equal(t, 1, closes)

	err := p.Publish(context.Background(), newTestMessage("test", "k", "v"))
	assert.ErrorIs(t, err, ErrProducerClosed)
}
