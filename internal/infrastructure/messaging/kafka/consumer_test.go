package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
)

// mockKafkaReader serves queued messages once, then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "test-group",
		Topics:  []string{"test-topic"},
		Retry:   RetryConfig{MaxRetries: 1, RetryBackoff: time.Millisecond},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	cfg := newTestConsumerConfig()
	assert.NoError(t, ValidateConsumerConfig(cfg))

	cfg.Brokers = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.Topics = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = newTestConsumerConfig()
	cfg.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newConsumer(&mockKafkaReader{}, newTestConsumerConfig(), nil, logging.NewNopLogger())
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "test-topic", Value: []byte("value"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
		{Topic: "other-topic", Value: []byte("ignored")},
	}}
	c := newConsumer(reader, newTestConsumerConfig(), nil, logging.NewNopLogger())

	handled := make(chan *Message, 1)
	c.Subscribe("test-topic", func(ctx context.Context, msg *Message) error {
		handled <- msg
		return nil
	})

	require.NoError(t, c.Start(context.Background()))

	select {
	case msg := <-handled:
		assert.Equal(t, "value", string(msg.Value))
		assert.Equal(t, "x", msg.Headers["event_type"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}

	assert.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.Equal(t, int64(1), c.metrics.MessagesProcessed.Load())
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c := newConsumer(&mockKafkaReader{}, ConsumerConfig{
		Retry: RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond},
	}, nil, logging.NewNopLogger())

	attempts := 0
	ok := c.processMessage(context.Background(), &Message{}, func(ctx context.Context, msg *Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("fail")
		}
		return nil
	})

	assert.True(t, ok)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.metrics.MessagesRetried.Load())
}

func TestProcessMessage_RetryExhaustedGoesToDeadLetter(t *testing.T) {
	var written atomic.Value
	dl := NewProducerWithWriter(&mockKafkaWriter{
		writeFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			written.Store(msgs[0])
			return nil
		},
	}, newTestProducerConfig(), logging.NewNopLogger())

	cfg := newTestConsumerConfig()
	cfg.Retry.DeadLetterTopic = TopicDeadLetter
	c := newConsumer(&mockKafkaReader{}, cfg, dl, logging.NewNopLogger())

	ok := c.processMessage(context.Background(),
		&Message{Topic: "test-topic", Value: []byte("v"), Headers: map[string]string{}},
		func(ctx context.Context, msg *Message) error { return errors.New("boom") })

	assert.False(t, ok)
	assert.Equal(t, int64(1), c.metrics.MessagesDeadLettered.Load())
	msg := written.Load().(kafka.Message)
	assert.Equal(t, TopicDeadLetter, msg.Topic)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "test-topic", headers["original_topic"])
	assert.Equal(t, "boom", headers["error_message"])
}
