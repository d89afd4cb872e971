package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("keys messages by aggregate id", func(t *testing.T) {
		writer := &fakeWriter{}
		publisher := NewKafkaPublisherWithWriter(writer, zap.NewNop())
		event := newTestEvent("TestEvent", uuid.New())

		require.NoError(t, publisher.Publish(ctx, event))
		require.Len(t, writer.messages, 1)

		msg := writer.messages[0]
		assert.Equal(t, event.AggregateID().String(), string(msg.Key))
		assert.Equal(t, "TestEvent", headerValue(msg, "event_type"))
		assert.Equal(t, event.EventID().String(), headerValue(msg, "event_id"))
		assert.Equal(t, event.TenantID().String(), headerValue(msg, "tenant_id"))
		assert.Contains(t, string(msg.Value), `"data":"test data"`)
	})

	t.Run("no events writes nothing", func(t *testing.T) {
		writer := &fakeWriter{}
		publisher := NewKafkaPublisherWithWriter(writer, zap.NewNop())
		require.NoError(t, publisher.Publish(ctx))
		assert.Empty(t, writer.messages)
	})

	t.Run("writer errors are returned", func(t *testing.T) {
		writer := &fakeWriter{err: errors.New("leader not available")}
		publisher := NewKafkaPublisherWithWriter(writer, zap.NewNop())
		err := publisher.Publish(ctx, newTestEvent("TestEvent", uuid.New()))
		assert.ErrorContains(t, err, "leader not available")
	})

	t.Run("close closes the writer", func(t *testing.T) {
		writer := &fakeWriter{}
		require.NoError(t, NewKafkaPublisherWithWriter(writer, zap.NewNop()).Close())
		assert.True(t, writer.closed)
	})
}
