package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockOutboxRepository is an in-memory shared.OutboxRepository
type mockOutboxRepository struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*shared.OutboxEntry
	claimFn func(ids []uuid.UUID) ([]*shared.OutboxEntry, error)
}

func newMockOutboxRepository() *mockOutboxRepository {
	return &mockOutboxRepository{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *mockOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return nil
}

func (r *mockOutboxRepository) FindDeliverable(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		retryDue := e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(now)
		if e.Status == shared.OutboxStatusPending || retryDue {
			copied := *e
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *mockOutboxRepository) Claim(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if r.claimFn != nil {
		return r.claimFn(ids)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*shared.OutboxEntry
	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok || e.MarkProcessing() != nil {
			continue
		}
		copied := *e
		claimed = append(claimed, &copied)
	}
	return claimed, nil
}

func (r *mockOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *mockOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, e := range r.entries {
		if e.Status == shared.OutboxStatusSent && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *mockOutboxRepository) get(id uuid.UUID) *shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

func newProcessorFixture(t *testing.T, publisher shared.EventPublisher) (*OutboxProcessor, *mockOutboxRepository, *EventSerializer) {
	t.Helper()
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	repo := newMockOutboxRepository()
	config := DefaultOutboxProcessorConfig()
	config.BatchSize = 10
	return NewOutboxProcessor(repo, publisher, serializer, config, zap.NewNop()), repo, serializer
}

func seedEntry(t *testing.T, repo *mockOutboxRepository, serializer *EventSerializer) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent("TestEvent", uuid.New())
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestOutboxProcessor_ProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers pending entries and marks them sent", func(t *testing.T) {
		publisher := &recordingPublisher{}
		processor, repo, serializer := newProcessorFixture(t, publisher)
		first := seedEntry(t, repo, serializer)
		second := seedEntry(t, repo, serializer)

		assert.Equal(t, 2, processor.ProcessBatch(ctx))
		assert.Equal(t, 2, publisher.count())
		assert.Equal(t, shared.OutboxStatusSent, repo.get(first.ID).Status)
		assert.Equal(t, shared.OutboxStatusSent, repo.get(second.ID).Status)
		assert.NotNil(t, repo.get(first.ID).ProcessedAt)

		assert.Equal(t, 0, processor.ProcessBatch(ctx), "sent entries are not delivered twice")
	})

	t.Run("failed delivery schedules a retry", func(t *testing.T) {
		publisher := &recordingPublisher{err: errors.New("broker down")}
		processor, repo, serializer := newProcessorFixture(t, publisher)
		entry := seedEntry(t, repo, serializer)

		assert.Equal(t, 0, processor.ProcessBatch(ctx))

		stored := repo.get(entry.ID)
		assert.Equal(t, shared.OutboxStatusFailed, stored.Status)
		assert.Equal(t, 1, stored.RetryCount)
		assert.Equal(t, "broker down", stored.LastError)
		require.NotNil(t, stored.NextRetryAt)
		assert.True(t, stored.NextRetryAt.After(time.Now()))

		assert.Equal(t, 0, processor.ProcessBatch(ctx), "retry is not due yet")
	})

	t.Run("entry is dead-lettered after its last retry", func(t *testing.T) {
		publisher := &recordingPublisher{err: errors.New("broker down")}
		processor, repo, serializer := newProcessorFixture(t, publisher)
		entry := seedEntry(t, repo, serializer)
		entry.MaxRetries = 1
		require.NoError(t, repo.Update(ctx, entry))

		processor.ProcessBatch(ctx)

		assert.True(t, repo.get(entry.ID).IsDead())
	})

	t.Run("unknown event type fails the entry", func(t *testing.T) {
		publisher := &recordingPublisher{}
		processor, repo, _ := newProcessorFixture(t, publisher)
		entry := shared.NewOutboxEntry(newTestEvent("Unregistered", uuid.New()), []byte(`{}`))
		require.NoError(t, repo.Save(ctx, entry))

		processor.ProcessBatch(ctx)

		assert.Equal(t, 0, publisher.count())
		assert.Equal(t, shared.OutboxStatusFailed, repo.get(entry.ID).Status)
	})

	t.Run("entries claimed elsewhere are skipped", func(t *testing.T) {
		publisher := &recordingPublisher{}
		processor, repo, serializer := newProcessorFixture(t, publisher)
		seedEntry(t, repo, serializer)
		repo.claimFn = func(ids []uuid.UUID) ([]*shared.OutboxEntry, error) { return nil, nil }

		assert.Equal(t, 0, processor.ProcessBatch(ctx))
		assert.Equal(t, 0, publisher.count())
	})
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	ctx := context.Background()
	processor, repo, serializer := newProcessorFixture(t, &recordingPublisher{})

	old := seedEntry(t, repo, serializer)
	old.MarkSent()
	longAgo := time.Now().Add(-30 * 24 * time.Hour)
	old.ProcessedAt = &longAgo
	require.NoError(t, repo.Update(ctx, old))

	recent := seedEntry(t, repo, serializer)
	recent.MarkSent()
	require.NoError(t, repo.Update(ctx, recent))

	processor.cleanup(ctx)

	assert.Nil(t, repo.get(old.ID))
	assert.NotNil(t, repo.get(recent.ID))
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	publisher := &recordingPublisher{}
	serializer := NewEventSerializer()
	serializer.Register("TestEvent", &testEvent{})
	repo := newMockOutboxRepository()
	processor := NewOutboxProcessor(repo, publisher, serializer, OutboxProcessorConfig{
		BatchSize:    10,
		PollInterval: 10 * time.Millisecond,
	}, zap.NewNop())
	seedEntry(t, repo, serializer)

	require.NoError(t, processor.Start(context.Background()))
	assert.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, processor.Stop(stopCtx))
}
