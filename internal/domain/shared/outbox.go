package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	maxBackoff         = 5 * time.Minute
)

// OutboxEntry is a serialized domain event waiting for delivery
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event for delivery
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkProcessing claims the entry for delivery
func (e *OutboxEntry) MarkProcessing() error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return errors.New("only pending or failed entries can be claimed")
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = time.Now()
	return nil
}

// MarkSent records a successful delivery
func (e *OutboxEntry) MarkSent() {
	now := time.Now()
	e.Status = OutboxStatusSent
	e.ProcessedAt = &now
	e.UpdatedAt = now
}

// MarkFailed records a failed delivery attempt. After MaxRetries attempts
// the entry is dead-lettered; before that it is rescheduled with
// exponential backoff.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = time.Now()

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		e.NextRetryAt = nil
		return
	}
	e.Status = OutboxStatusFailed
	next := e.UpdatedAt.Add(RetryBackoff(e.RetryCount))
	e.NextRetryAt = &next
}

// IsDead returns true if the entry is in dead letter status
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// RetryBackoff returns the wait before the given attempt: 1s, 2s, 4s, ... capped.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return maxBackoff
	}
	d := DefaultBaseBackoff << uint(attempt-1)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// OutboxRepository defines persistence for outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindDeliverable returns pending entries and failed entries whose retry time has passed
	FindDeliverable(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	// Claim atomically moves the given entries to PROCESSING and returns those it won
	Claim(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}
