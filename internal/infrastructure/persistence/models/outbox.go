package models

import (
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxEntryModel stores a ledger or installment event until the relay
// has delivered it. Rows are written in the same transaction as the
// movement that raised the event.
type OutboxEntryModel struct {
	BaseModel
	TenantID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_outbox_tenant_status,priority:1"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:idx_outbox_events_event_id"`
	EventType     string              `gorm:"type:varchar(255);not null"`
	AggregateID   uuid.UUID           `gorm:"type:uuid;not null"`
	AggregateType string              `gorm:"type:varchar(255);not null"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_outbox_tenant_status,priority:2;index:idx_outbox_status_created,priority:1"`
	RetryCount    int                 `gorm:"not null;default:0"`
	MaxRetries    int                 `gorm:"not null;default:5"`
	LastError     string              `gorm:"type:text"`
	NextRetryAt   *time.Time          `gorm:"index:idx_outbox_next_retry"`
	ProcessedAt   *time.Time
}

// TableName returns the table name for GORM
func (OutboxEntryModel) TableName() string {
	return "outbox_events"
}

// ToDomain converts the row to a domain OutboxEntry
func (m *OutboxEntryModel) ToDomain() *shared.OutboxEntry {
	return &shared.OutboxEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		EventID:       m.EventID,
		EventType:     m.EventType,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		Payload:       m.Payload,
		Status:        m.Status,
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		LastError:     m.LastError,
		NextRetryAt:   m.NextRetryAt,
		ProcessedAt:   m.ProcessedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// OutboxEntryModelFromDomain creates a row from a domain OutboxEntry
func OutboxEntryModelFromDomain(e *shared.OutboxEntry) *OutboxEntryModel {
	return &OutboxEntryModel{
		BaseModel:     BaseModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt},
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Payload:       e.Payload,
		Status:        e.Status,
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		ProcessedAt:   e.ProcessedAt,
	}
}
