package models

import (
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel holds the columns shared by every table: id and timestamps
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts the columns to a domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// FromDomainBaseEntity copies id and timestamps from a domain entity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID, m.CreatedAt, m.UpdatedAt = e.ID, e.CreatedAt, e.UpdatedAt
}

// TenantAggregateModel holds the columns of a tenant-owned aggregate root:
// the owning company, its creator and the optimistic version counter.
// Cash boxes and installment plans embed it.
type TenantAggregateModel struct {
	BaseModel
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
}

// FromDomainTenantAggregateRoot copies the root columns from the domain
func (m *TenantAggregateModel) FromDomainTenantAggregateRoot(t shared.TenantAggregateRoot) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Version = t.Version
	m.TenantID = t.TenantID
	m.CreatedBy = t.CreatedBy
}

// PopulateTenantAggregateRoot fills a domain root from the stored columns
func (m *TenantAggregateModel) PopulateTenantAggregateRoot(t *shared.TenantAggregateRoot) {
	t.BaseEntity = m.BaseModel.ToDomain()
	t.Version = m.Version
	t.TenantID = m.TenantID
	t.CreatedBy = m.CreatedBy
}
