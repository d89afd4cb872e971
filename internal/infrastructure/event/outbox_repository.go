package event

import (
	"context"
	"time"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements shared.OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save persists one or more outbox entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.OutboxEntryModelFromDomain(e))
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// FindDeliverable returns pending entries and failed entries whose retry
// time has passed, oldest first
func (r *GormOutboxRepository) FindDeliverable(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND next_retry_at <= ?)",
			shared.OutboxStatusPending, shared.OutboxStatusFailed, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toOutboxEntries(rows), nil
}

// Claim atomically moves the given entries to PROCESSING and returns the
// ones this caller won. Rows locked by another processor are skipped.
func (r *GormOutboxRepository) Claim(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids, []shared.OutboxStatus{
				shared.OutboxStatusPending,
				shared.OutboxStatusFailed,
			}).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		claimed := make([]uuid.UUID, len(rows))
		for i := range rows {
			claimed[i] = rows[i].ID
		}
		now := time.Now()
		if err := tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", claimed).
			Updates(map[string]interface{}{
				"status":     shared.OutboxStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].Status = shared.OutboxStatusProcessing
			rows[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOutboxEntries(rows), nil
}

// Update persists the delivery state of an entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(models.OutboxEntryModelFromDomain(entry)).Error
}

// DeleteSentBefore removes delivered entries processed before the cutoff
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEntryModel{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns the number of entries in each status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	type statusCount struct {
		Status shared.OutboxStatus
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(results))
	for _, c := range results {
		counts[c.Status] = c.Count
	}
	return counts, nil
}

func toOutboxEntries(rows []models.OutboxEntryModel) []*shared.OutboxEntry {
	entries := make([]*shared.OutboxEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].ToDomain())
	}
	return entries
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
