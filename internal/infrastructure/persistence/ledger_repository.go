package persistence

import (
	"context"

	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/erp/treasury/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerRepository implements treasury.LedgerRepository using GORM.
// It only ever inserts; there is no update or delete path.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append inserts new ledger entries. A second reversal of the same entry
// or a reused sequence number violates a unique index and is reported as
// a conflict.
func (r *GormLedgerRepository) Append(ctx context.Context, entries ...*treasury.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.LedgerEntryModel, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, models.LedgerEntryModelFromDomain(e))
	}
	err := r.db.WithContext(ctx).Create(&rows).Error
	return conflictOnDuplicate(err, "ledger entry conflicts with an existing entry")
}

// FindByID finds a ledger entry by ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.LedgerEntry, error) {
	var model models.LedgerEntryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "ledger entry")
	}
	return model.ToDomain(), nil
}

// FindByCashBox pages through the entries of a cash box, newest first by default
func (r *GormLedgerRepository) FindByCashBox(ctx context.Context, cashBoxID uuid.UUID, filter shared.Filter) ([]treasury.LedgerEntry, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}).
		Where("cash_box_id = ?", cashBoxID)
	query = r.applyFilter(query, filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.LedgerEntryModel
	if err := query.
		Order(ledgerEntryOrder.By(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toLedgerEntries(rows), total, nil
}

// FindAllByCashBox returns the full ledger of a box in sequence order
func (r *GormLedgerRepository) FindAllByCashBox(ctx context.Context, cashBoxID uuid.UUID) ([]treasury.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("cash_box_id = ?", cashBoxID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

// Tally sums the signed amounts of the entries owned by a box.
// Counterparty legs live on the other box and are not included.
func (r *GormLedgerRepository) Tally(ctx context.Context, cashBoxID uuid.UUID) (treasury.Tally, error) {
	var result struct {
		Total        decimal.Decimal
		Entries      int64
		LastSequence int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Select("COALESCE(SUM(amount), 0) as total, COUNT(*) as entries, COALESCE(MAX(sequence), 0) as last_sequence").
		Where("cash_box_id = ?", cashBoxID).
		Scan(&result).Error; err != nil {
		return treasury.Tally{}, err
	}
	return treasury.Tally{
		Balance:      result.Total.Round(treasury.AmountScale),
		Entries:      result.Entries,
		LastSequence: result.LastSequence,
	}, nil
}

// FindReversalsOf returns the entries that reverse the given entry
func (r *GormLedgerRepository) FindReversalsOf(ctx context.Context, originalEntryID uuid.UUID) ([]treasury.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("original_entry_id = ?", originalEntryID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

// FindByOperation returns every entry written by one operation
func (r *GormLedgerRepository) FindByOperation(ctx context.Context, operationID uuid.UUID) ([]treasury.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("operation_id = ?", operationID).
		Order("created_at ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLedgerEntries(rows), nil
}

func (r *GormLedgerRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "entry_type":
			query = query.Where("type = ?", value)
		case "from":
			query = query.Where("created_at >= ?", value)
		case "to":
			query = query.Where("created_at < ?", value)
		}
	}
	return query
}

func toLedgerEntries(rows []models.LedgerEntryModel) []treasury.LedgerEntry {
	entries := make([]treasury.LedgerEntry, len(rows))
	for i := range rows {
		entries[i] = *rows[i].ToDomain()
	}
	return entries
}

var _ treasury.LedgerRepository = (*GormLedgerRepository)(nil)
