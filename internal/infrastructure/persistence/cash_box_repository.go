package persistence

import (
	"context"
	"slices"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/domain/treasury"
	"github.com/erp/treasury/internal/infrastructure/persistence/datascope"
	"github.com/erp/treasury/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCashBoxRepository implements treasury.CashBoxRepository using GORM
type GormCashBoxRepository struct {
	db *gorm.DB
}

// NewGormCashBoxRepository creates a new GormCashBoxRepository
func NewGormCashBoxRepository(db *gorm.DB) *GormCashBoxRepository {
	return &GormCashBoxRepository{db: db}
}

// FindByID finds a cash box by ID
func (r *GormCashBoxRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.CashBox, error) {
	var model models.CashBoxModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "cash box")
	}
	return model.ToDomain(), nil
}

// LockByIDs loads cash boxes with SELECT ... FOR UPDATE in ascending id
// order, so concurrent operations on overlapping boxes cannot deadlock.
// Missing boxes are absent from the result.
func (r *GormCashBoxRepository) LockByIDs(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*treasury.CashBox, error) {
	result := make(map[uuid.UUID]*treasury.CashBox, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []models.CashBoxModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", uniqueSorted(ids)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		result[rows[i].ID] = rows[i].ToDomain()
	}
	return result, nil
}

// FindDefaultForOwner returns the owner's default cash box
func (r *GormCashBoxRepository) FindDefaultForOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (*treasury.CashBox, error) {
	var model models.CashBoxModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ? AND is_default = ?", tenantID, ownerID, true).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		return nil, notFound(err, "default cash box")
	}
	return model.ToDomain(), nil
}

// FindAll lists the cash boxes visible within scope
func (r *GormCashBoxRepository) FindAll(ctx context.Context, scope access.Scope, filter shared.Filter) ([]treasury.CashBox, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.CashBoxModel{})
	query = datascope.Apply(scope, datascope.OwnedColumns("owner_id"))(query)
	query = r.applyFilter(query, filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.CashBoxModel
	if err := query.
		Order(cashBoxOrder.By(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	boxes := make([]treasury.CashBox, len(rows))
	for i := range rows {
		boxes[i] = *rows[i].ToDomain()
	}
	return boxes, total, nil
}

// CountByType counts cash boxes of a type
func (r *GormCashBoxRepository) CountByType(ctx context.Context, typeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CashBoxModel{}).
		Where("type_id = ?", typeID).
		Count(&count).Error
	return count, err
}

// Save creates or updates a cash box
func (r *GormCashBoxRepository) Save(ctx context.Context, box *treasury.CashBox) error {
	return r.db.WithContext(ctx).Save(models.CashBoxModelFromDomain(box)).Error
}

// ClearDefault unsets the default flag on every other box of the owner
func (r *GormCashBoxRepository) ClearDefault(ctx context.Context, tenantID, ownerID, keep uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.CashBoxModel{}).
		Where("tenant_id = ? AND owner_id = ? AND id <> ? AND is_default = ?", tenantID, ownerID, keep, true).
		Updates(map[string]interface{}{
			"is_default": false,
			"version":    gorm.Expr("version + 1"),
		}).Error
}

// Delete removes a cash box
func (r *GormCashBoxRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CashBoxModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("cash box not found")
	}
	return nil
}

func (r *GormCashBoxRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "owner_id":
			query = query.Where("owner_id = ?", value)
		case "type_id":
			query = query.Where("type_id = ?", value)
		case "is_default":
			query = query.Where("is_default = ?", value)
		case "search":
			if s, ok := value.(string); ok && s != "" {
				query = query.Where("name LIKE ?", "%"+s+"%")
			}
		}
	}
	return query
}

// uniqueSorted returns ids without duplicates in ascending order
func uniqueSorted(ids []uuid.UUID) []uuid.UUID {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return compareUUID(a, b)
	})
	return slices.Compact(sorted)
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// GormCashBoxTypeRepository implements treasury.CashBoxTypeRepository using GORM
type GormCashBoxTypeRepository struct {
	db *gorm.DB
}

// NewGormCashBoxTypeRepository creates a new GormCashBoxTypeRepository
func NewGormCashBoxTypeRepository(db *gorm.DB) *GormCashBoxTypeRepository {
	return &GormCashBoxTypeRepository{db: db}
}

// FindByID finds a cash box type by ID
func (r *GormCashBoxTypeRepository) FindByID(ctx context.Context, id uuid.UUID) (*treasury.CashBoxType, error) {
	var model models.CashBoxTypeModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, "cash box type")
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists the cash box types of a tenant by name
func (r *GormCashBoxTypeRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]treasury.CashBoxType, error) {
	var rows []models.CashBoxTypeModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	types := make([]treasury.CashBoxType, len(rows))
	for i := range rows {
		types[i] = *rows[i].ToDomain()
	}
	return types, nil
}

// Save creates or updates a cash box type
func (r *GormCashBoxTypeRepository) Save(ctx context.Context, t *treasury.CashBoxType) error {
	err := r.db.WithContext(ctx).Save(models.CashBoxTypeModelFromDomain(t)).Error
	return conflictOnDuplicate(err, "a cash box type with this name already exists")
}

// Delete removes a cash box type
func (r *GormCashBoxTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CashBoxTypeModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("cash box type not found")
	}
	return nil
}

var (
	_ treasury.CashBoxRepository     = (*GormCashBoxRepository)(nil)
	_ treasury.CashBoxTypeRepository = (*GormCashBoxTypeRepository)(nil)
)
