package persistence

import (
	"context"
	"time"

	"github.com/erp/treasury/internal/domain/access"
	"github.com/erp/treasury/internal/domain/installment"
	"github.com/erp/treasury/internal/domain/shared"
	"github.com/erp/treasury/internal/infrastructure/persistence/datascope"
	"github.com/erp/treasury/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPlanRepository implements installment.PlanRepository using GORM
type GormPlanRepository struct {
	db *gorm.DB
}

// NewGormPlanRepository creates a new GormPlanRepository
func NewGormPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

func preloadInstallments(db *gorm.DB) *gorm.DB {
	return db.Order("number ASC")
}

// FindByID finds a plan with its installments
func (r *GormPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*installment.Plan, error) {
	var model models.InstallmentPlanModel
	if err := r.db.WithContext(ctx).
		Preload("Installments", preloadInstallments).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, notFound(err, "installment plan")
	}
	return model.ToDomain(), nil
}

// LockByIDs loads plans with SELECT ... FOR UPDATE in ascending id order.
// Installments are read after the plan rows are locked.
func (r *GormPlanRepository) LockByIDs(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*installment.Plan, error) {
	result := make(map[uuid.UUID]*installment.Plan, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []models.InstallmentPlanModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", uniqueSorted(ids)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return result, nil
	}

	planIDs := make([]uuid.UUID, len(rows))
	for i := range rows {
		planIDs[i] = rows[i].ID
	}
	var installments []models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Where("plan_id IN ?", planIDs).
		Order("number ASC").
		Find(&installments).Error; err != nil {
		return nil, err
	}
	byPlan := make(map[uuid.UUID][]models.InstallmentModel, len(rows))
	for _, inst := range installments {
		byPlan[inst.PlanID] = append(byPlan[inst.PlanID], inst)
	}

	for i := range rows {
		rows[i].Installments = byPlan[rows[i].ID]
		result[rows[i].ID] = rows[i].ToDomain()
	}
	return result, nil
}

// FindInstallments loads installments by id, without their plans
func (r *GormPlanRepository) FindInstallments(ctx context.Context, ids []uuid.UUID) ([]installment.Installment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.InstallmentModel
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]installment.Installment, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, nil
}

// FindAll lists the plans visible within scope
func (r *GormPlanRepository) FindAll(ctx context.Context, scope access.Scope, filter shared.Filter) ([]installment.Plan, int64, error) {
	filter = filter.Normalize()
	query := r.db.WithContext(ctx).Model(&models.InstallmentPlanModel{})
	query = datascope.Apply(scope, datascope.OwnedColumns(""))(query)
	query = r.applyFilter(query, filter).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InstallmentPlanModel
	if err := query.
		Preload("Installments", preloadInstallments).
		Order(planOrder.By(filter)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	plans := make([]installment.Plan, len(rows))
	for i := range rows {
		plans[i] = *rows[i].ToDomain()
	}
	return plans, total, nil
}

// FindIDsWithOverdue returns active plans of a tenant that have unpaid
// installments due before asOf and not yet marked late
func (r *GormPlanRepository) FindIDsWithOverdue(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.InstallmentModel{}).
		Distinct("installments.plan_id").
		Joins("JOIN installment_plans ON installment_plans.id = installments.plan_id").
		Where("installment_plans.tenant_id = ? AND installment_plans.status = ?", tenantID, installment.PlanStatusActive).
		Where("installments.status IN ? AND installments.due_date < ?", []installment.InstallmentStatus{
			installment.InstallmentStatusPending,
			installment.InstallmentStatusPartial,
		}, asOf).
		Order("installments.plan_id ASC").
		Pluck("installments.plan_id", &ids).Error
	return ids, err
}

// FindTenantsWithOverdue returns tenants with active plans holding unpaid installments due before asOf
func (r *GormPlanRepository) FindTenantsWithOverdue(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.InstallmentModel{}).
		Distinct("installment_plans.tenant_id").
		Joins("JOIN installment_plans ON installment_plans.id = installments.plan_id").
		Where("installment_plans.status = ?", installment.PlanStatusActive).
		Where("installments.status IN ? AND installments.due_date < ?", []installment.InstallmentStatus{
			installment.InstallmentStatusPending,
			installment.InstallmentStatusPartial,
		}, asOf).
		Order("installment_plans.tenant_id ASC").
		Pluck("installment_plans.tenant_id", &ids).Error
	return ids, err
}

// Save creates or updates a plan together with its installments
func (r *GormPlanRepository) Save(ctx context.Context, plan *installment.Plan) error {
	model := models.InstallmentPlanModelFromDomain(plan)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(model).Error; err != nil {
			return err
		}
		if len(model.Installments) == 0 {
			return nil
		}
		return tx.Save(&model.Installments).Error
	})
}

func (r *GormPlanRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "customer_id":
			query = query.Where("customer_id = ?", value)
		case "invoice_id":
			query = query.Where("invoice_id = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		}
	}
	return query
}

// GormPaymentRepository implements installment.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Save inserts a payment and its details. Payments are immutable.
func (r *GormPaymentRepository) Save(ctx context.Context, payment *installment.Payment) error {
	err := r.db.WithContext(ctx).Create(models.InstallmentPaymentModelFromDomain(payment)).Error
	return conflictOnDuplicate(err, "payment already recorded")
}

// FindByID finds a payment with its details
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*installment.Payment, error) {
	var model models.InstallmentPaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Details").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		return nil, notFound(err, "payment")
	}
	return model.ToDomain(), nil
}

// FindByPlan pages through the payments that touched a plan, newest first
func (r *GormPaymentRepository) FindByPlan(ctx context.Context, planID uuid.UUID, filter shared.Filter) ([]installment.Payment, int64, error) {
	filter = filter.Normalize()
	query := r.byPlan(ctx, planID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InstallmentPaymentModel
	if err := query.
		Preload("Details").
		Order("paid_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	payments := make([]installment.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, total, nil
}

// CountByPlan counts the payments that touched a plan
func (r *GormPaymentRepository) CountByPlan(ctx context.Context, planID uuid.UUID) (int64, error) {
	var count int64
	err := r.byPlan(ctx, planID).Count(&count).Error
	return count, err
}

func (r *GormPaymentRepository) byPlan(ctx context.Context, planID uuid.UUID) *gorm.DB {
	db := r.db.WithContext(ctx)
	return db.Model(&models.InstallmentPaymentModel{}).
		Where("id IN (?)", db.Model(&models.PaymentDetailModel{}).
			Select("payment_id").
			Where("plan_id = ?", planID))
}

var (
	_ installment.PlanRepository    = (*GormPlanRepository)(nil)
	_ installment.PaymentRepository = (*GormPaymentRepository)(nil)
)
