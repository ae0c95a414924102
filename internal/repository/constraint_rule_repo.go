package repository

import (
	"context"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
)

// ConstraintRuleRepository 约束规则配置数据访问接口
type ConstraintRuleRepository interface {
	ListByBusiness(ctx context.Context, businessID string) ([]model.ConstraintRule, error)
	GetByType(ctx context.Context, businessID string, constraintType model.ConstraintType) (*model.ConstraintRule, error)
	Upsert(ctx context.Context, rule *model.ConstraintRule) error
}

type constraintRuleRepo struct {
	db *gorm.DB
}

// NewConstraintRuleRepo 创建 ConstraintRuleRepository 实例
func NewConstraintRuleRepo(db *gorm.DB) ConstraintRuleRepository {
	return &constraintRuleRepo{db: db}
}

func (r *constraintRuleRepo) ListByBusiness(ctx context.Context, businessID string) ([]model.ConstraintRule, error) {
	var rules []model.ConstraintRule
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("constraint_type ASC").
		Find(&rules).Error
	return rules, err
}

func (r *constraintRuleRepo) GetByType(ctx context.Context, businessID string, constraintType model.ConstraintType) (*model.ConstraintRule, error) {
	var rule model.ConstraintRule
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND constraint_type = ?", businessID, constraintType).
		First(&rule).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *constraintRuleRepo) Upsert(ctx context.Context, rule *model.ConstraintRule) error {
	existing, err := r.GetByType(ctx, rule.BusinessID, rule.ConstraintType)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return r.db.WithContext(ctx).Create(rule).Error
		}
		return err
	}
	existing.Priority = rule.Priority
	existing.IsEnabled = rule.IsEnabled
	existing.Threshold = rule.Threshold
	existing.UpdatedBy = rule.UpdatedBy
	return r.db.WithContext(ctx).Save(existing).Error
}
