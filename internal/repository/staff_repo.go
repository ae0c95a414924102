package repository

import (
	"context"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
)

// StaffRepository 员工数据访问接口
type StaffRepository interface {
	Create(ctx context.Context, staff *model.Staff) error
	GetByID(ctx context.Context, id string) (*model.Staff, error)
	ListByBusiness(ctx context.Context, businessID string) ([]model.Staff, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Staff, error)
	Update(ctx context.Context, staff *model.Staff) error
}

// staffRepo StaffRepository 的 GORM 实现
type staffRepo struct {
	db *gorm.DB
}

// NewStaffRepo 创建 StaffRepository 实例
func NewStaffRepo(db *gorm.DB) StaffRepository {
	return &staffRepo{db: db}
}

func (r *staffRepo) Create(ctx context.Context, staff *model.Staff) error {
	return r.db.WithContext(ctx).Create(staff).Error
}

func (r *staffRepo) GetByID(ctx context.Context, id string) (*model.Staff, error) {
	var staff model.Staff
	err := r.db.WithContext(ctx).
		Where("staff_id = ?", id).
		First(&staff).Error
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepo) ListByBusiness(ctx context.Context, businessID string) ([]model.Staff, error) {
	var staff []model.Staff
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND is_active = true", businessID).
		Order("name ASC").
		Find(&staff).Error
	return staff, err
}

func (r *staffRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Staff, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var staff []model.Staff
	err := r.db.WithContext(ctx).
		Where("staff_id IN ?", ids).
		Find(&staff).Error
	return staff, err
}

func (r *staffRepo) Update(ctx context.Context, staff *model.Staff) error {
	return r.db.WithContext(ctx).Save(staff).Error
}
