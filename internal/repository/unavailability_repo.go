package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
)

// UnavailabilityRepository 员工不可用时段数据访问接口
type UnavailabilityRepository interface {
	Create(ctx context.Context, u *model.StaffUnavailability) error
	ListByStaffBetween(ctx context.Context, staffID string, from, to time.Time) ([]model.StaffUnavailability, error)
	ListByStaffIDsBetween(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.StaffUnavailability, error)
	// ReplaceImported 以事务方式替换某员工的全部 ICS 导入时段（重复导入幂等）
	ReplaceImported(ctx context.Context, staffID string, items []model.StaffUnavailability) error
	Delete(ctx context.Context, id string) error
}

type unavailabilityRepo struct {
	db *gorm.DB
}

// NewUnavailabilityRepo 创建 UnavailabilityRepository 实例
func NewUnavailabilityRepo(db *gorm.DB) UnavailabilityRepository {
	return &unavailabilityRepo{db: db}
}

func (r *unavailabilityRepo) Create(ctx context.Context, u *model.StaffUnavailability) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *unavailabilityRepo) ListByStaffBetween(ctx context.Context, staffID string, from, to time.Time) ([]model.StaffUnavailability, error) {
	var items []model.StaffUnavailability
	err := r.db.WithContext(ctx).
		Where("staff_id = ? AND start_at < ? AND end_at > ?", staffID, to, from).
		Order("start_at ASC").
		Find(&items).Error
	return items, err
}

func (r *unavailabilityRepo) ListByStaffIDsBetween(ctx context.Context, staffIDs []string, from, to time.Time) ([]model.StaffUnavailability, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	var items []model.StaffUnavailability
	err := r.db.WithContext(ctx).
		Where("staff_id IN ? AND start_at < ? AND end_at > ?", staffIDs, to, from).
		Order("staff_id ASC, start_at ASC").
		Find(&items).Error
	return items, err
}

func (r *unavailabilityRepo) ReplaceImported(ctx context.Context, staffID string, items []model.StaffUnavailability) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("staff_id = ? AND source = 'ics_import'", staffID).
			Delete(&model.StaffUnavailability{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

func (r *unavailabilityRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("unavailability_id = ?", id).
		Delete(&model.StaffUnavailability{}).Error
}
