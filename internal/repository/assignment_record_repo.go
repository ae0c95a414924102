package repository

import (
	"context"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
)

// AssignmentRecordRepository 已提交排班镜像数据访问接口
type AssignmentRecordRepository interface {
	BatchCreate(ctx context.Context, records []model.AssignmentRecord) error
	ListByStaffBetween(ctx context.Context, businessID string, staffIDs []string, fromDate, toDate string) ([]model.AssignmentRecord, error)
}

type assignmentRecordRepo struct {
	db *gorm.DB
}

// NewAssignmentRecordRepo 创建 AssignmentRecordRepository 实例
func NewAssignmentRecordRepo(db *gorm.DB) AssignmentRecordRepository {
	return &assignmentRecordRepo{db: db}
}

func (r *assignmentRecordRepo) BatchCreate(ctx context.Context, records []model.AssignmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

func (r *assignmentRecordRepo) ListByStaffBetween(ctx context.Context, businessID string, staffIDs []string, fromDate, toDate string) ([]model.AssignmentRecord, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}
	var records []model.AssignmentRecord
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND staff_id IN ? AND shift_date >= ? AND shift_date <= ?",
			businessID, staffIDs, fromDate, toDate).
		Order("staff_id ASC, shift_date ASC, start_time ASC").
		Find(&records).Error
	return records, err
}
