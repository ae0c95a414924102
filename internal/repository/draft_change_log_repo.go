package repository

import (
	"context"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
)

// DraftChangeLogRepository 草稿变更审计数据访问接口
type DraftChangeLogRepository interface {
	BatchCreate(ctx context.Context, logs []model.DraftChangeLog) error
	ListByDraft(ctx context.Context, draftID string) ([]model.DraftChangeLog, error)
}

type draftChangeLogRepo struct {
	db *gorm.DB
}

// NewDraftChangeLogRepo 创建 DraftChangeLogRepository 实例
func NewDraftChangeLogRepo(db *gorm.DB) DraftChangeLogRepository {
	return &draftChangeLogRepo{db: db}
}

func (r *draftChangeLogRepo) BatchCreate(ctx context.Context, logs []model.DraftChangeLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&logs).Error
}

func (r *draftChangeLogRepo) ListByDraft(ctx context.Context, draftID string) ([]model.DraftChangeLog, error) {
	var logs []model.DraftChangeLog
	err := r.db.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}
