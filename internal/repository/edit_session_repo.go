package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
)

// EditSessionRepository 编辑会话审计数据访问接口
type EditSessionRepository interface {
	Create(ctx context.Context, session *model.EditSessionRecord) error
	Close(ctx context.Context, sessionID string) error
	ListByDraft(ctx context.Context, draftID string) ([]model.EditSessionRecord, error)
}

type editSessionRepo struct {
	db *gorm.DB
}

// NewEditSessionRepo 创建 EditSessionRepository 实例
func NewEditSessionRepo(db *gorm.DB) EditSessionRepository {
	return &editSessionRepo{db: db}
}

func (r *editSessionRepo) Create(ctx context.Context, session *model.EditSessionRecord) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *editSessionRepo) Close(ctx context.Context, sessionID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.EditSessionRecord{}).
		Where("session_id = ? AND status = 'active'", sessionID).
		Updates(map[string]interface{}{"status": "closed", "closed_at": now}).Error
}

func (r *editSessionRepo) ListByDraft(ctx context.Context, draftID string) ([]model.EditSessionRecord, error) {
	var sessions []model.EditSessionRecord
	err := r.db.WithContext(ctx).
		Where("draft_id = ?", draftID).
		Order("opened_at DESC").
		Find(&sessions).Error
	return sessions, err
}
