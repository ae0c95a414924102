package dto

import (
	"shiftpilot/backend/internal/draft"
	"shiftpilot/backend/internal/model"
)

// ── 协作会话 ──

// OpenSessionRequest 打开草稿编辑会话
// 草稿文档由调用方提交，服务端不持久化草稿本身
type OpenSessionRequest struct {
	Draft *model.ScheduleDraft `json:"draft" binding:"required"`
}

// SessionResponse 会话状态快照
type SessionResponse struct {
	DraftID      string               `json:"draft_id"`
	Draft        *model.ScheduleDraft `json:"draft,omitempty"`
	Participants []model.UserPresence `json:"participants"`
	CanUndo      bool                 `json:"can_undo"`
	CanRedo      bool                 `json:"can_redo"`
	IsModified   bool                 `json:"is_modified"`
}

// HeartbeatRequest 在线心跳，可顺带更新当前动作
type HeartbeatRequest struct {
	Action model.PresenceAction `json:"action" binding:"omitempty,oneof=editing viewing idle"`
}

// ── 编辑操作 ──

// AssignRequest 把员工排入班次
type AssignRequest struct {
	ShiftID   string `json:"shift_id" binding:"required"`
	StaffID   string `json:"staff_id" binding:"required"`
	StaffName string `json:"staff_name"`
}

// UnassignRequest 移除一条排班
type UnassignRequest struct {
	AssignmentID string `json:"assignment_id" binding:"required"`
}

// MoveRequest 把排班从一个班次移到另一个班次
type MoveRequest struct {
	AssignmentID string `json:"assignment_id" binding:"required"`
	FromShiftID  string `json:"from_shift_id" binding:"required"`
	ToShiftID    string `json:"to_shift_id" binding:"required"`
}

// EditResponse 编辑操作的结果
// Applied 为 false 表示操作是无效果的空操作（如重复排班）
type EditResponse struct {
	Applied   bool                  `json:"applied"`
	Action    *model.EditAction     `json:"action,omitempty"`
	Conflicts []*model.EditConflict `json:"conflicts,omitempty"`
	Draft     *model.ScheduleDraft  `json:"draft"`
	CanUndo   bool                  `json:"can_undo"`
	CanRedo   bool                  `json:"can_redo"`
}

// UndoRedoResponse 撤销/重做的结果
type UndoRedoResponse struct {
	Applied     bool                 `json:"applied"`
	Description string               `json:"description,omitempty"` // 被撤销/重做操作的描述
	Draft       *model.ScheduleDraft `json:"draft"`
	CanUndo     bool                 `json:"can_undo"`
	CanRedo     bool                 `json:"can_redo"`
}

// ChangesResponse 相对原始草稿的净改动
type ChangesResponse struct {
	Changes    []draft.ChangeEntry `json:"changes"`
	IsModified bool                `json:"is_modified"`
}

// ── 软锁与冲突 ──

// LockRequest 声明/释放班次编辑意向
type LockRequest struct {
	ShiftID string `json:"shift_id" binding:"required"`
}

// LockResponse 加锁结果；Acquired 为 false 时 Lock 为当前持有者
type LockResponse struct {
	Acquired bool            `json:"acquired"`
	Lock     *model.SoftLock `json:"lock"`
}

// ResolveConflictRequest 处理一条编辑冲突
type ResolveConflictRequest struct {
	Resolution model.ConflictResolution `json:"resolution" binding:"required,oneof=accept_edit1 accept_edit2 merge"`
}

// [自证通过] internal/dto/draft.go
