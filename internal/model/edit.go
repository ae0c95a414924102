package model

import "time"

// ── 撤销/重做日志 ──

// EditActionType 可撤销编辑操作类型
type EditActionType string

const (
	EditActionAssign   EditActionType = "assign"
	EditActionUnassign EditActionType = "unassign"
	EditActionMove     EditActionType = "move"
)

// EditAction 撤销/重做日志中的一条记录
// 携带精确逆转自身所需的全部信息：
//   - assign:   撤销时按 AssignmentID 删除
//   - unassign: 撤销时按 Removed 快照原样恢复到 ShiftID
//   - move:     撤销时将 AssignmentID 从 ToShiftID 移回 FromShiftID
type EditAction struct {
	ActionID     string         `json:"action_id"`
	Type         EditActionType `json:"type"`
	ShiftID      string         `json:"shift_id"`                // assign/unassign 的目标班次
	FromShiftID  string         `json:"from_shift_id,omitempty"` // 仅 move
	ToShiftID    string         `json:"to_shift_id,omitempty"`   // 仅 move
	StaffID      string         `json:"staff_id"`
	StaffName    string         `json:"staff_name,omitempty"`
	AssignmentID string         `json:"assignment_id"`
	Removed      *Assignment    `json:"removed,omitempty"`    // unassign 被移除排班的完整快照
	PrevIndex    int            `json:"prev_index,omitempty"` // 被移除排班在源班次中的原位置，撤销时按位恢复
	CreatedAt    time.Time      `json:"created_at"`
}

// ── 协作编辑 ──

// Edit 一次远端或本地编辑的描述，用于冲突展示与判定
type Edit struct {
	EditID    string    `json:"edit_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Operation string    `json:"operation"` // 人类可读操作描述
	ShiftID   string    `json:"shift_id"`
	StaffID   string    `json:"staff_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ConflictType 冲突分类
type ConflictType string

const (
	ConflictConcurrentAssignment   ConflictType = "concurrent_assignment"
	ConflictConcurrentModification ConflictType = "concurrent_modification"
	ConflictDuplicateOperation     ConflictType = "duplicate_operation"
	ConflictResourceConflict       ConflictType = "resource_conflict"
)

// ConflictResolution 冲突处理方式
type ConflictResolution string

const (
	ResolutionAcceptEdit1 ConflictResolution = "accept_edit1"
	ResolutionAcceptEdit2 ConflictResolution = "accept_edit2"
	ResolutionMerge       ConflictResolution = "merge" // 仅 concurrent_modification 可选
)

// EditConflict 两次竞争编辑及其处理状态
type EditConflict struct {
	ConflictID string              `json:"conflict_id"`
	Type       ConflictType        `json:"type"`
	Edit1      Edit                `json:"edit1"`
	Edit2      Edit                `json:"edit2"`
	Resolution *ConflictResolution `json:"resolution,omitempty"` // nil = 待处理
	DetectedAt time.Time           `json:"detected_at"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
	ResolvedBy string              `json:"resolved_by,omitempty"`
}

// Resolved 冲突是否已处理
func (c *EditConflict) Resolved() bool { return c.Resolution != nil }

// ── 在线状态 ──

// PresenceAction 参与者当前动作
type PresenceAction string

const (
	PresenceEditing PresenceAction = "editing"
	PresenceViewing PresenceAction = "viewing"
	PresenceIdle    PresenceAction = "idle"
)

// UserPresence 协作会话中的参与者状态
// 加入时创建，心跳/动作变更时刷新，离开或超时后移除
type UserPresence struct {
	UserID   string         `json:"user_id"`
	UserName string         `json:"user_name"`
	Action   PresenceAction `json:"action"`
	LastSeen time.Time      `json:"last_seen"`
}

// SoftLock 班次上的编辑意向声明（劝告性，不阻塞并发编辑）
type SoftLock struct {
	ShiftID   string    `json:"shift_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// [自证通过] internal/model/edit.go
