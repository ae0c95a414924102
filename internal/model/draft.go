package model

import "time"

// ── 草稿文档（纯内存结构，不落库；持久化由远端服务负责）──

// DraftStatus 草稿生命周期状态
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusPublished DraftStatus = "published"
)

// ShiftStatus 班次派生状态，始终由有效排班数与需求人数推导，不独立存储
type ShiftStatus string

const (
	ShiftStatusOpen         ShiftStatus = "open"
	ShiftStatusFilled       ShiftStatus = "filled"
	ShiftStatusUnderstaffed ShiftStatus = "understaffed"
)

// AssignmentStatus 排班生命周期状态
type AssignmentStatus string

const (
	AssignmentStatusAssigned     AssignmentStatus = "assigned"
	AssignmentStatusConfirmed    AssignmentStatus = "confirmed"
	AssignmentStatusCalledInSick AssignmentStatus = "called_in_sick"
	AssignmentStatusNoShow       AssignmentStatus = "no_show"
)

// ScheduleDraft 排班草稿文档
type ScheduleDraft struct {
	DraftID         string      `json:"draft_id"`
	BusinessID      string      `json:"business_id"`
	WeekStart       time.Time   `json:"week_start"`
	WeekEnd         time.Time   `json:"week_end"`
	Status          DraftStatus `json:"status"`
	AIGenerated     bool        `json:"ai_generated"`
	ConfidenceScore float64     `json:"confidence_score,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Shifts          []Shift     `json:"shifts"`
}

// Shift 草稿中的单个班次
type Shift struct {
	ShiftID            string       `json:"shift_id"`
	Title              string       `json:"title"`
	Date               string       `json:"date"` // YYYY-MM-DD
	StartTime          string       `json:"start_time"`
	EndTime            string       `json:"end_time"`
	RequiredSkill      string       `json:"required_skill,omitempty"`
	RequiredStaffCount int          `json:"required_staff_count"`
	Status             ShiftStatus  `json:"status"`
	ConfidenceScore    float64      `json:"confidence_score,omitempty"`
	Assignments        []Assignment `json:"assignments"`
}

// Assignment 一名员工与一个班次的绑定，由所属班次独占持有
type Assignment struct {
	AssignmentID    string                `json:"assignment_id"`
	ShiftID         string                `json:"shift_id"` // 回指所属班次
	StaffID         string                `json:"staff_id"`
	StaffName       string                `json:"staff_name"`
	Status          AssignmentStatus      `json:"status"`
	ConfidenceScore float64               `json:"confidence_score,omitempty"`
	Reasoning       *AssignmentReasoning  `json:"reasoning,omitempty"`
}

// AssignmentReasoning AI 排班决策的结构化说明
type AssignmentReasoning struct {
	PrimaryReasons         []string `json:"primary_reasons,omitempty"`
	Considerations         []string `json:"considerations,omitempty"`
	RiskFactors            []string `json:"risk_factors,omitempty"`
	AlternativesConsidered []string `json:"alternatives_considered,omitempty"`
}

// ── 派生状态与深拷贝 ──

// ActiveAssignmentCount 统计占用名额的排班数（assigned / confirmed）
func (s *Shift) ActiveAssignmentCount() int {
	n := 0
	for _, a := range s.Assignments {
		if a.Status == AssignmentStatusAssigned || a.Status == AssignmentStatusConfirmed {
			n++
		}
	}
	return n
}

// RecomputeStatus 依据有效排班数与需求人数重算派生状态
// 需求人数为 0 的班次恒为 filled（n ≥ 0 恒成立）
func (s *Shift) RecomputeStatus() {
	n := s.ActiveAssignmentCount()
	switch {
	case n >= s.RequiredStaffCount:
		s.Status = ShiftStatusFilled
	case n == 0:
		s.Status = ShiftStatusOpen
	default:
		s.Status = ShiftStatusUnderstaffed
	}
}

// HasStaff 检查指定员工是否已在该班次占有排班
func (s *Shift) HasStaff(staffID string) bool {
	for _, a := range s.Assignments {
		if a.StaffID == staffID {
			return true
		}
	}
	return false
}

// Clone 深拷贝草稿（原始草稿保留用于差异对比，必须与当前草稿完全隔离）
func (d *ScheduleDraft) Clone() *ScheduleDraft {
	if d == nil {
		return nil
	}
	out := *d
	out.Shifts = make([]Shift, len(d.Shifts))
	for i, s := range d.Shifts {
		cs := s
		cs.Assignments = make([]Assignment, len(s.Assignments))
		for j, a := range s.Assignments {
			ca := a
			if a.Reasoning != nil {
				r := *a.Reasoning
				r.PrimaryReasons = append([]string(nil), a.Reasoning.PrimaryReasons...)
				r.Considerations = append([]string(nil), a.Reasoning.Considerations...)
				r.RiskFactors = append([]string(nil), a.Reasoning.RiskFactors...)
				r.AlternativesConsidered = append([]string(nil), a.Reasoning.AlternativesConsidered...)
				ca.Reasoning = &r
			}
			cs.Assignments[j] = ca
		}
		out.Shifts[i] = cs
	}
	return &out
}

// FindShift 按 ID 查找班次，返回可修改的指针
func (d *ScheduleDraft) FindShift(shiftID string) *Shift {
	for i := range d.Shifts {
		if d.Shifts[i].ShiftID == shiftID {
			return &d.Shifts[i]
		}
	}
	return nil
}

// FindAssignment 在所有班次中查找排班，返回所属班次与排班下标
func (d *ScheduleDraft) FindAssignment(assignmentID string) (*Shift, int) {
	for i := range d.Shifts {
		for j := range d.Shifts[i].Assignments {
			if d.Shifts[i].Assignments[j].AssignmentID == assignmentID {
				return &d.Shifts[i], j
			}
		}
	}
	return nil, -1
}
