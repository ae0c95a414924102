package model

import (
	"encoding/json"
	"time"
)

// ── 约束类型与优先级 ──

// ConstraintType 业务约束类型
type ConstraintType string

const (
	ConstraintSkillMatch       ConstraintType = "skill_match"
	ConstraintAvailability     ConstraintType = "availability"
	ConstraintMaxWeeklyHours   ConstraintType = "max_weekly_hours"
	ConstraintMinRestHours     ConstraintType = "min_rest_hours"
	ConstraintMaxConsecutive   ConstraintType = "max_consecutive_days"
	ConstraintFairDistribution ConstraintType = "fair_distribution"
	ConstraintMinStaffPerShift ConstraintType = "min_staff_per_shift"
	ConstraintDataIntegrity    ConstraintType = "data_integrity"
)

// AllConstraintTypes 校验流水线的固定评估顺序
var AllConstraintTypes = []ConstraintType{
	ConstraintDataIntegrity,
	ConstraintSkillMatch,
	ConstraintAvailability,
	ConstraintMaxWeeklyHours,
	ConstraintMinRestHours,
	ConstraintMaxConsecutive,
	ConstraintFairDistribution,
	ConstraintMinStaffPerShift,
}

// ConstraintPriority 约束优先级，按业务配置
type ConstraintPriority string

const (
	PriorityLow      ConstraintPriority = "low"
	PriorityMedium   ConstraintPriority = "medium"
	PriorityHigh     ConstraintPriority = "high"
	PriorityCritical ConstraintPriority = "critical"
)

// ViolationSeverity 违规严重程度
type ViolationSeverity string

const (
	SeverityError   ViolationSeverity = "error"
	SeverityWarning ViolationSeverity = "warning"
)

// ── 违规结果（纯值对象，按需重算，从不持久化）──

// ConstraintViolation 单条约束违规
type ConstraintViolation struct {
	ConstraintType ConstraintType    `json:"constraint_type"`
	ViolationType  string            `json:"violation_type"`
	Severity       ViolationSeverity `json:"severity"`
	Message        string            `json:"message"`
	Suggestion     string            `json:"suggestion,omitempty"`
	Score          float64           `json:"score,omitempty"` // [0,1]，1 表示完全满足
	ShiftID        string            `json:"shift_id,omitempty"`
	StaffID        string            `json:"staff_id,omitempty"`
	Detail         ViolationDetail   `json:"detail,omitempty"`
}

// ViolationDetail 按约束类型区分的强类型附加数据
// 避免无类型的键值袋：每种约束有自己的明细结构
type ViolationDetail interface {
	violationDetail()
}

// SkillMismatchDetail 技能不匹配明细
type SkillMismatchDetail struct {
	RequiredSkill string   `json:"required_skill"`
	StaffSkills   []string `json:"staff_skills"`
}

// AvailabilityDetail 可用性冲突明细
type AvailabilityDetail struct {
	ConflictStart time.Time `json:"conflict_start"`
	ConflictEnd   time.Time `json:"conflict_end"`
	Reason        string    `json:"reason,omitempty"`
}

// WeeklyHoursDetail 周工时超限明细
type WeeklyHoursDetail struct {
	ScheduledHours float64 `json:"scheduled_hours"`
	LimitHours     float64 `json:"limit_hours"`
}

// RestPeriodDetail 休息间隔不足明细
type RestPeriodDetail struct {
	RestHours    float64 `json:"rest_hours"`
	MinRestHours float64 `json:"min_rest_hours"`
	PrevShiftID  string  `json:"prev_shift_id"`
}

// ConsecutiveDaysDetail 连续工作天数超限明细
type ConsecutiveDaysDetail struct {
	ConsecutiveDays int `json:"consecutive_days"`
	LimitDays       int `json:"limit_days"`
}

// FairnessDetail 分配不均明细
type FairnessDetail struct {
	StaffShiftCount int     `json:"staff_shift_count"`
	AverageCount    float64 `json:"average_count"`
	Tolerance       float64 `json:"tolerance"`
}

// StaffingLevelDetail 班次人数不足明细
type StaffingLevelDetail struct {
	AssignedCount int `json:"assigned_count"`
	RequiredCount int `json:"required_count"`
}

// DataIntegrityDetail 数据完整性问题明细
type DataIntegrityDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// UnmarshalJSON 按 constraint_type 将 detail 还原为对应的强类型变体
// （缓存反序列化与跨实例广播需要往返一致性）
func (v *ConstraintViolation) UnmarshalJSON(data []byte) error {
	type alias ConstraintViolation
	aux := struct {
		*alias
		Detail json.RawMessage `json:"detail,omitempty"`
	}{alias: (*alias)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Detail) == 0 || string(aux.Detail) == "null" {
		return nil
	}

	var detail ViolationDetail
	switch v.ConstraintType {
	case ConstraintSkillMatch:
		detail = &SkillMismatchDetail{}
	case ConstraintAvailability:
		detail = &AvailabilityDetail{}
	case ConstraintMaxWeeklyHours:
		detail = &WeeklyHoursDetail{}
	case ConstraintMinRestHours:
		detail = &RestPeriodDetail{}
	case ConstraintMaxConsecutive:
		detail = &ConsecutiveDaysDetail{}
	case ConstraintFairDistribution:
		detail = &FairnessDetail{}
	case ConstraintMinStaffPerShift:
		detail = &StaffingLevelDetail{}
	case ConstraintDataIntegrity:
		detail = &DataIntegrityDetail{}
	default:
		return nil
	}
	if err := json.Unmarshal(aux.Detail, detail); err != nil {
		return err
	}
	v.Detail = detail
	return nil
}

func (SkillMismatchDetail) violationDetail()   {}
func (AvailabilityDetail) violationDetail()    {}
func (WeeklyHoursDetail) violationDetail()     {}
func (RestPeriodDetail) violationDetail()      {}
func (ConsecutiveDaysDetail) violationDetail() {}
func (FairnessDetail) violationDetail()        {}
func (StaffingLevelDetail) violationDetail()   {}
func (DataIntegrityDetail) violationDetail()   {}

// ── 约束配置（按业务落库）──

// ConstraintRule 业务约束规则配置表 — 对应 constraint_rules
type ConstraintRule struct {
	RuleID         string             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"rule_id"`
	BusinessID     string             `gorm:"type:uuid;not null;index"                       json:"business_id"`
	ConstraintType ConstraintType     `gorm:"type:varchar(40);not null"                      json:"constraint_type"`
	Priority       ConstraintPriority `gorm:"type:varchar(10);not null;default:'medium'"     json:"priority"`
	IsEnabled      bool               `gorm:"not null;default:true"                          json:"is_enabled"`
	Threshold      *float64           `json:"threshold,omitempty"` // 覆盖全局默认阈值（工时/休息小时/天数等）
	VersionedModel
}

// TableName 指定表名
func (ConstraintRule) TableName() string { return "constraint_rules" }

// [自证通过] internal/model/constraint.go
