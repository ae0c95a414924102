package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"shiftpilot/backend/internal/dto"
	"shiftpilot/backend/internal/service"
	apperrors "shiftpilot/backend/pkg/errors"
	"shiftpilot/backend/pkg/response"
)

// DraftHandler 草稿协作编辑 HTTP 处理器
type DraftHandler struct {
	draftSvc service.DraftService
}

// NewDraftHandler 创建 DraftHandler
func NewDraftHandler(draftSvc service.DraftService) *DraftHandler {
	return &DraftHandler{draftSvc: draftSvc}
}

// ── 会话生命周期 ──

// OpenSession 打开草稿编辑会话并加入协作
// POST /api/v1/drafts/:id/session
func (h *DraftHandler) OpenSession(c *gin.Context) {
	draftID := c.Param("id")
	if draftID == "" {
		response.BadRequest(c, 14001, "草稿ID不能为空")
		return
	}

	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}
	if req.Draft != nil && req.Draft.DraftID == "" {
		req.Draft.DraftID = draftID
	}
	if req.Draft != nil && req.Draft.DraftID != draftID {
		response.BadRequest(c, 14002, "草稿ID与请求体不一致")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	userName, _ := MustGetUserName(c)

	view, err := h.draftSvc.OpenSession(c.Request.Context(), &req, userID, userName)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.Created(c, view)
}

// CloseSession 离开编辑会话；最后一名参与者离开时会话被回收
// DELETE /api/v1/drafts/:id/session
func (h *DraftHandler) CloseSession(c *gin.Context) {
	draftID := c.Param("id")
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.draftSvc.CloseSession(c.Request.Context(), draftID, userID); err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetSession 获取会话当前状态（草稿快照、参与者、撤销栈状态）
// GET /api/v1/drafts/:id
func (h *DraftHandler) GetSession(c *gin.Context) {
	view, err := h.draftSvc.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, view)
}

// Heartbeat 在线心跳，可顺带更新当前动作
// POST /api/v1/drafts/:id/heartbeat
func (h *DraftHandler) Heartbeat(c *gin.Context) {
	var req dto.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	userName, _ := MustGetUserName(c)

	if err := h.draftSvc.Heartbeat(c.Request.Context(), c.Param("id"), userID, userName, &req); err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, nil)
}

// Presences 获取会话参与者及其在线状态
// GET /api/v1/drafts/:id/presence
func (h *DraftHandler) Presences(c *gin.Context) {
	presences, err := h.draftSvc.Presences(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": presences})
}

// ── 编辑操作 ──

// Assign 把员工排入班次
// POST /api/v1/drafts/:id/assign
func (h *DraftHandler) Assign(c *gin.Context) {
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	userName, _ := MustGetUserName(c)

	result, err := h.draftSvc.Assign(c.Request.Context(), c.Param("id"), userID, userName, &req)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Unassign 移除一条排班
// POST /api/v1/drafts/:id/unassign
func (h *DraftHandler) Unassign(c *gin.Context) {
	var req dto.UnassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	userName, _ := MustGetUserName(c)

	result, err := h.draftSvc.Unassign(c.Request.Context(), c.Param("id"), userID, userName, &req)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Move 把排班从一个班次移到另一个班次
// POST /api/v1/drafts/:id/move
func (h *DraftHandler) Move(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	userName, _ := MustGetUserName(c)

	result, err := h.draftSvc.Move(c.Request.Context(), c.Param("id"), userID, userName, &req)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Undo 撤销上一步操作
// POST /api/v1/drafts/:id/undo
func (h *DraftHandler) Undo(c *gin.Context) {
	result, err := h.draftSvc.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Redo 重做已撤销的操作
// POST /api/v1/drafts/:id/redo
func (h *DraftHandler) Redo(c *gin.Context) {
	result, err := h.draftSvc.Redo(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Reset 放弃全部改动，恢复原始草稿
// POST /api/v1/drafts/:id/reset
func (h *DraftHandler) Reset(c *gin.Context) {
	result, err := h.draftSvc.Reset(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Changes 获取相对原始草稿的净改动摘要
// GET /api/v1/drafts/:id/changes
func (h *DraftHandler) Changes(c *gin.Context) {
	result, err := h.draftSvc.Changes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// Sync 把草稿推送到排班主服务
// POST /api/v1/drafts/:id/sync
func (h *DraftHandler) Sync(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.draftSvc.Sync(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, result)
}

// ── 软锁与冲突 ──

// AcquireLock 声明班次编辑意向
// POST /api/v1/drafts/:id/locks
func (h *DraftHandler) AcquireLock(c *gin.Context) {
	var req dto.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	userName, _ := MustGetUserName(c)

	result, err := h.draftSvc.AcquireLock(c.Request.Context(), c.Param("id"), userID, userName, &req)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	if !result.Acquired {
		response.Conflict(c, 14103, "班次已被其他用户锁定")
		return
	}
	response.OK(c, result)
}

// ReleaseLock 释放班次编辑意向
// DELETE /api/v1/drafts/:id/locks/:shiftID
func (h *DraftHandler) ReleaseLock(c *gin.Context) {
	shiftID := c.Param("shiftID")
	if shiftID == "" {
		response.BadRequest(c, 14001, "班次ID不能为空")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	req := dto.LockRequest{ShiftID: shiftID}
	if err := h.draftSvc.ReleaseLock(c.Request.Context(), c.Param("id"), userID, &req); err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, nil)
}

// Conflicts 获取会话内的编辑冲突；pending=true 时只返回未处理冲突
// GET /api/v1/drafts/:id/conflicts
func (h *DraftHandler) Conflicts(c *gin.Context) {
	pendingOnly := c.Query("pending") == "true"

	conflicts, err := h.draftSvc.Conflicts(c.Request.Context(), c.Param("id"), pendingOnly)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": conflicts})
}

// ResolveConflict 处理一条编辑冲突
// POST /api/v1/drafts/:id/conflicts/:cid/resolve
func (h *DraftHandler) ResolveConflict(c *gin.Context) {
	conflictID := c.Param("cid")
	if conflictID == "" {
		response.BadRequest(c, 14001, "冲突ID不能为空")
		return
	}

	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	conflict, err := h.draftSvc.ResolveConflict(c.Request.Context(), c.Param("id"), conflictID, userID, &req)
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, conflict)
}

// ── 审计 ──

// SessionHistory 获取草稿的编辑会话记录
// GET /api/v1/drafts/:id/sessions
func (h *DraftHandler) SessionHistory(c *gin.Context) {
	records, err := h.draftSvc.SessionHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": records})
}

// ChangeLogs 获取草稿的变更日志
// GET /api/v1/drafts/:id/change-logs
func (h *DraftHandler) ChangeLogs(c *gin.Context) {
	logs, err := h.draftSvc.ChangeLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleDraftError(c, err)
		return
	}

	response.OK(c, gin.H{"list": logs})
}

// handleDraftError 统一处理草稿协作模块业务错误
func (h *DraftHandler) handleDraftError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 14101, "草稿编辑会话不存在")
	case errors.Is(err, service.ErrDraftRequired):
		response.BadRequest(c, 14102, "必须提交草稿文档")
	case errors.Is(err, apperrors.ErrSessionClosed):
		response.Conflict(c, 14104, "编辑会话已关闭")
	case errors.Is(err, apperrors.ErrConflictNotFound):
		response.NotFound(c, 14105, "冲突记录不存在")
	case errors.Is(err, apperrors.ErrConflictResolved):
		response.Conflict(c, 14106, "冲突已处理，不能变更处理方式")
	case errors.Is(err, apperrors.ErrMergeNotApplicable):
		response.BadRequest(c, 14107, "该冲突类型不支持合并处理")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/draft_handler.go
