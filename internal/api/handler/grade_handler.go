package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/service"
	"giua-registro/backend/pkg/response"
)

// GradeHandler 成绩模块 HTTP 处理器
type GradeHandler struct {
	gradeSvc service.GradeService
}

// NewGradeHandler 创建 GradeHandler
func NewGradeHandler(gradeSvc service.GradeService) *GradeHandler {
	return &GradeHandler{gradeSvc: gradeSvc}
}

// UpsertProposal 提交/更新成绩提案
// PUT /api/v1/proposals
func (h *GradeHandler) UpsertProposal(c *gin.Context) {
	var req dto.UpsertProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	proposal, err := h.gradeSvc.UpsertProposal(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.OK(c, proposal)
}

// ListProposals 列出班级某学段的成绩提案
// GET /api/v1/proposals/:class_id/:period_type
func (h *GradeHandler) ListProposals(c *gin.Context) {
	classID := c.Param("class_id")
	periodType := c.Param("period_type")
	if classID == "" || periodType == "" {
		response.BadRequest(c, 10001, "班级ID与学段类型不能为空")
		return
	}

	proposals, err := h.gradeSvc.ListProposals(c.Request.Context(), classID, periodType)
	if err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.OK(c, gin.H{"list": proposals})
}

// CreateGrade 录入成绩
// POST /api/v1/grades
func (h *GradeHandler) CreateGrade(c *gin.Context) {
	var req dto.CreateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	grade, err := h.gradeSvc.CreateGrade(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.Created(c, grade)
}

// UpdateGrade 修改成绩
// PUT /api/v1/grades/:id
func (h *GradeHandler) UpdateGrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "成绩ID不能为空")
		return
	}

	var req dto.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	grade, err := h.gradeSvc.UpdateGrade(c.Request.Context(), id, &req, actor)
	if err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.OK(c, grade)
}

// DeleteGrade 删除成绩
// DELETE /api/v1/grades/:id
func (h *GradeHandler) DeleteGrade(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "成绩ID不能为空")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.gradeSvc.DeleteGrade(c.Request.Context(), id, actor); err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleGradeError 统一处理成绩模块业务错误
func (h *GradeHandler) handleGradeError(c *gin.Context, err error) {
	var denied *service.GateDeniedError

	switch {
	case errors.As(err, &denied):
		writeGateDenied(c, denied)
	case errors.Is(err, service.ErrGradeNotFound):
		response.NotFound(c, 25001, "成绩记录不存在")
	case errors.Is(err, service.ErrGradeValueMissing):
		response.BadRequest(c, 25002, "数值成绩与等级成绩必须二选一")
	case errors.Is(err, service.ErrGradeDateInvalid):
		response.BadRequest(c, 25003, "日期格式必须为 YYYY-MM-DD")
	case errors.Is(err, service.ErrProposalsNotOpen):
		response.Conflict(c, 25004, "成绩提案尚未开放")
	case errors.Is(err, service.ErrProposalsClosed):
		response.Conflict(c, 25005, "评审会已完成，提案通道关闭")
	case errors.Is(err, service.ErrPeriodTypeInvalid):
		response.BadRequest(c, 25006, "未知的学段类型")
	case errors.Is(err, service.ErrDefinitionNotFound):
		response.NotFound(c, 25007, "该学段类型的阶段定义不存在")
	case errors.Is(err, service.ErrGateClassNotFound):
		response.NotFound(c, 25008, "班级不存在")
	default:
		response.InternalError(c)
	}
}

// writeGateDenied 门控拒绝的统一 HTTP 映射：
// 时间性拒绝（节假日/学段锁）→ 409，主体性拒绝 → 403
func writeGateDenied(c *gin.Context, denied *service.GateDeniedError) {
	switch denied.Reason {
	case dto.GateReasonHoliday:
		response.ErrorWithDetails(c, 409, 23101, "该日期为非上课日", denied.Detail)
	case dto.GateReasonPeriodLocked:
		response.ErrorWithDetails(c, 409, 23102, "该学段已被评审会锁定", denied.Detail)
	case dto.GateReasonWrongStudent:
		response.ErrorWithDetails(c, 403, 23103, "学生与任职不匹配", denied.Detail)
	default:
		response.ErrorWithDetails(c, 403, 23104, "无权执行该操作", denied.Detail)
	}
}

// [自证通过] internal/api/handler/grade_handler.go
