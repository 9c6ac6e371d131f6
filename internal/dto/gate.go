package dto

// ── 权限门控模块 DTO ──

// 门控拒绝原因码
const (
	GateReasonHoliday      = "holiday"
	GateReasonPeriodLocked = "period_locked"
	GateReasonForbidden    = "forbidden"
	GateReasonWrongStudent = "wrong_student"
)

// GateDecisionRequest 门控判定请求
// TargetID 为已存在记录的主键（编辑/删除场景），新建时留空
type GateDecisionRequest struct {
	Action    string `json:"action"     binding:"required,oneof=grade absence note remark observation session"`
	Date      string `json:"date"       binding:"required"` // "2026-01-20"
	ClassID   string `json:"class_id"   binding:"omitempty,uuid"`
	SubjectID string `json:"subject_id" binding:"omitempty,uuid"`
	StudentID string `json:"student_id" binding:"omitempty,uuid"`
	// AssignmentID 仅 observation 动作需要
	AssignmentID string `json:"assignment_id" binding:"omitempty,uuid"`
	TargetID     string `json:"target_id"     binding:"omitempty,uuid"`
}

// GateDecisionResponse 门控判定响应
// Allowed 为 false 时 Reason 为原因码、Detail 为人类可读说明
type GateDecisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
