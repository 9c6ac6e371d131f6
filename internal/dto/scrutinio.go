package dto

// ── 评审会模块 DTO ──

// StartScrutinioRequest 开启评审会请求
type StartScrutinioRequest struct {
	ClassID    string `json:"class_id"    binding:"required,uuid"`
	PeriodType string `json:"period_type" binding:"required"`
}

// AdvanceScrutinioRequest 推进评审会请求
// Confirm 仅在当前步骤 requires_review 时需要
type AdvanceScrutinioRequest struct {
	ClassID    string `json:"class_id"    binding:"required,uuid"`
	PeriodType string `json:"period_type" binding:"required"`
	Confirm    bool   `json:"confirm"`
}

// ReopenScrutinioRequest 重开评审会请求
type ReopenScrutinioRequest struct {
	ClassID    string `json:"class_id"    binding:"required,uuid"`
	PeriodType string `json:"period_type" binding:"required"`
	StepIndex  int    `json:"step_index"  binding:"min=0"`
	Reason     string `json:"reason"      binding:"required,min=5,max=500"`
}

// ScrutinioStateResponse 评审会状态响应
// 行不存在时 State 为 not_started、PhaseIndex 为 -1
type ScrutinioStateResponse struct {
	ClassID          string  `json:"class_id"`
	PeriodType       string  `json:"period_type"`
	State            string  `json:"state"`
	PhaseIndex       int     `json:"phase_index"`
	StepCount        int     `json:"step_count"`
	CurrentValidator string  `json:"current_validator,omitempty"`
	RequiresReview   bool    `json:"requires_review"`
	ProposalsOpenAt  *string `json:"proposals_open_at,omitempty"`
	VisibleAt        *string `json:"visible_at,omitempty"`
	AuditNote        string  `json:"audit_note,omitempty"`
	Version          int     `json:"version"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}
