package dto

// ── 阶段定义模块 DTO ──

// PhaseStepRequest 阶段步骤
type PhaseStepRequest struct {
	StepIndex      int                    `json:"step_index"      binding:"min=0"`
	Validator      string                 `json:"validator"       binding:"required,max=50"`
	RequiresReview bool                   `json:"requires_review"`
	Params         map[string]interface{} `json:"params"`
}

// CreatePhaseDefinitionRequest 创建阶段定义请求
type CreatePhaseDefinitionRequest struct {
	PeriodType     string             `json:"period_type"     binding:"required"`
	ProposalsStart string             `json:"proposals_start" binding:"required"` // "2026-01-10"
	SessionDate    string             `json:"session_date"    binding:"required"` // "2026-01-31"
	Steps          []PhaseStepRequest `json:"steps"           binding:"required,min=1,dive"`
}

// UpdatePhaseDefinitionRequest 更新阶段定义请求（整体替换步骤序列）
type UpdatePhaseDefinitionRequest struct {
	ProposalsStart string             `json:"proposals_start" binding:"required"`
	SessionDate    string             `json:"session_date"    binding:"required"`
	Steps          []PhaseStepRequest `json:"steps"           binding:"required,min=1,dive"`
}

// PhaseStepResponse 阶段步骤响应
type PhaseStepResponse struct {
	StepIndex      int                    `json:"step_index"`
	Validator      string                 `json:"validator"`
	RequiresReview bool                   `json:"requires_review"`
	Params         map[string]interface{} `json:"params,omitempty"`
}

// PhaseDefinitionResponse 阶段定义响应
type PhaseDefinitionResponse struct {
	ID             string              `json:"id"`
	PeriodType     string              `json:"period_type"`
	ProposalsStart string              `json:"proposals_start"`
	SessionDate    string              `json:"session_date"`
	Steps          []PhaseStepResponse `json:"steps"`
}
