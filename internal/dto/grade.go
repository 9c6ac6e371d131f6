package dto

// ── 成绩模块 DTO ──

// UpsertProposalRequest 提交/更新成绩提案请求
type UpsertProposalRequest struct {
	ClassID    string   `json:"class_id"    binding:"required,uuid"`
	SubjectID  string   `json:"subject_id"  binding:"required,uuid"`
	StudentID  string   `json:"student_id"  binding:"required,uuid"`
	PeriodType string   `json:"period_type" binding:"required"`
	NumericVal *float64 `json:"numeric_val" binding:"omitempty,min=0,max=10"`
	Label      *string  `json:"label"       binding:"omitempty,max=30"`
	Remark     string   `json:"remark"      binding:"max=1000"`
}

// ProposalResponse 成绩提案响应
type ProposalResponse struct {
	ID         string   `json:"id"`
	ClassID    string   `json:"class_id"`
	SubjectID  string   `json:"subject_id"`
	StudentID  string   `json:"student_id"`
	TeacherID  string   `json:"teacher_id"`
	PeriodType string   `json:"period_type"`
	NumericVal *float64 `json:"numeric_val,omitempty"`
	Label      *string  `json:"label,omitempty"`
	Remark     string   `json:"remark,omitempty"`
}

// CreateGradeRequest 录入成绩请求
type CreateGradeRequest struct {
	ClassID    string   `json:"class_id"    binding:"required,uuid"`
	SubjectID  string   `json:"subject_id"  binding:"required,uuid"`
	StudentID  string   `json:"student_id"  binding:"required,uuid"`
	PeriodType string   `json:"period_type" binding:"required"`
	Date       string   `json:"date"        binding:"required"` // "2026-01-20"
	NumericVal *float64 `json:"numeric_val" binding:"omitempty,min=0,max=10"`
	Label      *string  `json:"label"       binding:"omitempty,max=30"`
	Visible    bool     `json:"visible"`
	Remark     string   `json:"remark"      binding:"max=1000"`
}

// UpdateGradeRequest 修改成绩请求
type UpdateGradeRequest struct {
	NumericVal *float64 `json:"numeric_val" binding:"omitempty,min=0,max=10"`
	Label      *string  `json:"label"       binding:"omitempty,max=30"`
	Visible    *bool    `json:"visible"`
	Remark     *string  `json:"remark"      binding:"omitempty,max=1000"`
}

// GradeResponse 成绩记录响应
type GradeResponse struct {
	ID         string   `json:"id"`
	ClassID    string   `json:"class_id"`
	SubjectID  string   `json:"subject_id"`
	StudentID  string   `json:"student_id"`
	TeacherID  string   `json:"teacher_id"`
	PeriodType string   `json:"period_type"`
	Date       string   `json:"date"`
	NumericVal *float64 `json:"numeric_val,omitempty"`
	Label      *string  `json:"label,omitempty"`
	Visible    bool     `json:"visible"`
	Remark     string   `json:"remark,omitempty"`
}
