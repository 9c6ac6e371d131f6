package dto

// ── 缺勤与聚合模块 DTO ──

// CreateAbsenceRequest 登记缺勤请求
type CreateAbsenceRequest struct {
	StudentID string  `json:"student_id" binding:"required,uuid"`
	Date      string  `json:"date"       binding:"required"` // "2026-01-20"
	Kind      string  `json:"kind"       binding:"required,oneof=absence late_entry early_exit"`
	Time      *string `json:"time"       binding:"omitempty"` // "HH:MM"，仅迟到/早退
	Justified bool    `json:"justified"`
}

// AbsenceResponse 缺勤记录响应
type AbsenceResponse struct {
	ID        string  `json:"id"`
	StudentID string  `json:"student_id"`
	Date      string  `json:"date"`
	Kind      string  `json:"kind"`
	Time      *string `json:"time,omitempty"`
	Justified bool    `json:"justified"`
}

// RecomputeRequest 聚合重算请求
// ClassID 为空表示全部班级
type RecomputeRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date"   binding:"required"`
	ClassID   string `json:"class_id"   binding:"omitempty,uuid"`
}

// RecomputeResponse 聚合重算结果
// 中途被取消时 Aborted 为 true，DirtyFrom 为首个未处理日期
type RecomputeResponse struct {
	LessonsProcessed int     `json:"lessons_processed"`
	Aborted          bool    `json:"aborted"`
	DirtyFrom        *string `json:"dirty_from,omitempty"`
}
