package model

import "time"

// ── 学段类型 ──
// 对应原注册簿 DefinizioneScrutinio 的 periodo 字段（P/S/F/G/R/X）

const (
	PeriodFirstTerm  = "first_term"  // 第一学段
	PeriodSecondTerm = "second_term" // 第二学段（三学段制）
	PeriodFinal      = "final"       // 期末评审
	PeriodResit      = "resit"       // 暂缓判定补考
	PeriodDeferred   = "deferred"    // 延期评审
	PeriodPriorYear  = "prior_year"  // 上学年延期评审
)

// KnownPeriodTypes 合法学段类型集合
var KnownPeriodTypes = map[string]bool{
	PeriodFirstTerm:  true,
	PeriodSecondTerm: true,
	PeriodFinal:      true,
	PeriodResit:      true,
	PeriodDeferred:   true,
	PeriodPriorYear:  true,
}

// PhaseDefinition 评审会阶段定义表 — 对应 phase_definitions
// 阶段序列是数据而非代码：每学段类型一份有序步骤表
type PhaseDefinition struct {
	DefinitionID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"definition_id"`
	PeriodType     string    `gorm:"type:varchar(20);not null;unique"               json:"period_type"`
	ProposalsStart time.Time `gorm:"type:date;not null"                             json:"proposals_start"` // 成绩提案开放日
	SessionDate    time.Time `gorm:"type:date;not null"                             json:"session_date"`    // 评审会举行日
	BaseModel

	// 关联
	Steps []PhaseStep `gorm:"foreignKey:DefinitionID" json:"steps,omitempty"`
}

// TableName 指定表名
func (PhaseDefinition) TableName() string { return "phase_definitions" }

// PhaseStep 评审会阶段步骤表 — 对应 phase_steps
// Validator 是注册表中的校验器标识，不是代码引用
type PhaseStep struct {
	StepID         string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"step_id"`
	DefinitionID   string  `gorm:"type:uuid;not null"                             json:"definition_id"`
	StepIndex      int     `gorm:"type:smallint;not null"                         json:"step_index"`
	Validator      string  `gorm:"type:varchar(50);not null"                      json:"validator"`
	RequiresReview bool    `gorm:"not null;default:false"                         json:"requires_review"`
	Params         JSONMap `gorm:"type:jsonb;not null;default:'{}'"               json:"params"`
	BaseModel
}

func (PhaseStep) TableName() string { return "phase_steps" }

// [自证通过] internal/model/phase_definition.go
