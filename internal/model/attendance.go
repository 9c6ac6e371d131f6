package model

import "time"

// Lesson 课时表 — 对应 lessons
type Lesson struct {
	LessonID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"lesson_id"`
	ClassID   string    `gorm:"type:uuid;not null"                             json:"class_id"`
	SubjectID string    `gorm:"type:uuid;not null"                             json:"subject_id"`
	SiteID    string    `gorm:"type:uuid;not null"                             json:"site_id"`
	Date      time.Time `gorm:"type:date;not null"                             json:"date"`
	Hour      int       `gorm:"type:smallint;not null"                         json:"hour"`
	StartTime string    `gorm:"type:time;not null"                             json:"start_time"` // HH:MM
	EndTime   string    `gorm:"type:time;not null"                             json:"end_time"`   // HH:MM
	Duration  float64   `gorm:"type:numeric(3,1);not null;default:1.0"         json:"duration"`   // 计入统计的课时数
	BaseModel
}

func (Lesson) TableName() string { return "lessons" }

// ── 缺勤记录类型 ──

const (
	AttendanceAbsence   = "absence"    // 整日缺勤
	AttendanceLateEntry = "late_entry" // 迟到
	AttendanceEarlyExit = "early_exit" // 早退
)

// AttendanceRecord 缺勤原始记录表 — 对应 attendance_records
// 聚合只能从原始记录整删重建，不允许增量修补
type AttendanceRecord struct {
	RecordID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	StudentID string    `gorm:"type:uuid;not null"                             json:"student_id"`
	Date      time.Time `gorm:"type:date;not null"                             json:"date"`
	Kind      string    `gorm:"type:varchar(20);not null"                      json:"kind"`
	Time      *string   `gorm:"type:time"                                      json:"time,omitempty"` // HH:MM，仅迟到/早退
	Justified bool      `gorm:"not null;default:false"                         json:"justified"`
	BaseModel
}

func (AttendanceRecord) TableName() string { return "attendance_records" }

// AttendanceAggregate 缺勤课时聚合表 — 对应 attendance_aggregates
// 派生数据：每 (学生, 课时) 的缺勤课时数
type AttendanceAggregate struct {
	AggregateID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"aggregate_id"`
	StudentID   string  `gorm:"type:uuid;not null"                             json:"student_id"`
	LessonID    string  `gorm:"type:uuid;not null"                             json:"lesson_id"`
	Hours       float64 `gorm:"type:numeric(3,1);not null"                     json:"hours"`
	BaseModel
}

func (AttendanceAggregate) TableName() string { return "attendance_aggregates" }

// Holiday 节假日表 — 对应 holidays（SiteID 为 nil 表示全部校区）
type Holiday struct {
	HolidayID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"holiday_id"`
	SiteID      *string   `gorm:"type:uuid"                                      json:"site_id,omitempty"`
	Date        time.Time `gorm:"type:date;not null"                             json:"date"`
	Description string    `gorm:"type:varchar(200);not null;default:''"          json:"description"`
	BaseModel
}

func (Holiday) TableName() string { return "holidays" }

// [自证通过] internal/model/attendance.go
