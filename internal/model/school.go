package model

// ── 用户角色 ──

const (
	RoleTeacher = "teacher"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

// User 用户表 — 对应 users
// 登录/密码等认证流程由外部系统负责，这里只保留决策所需字段
type User struct {
	UserID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name    string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Surname string  `gorm:"type:varchar(100);not null"                     json:"surname"`
	Role    string  `gorm:"type:varchar(20);not null;default:'teacher'"    json:"role"`
	SiteID  *string `gorm:"type:uuid"                                      json:"site_id,omitempty"`
	BaseModel
}

func (User) TableName() string { return "users" }

// Class 班级表 — 对应 classes
type Class struct {
	ClassID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Year          int     `gorm:"type:smallint;not null"                         json:"year"`
	Section       string  `gorm:"type:varchar(10);not null"                      json:"section"`
	SiteID        string  `gorm:"type:uuid;not null"                             json:"site_id"`
	CoordinatorID *string `gorm:"type:uuid"                                      json:"coordinator_id,omitempty"`
	BaseModel
}

func (Class) TableName() string { return "classes" }

// Student 学生表 — 对应 students
type Student struct {
	StudentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	ClassID   string `gorm:"type:uuid;not null"                             json:"class_id"`
	Name      string `gorm:"type:varchar(100);not null"                     json:"name"`
	Surname   string `gorm:"type:varchar(100);not null"                     json:"surname"`
	BaseModel
}

func (Student) TableName() string { return "students" }

// Subject 学科表 — 对应 subjects
type Subject struct {
	SubjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"subject_id"`
	Name      string `gorm:"type:varchar(100);not null"                     json:"name"`
	ShortName string `gorm:"type:varchar(30);not null"                      json:"short_name"`
	BaseModel
}

func (Subject) TableName() string { return "subjects" }

// ── 授课任职类型 ──

const (
	AssignmentNormal  = "normal"
	AssignmentSupport = "support" // 随班支持（sostegno），绑定单个学生
)

// TeachingAssignment 授课任职表 — 对应 teaching_assignments（cattedra）
type TeachingAssignment struct {
	AssignmentID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	TeacherID    string  `gorm:"type:uuid;not null"                             json:"teacher_id"`
	ClassID      string  `gorm:"type:uuid;not null"                             json:"class_id"`
	SubjectID    string  `gorm:"type:uuid;not null"                             json:"subject_id"`
	Type         string  `gorm:"type:varchar(10);not null;default:'normal'"     json:"type"`
	StudentID    *string `gorm:"type:uuid"                                      json:"student_id,omitempty"` // 仅 support 任职
	Active       bool    `gorm:"not null;default:true"                          json:"active"`
	StartDate    string  `gorm:"type:date;not null"                             json:"start_date"` // YYYY-MM-DD
	EndDate      *string `gorm:"type:date"                                      json:"end_date,omitempty"`
	BaseModel
}

func (TeachingAssignment) TableName() string { return "teaching_assignments" }

// ActiveOn 任职在指定日期是否有效（date 为 YYYY-MM-DD，字符串可直接比较）
func (a *TeachingAssignment) ActiveOn(date string) bool {
	if !a.Active || date < a.StartDate {
		return false
	}
	if a.EndDate != nil && date > *a.EndDate {
		return false
	}
	return true
}

// [自证通过] internal/model/school.go
