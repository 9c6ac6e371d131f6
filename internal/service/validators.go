package service

import (
	"context"
	"fmt"

	"giua-registro/backend/internal/model"
	"giua-registro/backend/internal/repository"
)

// ── 阶段校验器注册表 ──
//
// 阶段步骤的 Validator 字段存的是标识字符串，加载时在这里解析为函数。
// 校验器只回答"该步骤的前置条件满足了吗"：返回缺失项列表，空表示通过。

// ValidationInput 校验器输入
type ValidationInput struct {
	Session    *model.ScrutinioSession
	Definition *model.PhaseDefinition
	Step       *model.PhaseStep
}

// PhaseValidator 阶段校验器：missing 非空表示前置条件未满足
type PhaseValidator func(ctx context.Context, repo *repository.Repository, in *ValidationInput) (missing []string, err error)

var validatorRegistry = map[string]PhaseValidator{
	"proposals_complete": validateProposalsComplete,
	"votes_complete":     validateVotesComplete,
	"absences_confirmed": validateAbsencesConfirmed,
}

// RegisterValidator 注册自定义校验器（启动时调用，覆盖同名项）
func RegisterValidator(name string, fn PhaseValidator) {
	validatorRegistry[name] = fn
}

// lookupValidator 解析校验器标识；未注册返回 false
func lookupValidator(name string) (PhaseValidator, bool) {
	fn, ok := validatorRegistry[name]
	return fn, ok
}

// ────────────────────── proposals_complete ──────────────────────

// validateProposalsComplete 班级每个 normal 任职学科至少有一条成绩提案
func validateProposalsComplete(ctx context.Context, repo *repository.Repository, in *ValidationInput) ([]string, error) {
	required, err := repo.Assignment.ListClassSubjectIDs(ctx, in.Session.ClassID)
	if err != nil {
		return nil, err
	}
	proposed, err := repo.Grade.ListProposalSubjectIDs(ctx, in.Session.ClassID, in.Session.PeriodType)
	if err != nil {
		return nil, err
	}

	proposedSet := make(map[string]bool, len(proposed))
	for _, id := range proposed {
		proposedSet[id] = true
	}
	var missingIDs []string
	for _, id := range required {
		if !proposedSet[id] {
			missingIDs = append(missingIDs, id)
		}
	}
	if len(missingIDs) == 0 {
		return nil, nil
	}

	// 缺失项以学科名称呈现
	subjects, err := repo.Subject.ListByIDs(ctx, missingIDs)
	if err != nil {
		return nil, err
	}
	missing := make([]string, 0, len(missingIDs))
	for i := range subjects {
		missing = append(missing, subjects[i].Name)
	}
	// 学科行缺失时退回 ID，缺失项不能被吞掉
	if len(missing) < len(missingIDs) {
		named := make(map[string]bool, len(subjects))
		for i := range subjects {
			named[subjects[i].SubjectID] = true
		}
		for _, id := range missingIDs {
			if !named[id] {
				missing = append(missing, id)
			}
		}
	}
	return missing, nil
}

// ────────────────────── votes_complete ──────────────────────

// validateVotesComplete 班级每个 (学生, normal 学科) 组合都有成绩记录
func validateVotesComplete(ctx context.Context, repo *repository.Repository, in *ValidationInput) ([]string, error) {
	required, err := repo.Assignment.ListClassSubjectIDs(ctx, in.Session.ClassID)
	if err != nil {
		return nil, err
	}
	if len(required) == 0 {
		return nil, nil
	}

	subjects, err := repo.Subject.ListByIDs(ctx, required)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(subjects))
	for i := range subjects {
		names[subjects[i].SubjectID] = subjects[i].Name
	}

	var missing []string
	for _, subjectID := range required {
		count, err := repo.Grade.CountGradesMissing(ctx, in.Session.ClassID, in.Session.PeriodType, []string{subjectID})
		if err != nil {
			return nil, err
		}
		if count > 0 {
			name := names[subjectID]
			if name == "" {
				name = subjectID
			}
			missing = append(missing, fmt.Sprintf("%s (%d voti mancanti)", name, count))
		}
	}
	return missing, nil
}

// ────────────────────── absences_confirmed ──────────────────────

// absencesConfirmedKey 会话数据袋中的出勤确认标记
const absencesConfirmedKey = "absences_confirmed"

// validateAbsencesConfirmed 班主任须先在会话中确认出勤数据
func validateAbsencesConfirmed(ctx context.Context, repo *repository.Repository, in *ValidationInput) ([]string, error) {
	if in.Session.Data != nil {
		if confirmed, ok := in.Session.Data[absencesConfirmedKey].(bool); ok && confirmed {
			return nil, nil
		}
	}
	return []string{"conferma delle assenze mancante"}, nil
}

// [自证通过] internal/service/validators.go
