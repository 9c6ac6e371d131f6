package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"giua-registro/backend/config"
	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/model"
	"giua-registro/backend/internal/repository"
)

// ── 门控模块业务错误 ──

var (
	ErrGateClassNotFound      = errors.New("班级不存在")
	ErrGateStudentNotFound    = errors.New("学生不存在")
	ErrGateAssignmentNotFound = errors.New("任职不存在")
)

// GateDeniedError 写路径把门控拒绝转成错误向上抛
type GateDeniedError struct {
	Reason string
	Detail string
}

func (e *GateDeniedError) Error() string {
	return fmt.Sprintf("操作被拒绝 (%s): %s", e.Reason, e.Detail)
}

// deniedErr 从判定构造 GateDeniedError
func deniedErr(d *dto.GateDecisionResponse) *GateDeniedError {
	return &GateDeniedError{Reason: d.Reason, Detail: d.Detail}
}

// Actor 门控判定的主体（来自 JWT Claims）
type Actor struct {
	UserID string
	Role   string
	SiteID string
}

// GateService 时间性权限门控业务接口
//
// 所有判定回答同一个问题：该主体此刻能否对该日期的该对象执行该动作。
// 拒绝不是错误：返回 Allowed=false 的判定；error 仅用于基础设施故障。
type GateService interface {
	DecideGrade(ctx context.Context, actor *Actor, date time.Time, classID, subjectID string, existing *model.GradeRecord) (*dto.GateDecisionResponse, error)
	DecideAbsence(ctx context.Context, actor *Actor, date time.Time, classID string) (*dto.GateDecisionResponse, error)
	DecideNote(ctx context.Context, actor *Actor, date time.Time, classID string, existing *model.DisciplinaryNote) (*dto.GateDecisionResponse, error)
	DecideBoardRemark(ctx context.Context, actor *Actor, date time.Time, classID string, existing *model.BoardRemark) (*dto.GateDecisionResponse, error)
	DecideObservation(ctx context.Context, actor *Actor, date time.Time, assignmentID, studentID string) (*dto.GateDecisionResponse, error)
	// DecideSession 评审会操作权限（开启/推进）：staff/admin 或班主任
	DecideSession(ctx context.Context, actor *Actor, classID string) (*dto.GateDecisionResponse, error)
	// Decide 按请求分发到具体判定；TargetID 指向的已有记录在这里加载
	Decide(ctx context.Context, actor *Actor, req *dto.GateDecisionRequest) (*dto.GateDecisionResponse, error)
	// RecheckPeriodLock 写路径在事务内复核学段锁，仓储由调用方传入
	RecheckPeriodLock(ctx context.Context, sessions repository.ScrutinioRepository, classID string, date time.Time) (bool, error)
}

type gateService struct {
	cfg      *config.SchoolConfig
	repo     *repository.Repository
	calendar CalendarService
	logger   *zap.Logger
	now      func() time.Time
}

// NewGateService 创建 GateService 实例
func NewGateService(cfg *config.SchoolConfig, repo *repository.Repository, calendar CalendarService, logger *zap.Logger) GateService {
	return &gateService{cfg: cfg, repo: repo, calendar: calendar, logger: logger, now: time.Now}
}

// ── 判定构造 ──

func allow() *dto.GateDecisionResponse {
	return &dto.GateDecisionResponse{Allowed: true}
}

func deny(reason, detail string) *dto.GateDecisionResponse {
	return &dto.GateDecisionResponse{Allowed: false, Reason: reason, Detail: detail}
}

// ────────────────────── DecideGrade ──────────────────────

func (g *gateService) DecideGrade(ctx context.Context, actor *Actor, date time.Time, classID, subjectID string, existing *model.GradeRecord) (*dto.GateDecisionResponse, error) {
	class, err := g.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if denied, err := g.baseChecks(ctx, class, date); denied != nil || err != nil {
		return denied, err
	}

	// 已有记录：只有录入教师本人（或 staff/admin）可改/删
	if existing != nil && !g.isStaff(actor) && existing.TeacherID != actor.UserID {
		return deny(dto.GateReasonForbidden, "il voto appartiene a un altro docente"), nil
	}

	if g.isStaff(actor) {
		return allow(), nil
	}

	ok, err := g.hasAssignment(ctx, actor.UserID, classID, date, func(a *model.TeachingAssignment) bool {
		return a.Type == model.AssignmentNormal && a.SubjectID == subjectID
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return deny(dto.GateReasonForbidden, "nessuna cattedra attiva per la materia nella data indicata"), nil
	}
	return allow(), nil
}

// ────────────────────── DecideAbsence ──────────────────────

func (g *gateService) DecideAbsence(ctx context.Context, actor *Actor, date time.Time, classID string) (*dto.GateDecisionResponse, error) {
	class, err := g.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if denied, err := g.baseChecks(ctx, class, date); denied != nil || err != nil {
		return denied, err
	}

	if g.isStaff(actor) || g.isCoordinator(class, actor) {
		return allow(), nil
	}

	ok, err := g.hasAssignment(ctx, actor.UserID, classID, date, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return deny(dto.GateReasonForbidden, "nessuna cattedra attiva nella classe nella data indicata"), nil
	}
	return allow(), nil
}

// ────────────────────── DecideNote ──────────────────────

func (g *gateService) DecideNote(ctx context.Context, actor *Actor, date time.Time, classID string, existing *model.DisciplinaryNote) (*dto.GateDecisionResponse, error) {
	class, err := g.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if denied, err := g.baseChecks(ctx, class, date); denied != nil || err != nil {
		return denied, err
	}

	if existing != nil {
		if existing.Cancelled {
			return deny(dto.GateReasonForbidden, "la nota è stata annullata"), nil
		}
		if g.isStaff(actor) {
			return allow(), nil
		}
		if existing.TeacherID != actor.UserID {
			return deny(dto.GateReasonForbidden, "la nota appartiene a un altro docente"), nil
		}
		// 作者本人只能在时间窗口内修改
		window := time.Duration(g.cfg.NoteEditWindowMin) * time.Minute
		if g.now().Sub(existing.CreatedAt) > window {
			return deny(dto.GateReasonForbidden,
				fmt.Sprintf("la nota è modificabile solo entro %d minuti dalla creazione", g.cfg.NoteEditWindowMin)), nil
		}
		return allow(), nil
	}

	// 新建纪律记录是班级领导动作：仅班主任或职员
	if g.isStaff(actor) || g.isCoordinator(class, actor) {
		return allow(), nil
	}
	return deny(dto.GateReasonForbidden, "le note disciplinari richiedono il coordinatore di classe o la segreteria"), nil
}

// ────────────────────── DecideBoardRemark ──────────────────────

func (g *gateService) DecideBoardRemark(ctx context.Context, actor *Actor, date time.Time, classID string, existing *model.BoardRemark) (*dto.GateDecisionResponse, error) {
	class, err := g.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if denied, err := g.baseChecks(ctx, class, date); denied != nil || err != nil {
		return denied, err
	}

	if existing != nil && !g.isStaff(actor) && existing.AuthorID != actor.UserID {
		return deny(dto.GateReasonForbidden, "l'annotazione appartiene a un altro docente"), nil
	}
	if g.isStaff(actor) {
		return allow(), nil
	}

	ok, err := g.hasAssignment(ctx, actor.UserID, classID, date, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return deny(dto.GateReasonForbidden, "nessuna cattedra attiva nella classe nella data indicata"), nil
	}
	return allow(), nil
}

// ────────────────────── DecideObservation ──────────────────────

func (g *gateService) DecideObservation(ctx context.Context, actor *Actor, date time.Time, assignmentID, studentID string) (*dto.GateDecisionResponse, error) {
	assignment, err := g.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGateAssignmentNotFound
		}
		g.logger.Error("查询任职失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, err
	}

	class, err := g.loadClass(ctx, assignment.ClassID)
	if err != nil {
		return nil, err
	}
	if denied, err := g.baseChecks(ctx, class, date); denied != nil || err != nil {
		return denied, err
	}

	if assignment.TeacherID != actor.UserID && !g.isStaff(actor) {
		return deny(dto.GateReasonForbidden, "la cattedra appartiene a un altro docente"), nil
	}
	if assignment.Type != model.AssignmentSupport {
		return deny(dto.GateReasonForbidden, "le osservazioni richiedono una cattedra di sostegno"), nil
	}
	if !assignment.ActiveOn(date.Format("2006-01-02")) {
		return deny(dto.GateReasonForbidden, "cattedra non attiva nella data indicata"), nil
	}
	// 观察记录只能写给任职绑定的那名学生
	if assignment.StudentID == nil || *assignment.StudentID != studentID {
		return deny(dto.GateReasonWrongStudent, "lo studente non corrisponde alla cattedra di sostegno"), nil
	}
	return allow(), nil
}

// ────────────────────── DecideSession ──────────────────────

func (g *gateService) DecideSession(ctx context.Context, actor *Actor, classID string) (*dto.GateDecisionResponse, error) {
	class, err := g.loadClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if g.isStaff(actor) || g.isCoordinator(class, actor) {
		return allow(), nil
	}
	return deny(dto.GateReasonForbidden, "lo scrutinio è riservato al coordinatore o alla segreteria"), nil
}

// ────────────────────── Decide ──────────────────────

// 门控动作标识（与 dto 绑定校验的 oneof 保持一致）
const (
	GateActionGrade       = "grade"
	GateActionAbsence     = "absence"
	GateActionNote        = "note"
	GateActionRemark      = "remark"
	GateActionObservation = "observation"
	GateActionSession     = "session"
)

var ErrGateDateInvalid = errors.New("日期格式必须为 YYYY-MM-DD")
var ErrGateActionInvalid = errors.New("未知的门控动作")
var ErrGateTargetNotFound = errors.New("目标记录不存在")

func (g *gateService) Decide(ctx context.Context, actor *Actor, req *dto.GateDecisionRequest) (*dto.GateDecisionResponse, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, ErrGateDateInvalid
	}

	switch req.Action {
	case GateActionGrade:
		var existing *model.GradeRecord
		if req.TargetID != "" {
			existing, err = g.repo.Grade.GetGrade(ctx, req.TargetID)
			if err != nil {
				return nil, g.targetErr(err)
			}
		}
		return g.DecideGrade(ctx, actor, date, req.ClassID, req.SubjectID, existing)
	case GateActionAbsence:
		return g.DecideAbsence(ctx, actor, date, req.ClassID)
	case GateActionNote:
		var existing *model.DisciplinaryNote
		if req.TargetID != "" {
			existing, err = g.repo.Note.GetNote(ctx, req.TargetID)
			if err != nil {
				return nil, g.targetErr(err)
			}
		}
		return g.DecideNote(ctx, actor, date, req.ClassID, existing)
	case GateActionRemark:
		var existing *model.BoardRemark
		if req.TargetID != "" {
			existing, err = g.repo.Note.GetRemark(ctx, req.TargetID)
			if err != nil {
				return nil, g.targetErr(err)
			}
		}
		return g.DecideBoardRemark(ctx, actor, date, req.ClassID, existing)
	case GateActionObservation:
		return g.DecideObservation(ctx, actor, date, req.AssignmentID, req.StudentID)
	case GateActionSession:
		return g.DecideSession(ctx, actor, req.ClassID)
	default:
		return nil, ErrGateActionInvalid
	}
}

func (g *gateService) targetErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGateTargetNotFound
	}
	return err
}

// ── 共享前置检查 ──

// baseChecks 日期相关的统一前置：节假日、未来日期、学段锁
func (g *gateService) baseChecks(ctx context.Context, class *model.Class, date time.Time) (*dto.GateDecisionResponse, error) {
	isHoliday, reason, err := g.calendar.IsHoliday(ctx, class.SiteID, date)
	if err != nil {
		return nil, err
	}
	if isHoliday {
		return deny(dto.GateReasonHoliday, reason), nil
	}

	today := g.today()
	if date.After(today) {
		return deny(dto.GateReasonForbidden, "la data è nel futuro"), nil
	}

	locked, err := g.periodLocked(ctx, class.ClassID, date)
	if err != nil {
		return nil, err
	}
	if locked {
		return deny(dto.GateReasonPeriodLocked, "il periodo è bloccato dallo scrutinio"), nil
	}
	return nil, nil
}

// periodLocked 学段锁判定：
//   - 日期 ≤ 第一学段结束日：今天仍在第一学段内则不锁；
//     否则由该班 first_term 评审会决定
//   - 之后的日期由期末评审会决定
//
// 仅 completed 锁定；in_progress 期间正常录入继续，
// reopened 表示管理端已放行修正，同样不锁
func (g *gateService) periodLocked(ctx context.Context, classID string, date time.Time) (bool, error) {
	return g.RecheckPeriodLock(ctx, g.repo.Scrutinio, classID, date)
}

// RecheckPeriodLock 以指定的评审会仓储执行学段锁判定。
// 写路径在事务内用绑定事务的仓储复核，堵住"判定放行后、
// 落库前评审会恰好完成"的窗口。
func (g *gateService) RecheckPeriodLock(ctx context.Context, sessions repository.ScrutinioRepository, classID string, date time.Time) (bool, error) {
	firstTermEnd, err := time.Parse("2006-01-02", g.cfg.FirstTermEnd)
	if err != nil {
		return false, err
	}

	governing := model.PeriodFinal
	if !date.After(firstTermEnd) {
		if !g.today().After(firstTermEnd) {
			return false, nil
		}
		governing = model.PeriodFirstTerm
	}

	session, err := sessions.GetByClassPeriod(ctx, classID, governing)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		g.logger.Error("查询评审会失败", zap.String("class_id", classID), zap.Error(err))
		return false, err
	}
	return session.Locked(), nil
}

// ── 内部辅助方法 ──

func (g *gateService) loadClass(ctx context.Context, classID string) (*model.Class, error) {
	class, err := g.repo.Class.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGateClassNotFound
		}
		g.logger.Error("查询班级失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	return class, nil
}

func (g *gateService) isStaff(actor *Actor) bool {
	return actor.Role == model.RoleAdmin || actor.Role == model.RoleStaff
}

func (g *gateService) isCoordinator(class *model.Class, actor *Actor) bool {
	return class.CoordinatorID != nil && *class.CoordinatorID == actor.UserID
}

// hasAssignment 教师在指定日期对班级是否有有效任职；match 为 nil 表示任意任职
func (g *gateService) hasAssignment(ctx context.Context, teacherID, classID string, date time.Time, match func(*model.TeachingAssignment) bool) (bool, error) {
	assignments, err := g.repo.Assignment.ListByTeacher(ctx, teacherID)
	if err != nil {
		g.logger.Error("查询任职失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return false, err
	}
	dateStr := date.Format("2006-01-02")
	for i := range assignments {
		a := &assignments[i]
		if a.ClassID != classID || !a.ActiveOn(dateStr) {
			continue
		}
		if match == nil || match(a) {
			return true, nil
		}
	}
	return false, nil
}

func (g *gateService) today() time.Time {
	now := g.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// [自证通过] internal/service/gate_service.go
