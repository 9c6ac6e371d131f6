package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"giua-registro/backend/internal/model"
	"giua-registro/backend/internal/repository"
	pkgerrors "giua-registro/backend/pkg/errors"
)

// ── Mock PhaseDefinitionRepository ──

type mockPhaseDefinitionRepo struct {
	defs map[string]*model.PhaseDefinition // period_type → def
}

func newMockPhaseDefinitionRepo() *mockPhaseDefinitionRepo {
	return &mockPhaseDefinitionRepo{defs: make(map[string]*model.PhaseDefinition)}
}

func (m *mockPhaseDefinitionRepo) GetByPeriod(_ context.Context, periodType string) (*model.PhaseDefinition, error) {
	if d, ok := m.defs[periodType]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPhaseDefinitionRepo) List(_ context.Context) ([]model.PhaseDefinition, error) {
	var result []model.PhaseDefinition
	for _, d := range m.defs {
		result = append(result, *d)
	}
	return result, nil
}

func (m *mockPhaseDefinitionRepo) Create(_ context.Context, def *model.PhaseDefinition) error {
	if def.DefinitionID == "" {
		def.DefinitionID = "def-" + def.PeriodType
	}
	m.defs[def.PeriodType] = def
	return nil
}

func (m *mockPhaseDefinitionRepo) Update(_ context.Context, def *model.PhaseDefinition) error {
	m.defs[def.PeriodType] = def
	return nil
}

// ── Mock ScrutinioRepository ──

type mockScrutinioRepo struct {
	sessions map[string]*model.ScrutinioSession // class:period → session
	// conflictOnce 模拟一次乐观锁冲突
	conflictOnce bool
}

func newMockScrutinioRepo() *mockScrutinioRepo {
	return &mockScrutinioRepo{sessions: make(map[string]*model.ScrutinioSession)}
}

func sessionKey(classID, periodType string) string {
	return classID + ":" + periodType
}

func (m *mockScrutinioRepo) GetByClassPeriod(_ context.Context, classID, periodType string) (*model.ScrutinioSession, error) {
	if s, ok := m.sessions[sessionKey(classID, periodType)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScrutinioRepo) Create(_ context.Context, session *model.ScrutinioSession) error {
	if session.SessionID == "" {
		session.SessionID = "sess-" + session.ClassID + "-" + session.PeriodType
	}
	cp := *session
	m.sessions[sessionKey(session.ClassID, session.PeriodType)] = &cp
	return nil
}

func (m *mockScrutinioRepo) UpdateWithVersion(_ context.Context, session *model.ScrutinioSession) error {
	if m.conflictOnce {
		m.conflictOnce = false
		return pkgerrors.ErrOptimisticLock
	}
	stored, ok := m.sessions[sessionKey(session.ClassID, session.PeriodType)]
	if !ok || stored.Version != session.Version {
		return pkgerrors.ErrOptimisticLock
	}
	session.Version++
	cp := *session
	m.sessions[sessionKey(session.ClassID, session.PeriodType)] = &cp
	return nil
}

func (m *mockScrutinioRepo) AnyActiveForPeriod(_ context.Context, periodType string) (bool, error) {
	for _, s := range m.sessions {
		if s.PeriodType == periodType &&
			(s.State == model.SessionInProgress || s.State == model.SessionReopened) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockScrutinioRepo) ListByPeriod(_ context.Context, periodType string) ([]model.ScrutinioSession, error) {
	var result []model.ScrutinioSession
	for _, s := range m.sessions {
		if s.PeriodType == periodType {
			result = append(result, *s)
		}
	}
	return result, nil
}

// ── Mock GradeRepository ──

type mockGradeRepo struct {
	proposals map[string]*model.GradeProposal // subject:student:period:teacher
	grades    map[string]*model.GradeRecord
	// students 班级学生 ID（CountGradesMissing 用）
	students []string
	nextID   int
}

func newMockGradeRepo() *mockGradeRepo {
	return &mockGradeRepo{
		proposals: make(map[string]*model.GradeProposal),
		grades:    make(map[string]*model.GradeRecord),
	}
}

func (m *mockGradeRepo) UpsertProposal(_ context.Context, p *model.GradeProposal) error {
	key := p.SubjectID + ":" + p.StudentID + ":" + p.PeriodType + ":" + p.TeacherID
	if existing, ok := m.proposals[key]; ok {
		p.ProposalID = existing.ProposalID
	} else if p.ProposalID == "" {
		m.nextID++
		p.ProposalID = fmt.Sprintf("prop-%d", m.nextID)
	}
	cp := *p
	m.proposals[key] = &cp
	return nil
}

func (m *mockGradeRepo) ListProposals(_ context.Context, classID, periodType string) ([]model.GradeProposal, error) {
	var result []model.GradeProposal
	for _, p := range m.proposals {
		if p.ClassID == classID && p.PeriodType == periodType {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (m *mockGradeRepo) ListProposalSubjectIDs(_ context.Context, classID, periodType string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	for _, p := range m.proposals {
		if p.ClassID == classID && p.PeriodType == periodType && !seen[p.SubjectID] {
			seen[p.SubjectID] = true
			result = append(result, p.SubjectID)
		}
	}
	return result, nil
}

func (m *mockGradeRepo) GetGrade(_ context.Context, gradeID string) (*model.GradeRecord, error) {
	if g, ok := m.grades[gradeID]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockGradeRepo) ListGrades(_ context.Context, classID, periodType string) ([]model.GradeRecord, error) {
	var result []model.GradeRecord
	for _, g := range m.grades {
		if g.ClassID == classID && g.PeriodType == periodType {
			result = append(result, *g)
		}
	}
	return result, nil
}

func (m *mockGradeRepo) CreateGrade(_ context.Context, g *model.GradeRecord) error {
	if g.GradeID == "" {
		m.nextID++
		g.GradeID = fmt.Sprintf("grade-%d", m.nextID)
	}
	cp := *g
	m.grades[g.GradeID] = &cp
	return nil
}

func (m *mockGradeRepo) UpdateGrade(_ context.Context, g *model.GradeRecord) error {
	cp := *g
	m.grades[g.GradeID] = &cp
	return nil
}

func (m *mockGradeRepo) DeleteGrade(_ context.Context, gradeID string) error {
	delete(m.grades, gradeID)
	return nil
}

func (m *mockGradeRepo) CountGradesMissing(_ context.Context, classID, periodType string, subjectIDs []string) (int64, error) {
	var count int64
	for _, subjectID := range subjectIDs {
		for _, studentID := range m.students {
			found := false
			for _, g := range m.grades {
				if g.ClassID == classID && g.PeriodType == periodType &&
					g.SubjectID == subjectID && g.StudentID == studentID {
					found = true
					break
				}
			}
			if !found {
				count++
			}
		}
	}
	return count, nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	lessons    map[string]*model.Lesson
	records    map[string]*model.AttendanceRecord
	aggregates map[string][]model.AttendanceAggregate // lesson_id → rows
	// studentClass 学生 → 班级（ListRecordsByClassDate 过滤用）
	studentClass map[string]string
	nextID       int
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{
		lessons:      make(map[string]*model.Lesson),
		records:      make(map[string]*model.AttendanceRecord),
		aggregates:   make(map[string][]model.AttendanceAggregate),
		studentClass: make(map[string]string),
	}
}

func (m *mockAttendanceRepo) GetRecord(_ context.Context, recordID string) (*model.AttendanceRecord, error) {
	if r, ok := m.records[recordID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) CreateRecord(_ context.Context, r *model.AttendanceRecord) error {
	if r.RecordID == "" {
		m.nextID++
		r.RecordID = fmt.Sprintf("rec-%d", m.nextID)
	}
	cp := *r
	m.records[r.RecordID] = &cp
	return nil
}

func (m *mockAttendanceRepo) DeleteRecord(_ context.Context, recordID string) error {
	delete(m.records, recordID)
	return nil
}

func (m *mockAttendanceRepo) ListRecordsByClassDate(_ context.Context, classID string, date time.Time) ([]model.AttendanceRecord, error) {
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if r.Date.Equal(date) && m.studentClass[r.StudentID] == classID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockAttendanceRepo) GetLesson(_ context.Context, lessonID string) (*model.Lesson, error) {
	if l, ok := m.lessons[lessonID]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) ListLessonsInRange(_ context.Context, start, end time.Time, classID string) ([]model.Lesson, error) {
	var result []model.Lesson
	for _, l := range m.lessons {
		if l.Date.Before(start) || l.Date.After(end) {
			continue
		}
		if classID != "" && l.ClassID != classID {
			continue
		}
		result = append(result, *l)
	}
	// 按日期+节次排序（与 SQL ORDER BY 一致）
	for i := 0; i < len(result); i++ {
		for j := i + 1; j < len(result); j++ {
			if result[j].Date.Before(result[i].Date) ||
				(result[j].Date.Equal(result[i].Date) && result[j].Hour < result[i].Hour) {
				result[i], result[j] = result[j], result[i]
			}
		}
	}
	return result, nil
}

func (m *mockAttendanceRepo) ListLessonsByClassDate(_ context.Context, classID string, date time.Time) ([]model.Lesson, error) {
	var result []model.Lesson
	for _, l := range m.lessons {
		if l.ClassID == classID && l.Date.Equal(date) {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (m *mockAttendanceRepo) ReplaceLessonAggregates(_ context.Context, lessonID string, rows []model.AttendanceAggregate) error {
	cp := make([]model.AttendanceAggregate, len(rows))
	copy(cp, rows)
	m.aggregates[lessonID] = cp
	return nil
}

func (m *mockAttendanceRepo) ListAggregatesByLesson(_ context.Context, lessonID string) ([]model.AttendanceAggregate, error) {
	rows := m.aggregates[lessonID]
	cp := make([]model.AttendanceAggregate, len(rows))
	copy(cp, rows)
	return cp, nil
}

func (m *mockAttendanceRepo) SumByStudentSubject(_ context.Context, classID string, start, end time.Time) ([]repository.SubjectHours, error) {
	sums := make(map[string]*repository.SubjectHours)
	for lessonID, rows := range m.aggregates {
		lesson, ok := m.lessons[lessonID]
		if !ok || lesson.ClassID != classID || lesson.Date.Before(start) || lesson.Date.After(end) {
			continue
		}
		for _, row := range rows {
			key := row.StudentID + ":" + lesson.SubjectID
			if s, ok := sums[key]; ok {
				s.Hours += row.Hours
			} else {
				sums[key] = &repository.SubjectHours{
					StudentID: row.StudentID,
					SubjectID: lesson.SubjectID,
					Hours:     row.Hours,
				}
			}
		}
	}
	var result []repository.SubjectHours
	for _, s := range sums {
		result = append(result, *s)
	}
	return result, nil
}

// ── Mock HolidayRepository ──

type mockHolidayRepo struct {
	holidays []model.Holiday
	nextID   int
}

func newMockHolidayRepo() *mockHolidayRepo {
	return &mockHolidayRepo{}
}

func (m *mockHolidayRepo) matches(h *model.Holiday, siteID string, date time.Time) bool {
	if !h.Date.Equal(date) {
		return false
	}
	if h.SiteID == nil {
		return true
	}
	return siteID != "" && *h.SiteID == siteID
}

func (m *mockHolidayRepo) FindByDate(_ context.Context, siteID string, date time.Time) (*model.Holiday, error) {
	for i := range m.holidays {
		if m.matches(&m.holidays[i], siteID, date) {
			cp := m.holidays[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockHolidayRepo) ListBetween(_ context.Context, siteID string, start, end time.Time) ([]model.Holiday, error) {
	var result []model.Holiday
	for i := range m.holidays {
		h := &m.holidays[i]
		if h.Date.Before(start) || h.Date.After(end) {
			continue
		}
		if h.SiteID != nil && (siteID == "" || *h.SiteID != siteID) {
			continue
		}
		result = append(result, *h)
	}
	return result, nil
}

func (m *mockHolidayRepo) Create(_ context.Context, h *model.Holiday) error {
	if h.HolidayID == "" {
		m.nextID++
		h.HolidayID = fmt.Sprintf("hol-%d", m.nextID)
	}
	m.holidays = append(m.holidays, *h)
	return nil
}

func (m *mockHolidayRepo) ExistsOn(_ context.Context, siteID string, date time.Time) (bool, error) {
	for i := range m.holidays {
		if m.matches(&m.holidays[i], siteID, date) {
			return true, nil
		}
	}
	return false, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	assignments map[string]*model.TeachingAssignment
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[string]*model.TeachingAssignment)}
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, assignmentID string) (*model.TeachingAssignment, error) {
	if a, ok := m.assignments[assignmentID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAssignmentRepo) ListByTeacher(_ context.Context, teacherID string) ([]model.TeachingAssignment, error) {
	var result []model.TeachingAssignment
	for _, a := range m.assignments {
		if a.TeacherID == teacherID && a.Active {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) ListByClass(_ context.Context, classID string) ([]model.TeachingAssignment, error) {
	var result []model.TeachingAssignment
	for _, a := range m.assignments {
		if a.ClassID == classID && a.Active {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) ListClassSubjectIDs(_ context.Context, classID string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string
	for _, a := range m.assignments {
		if a.ClassID == classID && a.Active && a.Type == model.AssignmentNormal && !seen[a.SubjectID] {
			seen[a.SubjectID] = true
			result = append(result, a.SubjectID)
		}
	}
	return result, nil
}

// ── Mock ClassRepository / StudentRepository / SubjectRepository ──

type mockClassRepo struct {
	classes map[string]*model.Class
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{classes: make(map[string]*model.Class)}
}

func (m *mockClassRepo) GetByID(_ context.Context, classID string) (*model.Class, error) {
	if c, ok := m.classes[classID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockStudentRepo struct {
	students map[string]*model.Student
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student)}
}

func (m *mockStudentRepo) GetByID(_ context.Context, studentID string) (*model.Student, error) {
	if s, ok := m.students[studentID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudentRepo) ListByClass(_ context.Context, classID string) ([]model.Student, error) {
	var result []model.Student
	for _, s := range m.students {
		if s.ClassID == classID {
			result = append(result, *s)
		}
	}
	return result, nil
}

type mockSubjectRepo struct {
	subjects map[string]*model.Subject
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: make(map[string]*model.Subject)}
}

func (m *mockSubjectRepo) ListByIDs(_ context.Context, subjectIDs []string) ([]model.Subject, error) {
	var result []model.Subject
	for _, id := range subjectIDs {
		if s, ok := m.subjects[id]; ok {
			result = append(result, *s)
		}
	}
	return result, nil
}

// ── Mock NoteRepository / AuditRepository ──

type mockNoteRepo struct {
	notes        map[string]*model.DisciplinaryNote
	remarks      map[string]*model.BoardRemark
	observations map[string]*model.SupportObservation
}

func newMockNoteRepo() *mockNoteRepo {
	return &mockNoteRepo{
		notes:        make(map[string]*model.DisciplinaryNote),
		remarks:      make(map[string]*model.BoardRemark),
		observations: make(map[string]*model.SupportObservation),
	}
}

func (m *mockNoteRepo) GetNote(_ context.Context, noteID string) (*model.DisciplinaryNote, error) {
	if n, ok := m.notes[noteID]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNoteRepo) GetRemark(_ context.Context, remarkID string) (*model.BoardRemark, error) {
	if r, ok := m.remarks[remarkID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockNoteRepo) GetObservation(_ context.Context, observationID string) (*model.SupportObservation, error) {
	if o, ok := m.observations[observationID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type mockAuditRepo struct {
	entries []model.AuditLog
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(_ context.Context, entry *model.AuditLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

// ── 测试用 Repository 聚合 ──

type testRepos struct {
	definition *mockPhaseDefinitionRepo
	scrutinio  *mockScrutinioRepo
	grade      *mockGradeRepo
	attendance *mockAttendanceRepo
	holiday    *mockHolidayRepo
	assignment *mockAssignmentRepo
	class      *mockClassRepo
	student    *mockStudentRepo
	subject    *mockSubjectRepo
	note       *mockNoteRepo
	audit      *mockAuditRepo
}

func newTestRepos() (*repository.Repository, *testRepos) {
	mocks := &testRepos{
		definition: newMockPhaseDefinitionRepo(),
		scrutinio:  newMockScrutinioRepo(),
		grade:      newMockGradeRepo(),
		attendance: newMockAttendanceRepo(),
		holiday:    newMockHolidayRepo(),
		assignment: newMockAssignmentRepo(),
		class:      newMockClassRepo(),
		student:    newMockStudentRepo(),
		subject:    newMockSubjectRepo(),
		note:       newMockNoteRepo(),
		audit:      newMockAuditRepo(),
	}
	repo := &repository.Repository{
		PhaseDefinition: mocks.definition,
		Scrutinio:       mocks.scrutinio,
		Grade:           mocks.grade,
		Attendance:      mocks.attendance,
		Holiday:         mocks.holiday,
		Assignment:      mocks.assignment,
		Class:           mocks.class,
		Student:         mocks.student,
		Subject:         mocks.subject,
		Note:            mocks.note,
		Audit:           mocks.audit,
	}
	return repo, mocks
}
