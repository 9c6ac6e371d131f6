package service

import (
	"context"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"giua-registro/backend/internal/dto"
	"giua-registro/backend/internal/model"
)

func setupTestAggregateService() (AggregateService, *testRepos) {
	repo, mocks := newTestRepos()
	calendar := NewCalendarService(testSchoolConfig(), repo, nil, zap.NewNop())
	svc := NewAggregateService(repo, calendar, zap.NewNop())
	return svc, mocks
}

// seedLessonDay 2025-03-07 的两节课（各 1.0 课时）与四名学生的原始记录：
//
//	stu-1 整日缺勤
//	stu-2 迟到 08:40（第一节缺 40 分钟 → 0.5）
//	stu-3 早退 09:30（第二节缺 30 分钟 → 0.5）
//	stu-4 迟到 09:30 + 早退 08:30（两节均叠加超额，封顶 1.0）
func seedLessonDay(mocks *mockAttendanceRepo) {
	date := day("2025-03-07")
	mocks.lessons["les-1"] = &model.Lesson{
		LessonID: "les-1", ClassID: "class-1", SubjectID: "sub-mat", SiteID: "site-1",
		Date: date, Hour: 1, StartTime: "08:00", EndTime: "09:00", Duration: 1.0,
	}
	mocks.lessons["les-2"] = &model.Lesson{
		LessonID: "les-2", ClassID: "class-1", SubjectID: "sub-ita", SiteID: "site-1",
		Date: date, Hour: 2, StartTime: "09:00", EndTime: "10:00", Duration: 1.0,
	}

	for _, studentID := range []string{"stu-1", "stu-2", "stu-3", "stu-4"} {
		mocks.studentClass[studentID] = "class-1"
	}

	lateEntry := "08:40"
	earlyExit := "09:30"
	lateNoon := "09:30"
	earlyMorning := "08:30"
	mocks.records["rec-1"] = &model.AttendanceRecord{
		RecordID: "rec-1", StudentID: "stu-1", Date: date, Kind: model.AttendanceAbsence,
	}
	mocks.records["rec-2"] = &model.AttendanceRecord{
		RecordID: "rec-2", StudentID: "stu-2", Date: date,
		Kind: model.AttendanceLateEntry, Time: &lateEntry,
	}
	mocks.records["rec-3"] = &model.AttendanceRecord{
		RecordID: "rec-3", StudentID: "stu-3", Date: date,
		Kind: model.AttendanceEarlyExit, Time: &earlyExit,
	}
	mocks.records["rec-4"] = &model.AttendanceRecord{
		RecordID: "rec-4", StudentID: "stu-4", Date: date,
		Kind: model.AttendanceLateEntry, Time: &lateNoon,
	}
	mocks.records["rec-5"] = &model.AttendanceRecord{
		RecordID: "rec-5", StudentID: "stu-4", Date: date,
		Kind: model.AttendanceEarlyExit, Time: &earlyMorning,
	}
}

// hoursByStudent 聚合行转 map 便于断言
func hoursByStudent(rows []model.AttendanceAggregate) map[string]float64 {
	result := make(map[string]float64)
	for i := range rows {
		result[rows[i].StudentID] = rows[i].Hours
	}
	return result
}

// ── Recompute 测试 ──

func TestAggregateService_Recompute_Basic(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	seedLessonDay(mocks.attendance)

	req := &dto.RecomputeRequest{StartDate: "2025-03-01", EndDate: "2025-03-31"}
	resp, err := svc.Recompute(context.Background(), req)
	if err != nil {
		t.Fatalf("Recompute 应成功: %v", err)
	}
	if resp.Aborted {
		t.Fatal("未取消的重算不应标记 aborted")
	}
	if resp.LessonsProcessed != 2 {
		t.Errorf("期望处理 2 个课时，实际: %d", resp.LessonsProcessed)
	}

	// 第一节 08:00-09:00
	got := hoursByStudent(mocks.attendance.aggregates["les-1"])
	want := map[string]float64{
		"stu-1": 1.0, // 整日缺勤 → 全额
		"stu-2": 0.5, // 迟到 40 分钟，向下取整到 0.5
		"stu-4": 1.0, // 迟到(全额) + 早退(0.5) 封顶课时数
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("第一节聚合不符\n期望: %v\n实际: %v", want, got)
	}

	// 第二节 09:00-10:00
	got = hoursByStudent(mocks.attendance.aggregates["les-2"])
	want = map[string]float64{
		"stu-1": 1.0,
		"stu-3": 0.5, // 早退 30 分钟
		"stu-4": 1.0,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("第二节聚合不符\n期望: %v\n实际: %v", want, got)
	}
}

func TestAggregateService_Recompute_Idempotent(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	seedLessonDay(mocks.attendance)

	ctx := context.Background()
	req := &dto.RecomputeRequest{StartDate: "2025-03-01", EndDate: "2025-03-31"}
	if _, err := svc.Recompute(ctx, req); err != nil {
		t.Fatalf("第一次 Recompute 应成功: %v", err)
	}
	first := map[string]map[string]float64{
		"les-1": hoursByStudent(mocks.attendance.aggregates["les-1"]),
		"les-2": hoursByStudent(mocks.attendance.aggregates["les-2"]),
	}

	if _, err := svc.Recompute(ctx, req); err != nil {
		t.Fatalf("第二次 Recompute 应成功: %v", err)
	}
	second := map[string]map[string]float64{
		"les-1": hoursByStudent(mocks.attendance.aggregates["les-1"]),
		"les-2": hoursByStudent(mocks.attendance.aggregates["les-2"]),
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("同一输入重算结果应相同\n第一次: %v\n第二次: %v", first, second)
	}
}

func TestAggregateService_Recompute_RoundDownToZero(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	date := day("2025-03-07")
	mocks.attendance.lessons["les-1"] = &model.Lesson{
		LessonID: "les-1", ClassID: "class-1", SubjectID: "sub-mat", SiteID: "site-1",
		Date: date, Hour: 1, StartTime: "08:00", EndTime: "09:00", Duration: 1.0,
	}
	mocks.attendance.studentClass["stu-1"] = "class-1"
	// 迟到 20 分钟：0.33 课时向下取整到 0，不产生聚合行
	late := "08:20"
	mocks.attendance.records["rec-1"] = &model.AttendanceRecord{
		RecordID: "rec-1", StudentID: "stu-1", Date: date,
		Kind: model.AttendanceLateEntry, Time: &late,
	}

	req := &dto.RecomputeRequest{StartDate: "2025-03-07", EndDate: "2025-03-07"}
	if _, err := svc.Recompute(context.Background(), req); err != nil {
		t.Fatalf("Recompute 应成功: %v", err)
	}
	if rows := mocks.attendance.aggregates["les-1"]; len(rows) != 0 {
		t.Errorf("取整后为 0 的记录不应产生聚合行，实际: %v", rows)
	}
}

func TestAggregateService_Recompute_ClassFilter(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	seedLessonDay(mocks.attendance)

	req := &dto.RecomputeRequest{StartDate: "2025-03-01", EndDate: "2025-03-31", ClassID: "class-2"}
	resp, err := svc.Recompute(context.Background(), req)
	if err != nil {
		t.Fatalf("Recompute 应成功: %v", err)
	}
	if resp.LessonsProcessed != 0 {
		t.Errorf("其他班级过滤后不应处理课时，实际: %d", resp.LessonsProcessed)
	}
}

func TestAggregateService_Recompute_Cancelled(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	seedLessonDay(mocks.attendance)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := &dto.RecomputeRequest{StartDate: "2025-03-01", EndDate: "2025-03-31"}
	resp, err := svc.Recompute(ctx, req)
	if err != nil {
		t.Fatalf("取消不是错误，应返回部分结果: %v", err)
	}
	if !resp.Aborted {
		t.Fatal("期望 aborted 为 true")
	}
	if resp.LessonsProcessed != 0 {
		t.Errorf("取消前不应处理课时，实际: %d", resp.LessonsProcessed)
	}
	if resp.DirtyFrom == nil || *resp.DirtyFrom != "2025-03-07" {
		t.Errorf("期望 dirty_from 2025-03-07，实际: %v", resp.DirtyFrom)
	}
}

func TestAggregateService_Recompute_HolidayClearsAggregates(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	seedLessonDay(mocks.attendance)

	ctx := context.Background()
	req := &dto.RecomputeRequest{StartDate: "2025-03-01", EndDate: "2025-03-31"}
	if _, err := svc.Recompute(ctx, req); err != nil {
		t.Fatalf("Recompute 应成功: %v", err)
	}
	if len(mocks.attendance.aggregates["les-1"]) == 0 {
		t.Fatal("期望节假日登记前有聚合行")
	}

	// 事后补登全校节假日：重算后当日课时不再有期望出勤
	mocks.holiday.holidays = append(mocks.holiday.holidays, model.Holiday{
		HolidayID: "hol-1", Date: day("2025-03-07"), Description: "festa del patrono",
	})
	if _, err := svc.Recompute(ctx, req); err != nil {
		t.Fatalf("Recompute 应成功: %v", err)
	}
	if rows := mocks.attendance.aggregates["les-1"]; len(rows) != 0 {
		t.Errorf("节假日当天第一节聚合应清空，实际: %v", rows)
	}
	if rows := mocks.attendance.aggregates["les-2"]; len(rows) != 0 {
		t.Errorf("节假日当天第二节聚合应清空，实际: %v", rows)
	}
}

func TestAggregateService_Recompute_RangeInvalid(t *testing.T) {
	svc, _ := setupTestAggregateService()
	ctx := context.Background()

	_, err := svc.Recompute(ctx, &dto.RecomputeRequest{StartDate: "2025-03-31", EndDate: "2025-03-01"})
	if err != ErrAggregateRangeInvalid {
		t.Errorf("期望 ErrAggregateRangeInvalid，实际: %v", err)
	}

	_, err = svc.Recompute(ctx, &dto.RecomputeRequest{StartDate: "07/03/2025", EndDate: "2025-03-31"})
	if err != ErrAggregateDateInvalid {
		t.Errorf("期望 ErrAggregateDateInvalid，实际: %v", err)
	}
}

// ── RecalcClassDay 测试 ──

func TestAggregateService_RecalcClassDay(t *testing.T) {
	svc, mocks := setupTestAggregateService()
	seedLessonDay(mocks.attendance)

	ctx := context.Background()
	date := day("2025-03-07")
	if err := svc.RecalcClassDay(ctx, "class-1", date); err != nil {
		t.Fatalf("RecalcClassDay 应成功: %v", err)
	}
	if len(mocks.attendance.aggregates["les-1"]) == 0 {
		t.Fatal("期望第一节有聚合行")
	}

	// 删除整日缺勤记录后重建：该学生的聚合行应消失
	delete(mocks.attendance.records, "rec-1")
	if err := svc.RecalcClassDay(ctx, "class-1", date); err != nil {
		t.Fatalf("RecalcClassDay 应成功: %v", err)
	}
	got := hoursByStudent(mocks.attendance.aggregates["les-1"])
	if _, ok := got["stu-1"]; ok {
		t.Errorf("删除原始记录后聚合行应消失，实际: %v", got)
	}
}

// ── missedHours 折算测试 ──

func TestMissedHours_Proration(t *testing.T) {
	lesson := &model.Lesson{
		LessonID: "les-1", StartTime: "08:00", EndTime: "10:00", Duration: 2.0,
	}

	tests := []struct {
		name string
		kind string
		at   string
		want float64
	}{
		{"迟到半场", model.AttendanceLateEntry, "09:00", 1.0},
		{"迟到 45 分钟取整", model.AttendanceLateEntry, "08:45", 0.5}, // 0.75 → 0.5
		{"迟到课前", model.AttendanceLateEntry, "07:50", 0},
		{"迟到课后全额", model.AttendanceLateEntry, "10:30", 2.0},
		{"早退半场", model.AttendanceEarlyExit, "09:00", 1.0},
		{"早退课后", model.AttendanceEarlyExit, "10:00", 0},
		{"早退课前全额", model.AttendanceEarlyExit, "07:30", 2.0},
	}
	for _, tt := range tests {
		at := tt.at
		record := &model.AttendanceRecord{Kind: tt.kind, Time: &at}
		if got := missedHours(lesson, record); got != tt.want {
			t.Errorf("%s: 期望 %.1f，实际 %.1f", tt.name, tt.want, got)
		}
	}

	// 整日缺勤不看时刻
	absence := &model.AttendanceRecord{Kind: model.AttendanceAbsence}
	if got := missedHours(lesson, absence); got != 2.0 {
		t.Errorf("整日缺勤期望 2.0，实际 %.1f", got)
	}
}

// [自证通过] internal/service/aggregate_service_test.go
