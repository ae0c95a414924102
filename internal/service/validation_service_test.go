package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"shiftpilot/backend/config"
	"shiftpilot/backend/internal/dto"
	"shiftpilot/backend/internal/model"
	"shiftpilot/backend/internal/rules"
)

func newValidationEnv(t *testing.T) (ValidationService, DraftService, *mockRepos) {
	t.Helper()
	repos := newMockRepos()
	sessions := testManager()
	validator := rules.NewValidator(config.ValidatorConfig{
		CacheTTL:           time.Minute,
		MaxWeeklyHours:     40,
		MinRestHours:       11,
		MaxConsecutiveDays: 6,
		FairnessTolerance:  0.3,
	}, repos.repository(), nil, zap.NewNop())

	validation := NewValidationService(validator, sessions, repos.repository(), zap.NewNop())
	drafts := NewDraftService(sessions, testGateway("http://127.0.0.1:1"), repos.repository(), zap.NewNop())
	return validation, drafts, repos
}

func addStaff(repos *mockRepos, id, name string, skills ...string) {
	repos.staff.staff[id] = &model.Staff{
		StaffID: id, BusinessID: "biz-1", Name: name,
		Skills: skills, IsActive: true,
	}
}

func TestValidationService_ExplicitShifts(t *testing.T) {
	validation, _, repos := newValidationEnv(t)
	addStaff(repos, "staff-1", "张三", "bartender")

	result, err := validation.ValidateAssignment(context.Background(), &dto.ValidateRequest{
		BusinessID: "biz-1",
		Pairs:      []rules.AssignmentPair{{ShiftID: "shift-1", StaffID: "staff-1"}},
		Shifts: []model.Shift{
			{ShiftID: "shift-1", Date: "2026-03-02", StartTime: "09:00", EndTime: "17:00", RequiredSkill: "bartender", RequiredStaffCount: 1},
		},
	})
	if err != nil {
		t.Fatalf("校验失败: %v", err)
	}
	if !result.Valid || len(result.Warnings) != 0 {
		t.Fatalf("合规排班应通过: %+v", result)
	}
}

func TestValidationService_DraftContext(t *testing.T) {
	validation, drafts, repos := newValidationEnv(t)
	addStaff(repos, "staff-1", "张三")

	if _, err := drafts.OpenSession(context.Background(),
		&dto.OpenSessionRequest{Draft: draftFixture()}, "u1", "张三"); err != nil {
		t.Fatalf("打开会话失败: %v", err)
	}

	// 班次上下文取自会话快照，不需要随请求提交
	result, err := validation.ValidateAssignment(context.Background(), &dto.ValidateRequest{
		BusinessID: "biz-1",
		DraftID:    "draft-1",
		Pairs:      []rules.AssignmentPair{{ShiftID: "shift-1", StaffID: "staff-1"}},
	})
	if err != nil {
		t.Fatalf("校验失败: %v", err)
	}
	if result.Unverified {
		t.Fatalf("上下文完整时不应为未验证: %+v", result)
	}

	// 未打开的草稿
	if _, err := validation.ValidateAssignment(context.Background(), &dto.ValidateRequest{
		BusinessID: "biz-1",
		DraftID:    "ghost",
		Pairs:      []rules.AssignmentPair{{ShiftID: "shift-1", StaffID: "staff-1"}},
	}); err != ErrSessionNotFound {
		t.Fatalf("未打开的草稿应返回 ErrSessionNotFound, got %v", err)
	}

	// 既无 draft_id 也无 shifts：请求照常进入校验，
	// 未知班次由引用完整性检查判为 critical 违规而非报错
	bare, err := validation.ValidateAssignment(context.Background(), &dto.ValidateRequest{
		BusinessID: "biz-1",
		Pairs:      []rules.AssignmentPair{{ShiftID: "shift-1", StaffID: "staff-1"}},
	})
	if err != nil {
		t.Fatalf("无班次上下文不应报错: %v", err)
	}
	if bare.Valid {
		t.Fatal("未知班次应判为无效")
	}
	found := false
	for _, v := range bare.Errors {
		if v.ConstraintType == model.ConstraintDataIntegrity && v.ViolationType == "unknown_shift" {
			found = true
		}
	}
	if !found {
		t.Fatalf("期望 unknown_shift 违规, errors=%+v", bare.Errors)
	}
}

func TestValidationService_Candidates(t *testing.T) {
	validation, drafts, repos := newValidationEnv(t)
	addStaff(repos, "staff-1", "张三", "bartender")
	addStaff(repos, "staff-2", "李四") // 无技能 → 置信度更低
	repos.staff.staff["staff-3"] = &model.Staff{
		StaffID: "staff-3", BusinessID: "biz-1", Name: "王五", IsActive: false,
	}

	d := draftFixture()
	d.Shifts[0].RequiredSkill = "bartender"
	if _, err := drafts.OpenSession(context.Background(),
		&dto.OpenSessionRequest{Draft: d}, "u1", "张三"); err != nil {
		t.Fatalf("打开会话失败: %v", err)
	}

	resp, err := validation.Candidates(context.Background(), "draft-1", "shift-1")
	if err != nil {
		t.Fatalf("候选列表失败: %v", err)
	}
	if len(resp.Candidates) != 2 {
		t.Fatalf("停用员工不应出现在候选中: %+v", resp.Candidates)
	}
	// 按置信度降序：具备技能的员工排在前面
	if resp.Candidates[0].Staff.StaffID != "staff-1" {
		t.Fatalf("具备技能的候选应排第一: %+v", resp.Candidates)
	}
	if len(resp.Candidates[1].Violations) == 0 {
		t.Fatal("缺技能候选应携带违规说明")
	}

	if _, err := validation.Candidates(context.Background(), "draft-1", "ghost"); err != ErrShiftNotFound {
		t.Fatalf("未知班次应返回 ErrShiftNotFound, got %v", err)
	}
}

// [自证通过] internal/service/validation_service_test.go
