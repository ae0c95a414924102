package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shiftpilot/backend/internal/model"
	"shiftpilot/backend/internal/repository"
)

// ── Mock StaffRepository ──

type mockStaffRepo struct {
	staff map[string]*model.Staff
}

func newMockStaffRepo() *mockStaffRepo {
	return &mockStaffRepo{staff: make(map[string]*model.Staff)}
}

func (m *mockStaffRepo) Create(_ context.Context, staff *model.Staff) error {
	if staff.StaffID == "" {
		staff.StaffID = fmt.Sprintf("staff-%d", len(m.staff)+1)
	}
	m.staff[staff.StaffID] = staff
	return nil
}

func (m *mockStaffRepo) GetByID(_ context.Context, id string) (*model.Staff, error) {
	if s, ok := m.staff[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStaffRepo) ListByBusiness(_ context.Context, businessID string) ([]model.Staff, error) {
	var out []model.Staff
	for _, s := range m.staff {
		if s.BusinessID == businessID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStaffRepo) ListByIDs(_ context.Context, ids []string) ([]model.Staff, error) {
	var out []model.Staff
	for _, id := range ids {
		if s, ok := m.staff[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockStaffRepo) Update(_ context.Context, staff *model.Staff) error {
	m.staff[staff.StaffID] = staff
	return nil
}

// ── Mock ConstraintRuleRepository ──

type mockRuleRepo struct {
	rules []model.ConstraintRule
}

func (m *mockRuleRepo) ListByBusiness(_ context.Context, _ string) ([]model.ConstraintRule, error) {
	return m.rules, nil
}

func (m *mockRuleRepo) GetByType(_ context.Context, _ string, ct model.ConstraintType) (*model.ConstraintRule, error) {
	for i := range m.rules {
		if m.rules[i].ConstraintType == ct {
			return &m.rules[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRuleRepo) Upsert(_ context.Context, rule *model.ConstraintRule) error {
	for i := range m.rules {
		if m.rules[i].ConstraintType == rule.ConstraintType {
			m.rules[i] = *rule
			return nil
		}
	}
	m.rules = append(m.rules, *rule)
	return nil
}

// ── Mock UnavailabilityRepository ──

type mockUnavailabilityRepo struct {
	items []model.StaffUnavailability
}

func (m *mockUnavailabilityRepo) Create(_ context.Context, u *model.StaffUnavailability) error {
	m.items = append(m.items, *u)
	return nil
}

func (m *mockUnavailabilityRepo) ListByStaffBetween(_ context.Context, staffID string, from, to time.Time) ([]model.StaffUnavailability, error) {
	var out []model.StaffUnavailability
	for _, u := range m.items {
		if u.StaffID == staffID && u.StartAt.Before(to) && u.EndAt.After(from) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUnavailabilityRepo) ListByStaffIDsBetween(_ context.Context, staffIDs []string, from, to time.Time) ([]model.StaffUnavailability, error) {
	idSet := make(map[string]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		idSet[id] = struct{}{}
	}
	var out []model.StaffUnavailability
	for _, u := range m.items {
		if _, ok := idSet[u.StaffID]; ok && u.StartAt.Before(to) && u.EndAt.After(from) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUnavailabilityRepo) ReplaceImported(_ context.Context, staffID string, items []model.StaffUnavailability) error {
	kept := m.items[:0]
	for _, u := range m.items {
		if !(u.StaffID == staffID && u.Source == "ics_import") {
			kept = append(kept, u)
		}
	}
	m.items = append(kept, items...)
	return nil
}

func (m *mockUnavailabilityRepo) Delete(_ context.Context, id string) error {
	for i, u := range m.items {
		if u.UnavailabilityID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// ── Mock AssignmentRecordRepository ──

type mockAssignmentRecordRepo struct {
	records []model.AssignmentRecord
}

func (m *mockAssignmentRecordRepo) BatchCreate(_ context.Context, records []model.AssignmentRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func (m *mockAssignmentRecordRepo) ListByStaffBetween(_ context.Context, _ string, staffIDs []string, fromDate, toDate string) ([]model.AssignmentRecord, error) {
	idSet := make(map[string]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		idSet[id] = struct{}{}
	}
	var out []model.AssignmentRecord
	for _, r := range m.records {
		if _, ok := idSet[r.StaffID]; ok && r.ShiftDate >= fromDate && r.ShiftDate <= toDate {
			out = append(out, r)
		}
	}
	return out, nil
}

// ── Mock EditSessionRepository ──

type mockEditSessionRepo struct {
	sessions map[string]*model.EditSessionRecord
	closed   []string
}

func newMockEditSessionRepo() *mockEditSessionRepo {
	return &mockEditSessionRepo{sessions: make(map[string]*model.EditSessionRecord)}
}

func (m *mockEditSessionRepo) Create(_ context.Context, session *model.EditSessionRecord) error {
	m.sessions[session.SessionID] = session
	return nil
}

func (m *mockEditSessionRepo) Close(_ context.Context, sessionID string) error {
	session, ok := m.sessions[sessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	session.Status = model.EditSessionClosed
	session.ClosedAt = &now
	m.closed = append(m.closed, sessionID)
	return nil
}

func (m *mockEditSessionRepo) ListByDraft(_ context.Context, draftID string) ([]model.EditSessionRecord, error) {
	var out []model.EditSessionRecord
	for _, s := range m.sessions {
		if s.DraftID == draftID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// ── Mock DraftChangeLogRepository ──

type mockChangeLogRepo struct {
	logs []model.DraftChangeLog
}

func (m *mockChangeLogRepo) BatchCreate(_ context.Context, logs []model.DraftChangeLog) error {
	m.logs = append(m.logs, logs...)
	return nil
}

func (m *mockChangeLogRepo) ListByDraft(_ context.Context, draftID string) ([]model.DraftChangeLog, error) {
	var out []model.DraftChangeLog
	for _, l := range m.logs {
		if l.DraftID == draftID {
			out = append(out, l)
		}
	}
	return out, nil
}

// ── 组装 ──

type mockRepos struct {
	staff        *mockStaffRepo
	rules        *mockRuleRepo
	unavails     *mockUnavailabilityRepo
	records      *mockAssignmentRecordRepo
	editSessions *mockEditSessionRepo
	changeLogs   *mockChangeLogRepo
}

func newMockRepos() *mockRepos {
	return &mockRepos{
		staff:        newMockStaffRepo(),
		rules:        &mockRuleRepo{},
		unavails:     &mockUnavailabilityRepo{},
		records:      &mockAssignmentRecordRepo{},
		editSessions: newMockEditSessionRepo(),
		changeLogs:   &mockChangeLogRepo{},
	}
}

func (m *mockRepos) repository() *repository.Repository {
	return &repository.Repository{
		Staff:            m.staff,
		ConstraintRule:   m.rules,
		Unavailability:   m.unavails,
		AssignmentRecord: m.records,
		EditSession:      m.editSessions,
		DraftChangeLog:   m.changeLogs,
	}
}

// [自证通过] internal/service/mock_repos_test.go
