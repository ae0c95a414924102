package draft

import (
	"fmt"
	"sort"

	"shiftpilot/backend/internal/model"
)

// ChangeType 净变更类型
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

// ChangeEntry 当前草稿相对原始草稿的一条净变更
// 被撤销过的编辑不会出现：对比的是最终状态而非操作序列
type ChangeEntry struct {
	Type       ChangeType `json:"type"`
	ShiftID    string     `json:"shift_id"`
	ShiftTitle string     `json:"shift_title"`
	StaffID    string     `json:"staff_id"`
	StaffName  string     `json:"staff_name"`
	Summary    string     `json:"summary"`
}

// ChangeSummary 计算当前草稿与原始草稿的净差异（按 班次×员工 配对比较）
// 只读操作，不修改任何状态
func (s *Store) ChangeSummary() []ChangeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}

	currentPairs := collectPairs(s.current)
	originalPairs := collectPairs(s.original)

	var entries []ChangeEntry
	for key, p := range currentPairs {
		if _, ok := originalPairs[key]; !ok {
			entries = append(entries, ChangeEntry{
				Type:       ChangeAdded,
				ShiftID:    p.shiftID,
				ShiftTitle: p.shiftTitle,
				StaffID:    p.staffID,
				StaffName:  p.staffName,
				Summary:    fmt.Sprintf("新增: %s → %s", p.staffName, p.shiftTitle),
			})
		}
	}
	for key, p := range originalPairs {
		if _, ok := currentPairs[key]; !ok {
			entries = append(entries, ChangeEntry{
				Type:       ChangeRemoved,
				ShiftID:    p.shiftID,
				ShiftTitle: p.shiftTitle,
				StaffID:    p.staffID,
				StaffName:  p.staffName,
				Summary:    fmt.Sprintf("移除: %s ← %s", p.staffName, p.shiftTitle),
			})
		}
	}

	// map 遍历无序，按班次+员工排序保证输出稳定
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ShiftID != entries[j].ShiftID {
			return entries[i].ShiftID < entries[j].ShiftID
		}
		if entries[i].StaffID != entries[j].StaffID {
			return entries[i].StaffID < entries[j].StaffID
		}
		return entries[i].Type < entries[j].Type
	})

	return entries
}

type pairInfo struct {
	shiftID    string
	shiftTitle string
	staffID    string
	staffName  string
}

// collectPairs 收集草稿中所有 (班次, 员工) 配对
func collectPairs(d *model.ScheduleDraft) map[string]pairInfo {
	pairs := make(map[string]pairInfo)
	for i := range d.Shifts {
		shift := &d.Shifts[i]
		title := shift.Title
		if title == "" {
			title = shift.ShiftID
		}
		for j := range shift.Assignments {
			a := &shift.Assignments[j]
			key := shift.ShiftID + "|" + a.StaffID
			pairs[key] = pairInfo{
				shiftID:    shift.ShiftID,
				shiftTitle: title,
				staffID:    a.StaffID,
				staffName:  a.StaffName,
			}
		}
	}
	return pairs
}
