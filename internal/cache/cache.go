package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LJTian/NewsHub/internal/collector"
)

// DefaultTTL 外部接口响应的缓存有效期
const DefaultTTL = 15 * time.Minute

// Key 由数据源、分类与请求条数组成
type Key struct {
	Provider string
	Category collector.Category
	Limit    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%s_%d", k.Provider, k.Category, k.Limit)
}

// Cache 数据源响应的读穿缓存；过期条目只在读取时判定，不做后台淘汰
type Cache interface {
	Get(ctx context.Context, key Key) ([]collector.NewsItem, bool)
	Set(ctx context.Context, key Key, items []collector.NewsItem)
}

type entry struct {
	items    []collector.NewsItem
	storedAt time.Time
}

// Memory 进程内缓存，可并发读写
type Memory struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

// NewMemoryWithClock 供测试注入时钟
func NewMemoryWithClock(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   now,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]collector.NewsItem, bool) {
	m.mu.RLock()
	e, ok := m.items[key.String()]
	m.mu.RUnlock()
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return nil, false
	}
	return cloneItems(e.items), true
}

func (m *Memory) Set(_ context.Context, key Key, items []collector.NewsItem) {
	m.mu.Lock()
	m.items[key.String()] = entry{items: cloneItems(items), storedAt: m.now()}
	m.mu.Unlock()
}

// Size 当前条目数（含已过期未覆盖的）
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func cloneItems(items []collector.NewsItem) []collector.NewsItem {
	if items == nil {
		return nil
	}
	out := make([]collector.NewsItem, len(items))
	copy(out, items)
	return out
}
