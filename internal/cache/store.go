package cache

import (
	"sync"
	"time"

	"github.com/any-hub/update-hub/internal/release"
)

// Snapshot 是一次成功拉取的发布列表及其时间戳，只能整体替换。
type Snapshot struct {
	Releases  []release.Release
	FetchedAt time.Time
}

// ValidAt 判断快照在 now 时刻是否仍处于新鲜窗口内（now - FetchedAt < ttl）。
func (s Snapshot) ValidAt(now time.Time, ttl time.Duration) bool {
	if s.FetchedAt.IsZero() || ttl <= 0 {
		return false
	}
	return now.Sub(s.FetchedAt) < ttl
}

// Store 以单把读写锁保护 (releases, fetchedAt) 二元组，整站复用一份实例。
type Store struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	now      func() time.Time
}

// NewStore 构建空缓存，默认使用 time.Now 作为时钟。
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock 允许测试注入时钟以模拟过期。
func NewStoreWithClock(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{now: now}
}

// Get 返回当前快照，不论是否过期；进程启动后尚未成功拉取时返回 false。
func (s *Store) Get() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return Snapshot{}, false
	}
	return *s.snapshot, true
}

// Fresh 仅在快照仍处于 ttl 窗口内时返回。
func (s *Store) Fresh(ttl time.Duration) (Snapshot, bool) {
	snap, ok := s.Get()
	if !ok || !snap.ValidAt(s.now(), ttl) {
		return Snapshot{}, false
	}
	return snap, true
}

// Put 用新的发布列表整体替换快照并打上当前时间戳。
func (s *Store) Put(releases []release.Release) Snapshot {
	copied := make([]release.Release, len(releases))
	copy(copied, releases)
	snap := &Snapshot{
		Releases:  copied,
		FetchedAt: s.now(),
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return *snap
}
