package local

import (
	"context"
	"sync"
	"time"

	"okey/core/domain/repository"

	"github.com/google/uuid"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryRoomLocker 单进程房间锁，语义与 Redis 实现一致：
// 不存在或已过期才能获取，释放时校验令牌
type MemoryRoomLocker struct {
	locks map[string]lockEntry
	mu    sync.Mutex
	now   func() time.Time
}

func NewMemoryRoomLocker() *MemoryRoomLocker {
	return &MemoryRoomLocker{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// WithClock 替换时钟，测试过期用
func (l *MemoryRoomLocker) WithClock(now func() time.Time) *MemoryRoomLocker {
	l.now = now
	return l
}

func (l *MemoryRoomLocker) TryAcquire(_ context.Context, roomID string, ttl time.Duration) (repository.RoomLock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.locks[roomID]; ok && now.Before(entry.expiresAt) {
		return nil, false, nil
	}

	token := uuid.NewString()
	l.locks[roomID] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return &memoryRoomLock{locker: l, roomID: roomID, token: token}, true, nil
}

func (l *MemoryRoomLocker) release(roomID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[roomID]
	if !ok || entry.token != token {
		return repository.ErrLockNotHeld
	}
	delete(l.locks, roomID)
	return nil
}

type memoryRoomLock struct {
	locker *MemoryRoomLocker
	roomID string
	token  string
}

func (m *memoryRoomLock) Token() string {
	return m.token
}

func (m *memoryRoomLock) Release(_ context.Context) error {
	return m.locker.release(m.roomID, m.token)
}

var _ repository.RoomLocker = (*MemoryRoomLocker)(nil)
