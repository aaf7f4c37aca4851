package local

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"okey/core/domain/entity"
	"okey/core/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryRoomLocker_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	locker := NewMemoryRoomLocker().WithClock(clock.Now)
	ctx := context.Background()

	stale, ok, err := locker.TryAcquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = locker.TryAcquire(ctx, "r1", time.Second)
	assert.False(t, ok)

	clock.Advance(2 * time.Second)
	fresh, ok, err := locker.TryAcquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	require.True(t, ok, "expired lock can be taken over")
	assert.NotEqual(t, stale.Token(), fresh.Token())

	// 旧持有者释放不影响新锁
	assert.ErrorIs(t, stale.Release(ctx), repository.ErrLockNotHeld)
	_, ok, _ = locker.TryAcquire(ctx, "r1", time.Second)
	assert.False(t, ok)

	require.NoError(t, fresh.Release(ctx))
	assert.ErrorIs(t, fresh.Release(ctx), repository.ErrLockNotHeld)
}

func TestMemoryRoomLocker_MutualExclusion(t *testing.T) {
	locker := NewMemoryRoomLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := repository.AcquireRoomLock(ctx, locker, "r1", time.Second, time.Minute, time.Millisecond)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			assert.NoError(t, lock.Release(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}

func TestAcquireRoomLock_Busy(t *testing.T) {
	locker := NewMemoryRoomLocker()
	ctx := context.Background()

	_, ok, err := locker.TryAcquire(ctx, "r1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	_, err = repository.AcquireRoomLock(ctx, locker, "r1", 30*time.Millisecond, time.Minute, 5*time.Millisecond)
	assert.ErrorIs(t, err, repository.ErrRoomBusy)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = repository.AcquireRoomLock(cancelled, locker, "r1", time.Second, time.Minute, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRoomStateStore(t *testing.T) {
	store := NewMemoryRoomStateStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	state := entity.NewGameRoomState("r1", "table", time.Now())
	state.Players["p1"] = &entity.PlayerState{PlayerID: "p1", Hand: []int{1, 2, 3}}
	require.NoError(t, store.Save(ctx, state))

	// 保存后修改原对象不影响存储
	state.Players["p1"].Hand[0] = 99
	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got.Players["p1"].Hand)

	// 读到的副本修改也不影响存储
	got.Players["p1"].Hand = nil
	again, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, again.Players["p1"].Hand, 3)

	require.NoError(t, store.Save(ctx, entity.NewGameRoomState("r0", "first", time.Now())))
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r0", "r1"}, ids)

	require.NoError(t, store.Delete(ctx, "r1"))
	require.NoError(t, store.Delete(ctx, "r1"))
	exists, err := store.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, exists)
}
