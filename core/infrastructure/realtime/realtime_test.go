package realtime

import (
	"context"
	"testing"
	"time"

	"okey/common/database"
	"okey/core/domain/entity"
	"okey/core/domain/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *database.RedisManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	manager := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = manager.Close() })
	return mr, manager
}

func TestRedisRoomLocker(t *testing.T) {
	_, manager := newTestRedis(t)
	locker := NewRedisRoomLocker(manager)
	ctx := context.Background()

	lock, ok, err := locker.TryAcquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, lock.Token())

	_, ok, err = locker.TryAcquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	other, ok, err := locker.TryAcquire(ctx, "r2", time.Second)
	require.NoError(t, err)
	require.True(t, ok, "rooms are independent")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	assert.ErrorIs(t, lock.Release(ctx), repository.ErrLockNotHeld)

	_, ok, err = locker.TryAcquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRoomLocker_StaleTokenRelease(t *testing.T) {
	mr, manager := newTestRedis(t)
	locker := NewRedisRoomLocker(manager)
	ctx := context.Background()

	stale, ok, err := locker.TryAcquire(ctx, "r1", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// 锁过期后被他人获取，旧持有者的释放不能删掉新锁
	mr.FastForward(200 * time.Millisecond)
	fresh, ok, err := locker.TryAcquire(ctx, "r1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, stale.Release(ctx), repository.ErrLockNotHeld)
	got, err := mr.Get(roomLockKey + ":r1")
	require.NoError(t, err)
	assert.Equal(t, fresh.Token(), got)

	require.NoError(t, fresh.Release(ctx))
	assert.False(t, mr.Exists(roomLockKey+":r1"))
}

func TestRedisRoomLocker_WithAcquireRoomLock(t *testing.T) {
	_, manager := newTestRedis(t)
	locker := NewRedisRoomLocker(manager)
	ctx := context.Background()

	held, err := repository.AcquireRoomLock(ctx, locker, "r1", 50*time.Millisecond, time.Minute, 5*time.Millisecond)
	require.NoError(t, err)

	_, err = repository.AcquireRoomLock(ctx, locker, "r1", 30*time.Millisecond, time.Minute, 5*time.Millisecond)
	assert.ErrorIs(t, err, repository.ErrRoomBusy)

	require.NoError(t, held.Release(ctx))
	again, err := repository.AcquireRoomLock(ctx, locker, "r1", 30*time.Millisecond, time.Minute, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestRedisRoomStateStore(t *testing.T) {
	_, manager := newTestRedis(t)
	store := NewRedisRoomStateStore(manager)
	ctx := context.Background()

	_, err := store.Get(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	state := entity.NewGameRoomState("r1", "table", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	state.Players["p1"] = &entity.PlayerState{PlayerID: "p1", Position: entity.North, Hand: []int{1, 2, 104}}
	state.DiscardPiles[entity.East] = []int{7}
	state.Phase = entity.PhasePlaying
	require.NoError(t, store.Save(ctx, state))
	require.NoError(t, store.Save(ctx, entity.NewGameRoomState("r2", "other", time.Now())))

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "table", got.Name)
	assert.Equal(t, entity.PhasePlaying, got.Phase)
	assert.Equal(t, []int{1, 2, 104}, got.Players["p1"].Hand)
	assert.Equal(t, entity.North, got.Players["p1"].Position)
	assert.Equal(t, []int{7}, got.DiscardPiles[entity.East])
	assert.True(t, state.CreatedAt.Equal(got.CreatedAt))

	exists, err := store.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, exists)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, ids)

	require.NoError(t, store.Delete(ctx, "r1"))
	exists, err = store.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisConnectionStore(t *testing.T) {
	mr, manager := newTestRedis(t)
	store := NewRedisConnectionStore(manager)
	ctx := context.Background()

	conn := &entity.PlayerConnection{PlayerID: "p1", RoomID: "r1", ConnectionID: "c1"}
	require.NoError(t, store.SaveConnection(ctx, conn, time.Minute))

	got, err := store.GetConnection(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.RoomID)
	assert.Equal(t, "c1", got.ConnectionID)

	mr.FastForward(2 * time.Minute)
	_, err = store.GetConnection(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrConnectionNotFound)

	require.NoError(t, store.SaveConnection(ctx, conn, time.Minute))
	require.NoError(t, store.RemoveConnection(ctx, "p1"))
	_, err = store.GetConnection(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrConnectionNotFound)
}
