package realtime

import (
	"context"
	"fmt"
	"time"

	"okey/common/database"
	"okey/core/domain/repository"

	"github.com/google/uuid"
)

const roomLockKey = "okey:lock:room" // okey:lock:room:{roomID} -> token

// Lua 脚本：令牌匹配时才删除锁
// KEYS[1]: 锁 key
// ARGV[1]: 持有者令牌
// 返回：1 删除成功，0 锁已不属于该令牌
var releaseLockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisRoomLocker 基于 SET NX PX + 令牌校验删除的分布式房间锁
type RedisRoomLocker struct {
	redis *database.RedisManager
}

func NewRedisRoomLocker(redis *database.RedisManager) *RedisRoomLocker {
	return &RedisRoomLocker{redis: redis}
}

func (l *RedisRoomLocker) TryAcquire(ctx context.Context, roomID string, ttl time.Duration) (repository.RoomLock, bool, error) {
	key := roomLockKey + ":" + roomID
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("获取房间锁失败 %s: %w", roomID, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &redisRoomLock{redis: l.redis, key: key, token: token}, true, nil
}

type redisRoomLock struct {
	redis *database.RedisManager
	key   string
	token string
}

func (l *redisRoomLock) Token() string {
	return l.token
}

func (l *redisRoomLock) Release(ctx context.Context) error {
	res, err := l.redis.EvalScript(ctx, "releaseRoomLock", releaseLockScript, []string{l.key}, l.token)
	if err != nil {
		return fmt.Errorf("释放房间锁失败 %s: %w", l.key, err)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return repository.ErrLockNotHeld
	}
	return nil
}

var _ repository.RoomLocker = (*RedisRoomLocker)(nil)
