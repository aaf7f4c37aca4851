package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"okey/common/database"
	"okey/core/domain/entity"
	"okey/core/domain/repository"

	"github.com/redis/go-redis/v9"
)

const connectionKey = "okey:conn" // okey:conn:{playerID} -> JSON

// RedisConnectionStore Redis 实现的玩家连接映射
type RedisConnectionStore struct {
	redis *database.RedisManager
}

func NewRedisConnectionStore(redis *database.RedisManager) *RedisConnectionStore {
	return &RedisConnectionStore{redis: redis}
}

func (r *RedisConnectionStore) SaveConnection(ctx context.Context, conn *entity.PlayerConnection, ttl time.Duration) error {
	data, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	return r.redis.Set(ctx, connectionKey+":"+conn.PlayerID, string(data), ttl)
}

func (r *RedisConnectionStore) GetConnection(ctx context.Context, playerID string) (*entity.PlayerConnection, error) {
	raw, err := r.redis.Get(ctx, connectionKey+":"+playerID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", repository.ErrConnectionNotFound, playerID)
		}
		return nil, err
	}
	conn := new(entity.PlayerConnection)
	if err := json.Unmarshal([]byte(raw), conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *RedisConnectionStore) RemoveConnection(ctx context.Context, playerID string) error {
	return r.redis.Del(ctx, connectionKey+":"+playerID)
}

var _ repository.ConnectionRepository = (*RedisConnectionStore)(nil)
