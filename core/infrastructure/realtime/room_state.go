package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"okey/common/database"
	"okey/core/domain/entity"
	"okey/core/domain/repository"

	"github.com/redis/go-redis/v9"
)

const roomStateKey = "okey:room" // okey:room:{roomID} -> JSON

// RedisRoomStateStore Redis 实现的房间状态仓储，多个 game 节点共享
type RedisRoomStateStore struct {
	redis *database.RedisManager
}

func NewRedisRoomStateStore(redis *database.RedisManager) *RedisRoomStateStore {
	return &RedisRoomStateStore{redis: redis}
}

func roomKey(roomID string) string {
	return roomStateKey + ":" + roomID
}

func (s *RedisRoomStateStore) Get(ctx context.Context, roomID string) (*entity.GameRoomState, error) {
	raw, err := s.redis.Get(ctx, roomKey(roomID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", repository.ErrRoomNotFound, roomID)
		}
		return nil, err
	}

	state := new(entity.GameRoomState)
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, fmt.Errorf("解析房间状态失败 %s: %w", roomID, err)
	}
	return state, nil
}

func (s *RedisRoomStateStore) Save(ctx context.Context, state *entity.GameRoomState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化房间状态失败 %s: %w", state.RoomID, err)
	}
	return s.redis.Set(ctx, roomKey(state.RoomID), string(data), 0)
}

func (s *RedisRoomStateStore) Delete(ctx context.Context, roomID string) error {
	return s.redis.Del(ctx, roomKey(roomID))
}

func (s *RedisRoomStateStore) Exists(ctx context.Context, roomID string) (bool, error) {
	count, err := s.redis.Exists(ctx, roomKey(roomID))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *RedisRoomStateStore) List(ctx context.Context) ([]string, error) {
	keys, err := s.redis.Scan(ctx, roomStateKey+":*")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, roomStateKey+":"))
	}
	return ids, nil
}

var _ repository.RoomStateRepository = (*RedisRoomStateStore)(nil)
