package repository

import (
	"context"

	"okey/core/domain/entity"
)

// RoomStateRepository 房间状态仓储接口
// 写操作只能在持有房间锁时调用，读操作可以读无锁快照
type RoomStateRepository interface {
	// Get 读取房间状态，不存在返回 ErrRoomNotFound
	Get(ctx context.Context, roomID string) (*entity.GameRoomState, error)

	// Save 整体覆盖写入房间状态
	Save(ctx context.Context, state *entity.GameRoomState) error

	// Delete 删除房间，不存在时不报错
	Delete(ctx context.Context, roomID string) error

	// Exists 房间是否存在
	Exists(ctx context.Context, roomID string) (bool, error)

	// List 列出全部房间 ID
	List(ctx context.Context) ([]string, error)
}
