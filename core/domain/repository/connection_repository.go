package repository

import (
	"context"
	"time"

	"okey/core/domain/entity"
)

// ConnectionRepository 玩家连接映射仓储接口
// 记录玩家所在房间与最近一次连接，用于断线重连查找
type ConnectionRepository interface {
	// SaveConnection 保存连接映射
	// ttl: 过期时间，房间结束后自然清理
	SaveConnection(ctx context.Context, conn *entity.PlayerConnection, ttl time.Duration) error

	// GetConnection 获取连接映射，不存在返回 ErrConnectionNotFound
	GetConnection(ctx context.Context, playerID string) (*entity.PlayerConnection, error)

	// RemoveConnection 删除连接映射（离开房间时调用）
	RemoveConnection(ctx context.Context, playerID string) error
}
