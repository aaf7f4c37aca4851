package cache

import (
	"context"
	"fmt"
	"time"

	"okey/common/cache"
	"okey/core/domain/entity"
	"okey/core/domain/repository"
)

// ConnectionCache 进程内的玩家连接映射缓存
// backing 非空时为 read-through/write-through，为空时自身就是存储（memory 模式）
type ConnectionCache struct {
	cache   *cache.GeneralCache
	backing repository.ConnectionRepository
	prefix  string
}

func NewConnectionCache(maxCost int64, ttl time.Duration, backing repository.ConnectionRepository) (*ConnectionCache, error) {
	generalCache, err := cache.NewGeneralCache(maxCost, ttl)
	if err != nil {
		return nil, fmt.Errorf("创建连接缓存失败: %w", err)
	}
	return &ConnectionCache{cache: generalCache, backing: backing, prefix: "okey:conn"}, nil
}

func (c *ConnectionCache) key(playerID string) string {
	return c.prefix + ":" + playerID
}

func (c *ConnectionCache) SaveConnection(ctx context.Context, conn *entity.PlayerConnection, ttl time.Duration) error {
	if c.backing != nil {
		if err := c.backing.SaveConnection(ctx, conn, ttl); err != nil {
			return err
		}
	}
	cp := *conn
	c.cache.SetWithTTL(c.key(conn.PlayerID), &cp, ttl)
	return nil
}

func (c *ConnectionCache) GetConnection(ctx context.Context, playerID string) (*entity.PlayerConnection, error) {
	if v, ok := c.cache.Get(c.key(playerID)); ok {
		if conn, ok := v.(*entity.PlayerConnection); ok {
			cp := *conn
			return &cp, nil
		}
	}
	if c.backing == nil {
		return nil, fmt.Errorf("%w: %s", repository.ErrConnectionNotFound, playerID)
	}

	conn, err := c.backing.GetConnection(ctx, playerID)
	if err != nil {
		return nil, err
	}
	cp := *conn
	c.cache.Set(c.key(playerID), &cp)
	return conn, nil
}

func (c *ConnectionCache) RemoveConnection(ctx context.Context, playerID string) error {
	c.cache.Delete(c.key(playerID))
	if c.backing != nil {
		return c.backing.RemoveConnection(ctx, playerID)
	}
	return nil
}

func (c *ConnectionCache) Close() {
	c.cache.Close()
}

var _ repository.ConnectionRepository = (*ConnectionCache)(nil)
