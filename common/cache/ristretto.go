package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// GeneralCache 进程内缓存，支持 TTL
type GeneralCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewGeneralCache maxCost 为条目数上限（每条 cost 记 1），ttl 为默认过期时间
func NewGeneralCache(maxCost int64, ttl time.Duration) (*GeneralCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 ristretto 缓存失败: %w", err)
	}
	return &GeneralCache{cache: c, ttl: ttl}, nil
}

func (c *GeneralCache) Set(key string, value any) bool {
	return c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL 写入后等待缓冲落盘，保证紧随其后的 Get 可见
func (c *GeneralCache) SetWithTTL(key string, value any, ttl time.Duration) bool {
	ok := c.cache.SetWithTTL(key, value, 1, ttl)
	c.cache.Wait()
	return ok
}

func (c *GeneralCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *GeneralCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *GeneralCache) Close() {
	c.cache.Close()
}
