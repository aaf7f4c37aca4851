package container

import (
	"okey/common/config"
	"okey/common/database"
	"okey/common/log"
)

// BaseContainer 基础容器，管理共享的数据库连接
// memory 模式不连 redis；未配置 mongo 时不归档对局
type BaseContainer struct {
	mongo *database.MongoManager
	redis *database.RedisManager
}

func NewBase(conf config.DatabaseConf, useRedis bool) *BaseContainer {
	base := &BaseContainer{}
	if conf.MongoConf.Url != "" {
		base.mongo = database.NewMongo(conf.MongoConf)
		if base.mongo == nil {
			log.Fatal("mongodb 初始化失败")
			return nil
		}
	}
	if useRedis {
		base.redis = database.NewRedis(conf.RedisConf)
		if base.redis == nil {
			log.Fatal("redis 初始化失败")
			return nil
		}
	}
	log.Info("数据库服务启动成功, mongo=%t, redis=%t", base.mongo != nil, base.redis != nil)
	return base
}

func (c *BaseContainer) GetMongo() *database.MongoManager {
	return c.mongo
}

func (c *BaseContainer) GetRedis() *database.RedisManager {
	return c.redis
}

func (c *BaseContainer) Close() error {
	var first error
	if c.mongo != nil {
		if err := c.mongo.Close(); err != nil {
			log.Error("mongo 关闭失败: %v", err)
			first = err
		}
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Error("redis 关闭失败: %v", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
