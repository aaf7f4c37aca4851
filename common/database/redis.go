package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"okey/common/config"
	"okey/common/log"

	"github.com/redis/go-redis/v9"
)

type RedisManager struct {
	Cli        *redis.Client
	ClusterCli *redis.ClusterClient
	scriptSHAs map[string]string
	mu         sync.RWMutex
}

func NewRedis(redisConf config.RedisConf) *RedisManager {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var addr string
	if redisConf.Addr != "" {
		addr = redisConf.Addr
	} else if redisConf.Host != "" && redisConf.Port > 0 {
		addr = fmt.Sprintf("%s:%d", redisConf.Host, redisConf.Port)
	} else if len(redisConf.ClusterAddrs) == 0 {
		panic("redis 配置出错")
	}

	m := &RedisManager{scriptSHAs: make(map[string]string)}
	if len(redisConf.ClusterAddrs) == 0 {
		m.Cli = redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     redisConf.Password,
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	} else {
		m.ClusterCli = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        redisConf.ClusterAddrs,
			Password:     redisConf.Password,
			PoolSize:     redisConf.PoolSize,
			MinIdleConns: redisConf.MinIdleConns,
		})
	}

	cli, _ := m.GetClient()
	if err := cli.Ping(ctx).Err(); err != nil {
		log.Fatal("redis 连接错误: %v", err)
		return nil
	}
	return m
}

// NewRedisFromClient 包装已有客户端（测试中接 miniredis）
func NewRedisFromClient(cli *redis.Client) *RedisManager {
	return &RedisManager{
		Cli:        cli,
		scriptSHAs: make(map[string]string),
	}
}

func (r *RedisManager) GetClient() (redis.Cmdable, error) {
	if r.Cli != nil {
		return r.Cli, nil
	}
	if r.ClusterCli != nil {
		return r.ClusterCli, nil
	}
	return nil, fmt.Errorf("redis 客户端未初始化")
}

func (r *RedisManager) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Set(ctx, key, value, expiration).Err()
}

// SetNX 仅在 key 不存在时写入，返回是否写入成功
func (r *RedisManager) SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error) {
	cli, err := r.GetClient()
	if err != nil {
		return false, err
	}
	return cli.SetNX(ctx, key, value, expiration).Result()
}

func (r *RedisManager) Get(ctx context.Context, key string) (string, error) {
	cli, err := r.GetClient()
	if err != nil {
		return "", err
	}
	return cli.Get(ctx, key).Result()
}

func (r *RedisManager) Del(ctx context.Context, keys ...string) error {
	cli, err := r.GetClient()
	if err != nil {
		return err
	}
	return cli.Del(ctx, keys...).Err()
}

func (r *RedisManager) Exists(ctx context.Context, key ...string) (int64, error) {
	cli, err := r.GetClient()
	if err != nil {
		return 0, err
	}
	return cli.Exists(ctx, key...).Result()
}

// Scan 按模式遍历 key，集群模式下遍历所有主节点
func (r *RedisManager) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	scan := func(ctx context.Context, cli redis.Cmdable) error {
		iter := cli.Scan(ctx, 0, pattern, 200).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return iter.Err()
	}

	if r.Cli != nil {
		return keys, scan(ctx, r.Cli)
	}
	if r.ClusterCli != nil {
		var mu sync.Mutex
		err := r.ClusterCli.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			mu.Lock()
			defer mu.Unlock()
			return scan(ctx, node)
		})
		return keys, err
	}
	return nil, fmt.Errorf("redis 客户端未初始化")
}

func (r *RedisManager) EvalScript(ctx context.Context, scriptName, script string, keys []string, args ...any) (any, error) {
	cli, err := r.GetClient()
	if err != nil {
		return nil, err
	}
	if scriptName == "" {
		return cli.Eval(ctx, script, keys, args...).Result()
	}

	r.mu.RLock()
	sha, exists := r.scriptSHAs[scriptName]
	r.mu.RUnlock()

	if !exists {
		sha, err = r.loadScript(ctx, cli, scriptName, script)
		if err != nil {
			return nil, err
		}
	}

	result, err := cli.EvalSha(ctx, sha, keys, args...).Result()
	if err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT") {
		// SHA 失效（redis 重启或 SCRIPT FLUSH），重新加载
		sha, err = r.loadScript(ctx, cli, scriptName, script)
		if err != nil {
			return nil, err
		}
		return cli.EvalSha(ctx, sha, keys, args...).Result()
	}
	return result, err
}

func (r *RedisManager) loadScript(ctx context.Context, cli redis.Cmdable, scriptName, script string) (string, error) {
	sha, err := cli.ScriptLoad(ctx, script).Result()
	if err != nil {
		return "", fmt.Errorf("加载脚本 %s 失败: %w", scriptName, err)
	}
	r.mu.Lock()
	r.scriptSHAs[scriptName] = sha
	r.mu.Unlock()
	return sha, nil
}

func (r *RedisManager) Close() error {
	if r.Cli != nil {
		if err := r.Cli.Close(); err != nil {
			log.Error("redis 关闭出错: %v", err)
			return err
		}
	}
	if r.ClusterCli != nil {
		if err := r.ClusterCli.Close(); err != nil {
			log.Error("redisCluster 关闭出错: %v", err)
			return err
		}
	}
	return nil
}
