package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"okey/common/config"
	"okey/common/discovery"
	"okey/common/log"
	"okey/common/utils"
	"okey/core/domain/repository"
	"okey/core/infrastructure/cache"
	"okey/core/infrastructure/local"
	"okey/core/infrastructure/message"
	"okey/core/infrastructure/persistence"
	"okey/core/infrastructure/realtime"
	"okey/runtime/game"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// GameContainer game 节点的依赖装配，所有组件在这里显式创建并注入
type GameContainer struct {
	*BaseContainer

	Rooms       repository.RoomStateRepository
	Locker      repository.RoomLocker
	Connections *cache.ConnectionCache
	Nats        *message.NatsClient
	Registry    *discovery.Registry

	Timer      *game.LocalTurnTimer
	Service    *game.GameService
	AutoPlayer *game.AutoPlayer
	BotDriver  *game.BotDriver
	Persister  *game.GamePersister
	Worker     *game.Worker
	Monitor    *game.Monitor

	nodeID string
	etcd   config.EtcdConf
	closed bool
	mu     sync.Mutex
}

func NewGameContainer(conf *config.GameConfiguration) (*GameContainer, error) {
	roomConf := conf.RoomConf
	useRedis := roomConf.Store != StoreMemory

	base := NewBase(conf.DatabaseConf, useRedis)
	if base == nil {
		return nil, fmt.Errorf("基础容器初始化失败")
	}
	c := &GameContainer{
		BaseContainer: base,
		nodeID:        conf.ID,
		etcd:          conf.EtcdConf,
	}

	// 房间状态与锁
	var backing repository.ConnectionRepository
	if useRedis {
		c.Rooms = realtime.NewRedisRoomStateStore(base.redis)
		c.Locker = realtime.NewRedisRoomLocker(base.redis)
		backing = realtime.NewRedisConnectionStore(base.redis)
	} else {
		c.Rooms = local.NewMemoryRoomStateStore()
		c.Locker = local.NewMemoryRoomLocker()
	}
	conns, err := cache.NewConnectionCache(conf.CacheConf.MaxCost, time.Duration(conf.CacheConf.TtlSeconds)*time.Second, backing)
	if err != nil {
		_ = base.Close()
		return nil, fmt.Errorf("连接缓存初始化失败: %w", err)
	}
	c.Connections = conns

	// 事件出口
	notifiers := game.MultiNotifier{}
	if conf.NatsConfig.URL != "" {
		c.Nats = message.NewNatsClient()
		if err := c.Nats.Connect(conf.NatsConfig.URL, conf.ID); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("连接 nats 失败: %w", err)
		}
		notifiers = append(notifiers, game.NewNatsNotifier(c.Nats))
	}
	if base.mongo != nil {
		c.Persister = game.NewGamePersister(persistence.NewGameRecordRepository(base.mongo))
		notifiers = append(notifiers, c.Persister)
	}

	c.Timer = game.NewLocalTurnTimer(time.Second)
	c.Service = game.NewGameService(c.Rooms, c.Locker, game.ServiceConfigFrom(roomConf),
		game.WithConnections(c.Connections),
		game.WithTimer(c.Timer),
		game.WithNotifier(&notifiers), // BotDriver 依赖 Service，稍后追加
	)
	c.AutoPlayer = game.NewAutoPlayer(c.Service, nil)
	c.BotDriver = game.NewBotDriver(c.AutoPlayer, roomConf.AutoPlayDelay())
	notifiers = append(notifiers, c.BotDriver)

	c.Timer.SetHandlers(
		func(roomID, playerID string, turnNumber int) {
			if err := c.AutoPlayer.OnTimeout(context.Background(), roomID, playerID, turnNumber); err != nil {
				log.Warn("GameContainer 超时托管失败, roomID=%s, playerID=%s, err=%v", roomID, playerID, err)
			}
		},
		func(roomID, playerID string, remaining time.Duration) {
			c.Service.NotifyTick(context.Background(), roomID, playerID, remaining)
		},
	)

	if c.Nats != nil {
		var opts []game.WorkerOption
		if roomConf.ActionRate > 0 {
			opts = append(opts, game.WithActionLimiter(utils.NewKeyedRateLimiter(roomConf.ActionRate, roomConf.ActionBurst)))
		}
		c.Worker = game.NewWorker(c.Service, c.Nats, roomConf.LockTimeout()*2, opts...)
	}
	var reporter game.LoadReporter
	if len(conf.EtcdConf.Addrs) > 0 {
		c.Registry = discovery.NewRegistry()
		reporter = c.Registry
	}
	c.Monitor = game.NewMonitor(c.Service, reporter, 5*time.Second)

	log.Info("GameContainer 初始化完成, store=%s, nats=%t, mongo=%t", roomConf.Store, c.Nats != nil, base.mongo != nil)
	return c, nil
}

// Start 注册 etcd、订阅 nats、启动负载上报
func (c *GameContainer) Start(ctx context.Context) error {
	if c.Registry != nil {
		if err := c.Registry.Register(c.etcd, c.nodeID); err != nil {
			return fmt.Errorf("注册到 etcd 失败: %w", err)
		}
		log.Info("Game 节点[%s] 注册到 etcd 成功", c.nodeID)
	}
	if c.Worker != nil {
		if err := c.Worker.Start(); err != nil {
			return err
		}
	}
	go c.Monitor.Start(ctx)
	return nil
}

// Close 关闭容器资源（幂等操作，可以安全地多次调用）
// 关闭顺序：先停计时和机器人，再断开 nats、etcd，最后等归档写完并关闭数据库
func (c *GameContainer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if c.Timer != nil {
		c.Timer.Close()
	}
	if c.BotDriver != nil {
		c.BotDriver.Close()
	}
	if c.Nats != nil {
		if err := c.Nats.Close(); err != nil {
			log.Warn("nats 关闭失败: %v", err)
		}
	}
	if c.Registry != nil {
		c.Registry.Close()
	}
	if c.Persister != nil {
		c.Persister.Close()
	}
	if c.Connections != nil {
		c.Connections.Close()
	}
	if err := c.BaseContainer.Close(); err != nil {
		return err
	}
	log.Info("GameContainer 已关闭")
	return nil
}
