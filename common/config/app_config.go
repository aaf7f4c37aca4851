package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var Conf *GameConfiguration

type GameConfiguration struct {
	ID           string       `mapstructure:"id"`
	AppName      string       `mapstructure:"appName"`
	MetricPort   int          `mapstructure:"metricPort"`
	HttpPort     int          `mapstructure:"httpPort"`
	LogConf      LogConf      `mapstructure:"log"`
	DatabaseConf DatabaseConf `mapstructure:"database"`
	NatsConfig   NatsConfig   `mapstructure:"nats"`
	EtcdConf     EtcdConf     `mapstructure:"etcd"`
	RoomConf     RoomConf     `mapstructure:"room"`
	CacheConf    CacheConf    `mapstructure:"cache"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

type EtcdConf struct {
	Addrs       []string       `mapstructure:"addrs"`
	RWTimeout   int            `mapstructure:"rwTimeout"`
	DialTimeout int            `mapstructure:"dialTimeout"`
	Register    RegisterServer `mapstructure:"register"`
}

type RegisterServer struct {
	Addr    string `mapstructure:"addr"`
	Domain  string `mapstructure:"domain"`
	Version string `mapstructure:"version"`
	Weight  int    `mapstructure:"weight"`
	Ttl     int    `mapstructure:"ttl"`
}

type DatabaseConf struct {
	MongoConf MongoConf `mapstructure:"mongo"`
	RedisConf RedisConf `mapstructure:"redis"`
}

type MongoConf struct {
	Url         string `mapstructure:"url"`
	Db          string `mapstructure:"db"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MinPoolSize int    `mapstructure:"minPoolSize"`
	MaxPoolSize int    `mapstructure:"maxPoolSize"`
}

type RedisConf struct {
	Addr         string   `mapstructure:"addr"`
	ClusterAddrs []string `mapstructure:"clusterAddrs"`
	Password     string   `mapstructure:"password"`
	PoolSize     int      `mapstructure:"poolSize"`
	MinIdleConns int      `mapstructure:"minIdleConns"`
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
}

type NatsConfig struct {
	URL string `json:"url" mapstructure:"url"`
}

// RoomConf 房间与回合相关参数
type RoomConf struct {
	Store                 string `mapstructure:"store"` // redis | memory
	LockTimeoutMs         int    `mapstructure:"lockTimeoutMs"`
	LockTtlMs             int    `mapstructure:"lockTtlMs"`
	LockRetryMs           int    `mapstructure:"lockRetryMs"`
	TurnSeconds           int    `mapstructure:"turnSeconds"`
	GraceThresholdSeconds int    `mapstructure:"graceThresholdSeconds"`
	GraceSeconds          int    `mapstructure:"graceSeconds"`
	ConnectionTtlSeconds  int    `mapstructure:"connectionTtlSeconds"`
	AutoPlayDelayMs       int    `mapstructure:"autoPlayDelayMs"`
	ActionRate            int    `mapstructure:"actionRate"` // 每个玩家每秒动作数，0 不限流
	ActionBurst           int    `mapstructure:"actionBurst"`
}

type CacheConf struct {
	MaxCost    int64 `mapstructure:"maxCost"`
	TtlSeconds int   `mapstructure:"ttlSeconds"`
}

func (r RoomConf) LockTimeout() time.Duration {
	return time.Duration(r.LockTimeoutMs) * time.Millisecond
}

func (r RoomConf) LockTTL() time.Duration {
	return time.Duration(r.LockTtlMs) * time.Millisecond
}

func (r RoomConf) LockRetry() time.Duration {
	return time.Duration(r.LockRetryMs) * time.Millisecond
}

func (r RoomConf) TurnDuration() time.Duration {
	return time.Duration(r.TurnSeconds) * time.Second
}

func (r RoomConf) GraceThreshold() time.Duration {
	return time.Duration(r.GraceThresholdSeconds) * time.Second
}

func (r RoomConf) GracePeriod() time.Duration {
	return time.Duration(r.GraceSeconds) * time.Second
}

func (r RoomConf) ConnectionTTL() time.Duration {
	return time.Duration(r.ConnectionTtlSeconds) * time.Second
}

func (r RoomConf) AutoPlayDelay() time.Duration {
	return time.Duration(r.AutoPlayDelayMs) * time.Millisecond
}

var (
	reloadMu  sync.Mutex
	reloadFns []func(*GameConfiguration)
)

// OnReload 注册配置热更新回调
func OnReload(fn func(*GameConfiguration)) {
	reloadMu.Lock()
	defer reloadMu.Unlock()
	reloadFns = append(reloadFns, fn)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("appName", "okey-game")
	v.SetDefault("metricPort", 5854)
	v.SetDefault("httpPort", 8090)
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("database.redis.poolSize", 20)
	v.SetDefault("database.redis.minIdleConns", 4)
	v.SetDefault("database.mongo.db", "okey")
	v.SetDefault("database.mongo.minPoolSize", 2)
	v.SetDefault("database.mongo.maxPoolSize", 20)
	v.SetDefault("etcd.dialTimeout", 3)
	v.SetDefault("etcd.register.ttl", 10)
	v.SetDefault("etcd.register.domain", "okey-game")
	v.SetDefault("room.store", "redis")
	v.SetDefault("room.lockTimeoutMs", 5000)
	v.SetDefault("room.lockTtlMs", 10000)
	v.SetDefault("room.lockRetryMs", 50)
	v.SetDefault("room.turnSeconds", 30)
	v.SetDefault("room.graceThresholdSeconds", 5)
	v.SetDefault("room.graceSeconds", 10)
	v.SetDefault("room.connectionTtlSeconds", 3600)
	v.SetDefault("room.autoPlayDelayMs", 800)
	v.SetDefault("room.actionBurst", 10)
	v.SetDefault("cache.maxCost", 1<<26)
	v.SetDefault("cache.ttlSeconds", 300)
}

// Default 返回只包含默认值的配置，测试与内存模式使用
func Default() *GameConfiguration {
	v := viper.New()
	setDefaults(v)
	conf := new(GameConfiguration)
	if err := v.Unmarshal(conf); err != nil {
		panic(fmt.Errorf("解析默认配置出错, err:%v", err))
	}
	return conf
}

func InitConfig(configFile string) {
	Conf = new(GameConfiguration)
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("读取配置文件出错, err:%v", err))
	}

	err = v.Unmarshal(Conf)
	if err != nil {
		panic(fmt.Errorf("解析配置文件出错, err:%v", err))
	}

	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		next := new(GameConfiguration)
		if err := v.Unmarshal(next); err != nil {
			// 热更新失败时保留旧配置
			return
		}
		Conf = next
		reloadMu.Lock()
		fns := append([]func(*GameConfiguration){}, reloadFns...)
		reloadMu.Unlock()
		for _, fn := range fns {
			fn(next)
		}
	})
}
