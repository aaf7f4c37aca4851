package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"okey/common/config"
	"okey/common/log"

	clientv3 "go.etcd.io/etcd/client/v3"
)

/*
etcd 注册器
	1.game 节点注册到 etcd，网关按负载挑选节点创建房间
	2.负载信息由 Monitor 定期通过 UpdateLoad 刷新
	3.租约断开后由 watch 协程负责重新注册
*/

// NodeInfo 注册到 etcd 的节点信息
type NodeInfo struct {
	NodeID  string  `json:"nodeId"`
	Domain  string  `json:"domain"`
	Addr    string  `json:"addr"`
	Version string  `json:"version"`
	Weight  int     `json:"weight"`
	Ttl     int     `json:"ttl"`
	Load    float64 `json:"load"`
}

func (n NodeInfo) buildKey() string {
	return fmt.Sprintf("/%s/%s", n.Domain, n.NodeID)
}

type Registry struct {
	etcdCli     *clientv3.Client
	leaseID     clientv3.LeaseID
	DialTimeout int
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	info        NodeInfo
	infoMu      sync.Mutex
	closeCh     chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		DialTimeout: 3,
	}
}

func (r *Registry) Register(conf config.EtcdConf, nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("nodeID 不能为空")
	}
	if conf.DialTimeout > 0 {
		r.DialTimeout = conf.DialTimeout
	}
	ttl := conf.Register.Ttl
	if ttl <= 0 {
		ttl = 10
	}

	r.info = NodeInfo{
		NodeID:  nodeID,
		Domain:  conf.Register.Domain,
		Addr:    conf.Register.Addr,
		Version: conf.Register.Version,
		Weight:  conf.Register.Weight,
		Ttl:     ttl,
	}

	var err error
	r.etcdCli, err = clientv3.New(clientv3.Config{
		Endpoints:   conf.Addrs,
		DialTimeout: time.Duration(r.DialTimeout) * time.Second,
	})
	if err != nil {
		return err
	}

	if err = r.doRegister(); err != nil {
		return err
	}

	r.closeCh = make(chan struct{})
	go r.watch()
	return nil
}

func (r *Registry) doRegister() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()

	lease, err := r.etcdCli.Grant(ctx, int64(r.info.Ttl))
	if err != nil {
		return err
	}
	r.leaseID = lease.ID

	if err = r.put(ctx); err != nil {
		return err
	}
	log.Info("etcd 注册信息: %s", r.info.buildKey())

	// keepAlive 需要长期运行，不能用带超时的 ctx
	r.keepAliveCh, err = r.etcdCli.KeepAlive(context.Background(), r.leaseID)
	if err != nil {
		log.Error("租约续期失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) put(ctx context.Context) error {
	r.infoMu.Lock()
	data, err := json.Marshal(r.info)
	key := r.info.buildKey()
	r.infoMu.Unlock()
	if err != nil {
		return err
	}

	if _, err = r.etcdCli.Put(ctx, key, string(data), clientv3.WithLease(r.leaseID)); err != nil {
		log.Error("租约绑定失败: %v", err)
		return err
	}
	return nil
}

func (r *Registry) watch() {
	// 兜底检查间隔为 TTL 的一半
	ticker := time.NewTicker(time.Duration(r.info.Ttl) * time.Second / 2)
	defer ticker.Stop()

	for {
		select {
		case res, ok := <-r.keepAliveCh:
			if !ok || res == nil {
				log.Warn("keepAlive 连接断开，重新注册服务")
				r.keepAliveCh = nil
				if err := r.doRegister(); err != nil {
					log.Error("重新注册失败: %v", err)
				}
			}
		case <-ticker.C:
			if r.keepAliveCh == nil {
				if err := r.doRegister(); err != nil {
					log.Error("定时器重新注册失败: %v", err)
				}
			}
		case <-r.closeCh:
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
			if _, err := r.etcdCli.Delete(ctx, r.info.buildKey()); err != nil {
				log.Error("注销服务失败: %v", err)
			}
			if _, err := r.etcdCli.Revoke(ctx, r.leaseID); err != nil {
				log.Error("撤销租约失败: %v", err)
			}
			cancel()
			_ = r.etcdCli.Close()
			log.Info("关闭租约续期")
			return
		}
	}
}

// UpdateLoad 刷新负载评分（沿用现有租约），值越小负载越低
func (r *Registry) UpdateLoad(load float64) error {
	r.infoMu.Lock()
	r.info.Load = load
	r.infoMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.DialTimeout)*time.Second)
	defer cancel()
	return r.put(ctx)
}

func (r *Registry) Close() {
	if r.closeCh != nil {
		close(r.closeCh)
	}
}
