package message

import (
	"errors"
	"time"

	"okey/common/log"

	"github.com/nats-io/nats.go"
)

var ErrNotConnected = errors.New("nats not connected")

// RequestHandler 处理一次请求，返回值作为 reply 发回
type RequestHandler func(data []byte) []byte

// NatsClient 对 nats 连接的薄封装：发布事件、队列订阅请求
type NatsClient struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

func NewNatsClient() *NatsClient {
	return &NatsClient{}
}

func (nc *NatsClient) Connect(url, name string) error {
	log.Info("nats 服务正在连接, url:%s", url)
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats 连接断开: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats 重连成功: %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		log.Error("nats 连接错误,err:%v", err)
		return err
	}
	nc.conn = conn
	log.Info("nats 连接成功, url:%s", url)
	return nil
}

func (nc *NatsClient) IsConnected() bool {
	return nc.conn != nil && nc.conn.IsConnected()
}

func (nc *NatsClient) Publish(subject string, data []byte) error {
	if !nc.IsConnected() {
		return ErrNotConnected
	}
	return nc.conn.Publish(subject, data)
}

// QueueSubscribe 同一 queue 下的多个 game 节点分摊请求，handler 的结果通过 msg.Respond 回复
func (nc *NatsClient) QueueSubscribe(subject, queue string, handler RequestHandler) error {
	if nc.conn == nil {
		return ErrNotConnected
	}
	sub, err := nc.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		resp := handler(msg.Data)
		if msg.Reply == "" || resp == nil {
			return
		}
		if err := msg.Respond(resp); err != nil {
			log.Warn("nats 回复失败 subject=%s err=%v", subject, err)
		}
	})
	if err != nil {
		log.Error("nats sub err:%v", err)
		return err
	}
	nc.subs = append(nc.subs, sub)
	return nil
}

func (nc *NatsClient) Close() error {
	if nc.conn == nil {
		return nil
	}
	for _, sub := range nc.subs {
		_ = sub.Unsubscribe()
	}
	if err := nc.conn.Drain(); err != nil {
		nc.conn.Close()
	}
	log.Info("NATS 连接已关闭")
	return nil
}
