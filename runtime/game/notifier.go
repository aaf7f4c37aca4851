package game

import (
	"context"
	"encoding/json"

	"okey/common/log"
	"okey/runtime/game/share"
)

// Notifier 房间事件的出口，在锁释放后调用，不允许回写房间状态
type Notifier interface {
	Notify(ctx context.Context, event share.RoomEvent)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, share.RoomEvent) {}

// MultiNotifier 按顺序分发给多个下游
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, event share.RoomEvent) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// NotifierFunc 函数适配，测试里收集事件用
type NotifierFunc func(ctx context.Context, event share.RoomEvent)

func (f NotifierFunc) Notify(ctx context.Context, event share.RoomEvent) {
	f(ctx, event)
}

// Publisher nats 发布能力，message.NatsClient 实现
type Publisher interface {
	Publish(subject string, data []byte) error
}

const (
	roomSubjectPrefix   = "okey.room."
	playerSubjectPrefix = "okey.player."
)

func RoomSubject(roomID string) string {
	return roomSubjectPrefix + roomID
}

func PlayerSubject(playerID string) string {
	return playerSubjectPrefix + playerID
}

// NatsNotifier 公开事件发到房间主题，私有事件发到玩家主题，由 connector 转发给客户端
type NatsNotifier struct {
	pub Publisher
}

func NewNatsNotifier(pub Publisher) *NatsNotifier {
	return &NatsNotifier{pub: pub}
}

func (n *NatsNotifier) Notify(_ context.Context, event share.RoomEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error("NatsNotifier 序列化事件失败, type=%s, err=%v", event.Type, err)
		return
	}
	subject := RoomSubject(event.RoomID)
	if event.IsPrivate() {
		subject = PlayerSubject(event.TargetPlayerID)
	}
	if err := n.pub.Publish(subject, data); err != nil {
		log.Warn("NatsNotifier 推送失败, subject=%s, err=%v", subject, err)
	}
}
