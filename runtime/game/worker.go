package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"okey/common/log"
	"okey/common/utils"
	"okey/core/infrastructure/message"
	"okey/runtime/game/engines/okey"
	"okey/runtime/game/share"
)

/*
	nats 入口
	1.每个动作一个主题 okey.action.<name>，多个 game 节点用同一个队列组分摊
	2.请求/响应都是 JSON，错误统一转成 code，客户端按 retryable 决定是否重试
*/

const (
	actionSubjectPrefix = "okey.action."
	actionQueue         = "okey-game"
)

func ActionSubject(action string) string {
	return actionSubjectPrefix + action
}

type ActionRequest struct {
	RoomID       string `json:"roomId"`
	PlayerID     string `json:"playerId"`
	Name         string `json:"name,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
	TileID       *int   `json:"tileId,omitempty"`
	FromDiscard  bool   `json:"fromDiscard,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type ActionResponse struct {
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Subscriber message.NatsClient 实现
type Subscriber interface {
	QueueSubscribe(subject, queue string, handler message.RequestHandler) error
}

type actionHandler func(ctx context.Context, req *ActionRequest) (any, error)

type Worker struct {
	svc      *GameService
	sub      Subscriber
	timeout  time.Duration
	limiter  *utils.KeyedRateLimiter
	handlers map[string]actionHandler
}

type WorkerOption func(*Worker)

// WithActionLimiter 按玩家限流，超限直接拒绝，不碰房间锁
func WithActionLimiter(limiter *utils.KeyedRateLimiter) WorkerOption {
	return func(w *Worker) {
		w.limiter = limiter
	}
}

func NewWorker(svc *GameService, sub Subscriber, timeout time.Duration, opts ...WorkerOption) *Worker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &Worker{svc: svc, sub: sub, timeout: timeout}
	for _, opt := range opts {
		opt(w)
	}
	w.registerHandlers()
	return w
}

func (w *Worker) registerHandlers() {
	w.handlers = map[string]actionHandler{
		"create":     w.createRoom,
		"join":       w.joinRoom,
		"leave":      w.leaveRoom,
		"start":      w.startGame,
		"draw":       w.drawTile,
		"discard":    w.discardTile,
		"win":        w.declareWin,
		"bot":        w.addBot,
		"cancel":     w.cancelRoom,
		"reconnect":  w.reconnect,
		"disconnect": w.disconnect,
		"state":      w.roomState,
	}
}

// Actions 已注册的动作，按名字排序
func (w *Worker) Actions() []string {
	actions := make([]string, 0, len(w.handlers))
	for a := range w.handlers {
		actions = append(actions, a)
	}
	sort.Strings(actions)
	return actions
}

// Start 订阅所有动作主题
func (w *Worker) Start() error {
	for _, action := range w.Actions() {
		action := action
		err := w.sub.QueueSubscribe(ActionSubject(action), actionQueue, func(data []byte) []byte {
			return w.Handle(action, data)
		})
		if err != nil {
			return fmt.Errorf("订阅 %s 失败: %w", ActionSubject(action), err)
		}
	}
	log.Info("Game Worker 订阅动作主题成功, 数量: %d", len(w.handlers))
	return nil
}

// Handle 处理一条请求，返回序列化后的响应
func (w *Worker) Handle(action string, data []byte) []byte {
	handler, ok := w.handlers[action]
	if !ok {
		return encodeResponse(ActionResponse{Code: "UNKNOWN_ACTION", Error: "unknown action " + action})
	}
	var req ActionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return encodeResponse(ActionResponse{Code: ErrorCode(ErrBadRequest), Error: err.Error()})
	}
	if w.limiter != nil && req.PlayerID != "" && !w.limiter.Allow(req.PlayerID) {
		return encodeResponse(ActionResponse{
			Code:      ErrorCode(ErrRateLimited),
			Error:     ErrRateLimited.Error(),
			Retryable: true,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	out, err := handler(ctx, &req)
	if err != nil {
		log.Debug("Game Worker 动作失败, action=%s, roomID=%s, err=%v", action, req.RoomID, err)
		return encodeResponse(ActionResponse{
			Code:      ErrorCode(err),
			Error:     err.Error(),
			Retryable: IsRetryable(err),
		})
	}
	return encodeResponse(ActionResponse{Success: true, Data: out})
}

func encodeResponse(resp ActionResponse) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Error("Game Worker 序列化响应失败: %v", err)
		return []byte(`{"success":false,"code":"INTERNAL"}`)
	}
	return data
}

func (w *Worker) createRoom(ctx context.Context, req *ActionRequest) (any, error) {
	state, err := w.svc.CreateRoom(ctx, req.Name, PlayerInfo{PlayerID: req.PlayerID, Name: req.Name, ConnectionID: req.ConnectionID})
	if err != nil {
		return nil, err
	}
	return share.NewRoomView(state, req.PlayerID), nil
}

func (w *Worker) joinRoom(ctx context.Context, req *ActionRequest) (any, error) {
	state, err := w.svc.JoinRoom(ctx, req.RoomID, PlayerInfo{PlayerID: req.PlayerID, Name: req.Name, ConnectionID: req.ConnectionID})
	if err != nil {
		return nil, err
	}
	return share.NewRoomView(state, req.PlayerID), nil
}

func (w *Worker) leaveRoom(ctx context.Context, req *ActionRequest) (any, error) {
	return nil, w.svc.LeaveRoom(ctx, req.RoomID, req.PlayerID)
}

func (w *Worker) startGame(ctx context.Context, req *ActionRequest) (any, error) {
	state, err := w.svc.StartGame(ctx, req.RoomID, req.PlayerID)
	if err != nil {
		return nil, err
	}
	return share.NewRoomView(state, req.PlayerID), nil
}

func (w *Worker) drawTile(ctx context.Context, req *ActionRequest) (any, error) {
	return w.svc.DrawTile(ctx, req.RoomID, req.PlayerID, req.FromDiscard)
}

func (w *Worker) discardTile(ctx context.Context, req *ActionRequest) (any, error) {
	if req.TileID == nil {
		return nil, fmt.Errorf("%w: tileId required", ErrBadRequest)
	}
	return w.svc.DiscardTile(ctx, req.RoomID, req.PlayerID, *req.TileID)
}

func (w *Worker) declareWin(ctx context.Context, req *ActionRequest) (any, error) {
	finishing := okey.AnyTile
	if req.TileID != nil {
		finishing = *req.TileID
	}
	return w.svc.DeclareWin(ctx, req.RoomID, req.PlayerID, finishing)
}

func (w *Worker) addBot(ctx context.Context, req *ActionRequest) (any, error) {
	return w.svc.AddBot(ctx, req.RoomID)
}

func (w *Worker) cancelRoom(ctx context.Context, req *ActionRequest) (any, error) {
	reason := req.Reason
	if reason == "" {
		reason = "cancelled"
	}
	return nil, w.svc.CancelRoom(ctx, req.RoomID, reason)
}

func (w *Worker) reconnect(ctx context.Context, req *ActionRequest) (any, error) {
	state, err := w.svc.Reconnect(ctx, req.RoomID, req.PlayerID, req.ConnectionID)
	if err != nil {
		return nil, err
	}
	return share.NewRoomView(state, req.PlayerID), nil
}

func (w *Worker) disconnect(ctx context.Context, req *ActionRequest) (any, error) {
	return nil, w.svc.Disconnect(ctx, req.RoomID, req.PlayerID)
}

func (w *Worker) roomState(ctx context.Context, req *ActionRequest) (any, error) {
	roomID := req.RoomID
	if roomID == "" && req.PlayerID != "" {
		var err error
		if roomID, err = w.svc.FindPlayerRoom(ctx, req.PlayerID); err != nil {
			return nil, err
		}
	}
	state, err := w.svc.GetRoomState(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return share.NewRoomView(state, req.PlayerID), nil
}
