package game

import (
	"context"
	"sync"
	"time"
)

type TimerInfo struct {
	RoomID     string        `json:"roomId"`
	PlayerID   string        `json:"playerId"`
	TurnNumber int           `json:"turnNumber"`
	Deadline   time.Time     `json:"deadline"`
	Remaining  time.Duration `json:"remaining"`
}

type (
	TimeoutHandler func(roomID, playerID string, turnNumber int)
	TickHandler    func(roomID, playerID string, remaining time.Duration)
)

// TurnTimer 每个房间一个回合倒计时，只调度不改状态
// 超时回调里要重新加锁并核对回合号，过期的超时直接丢弃
type TurnTimer interface {
	SetHandlers(onTimeout TimeoutHandler, onTick TickHandler)
	StartTimer(roomID, playerID string, turnNumber int, d time.Duration)
	StopTimer(roomID string)
	ExtendTimer(roomID string, extra time.Duration)
	GetTimerInfo(roomID string) (TimerInfo, bool)
}

type roomTicker struct {
	playerID   string
	turnNumber int
	deadline   time.Time
	cancel     context.CancelFunc
	extendCh   chan time.Time
}

// LocalTurnTimer 进程内计时，每个房间一个协程
type LocalTurnTimer struct {
	tick time.Duration

	mu        sync.Mutex
	rooms     map[string]*roomTicker
	onTimeout TimeoutHandler
	onTick    TickHandler
}

func NewLocalTurnTimer(tick time.Duration) *LocalTurnTimer {
	if tick <= 0 {
		tick = time.Second
	}
	return &LocalTurnTimer{
		tick:  tick,
		rooms: make(map[string]*roomTicker),
	}
}

func (t *LocalTurnTimer) SetHandlers(onTimeout TimeoutHandler, onTick TickHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTimeout = onTimeout
	t.onTick = onTick
}

// StartTimer 替换房间已有的计时
func (t *LocalTurnTimer) StartTimer(roomID, playerID string, turnNumber int, d time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	rt := &roomTicker{
		playerID:   playerID,
		turnNumber: turnNumber,
		deadline:   time.Now().Add(d),
		cancel:     cancel,
		extendCh:   make(chan time.Time, 1),
	}

	t.mu.Lock()
	if old, ok := t.rooms[roomID]; ok {
		old.cancel()
	}
	t.rooms[roomID] = rt
	t.mu.Unlock()

	go t.loop(ctx, roomID, rt)
}

func (t *LocalTurnTimer) StopTimer(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rt, ok := t.rooms[roomID]; ok {
		rt.cancel()
		delete(t.rooms, roomID)
	}
}

// ExtendTimer 顺延当前回合的截止时间
func (t *LocalTurnTimer) ExtendTimer(roomID string, extra time.Duration) {
	var deadline time.Time
	t.mu.Lock()
	rt, ok := t.rooms[roomID]
	if ok {
		rt.deadline = rt.deadline.Add(extra)
		deadline = rt.deadline
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	// 只保留最新的截止时间
	select {
	case rt.extendCh <- deadline:
	default:
		select {
		case <-rt.extendCh:
		default:
		}
		rt.extendCh <- deadline
	}
}

func (t *LocalTurnTimer) GetTimerInfo(roomID string) (TimerInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rt, ok := t.rooms[roomID]
	if !ok {
		return TimerInfo{}, false
	}
	return TimerInfo{
		RoomID:     roomID,
		PlayerID:   rt.playerID,
		TurnNumber: rt.turnNumber,
		Deadline:   rt.deadline,
		Remaining:  max(0, time.Until(rt.deadline)),
	}, true
}

// Close 停掉所有房间的计时
func (t *LocalTurnTimer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rt := range t.rooms {
		rt.cancel()
		delete(t.rooms, id)
	}
}

func (t *LocalTurnTimer) loop(ctx context.Context, roomID string, rt *roomTicker) {
	t.mu.Lock()
	deadline := rt.deadline
	t.mu.Unlock()
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-rt.extendCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			deadline = d
			timer.Reset(time.Until(deadline))
		case <-ticker.C:
			if onTick := t.handlers().tick; onTick != nil {
				onTick(roomID, rt.playerID, max(0, time.Until(deadline)))
			}
		case <-timer.C:
			t.mu.Lock()
			if cur, ok := t.rooms[roomID]; ok && cur == rt {
				delete(t.rooms, roomID)
			}
			t.mu.Unlock()
			if onTimeout := t.handlers().timeout; onTimeout != nil {
				onTimeout(roomID, rt.playerID, rt.turnNumber)
			}
			return
		}
	}
}

type timerHandlers struct {
	timeout TimeoutHandler
	tick    TickHandler
}

func (t *LocalTurnTimer) handlers() timerHandlers {
	t.mu.Lock()
	defer t.mu.Unlock()
	return timerHandlers{timeout: t.onTimeout, tick: t.onTick}
}

// NopTurnTimer 不计时，测试和离线回放用
type NopTurnTimer struct{}

func (NopTurnTimer) SetHandlers(TimeoutHandler, TickHandler)       {}
func (NopTurnTimer) StartTimer(string, string, int, time.Duration) {}
func (NopTurnTimer) StopTimer(string)                              {}
func (NopTurnTimer) ExtendTimer(string, time.Duration)             {}
func (NopTurnTimer) GetTimerInfo(string) (TimerInfo, bool)         { return TimerInfo{}, false }
