package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"okey/core/domain/entity"
	"okey/core/infrastructure/cache"
	"okey/core/infrastructure/local"
	"okey/runtime/game/engines/okey"
	"okey/runtime/game/share"

	"github.com/stretchr/testify/require"
)

// eventLog 收集发布的事件
type eventLog struct {
	mu     sync.Mutex
	events []share.RoomEvent
}

func (l *eventLog) Notify(_ context.Context, event share.RoomEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) ofType(typ share.EventType) []share.RoomEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []share.RoomEvent
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

type timerCall struct {
	op         string
	roomID     string
	playerID   string
	turnNumber int
	d          time.Duration
}

// recordingTimer 只记录调用，不计时
type recordingTimer struct {
	NopTurnTimer
	mu    sync.Mutex
	calls []timerCall
}

func (r *recordingTimer) StartTimer(roomID, playerID string, turnNumber int, d time.Duration) {
	r.record(timerCall{op: "start", roomID: roomID, playerID: playerID, turnNumber: turnNumber, d: d})
}

func (r *recordingTimer) StopTimer(roomID string) {
	r.record(timerCall{op: "stop", roomID: roomID})
}

func (r *recordingTimer) ExtendTimer(roomID string, extra time.Duration) {
	r.record(timerCall{op: "extend", roomID: roomID, d: extra})
}

func (r *recordingTimer) record(c timerCall) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recordingTimer) last() timerCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return timerCall{}
	}
	return r.calls[len(r.calls)-1]
}

type fixture struct {
	svc    *GameService
	rooms  *local.MemoryRoomStateStore
	locker *local.MemoryRoomLocker
	conns  *cache.ConnectionCache
	events *eventLog
	timer  *recordingTimer
	now    time.Time
}

type fixtureOption func(*ServiceConfig, *[]Option)

func withShuffler(shuffler okey.Shuffler) fixtureOption {
	return func(_ *ServiceConfig, opts *[]Option) {
		*opts = append(*opts, WithShuffler(shuffler))
	}
}

func withLockTimeout(d time.Duration) fixtureOption {
	return func(conf *ServiceConfig, _ *[]Option) {
		conf.LockTimeout = d
		conf.LockRetry = 5 * time.Millisecond
	}
}

// withNotifier 替换事件出口，需要自行转发给 f.events
func withNotifier(n Notifier) fixtureOption {
	return func(_ *ServiceConfig, opts *[]Option) {
		*opts = append(*opts, WithNotifier(n))
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	conns, err := cache.NewConnectionCache(1<<12, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(conns.Close)

	f := &fixture{
		rooms:  local.NewMemoryRoomStateStore(),
		locker: local.NewMemoryRoomLocker(),
		conns:  conns,
		events: &eventLog{},
		timer:  &recordingTimer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	conf := DefaultServiceConfig()
	svcOpts := []Option{
		WithShuffler(okey.NewRandShuffler(20260301)),
		WithClock(func() time.Time { return f.now }),
		WithTimer(f.timer),
		WithNotifier(f.events),
		WithConnections(conns),
	}
	for _, opt := range opts {
		opt(&conf, &svcOpts)
	}
	f.svc = NewGameService(f.rooms, f.locker, conf, svcOpts...)
	return f
}

func (f *fixture) state(t *testing.T, roomID string) *entity.GameRoomState {
	t.Helper()
	state, err := f.svc.GetRoomState(context.Background(), roomID)
	require.NoError(t, err)
	return state
}

// seatFour p1..p4 依次坐 South、West、North、East
func (f *fixture) seatFour(t *testing.T) (string, []string) {
	t.Helper()
	ctx := context.Background()
	ids := []string{"p1", "p2", "p3", "p4"}
	state, err := f.svc.CreateRoom(ctx, "table", PlayerInfo{PlayerID: ids[0], Name: "Alice", ConnectionID: "c1"})
	require.NoError(t, err)
	for i, id := range ids[1:] {
		_, err := f.svc.JoinRoom(ctx, state.RoomID, PlayerInfo{PlayerID: id, ConnectionID: "c" + string(rune('2'+i))})
		require.NoError(t, err)
	}
	return state.RoomID, ids
}

func (f *fixture) startedRoom(t *testing.T) (string, []string) {
	t.Helper()
	roomID, ids := f.seatFour(t)
	_, err := f.svc.StartGame(context.Background(), roomID, ids[0])
	require.NoError(t, err)
	return roomID, ids
}

// riggedShuffler 指示牌放最前，随后是 South 的 15 张，其余按 ID 顺序
type riggedShuffler struct {
	order []int
}

func (r riggedShuffler) Shuffle(ids []int) {
	copy(ids, r.order)
}

func newRiggedShuffler(indicator int, south []int) riggedShuffler {
	used := map[int]bool{indicator: true}
	order := []int{indicator}
	for _, id := range south {
		order = append(order, id)
		used[id] = true
	}
	for id := 0; id < entity.TotalTileCount; id++ {
		if !used[id] {
			order = append(order, id)
		}
	}
	return riggedShuffler{order: order}
}

// winningSouth Y1-4, B4-7, 9 三色刻, R11-13 外加 B11；指示牌 Black-5，okey 为 Black-6
func winningSouth() (indicator int, south []int, finishing int) {
	faces := []entity.Face{
		{Color: entity.Yellow, Value: 1}, {Color: entity.Yellow, Value: 2}, {Color: entity.Yellow, Value: 3}, {Color: entity.Yellow, Value: 4},
		{Color: entity.Blue, Value: 4}, {Color: entity.Blue, Value: 5}, {Color: entity.Blue, Value: 6}, {Color: entity.Blue, Value: 7},
		{Color: entity.Red, Value: 9}, {Color: entity.Black, Value: 9}, {Color: entity.Yellow, Value: 9},
		{Color: entity.Red, Value: 11}, {Color: entity.Red, Value: 12}, {Color: entity.Red, Value: 13},
		{Color: entity.Blue, Value: 11},
	}
	for _, f := range faces {
		south = append(south, entity.TileID(f.Color, f.Value, 0))
	}
	return entity.TileID(entity.Black, 5, 0), south, entity.TileID(entity.Blue, 11, 0)
}
