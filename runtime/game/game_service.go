package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"okey/common/config"
	"okey/common/log"
	"okey/core/domain/entity"
	"okey/core/domain/repository"
	"okey/runtime/game/engines/okey"
	"okey/runtime/game/share"

	"github.com/google/uuid"
)

/*
	房间编排
	1.所有修改都在房间锁内完成：加锁 -> 读状态 -> 校验 -> 修改 -> 校验不变量 -> 保存 -> 释放
	2.事件和计时器操作在保存成功后才执行，失败的请求不产生任何副作用
	3.自身不启动协程，超时和托管由 TurnTimer、AutoPlayer 在外部驱动
*/

type ServiceConfig struct {
	LockTimeout   time.Duration
	LockTTL       time.Duration
	LockRetry     time.Duration
	ConnectionTTL time.Duration
	Turn          okey.TurnConfig
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfigFrom(config.Default().RoomConf)
}

func ServiceConfigFrom(conf config.RoomConf) ServiceConfig {
	return ServiceConfig{
		LockTimeout:   conf.LockTimeout(),
		LockTTL:       conf.LockTTL(),
		LockRetry:     conf.LockRetry(),
		ConnectionTTL: conf.ConnectionTTL(),
		Turn: okey.TurnConfig{
			Duration:       conf.TurnDuration(),
			GraceThreshold: conf.GraceThreshold(),
			GracePeriod:    conf.GracePeriod(),
		},
	}
}

// PlayerInfo 入座请求
type PlayerInfo struct {
	PlayerID     string `json:"playerId"`
	Name         string `json:"name"`
	ConnectionID string `json:"connectionId"`
}

type Option func(*GameService)

func WithShuffler(shuffler okey.Shuffler) Option {
	return func(s *GameService) { s.shuffler = shuffler }
}

func WithChecker(checker *okey.Checker) Option {
	return func(s *GameService) { s.checker = checker }
}

func WithClock(now func() time.Time) Option {
	return func(s *GameService) { s.now = now }
}

func WithTimer(timer TurnTimer) Option {
	return func(s *GameService) { s.timer = timer }
}

func WithNotifier(notifier Notifier) Option {
	return func(s *GameService) { s.notifier = notifier }
}

func WithConnections(conns repository.ConnectionRepository) Option {
	return func(s *GameService) { s.conns = conns }
}

type GameService struct {
	rooms    repository.RoomStateRepository
	locker   repository.RoomLocker
	conns    repository.ConnectionRepository
	timer    TurnTimer
	notifier Notifier

	machine  *okey.StateMachine
	turns    *okey.TurnManager
	checker  *okey.Checker
	shuffler okey.Shuffler

	conf ServiceConfig
	now  func() time.Time
}

func NewGameService(rooms repository.RoomStateRepository, locker repository.RoomLocker, conf ServiceConfig, opts ...Option) *GameService {
	s := &GameService{
		rooms:    rooms,
		locker:   locker,
		timer:    NopTurnTimer{},
		notifier: NopNotifier{},
		machine:  okey.NewStateMachine(),
		conf:     conf,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.checker == nil {
		s.checker = okey.NewChecker(nil, nil)
	}
	if s.shuffler == nil {
		s.shuffler = okey.NewRandShuffler(time.Now().UnixNano())
	}
	s.turns = okey.NewTurnManager(s.machine, conf.Turn).WithClock(s.now)
	return s
}

func (s *GameService) Checker() *okey.Checker {
	return s.checker
}

func (s *GameService) Timer() TurnTimer {
	return s.timer
}

// roomMutation 一次加锁修改的工作区
type roomMutation struct {
	state   *entity.GameRoomState
	now     time.Time
	events  []share.RoomEvent
	after   []func()
	deleted bool
	noop    bool
}

func (m *roomMutation) emit(typ share.EventType, payload any) {
	m.emitTo(typ, "", payload)
}

func (m *roomMutation) emitTo(typ share.EventType, target string, payload any) {
	m.events = append(m.events, share.RoomEvent{
		Type:           typ,
		RoomID:         m.state.RoomID,
		TargetPlayerID: target,
		Timestamp:      m.now,
		Payload:        payload,
	})
}

func (m *roomMutation) then(fn func()) {
	m.after = append(m.after, fn)
}

// withRoomLock fn 返回错误时不保存、不发事件
func (s *GameService) withRoomLock(ctx context.Context, roomID string, fn func(m *roomMutation) error) (*entity.GameRoomState, error) {
	m, err := s.mutate(ctx, roomID, fn)
	if err != nil {
		return nil, err
	}
	for _, f := range m.after {
		f()
	}
	s.publish(ctx, m.events)
	return m.state, nil
}

func (s *GameService) mutate(ctx context.Context, roomID string, fn func(m *roomMutation) error) (*roomMutation, error) {
	lock, err := repository.AcquireRoomLock(ctx, s.locker, roomID, s.conf.LockTimeout, s.conf.LockTTL, s.conf.LockRetry)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("GameService 释放房间锁失败, roomID=%s, err=%v", roomID, err)
		}
	}()

	state, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	m := &roomMutation{state: state, now: s.now()}
	if err := fn(m); err != nil {
		return nil, err
	}
	if m.noop {
		return m, nil
	}

	if m.deleted {
		if err := s.rooms.Delete(ctx, roomID); err != nil {
			return nil, err
		}
		return m, nil
	}
	m.state.UpdatedAt = m.now
	if err := m.state.Validate(); err != nil {
		log.Error("GameService 房间状态校验失败, roomID=%s, err=%v", roomID, err)
		return nil, err
	}
	if err := s.rooms.Save(ctx, m.state); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *GameService) publish(ctx context.Context, events []share.RoomEvent) {
	for _, e := range events {
		s.notifier.Notify(ctx, e)
	}
}

// CreateRoom 创建房间，创建者坐 South
func (s *GameService) CreateRoom(ctx context.Context, name string, creator PlayerInfo) (*entity.GameRoomState, error) {
	if creator.PlayerID == "" {
		return nil, fmt.Errorf("%w: empty player id", ErrInvalidPlayer)
	}
	if err := s.checkNotSeatedElsewhere(ctx, creator.PlayerID, ""); err != nil {
		return nil, err
	}

	now := s.now()
	state := entity.NewGameRoomState(uuid.NewString(), name, now)
	state.OwnerID = creator.PlayerID
	p := seatPlayer(state, creator, entity.South, false, now)

	if err := s.rooms.Save(ctx, state); err != nil {
		return nil, err
	}
	s.saveConnection(ctx, state.RoomID, p)
	s.publish(ctx, []share.RoomEvent{{
		Type:      share.EventPlayerJoined,
		RoomID:    state.RoomID,
		Timestamp: now,
		Payload:   share.PlayerJoinedPayload{PlayerID: p.PlayerID, Name: p.Name, Position: p.Position},
	}})
	log.Info("GameService 创建房间成功: %s, 房主: %s", state.RoomID, creator.PlayerID)
	return state, nil
}

// JoinRoom 已在座的玩家再次加入视为重连
func (s *GameService) JoinRoom(ctx context.Context, roomID string, player PlayerInfo) (*entity.GameRoomState, error) {
	if player.PlayerID == "" {
		return nil, fmt.Errorf("%w: empty player id", ErrInvalidPlayer)
	}
	if err := s.checkNotSeatedElsewhere(ctx, player.PlayerID, roomID); err != nil {
		return nil, err
	}

	var joined *entity.PlayerState
	state, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		if p, ok := m.state.Players[player.PlayerID]; ok {
			s.reconnect(m, p, player.ConnectionID, true)
			joined = p
			return nil
		}
		if err := s.requireJoinable(m.state); err != nil {
			return err
		}
		pos, ok := m.state.FreePosition()
		if !ok {
			return fmt.Errorf("%w: %s", ErrRoomFull, roomID)
		}
		joined = seatPlayer(m.state, player, pos, false, m.now)
		m.emit(share.EventPlayerJoined, share.PlayerJoinedPayload{
			PlayerID: joined.PlayerID,
			Name:     joined.Name,
			Position: joined.Position,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.saveConnection(ctx, roomID, joined)
	return state, nil
}

// AddBot 空座位补一个机器人
func (s *GameService) AddBot(ctx context.Context, roomID string) (*entity.PlayerState, error) {
	var bot *entity.PlayerState
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		if err := s.requireJoinable(m.state); err != nil {
			return err
		}
		pos, ok := m.state.FreePosition()
		if !ok {
			return fmt.Errorf("%w: %s", ErrRoomFull, roomID)
		}
		info := PlayerInfo{
			PlayerID: "bot-" + uuid.NewString(),
			Name:     fmt.Sprintf("Bot %s", pos),
		}
		bot = seatPlayer(m.state, info, pos, true, m.now)
		m.emit(share.EventPlayerJoined, share.PlayerJoinedPayload{
			PlayerID: bot.PlayerID,
			Name:     bot.Name,
			Position: bot.Position,
			IsBot:    true,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	cp := *bot
	return &cp, nil
}

func (s *GameService) requireJoinable(state *entity.GameRoomState) error {
	if state.Phase.IsTerminal() {
		return fmt.Errorf("%w: room %s is %s", ErrRoundOver, state.RoomID, state.Phase)
	}
	if state.Phase != entity.PhaseWaitingForPlayers {
		return fmt.Errorf("%w: cannot join in %s", ErrWrongPhase, state.Phase)
	}
	return nil
}

func seatPlayer(state *entity.GameRoomState, info PlayerInfo, pos entity.Position, bot bool, now time.Time) *entity.PlayerState {
	name := info.Name
	if name == "" {
		name = info.PlayerID
	}
	p := &entity.PlayerState{
		PlayerID:     info.PlayerID,
		Name:         name,
		Position:     pos,
		Hand:         []int{},
		IsBot:        bot,
		IsConnected:  true,
		ConnectionID: info.ConnectionID,
		ConnectedAt:  now,
	}
	state.Players[p.PlayerID] = p
	return p
}

// LeaveRoom 对局中离开会取消本局，最后一人离开删除房间
func (s *GameService) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		state := m.state
		p, ok := state.Players[playerID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotInRoom, playerID)
		}
		delete(state.Players, playerID)

		switch {
		case state.Phase.RoundInProgress():
			if err := s.cancelRound(m, fmt.Sprintf("player %s left", playerID)); err != nil {
				return err
			}
		case state.Phase == entity.PhaseReadyToStart:
			phase, err := s.machine.TransitionGame(state.Phase, entity.PhaseWaitingForPlayers)
			if err != nil {
				return err
			}
			state.Phase = phase
		}

		if state.OwnerID == playerID {
			state.OwnerID = ""
			if rest := state.SortedPlayers(); len(rest) > 0 {
				state.OwnerID = rest[0].PlayerID
			}
		}
		if len(state.Players) == 0 {
			m.deleted = true
			m.then(func() { s.timer.StopTimer(roomID) })
		}
		m.emit(share.EventPlayerLeft, share.PlayerLeftPayload{
			PlayerID: playerID,
			Position: p.Position,
			RoomGone: m.deleted,
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.removeConnection(ctx, playerID)
	log.Info("GameService 玩家离开房间: %s, roomID=%s", playerID, roomID)
	return nil
}

// CancelRoom 外部取消，例如管理端或对局异常
func (s *GameService) CancelRoom(ctx context.Context, roomID, reason string) error {
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		if m.state.Phase.IsTerminal() {
			return fmt.Errorf("%w: room %s is %s", ErrRoundOver, roomID, m.state.Phase)
		}
		return s.cancelRound(m, reason)
	})
	return err
}

func (s *GameService) cancelRound(m *roomMutation, reason string) error {
	state := m.state
	phase, err := s.machine.TransitionGame(state.Phase, entity.PhaseCancelled)
	if err != nil {
		return err
	}
	state.Phase = phase
	state.Result = &entity.RoundResult{
		FinishingTileID: -1,
		Reason:          reason,
		EndedAt:         m.now,
	}
	clearCurrentTurn(state)
	m.emit(share.EventGameCancelled, share.GameCancelledPayload{Reason: reason})
	m.then(func() { s.timer.StopTimer(state.RoomID) })
	return nil
}

// StartGame 四人坐满后洗牌发牌，South 持 15 张直接进入出牌阶段
func (s *GameService) StartGame(ctx context.Context, roomID, playerID string) (*entity.GameRoomState, error) {
	state, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		state := m.state
		if _, ok := state.Players[playerID]; !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotInRoom, playerID)
		}
		if state.Phase.IsTerminal() {
			return fmt.Errorf("%w: room %s is %s", ErrRoundOver, roomID, state.Phase)
		}
		if state.Phase != entity.PhaseWaitingForPlayers {
			return fmt.Errorf("%w: cannot start in %s", ErrWrongPhase, state.Phase)
		}
		if n := len(state.Players); n != entity.MaxPlayers {
			return fmt.Errorf("%w: %d seated", ErrNotEnoughPlayers, n)
		}

		phase := state.Phase
		for _, next := range []entity.GamePhase{entity.PhaseReadyToStart, entity.PhaseShuffling, entity.PhaseDealing} {
			var err error
			if phase, err = s.machine.TransitionGame(phase, next); err != nil {
				return err
			}
		}

		deal, err := okey.Deal(s.shuffler)
		if err != nil {
			return err
		}
		state.Tiles = deal.Tiles
		state.IndicatorTileID = deal.IndicatorID
		state.Deck = deal.Deck
		state.DiscardPiles = make(map[entity.Position][]int, entity.MaxPlayers)
		for _, pos := range entity.AllPositions {
			p := state.PlayerAt(pos)
			p.Hand = deal.Hands[pos]
			state.DiscardPiles[pos] = []int{}
		}
		if state.Phase, err = s.machine.TransitionGame(phase, entity.PhasePlaying); err != nil {
			return err
		}
		state.Result = nil

		first := state.PlayerAt(entity.South)
		tc := s.turns.StartTurn(roomID, first.PlayerID, entity.South, 1, true)
		applyTurn(state, tc, m.now)

		indicator := state.Tiles[state.IndicatorTileID]
		for _, p := range state.SortedPlayers() {
			m.emitTo(share.EventGameStarted, p.PlayerID, share.GameStartedPayload{
				Indicator:     indicator,
				Hand:          state.HandTiles(p),
				Position:      p.Position,
				FirstPlayerID: first.PlayerID,
				DeckCount:     len(state.Deck),
			})
		}
		s.emitTurnChanged(m, tc)
		emitPileCounts(m)
		m.then(func() { s.timer.StartTimer(roomID, tc.PlayerID, tc.TurnNumber, s.conf.Turn.Duration) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("GameService 开局: %s, 指示牌: %s", roomID, state.Tiles[state.IndicatorTileID])
	return state, nil
}

// GetRoomState 不加锁的快照，只读
func (s *GameService) GetRoomState(ctx context.Context, roomID string) (*entity.GameRoomState, error) {
	return s.rooms.Get(ctx, roomID)
}

func (s *GameService) ListRooms(ctx context.Context) ([]*entity.GameRoomState, error) {
	ids, err := s.rooms.List(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]*entity.GameRoomState, 0, len(ids))
	for _, id := range ids {
		state, err := s.rooms.Get(ctx, id)
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// FindPlayerRoom 通过连接映射找到玩家所在房间
func (s *GameService) FindPlayerRoom(ctx context.Context, playerID string) (string, error) {
	if s.conns == nil {
		return "", repository.ErrConnectionNotFound
	}
	conn, err := s.conns.GetConnection(ctx, playerID)
	if err != nil {
		return "", err
	}
	return conn.RoomID, nil
}

func (s *GameService) checkNotSeatedElsewhere(ctx context.Context, playerID, roomID string) error {
	other, err := s.FindPlayerRoom(ctx, playerID)
	if err != nil || other == roomID {
		return nil
	}
	state, err := s.rooms.Get(ctx, other)
	if err != nil {
		return nil
	}
	if _, ok := state.Players[playerID]; ok && !state.Phase.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrPlayerInRoom, other)
	}
	return nil
}

func (s *GameService) saveConnection(ctx context.Context, roomID string, p *entity.PlayerState) {
	if s.conns == nil || p == nil || p.IsBot {
		return
	}
	conn := &entity.PlayerConnection{
		PlayerID:     p.PlayerID,
		RoomID:       roomID,
		ConnectionID: p.ConnectionID,
		ConnectedAt:  p.ConnectedAt,
	}
	if err := s.conns.SaveConnection(ctx, conn, s.conf.ConnectionTTL); err != nil {
		log.Warn("GameService 保存连接映射失败, playerID=%s, err=%v", p.PlayerID, err)
	}
}

func (s *GameService) removeConnection(ctx context.Context, playerID string) {
	if s.conns == nil {
		return
	}
	if err := s.conns.RemoveConnection(ctx, playerID); err != nil && !errors.Is(err, repository.ErrConnectionNotFound) {
		log.Warn("GameService 删除连接映射失败, playerID=%s, err=%v", playerID, err)
	}
}

// applyTurn 把回合快照写回房间状态
func applyTurn(state *entity.GameRoomState, tc okey.TurnContext, now time.Time) {
	if state.CurrentPlayerID != tc.PlayerID || state.TurnNumber != tc.TurnNumber {
		state.TurnStartedAt = now
	}
	state.CurrentPlayerID = tc.PlayerID
	state.CurrentPosition = tc.Position
	state.TurnNumber = tc.TurnNumber
	state.TurnPhase = tc.Phase
	state.TurnExpiresAt = tc.ExpiresAt
	state.AutoPlay = tc.IsAutoPlay
	for _, p := range state.Players {
		p.IsCurrentTurn = p.PlayerID == tc.PlayerID
		p.HasDrawnThisTurn = p.IsCurrentTurn && tc.HasDrawn
	}
}

func clearCurrentTurn(state *entity.GameRoomState) {
	for _, p := range state.Players {
		p.IsCurrentTurn = false
		p.HasDrawnThisTurn = false
	}
}

func (s *GameService) emitTurnChanged(m *roomMutation, tc okey.TurnContext) {
	p := m.state.Players[tc.PlayerID]
	m.emit(share.EventTurnChanged, share.TurnChangedPayload{
		PlayerID:   tc.PlayerID,
		Position:   tc.Position,
		TurnNumber: tc.TurnNumber,
		Phase:      tc.Phase,
		ExpiresAt:  tc.ExpiresAt,
		IsBot:      p != nil && p.IsBot,
	})
}

func emitPileCounts(m *roomMutation) {
	counts := make(map[entity.Position]int, len(m.state.DiscardPiles))
	for pos, pile := range m.state.DiscardPiles {
		counts[pos] = len(pile)
	}
	m.emit(share.EventPileCountsUpdated, share.PileCountsPayload{
		DeckCount:     len(m.state.Deck),
		DiscardCounts: counts,
	})
}
