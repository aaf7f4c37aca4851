package okey

import (
	"fmt"
	"time"

	"okey/core/domain/entity"
)

const (
	DefaultTurnDuration   = 30 * time.Second
	DefaultGraceThreshold = 5 * time.Second
	DefaultGracePeriod    = 10 * time.Second
)

// TurnContext 一个回合的不可变快照，所有动作都返回新的副本
type TurnContext struct {
	RoomID          string           `json:"roomId"`
	PlayerID        string           `json:"playerId"`
	Position        entity.Position  `json:"position"`
	TurnNumber      int              `json:"turnNumber"`
	Phase           entity.TurnPhase `json:"phase"`
	IsFirstTurn     bool             `json:"isFirstTurn"`
	Duration        time.Duration    `json:"duration"`
	DrewFromDiscard bool             `json:"drewFromDiscard"`
	HasDrawn        bool             `json:"hasDrawn"`
	HasDiscarded    bool             `json:"hasDiscarded"`
	IsConnected     bool             `json:"isConnected"`
	IsAutoPlay      bool             `json:"isAutoPlay"`
	ExpiresAt       time.Time        `json:"expiresAt"`
}

// WinDeclaration 宣告胡牌的预检结果，调用方需再跑胡牌判定才能提交
type WinDeclaration struct {
	Context           TurnContext
	RequiresRuleCheck bool
}

type TurnConfig struct {
	Duration       time.Duration
	GraceThreshold time.Duration
	GracePeriod    time.Duration
}

func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		Duration:       DefaultTurnDuration,
		GraceThreshold: DefaultGraceThreshold,
		GracePeriod:    DefaultGracePeriod,
	}
}

// TurnManager 回合动作的纯函数集合，只依赖迁移表和时钟
type TurnManager struct {
	machine *StateMachine
	conf    TurnConfig
	now     func() time.Time
}

func NewTurnManager(machine *StateMachine, conf TurnConfig) *TurnManager {
	if machine == nil {
		machine = NewStateMachine()
	}
	return &TurnManager{machine: machine, conf: conf, now: time.Now}
}

// WithClock 替换时钟，测试用
func (tm *TurnManager) WithClock(now func() time.Time) *TurnManager {
	tm.now = now
	return tm
}

func (tm *TurnManager) Config() TurnConfig {
	return tm.conf
}

func (tm *TurnManager) Now() time.Time {
	return tm.now()
}

// StartTurn 新回合；首回合玩家已持有 15 张，直接等待出牌
func (tm *TurnManager) StartTurn(roomID, playerID string, pos entity.Position, turnNumber int, firstTurn bool) TurnContext {
	now := tm.now()
	return TurnContext{
		RoomID:      roomID,
		PlayerID:    playerID,
		Position:    pos,
		TurnNumber:  turnNumber,
		Phase:       tm.machine.InitialTurnPhase(firstTurn),
		IsFirstTurn: firstTurn,
		Duration:    tm.conf.Duration,
		HasDrawn:    firstTurn,
		IsConnected: true,
		ExpiresAt:   now.Add(tm.conf.Duration),
	}
}

// ContextFromState 从房间状态还原当前回合快照
func ContextFromState(state *entity.GameRoomState, duration time.Duration) (TurnContext, bool) {
	p, ok := state.Players[state.CurrentPlayerID]
	if !ok || state.Phase != entity.PhasePlaying {
		return TurnContext{}, false
	}
	return TurnContext{
		RoomID:      state.RoomID,
		PlayerID:    p.PlayerID,
		Position:    p.Position,
		TurnNumber:  state.TurnNumber,
		Phase:       state.TurnPhase,
		IsFirstTurn: state.TurnNumber == 1,
		Duration:    duration,
		HasDrawn:    p.HasDrawnThisTurn,
		IsConnected: p.IsConnected,
		IsAutoPlay:  state.AutoPlay,
		ExpiresAt:   state.TurnExpiresAt,
	}, true
}

func (tm *TurnManager) checkActor(tc TurnContext, actor string) error {
	if actor != tc.PlayerID {
		return fmt.Errorf("%w: current player is %s", ErrNotCurrentPlayer, tc.PlayerID)
	}
	return nil
}

func (tm *TurnManager) ProcessDraw(tc TurnContext, actor string, fromDiscard bool) (TurnContext, error) {
	if err := tm.checkActor(tc, actor); err != nil {
		return tc, err
	}
	if tc.HasDrawn {
		return tc, ErrAlreadyDrawn
	}
	if tc.Phase != entity.TurnWaitingForDraw {
		return tc, fmt.Errorf("%w: draw in %s", ErrWrongTurnPhase, tc.Phase)
	}
	phase, err := tm.machine.TransitionTurn(tc.Phase, entity.TurnWaitingForDiscard)
	if err != nil {
		return tc, err
	}

	next := tc
	next.Phase = phase
	next.HasDrawn = true
	next.DrewFromDiscard = fromDiscard
	return next, nil
}

func (tm *TurnManager) ProcessDiscard(tc TurnContext, actor string) (TurnContext, error) {
	if err := tm.checkActor(tc, actor); err != nil {
		return tc, err
	}
	if !tc.HasDrawn {
		return tc, ErrNotDrawn
	}
	if tc.Phase != entity.TurnWaitingForDiscard {
		return tc, fmt.Errorf("%w: discard in %s", ErrWrongTurnPhase, tc.Phase)
	}
	phase, err := tm.machine.TransitionTurn(tc.Phase, entity.TurnCompleted)
	if err != nil {
		return tc, err
	}

	next := tc
	next.Phase = phase
	next.HasDiscarded = true
	return next, nil
}

// ProcessWinDeclaration 只在摸牌后、出牌前合法，不改变阶段
func (tm *TurnManager) ProcessWinDeclaration(tc TurnContext, actor string) (WinDeclaration, error) {
	if err := tm.checkActor(tc, actor); err != nil {
		return WinDeclaration{Context: tc}, err
	}
	if !tc.HasDrawn {
		return WinDeclaration{Context: tc}, ErrNotDrawn
	}
	if tc.Phase != entity.TurnWaitingForDiscard {
		return WinDeclaration{Context: tc}, fmt.Errorf("%w: declare win in %s", ErrWrongTurnPhase, tc.Phase)
	}
	return WinDeclaration{Context: tc, RequiresRuleCheck: true}, nil
}

// ProcessTimeout 标记托管，阶段不变，由编排层决定兜底动作
func (tm *TurnManager) ProcessTimeout(tc TurnContext) TurnContext {
	next := tc
	next.IsAutoPlay = true
	return next
}

// NextTurn TurnCompleted -> WaitingForDraw，轮到下家
func (tm *TurnManager) NextTurn(tc TurnContext, nextPlayerID string) (TurnContext, error) {
	phase, err := tm.machine.TransitionTurn(tc.Phase, entity.TurnWaitingForDraw)
	if err != nil {
		return tc, err
	}
	now := tm.now()
	return TurnContext{
		RoomID:      tc.RoomID,
		PlayerID:    nextPlayerID,
		Position:    NextPosition(tc.Position),
		TurnNumber:  tc.TurnNumber + 1,
		Phase:       phase,
		Duration:    tm.conf.Duration,
		IsConnected: true,
		ExpiresAt:   now.Add(tm.conf.Duration),
	}, nil
}

func (tm *TurnManager) HandleDisconnect(tc TurnContext, playerID string) TurnContext {
	return tm.connectionChanged(tc, playerID, false)
}

func (tm *TurnManager) HandleReconnect(tc TurnContext, playerID string) TurnContext {
	return tm.connectionChanged(tc, playerID, true)
}

// connectionChanged 当前出牌者剩余时间不足阈值时补偿宽限时间，其余情况不动计时
func (tm *TurnManager) connectionChanged(tc TurnContext, playerID string, connected bool) TurnContext {
	if playerID != tc.PlayerID {
		return tc
	}
	next := tc
	next.IsConnected = connected
	if tc.ExpiresAt.Sub(tm.now()) < tm.conf.GraceThreshold {
		next.ExpiresAt = tc.ExpiresAt.Add(tm.conf.GracePeriod)
	}
	return next
}
