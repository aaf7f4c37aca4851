package game

import (
	"context"
	"fmt"
	"time"

	"okey/common/log"
	"okey/core/domain/entity"
	"okey/runtime/game/engines/okey"
	"okey/runtime/game/share"
)

type DrawResult struct {
	Tile        entity.Tile         `json:"tile"`
	FromDiscard bool                `json:"fromDiscard"`
	RoundEnded  bool                `json:"roundEnded"`
	Result      *entity.RoundResult `json:"result,omitempty"`
}

type DiscardResult struct {
	Tile         entity.Tile     `json:"tile"`
	NextPlayerID string          `json:"nextPlayerId"`
	NextPosition entity.Position `json:"nextPosition"`
	TurnNumber   int             `json:"turnNumber"`
}

type WinOutcome struct {
	Result *entity.RoundResult `json:"result"`
	Win    *okey.WinResult     `json:"win"`
}

// AutoPlaySignal 超时后需要托管出手的回合
type AutoPlaySignal struct {
	RoomID     string `json:"roomId"`
	PlayerID   string `json:"playerId"`
	TurnNumber int    `json:"turnNumber"`
	NeedsDraw  bool   `json:"needsDraw"`
}

// turnOf 校验对局进行中并还原当前回合
func (s *GameService) turnOf(state *entity.GameRoomState, playerID string) (*entity.PlayerState, okey.TurnContext, error) {
	if state.Phase.IsTerminal() {
		return nil, okey.TurnContext{}, fmt.Errorf("%w: room %s is %s", ErrRoundOver, state.RoomID, state.Phase)
	}
	if state.Phase != entity.PhasePlaying {
		return nil, okey.TurnContext{}, fmt.Errorf("%w: %s", ErrWrongPhase, state.Phase)
	}
	p, ok := state.Players[playerID]
	if !ok {
		return nil, okey.TurnContext{}, fmt.Errorf("%w: %s", ErrPlayerNotInRoom, playerID)
	}
	tc, ok := okey.ContextFromState(state, s.conf.Turn.Duration)
	if !ok {
		return nil, okey.TurnContext{}, fmt.Errorf("%w: no current player", entity.ErrInvariantViolation)
	}
	return p, tc, nil
}

// DrawTile 从牌墙或上家弃牌堆摸一张，牌墙摸空时流局
func (s *GameService) DrawTile(ctx context.Context, roomID, playerID string, fromDiscard bool) (*DrawResult, error) {
	var out DrawResult
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		state := m.state
		p, tc, err := s.turnOf(state, playerID)
		if err != nil {
			return err
		}
		next, err := s.turns.ProcessDraw(tc, playerID, fromDiscard)
		if err != nil {
			return err
		}

		var tileID int
		if fromDiscard {
			from := okey.PreviousPosition(p.Position)
			tileID = state.TopDiscard(from)
			if tileID < 0 {
				return fmt.Errorf("%w: %s pile", ErrDiscardPileEmpty, from)
			}
			pile := state.DiscardPiles[from]
			state.DiscardPiles[from] = pile[:len(pile)-1]
		} else {
			if len(state.Deck) == 0 {
				out.RoundEnded = true
				out.Result = s.finishDeckEmpty(m)
				return nil
			}
			tileID = state.Deck[0]
			state.Deck = state.Deck[1:]
		}

		p.Hand = append(p.Hand, tileID)
		applyTurn(state, next, m.now)
		tile := state.Tiles[tileID]
		out.Tile = tile
		out.FromDiscard = fromDiscard

		public := share.TileDrawnPayload{PlayerID: playerID, Position: p.Position, FromDiscard: fromDiscard}
		if fromDiscard {
			public.DiscardTop = &tile
		}
		private := public
		private.Tile = &tile
		m.emit(share.EventTileDrawn, public)
		m.emitTo(share.EventTileDrawn, playerID, private)
		emitPileCounts(m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DiscardTile 打出一张牌，回合交给下家
func (s *GameService) DiscardTile(ctx context.Context, roomID, playerID string, tileID int) (*DiscardResult, error) {
	var out DiscardResult
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		state := m.state
		p, tc, err := s.turnOf(state, playerID)
		if err != nil {
			return err
		}
		done, err := s.turns.ProcessDiscard(tc, playerID)
		if err != nil {
			return err
		}
		if !p.RemoveFromHand(tileID) {
			return fmt.Errorf("%w: %d", ErrTileNotInHand, tileID)
		}
		state.DiscardPiles[p.Position] = append(state.DiscardPiles[p.Position], tileID)

		nextPlayer := state.PlayerAt(okey.NextPosition(p.Position))
		if nextPlayer == nil {
			return fmt.Errorf("%w: seat %s empty", entity.ErrInvariantViolation, okey.NextPosition(p.Position))
		}
		next, err := s.turns.NextTurn(done, nextPlayer.PlayerID)
		if err != nil {
			return err
		}
		applyTurn(state, next, m.now)

		out = DiscardResult{
			Tile:         state.Tiles[tileID],
			NextPlayerID: next.PlayerID,
			NextPosition: next.Position,
			TurnNumber:   next.TurnNumber,
		}
		m.emit(share.EventTileDiscarded, share.TileDiscardedPayload{
			PlayerID:     playerID,
			Position:     p.Position,
			Tile:         out.Tile,
			NextPlayerID: next.PlayerID,
			NextPosition: next.Position,
		})
		s.emitTurnChanged(m, next)
		emitPileCounts(m)
		m.then(func() { s.timer.StartTimer(roomID, next.PlayerID, next.TurnNumber, s.conf.Turn.Duration) })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeclareWin 摸牌后宣告胡牌，finishingTileID 为 okey.AnyTile 时由判定挑选收尾牌
func (s *GameService) DeclareWin(ctx context.Context, roomID, playerID string, finishingTileID int) (*WinOutcome, error) {
	var out WinOutcome
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		state := m.state
		p, tc, err := s.turnOf(state, playerID)
		if err != nil {
			return err
		}
		if _, err := s.turns.ProcessWinDeclaration(tc, playerID); err != nil {
			return err
		}
		if finishingTileID != okey.AnyTile && p.HandIndex(finishingTileID) < 0 {
			return fmt.Errorf("%w: %d", ErrTileNotInHand, finishingTileID)
		}

		win, err := s.checker.CheckWinningHandWith(state.HandTiles(p), finishingTileID)
		if err != nil {
			log.Error("GameService 胡牌判定异常, roomID=%s, playerID=%s, err=%v", roomID, playerID, err)
			return err
		}
		if !win.IsWinning {
			return fmt.Errorf("%w: %s", ErrNotWinningHand, win.Reason)
		}

		finishing := win.FinishingTile.ID
		p.RemoveFromHand(finishing)
		state.DiscardPiles[p.Position] = append(state.DiscardPiles[p.Position], finishing)

		hands := make(map[string][]entity.Tile, len(state.Players))
		for id, player := range state.Players {
			hands[id] = state.HandTiles(player)
		}
		result := &entity.RoundResult{
			WinnerID:        playerID,
			WinType:         win.WinType,
			Score:           win.Score,
			FinishingTileID: finishing,
			Penalties:       s.checker.Scorer().Penalties(win, playerID, hands),
			EndedAt:         m.now,
		}
		if err := s.finishRound(m, result, hands); err != nil {
			return err
		}
		out = WinOutcome{Result: result, Win: win}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("GameService 胡牌: roomID=%s, winner=%s, type=%s, score=%d", roomID, playerID, out.Result.WinType, out.Result.Score)
	return &out, nil
}

func (s *GameService) finishDeckEmpty(m *roomMutation) *entity.RoundResult {
	ids := make([]string, 0, len(m.state.Players))
	hands := make(map[string][]entity.Tile, len(m.state.Players))
	for _, p := range m.state.SortedPlayers() {
		ids = append(ids, p.PlayerID)
		hands[p.PlayerID] = m.state.HandTiles(p)
	}
	result := &entity.RoundResult{
		WinType:         entity.WinDeckEmpty,
		Score:           okey.DeckEmptyScore,
		FinishingTileID: -1,
		Penalties:       s.checker.Scorer().DeckEmpty(ids),
		Reason:          "deck exhausted",
		EndedAt:         m.now,
	}
	// Playing -> Finished 恒合法
	_ = s.finishRound(m, result, hands)
	return result
}

func (s *GameService) finishRound(m *roomMutation, result *entity.RoundResult, hands map[string][]entity.Tile) error {
	state := m.state
	phase, err := s.machine.TransitionGame(state.Phase, entity.PhaseFinished)
	if err != nil {
		return err
	}
	state.Phase = phase
	state.Result = result
	clearCurrentTurn(state)

	payload := share.GameEndedPayload{
		WinnerID:  result.WinnerID,
		WinType:   result.WinType,
		Score:     result.Score,
		Penalties: result.Penalties,
		Hands:     hands,
	}
	if t, ok := state.TileByID(result.FinishingTileID); ok {
		payload.FinishingTile = &t
	}
	m.emit(share.EventGameEnded, payload)
	emitPileCounts(m)
	m.then(func() { s.timer.StopTimer(state.RoomID) })
	return nil
}

// HandleTimeout 计时器回调，回合号或出牌人不一致说明是过期的超时，直接忽略
func (s *GameService) HandleTimeout(ctx context.Context, roomID, playerID string, turnNumber int) (*AutoPlaySignal, error) {
	var signal *AutoPlaySignal
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		state := m.state
		if state.Phase != entity.PhasePlaying || state.TurnNumber != turnNumber || state.CurrentPlayerID != playerID {
			log.Debug("GameService 忽略过期超时, roomID=%s, turn=%d, current=%d", roomID, turnNumber, state.TurnNumber)
			m.noop = true
			return nil
		}
		p, tc, err := s.turnOf(state, playerID)
		if err != nil {
			return err
		}
		applyTurn(state, s.turns.ProcessTimeout(tc), m.now)

		signal = &AutoPlaySignal{
			RoomID:     roomID,
			PlayerID:   playerID,
			TurnNumber: turnNumber,
			NeedsDraw:  !p.HasDrawnThisTurn,
		}
		m.emit(share.EventAutoPlayTriggered, share.AutoPlayPayload{PlayerID: playerID, TurnNumber: turnNumber})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signal, nil
}

// Reconnect 刷新连接信息，当前出牌者剩余时间不足时补偿宽限
func (s *GameService) Reconnect(ctx context.Context, roomID, playerID, connectionID string) (*entity.GameRoomState, error) {
	var player *entity.PlayerState
	state, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		p, ok := m.state.Players[playerID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotInRoom, playerID)
		}
		s.reconnect(m, p, connectionID, false)
		player = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.saveConnection(ctx, roomID, player)
	return state, nil
}

func (s *GameService) Disconnect(ctx context.Context, roomID, playerID string) error {
	_, err := s.withRoomLock(ctx, roomID, func(m *roomMutation) error {
		p, ok := m.state.Players[playerID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrPlayerNotInRoom, playerID)
		}
		p.IsConnected = false
		p.DisconnectedAt = m.now
		s.applyGrace(m, playerID, false)
		m.emit(share.EventPlayerConnection, share.PlayerConnectionPayload{
			PlayerID:      playerID,
			Connected:     false,
			TurnExpiresAt: m.state.TurnExpiresAt,
		})
		return nil
	})
	return err
}

func (s *GameService) reconnect(m *roomMutation, p *entity.PlayerState, connectionID string, rejoin bool) {
	p.IsConnected = true
	if connectionID != "" {
		p.ConnectionID = connectionID
	}
	p.ConnectedAt = m.now
	s.applyGrace(m, p.PlayerID, true)
	if rejoin {
		m.emit(share.EventPlayerJoined, share.PlayerJoinedPayload{
			PlayerID:    p.PlayerID,
			Name:        p.Name,
			Position:    p.Position,
			IsBot:       p.IsBot,
			Reconnected: true,
		})
	}
	m.emit(share.EventPlayerConnection, share.PlayerConnectionPayload{
		PlayerID:      p.PlayerID,
		Connected:     true,
		TurnExpiresAt: m.state.TurnExpiresAt,
	})
}

func (s *GameService) applyGrace(m *roomMutation, playerID string, connected bool) {
	state := m.state
	tc, ok := okey.ContextFromState(state, s.conf.Turn.Duration)
	if !ok {
		return
	}
	next := s.turns.HandleDisconnect(tc, playerID)
	if connected {
		next = s.turns.HandleReconnect(tc, playerID)
	}
	if extra := next.ExpiresAt.Sub(tc.ExpiresAt); extra > 0 {
		state.TurnExpiresAt = next.ExpiresAt
		m.then(func() { s.timer.ExtendTimer(state.RoomID, extra) })
	}
}

// NotifyTick 倒计时推送，不读写房间状态
func (s *GameService) NotifyTick(ctx context.Context, roomID, playerID string, remaining time.Duration) {
	s.notifier.Notify(ctx, share.RoomEvent{
		Type:      share.EventTurnTick,
		RoomID:    roomID,
		Timestamp: s.now(),
		Payload: share.TurnTickPayload{
			PlayerID:  playerID,
			Remaining: int(remaining.Round(time.Second) / time.Second),
		},
	})
}
