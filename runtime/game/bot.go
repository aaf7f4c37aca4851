package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"okey/common/log"
	"okey/core/domain/entity"
	"okey/runtime/game/engines/okey"
	"okey/runtime/game/share"
)

// Strategy 托管和机器人的出手策略，只读房间快照
type Strategy interface {
	// ChooseDraw 返回 true 表示摸上家弃牌
	ChooseDraw(state *entity.GameRoomState, playerID string) bool
	// ChooseDiscard 手上 15 张时选择打出的牌，declareWin 为 true 时该牌作为收尾胡牌
	ChooseDiscard(state *entity.GameRoomState, playerID string) (tileID int, declareWin bool)
}

// SimpleStrategy 能胡就胡；弃牌能凑成组合才摸；否则打出最孤立的非百搭牌
type SimpleStrategy struct {
	checker *okey.Checker
}

func NewSimpleStrategy(checker *okey.Checker) *SimpleStrategy {
	if checker == nil {
		checker = okey.NewChecker(nil, nil)
	}
	return &SimpleStrategy{checker: checker}
}

func (st *SimpleStrategy) ChooseDraw(state *entity.GameRoomState, playerID string) bool {
	p, ok := state.Players[playerID]
	if !ok {
		return false
	}
	top, ok := state.TileByID(state.TopDiscard(okey.PreviousPosition(p.Position)))
	if !ok {
		return false
	}
	if top.IsWild() {
		return true
	}

	hand := state.HandTiles(p)
	for i := 0; i < len(hand); i++ {
		for j := i + 1; j < len(hand); j++ {
			if hand[i].IsWild() || hand[j].IsWild() {
				continue
			}
			for _, kind := range []okey.MeldKind{okey.Run, okey.Group} {
				if okey.ValidMeld(okey.Meld{Kind: kind, Tiles: []entity.Tile{hand[i], hand[j], top}}) {
					return true
				}
			}
		}
	}
	return false
}

func (st *SimpleStrategy) ChooseDiscard(state *entity.GameRoomState, playerID string) (int, bool) {
	p, ok := state.Players[playerID]
	if !ok || len(p.Hand) == 0 {
		return -1, false
	}
	hand := state.HandTiles(p)
	if len(hand) == okey.WinningHandSize {
		if res, err := st.checker.CheckWinningHand(hand); err == nil && res.IsWinning {
			return res.FinishingTile.ID, true
		}
	}

	best, bestScore := -1, 0
	for i, t := range hand {
		if t.IsWild() {
			continue
		}
		score := neighborScore(hand, i)
		if best < 0 || score < bestScore || (score == bestScore && t.Value > hand[best].Value) {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return hand[0].ID, false
	}
	return hand[best].ID, false
}

// neighborScore 与其他牌组成顺子或刻子的潜力
func neighborScore(hand []entity.Tile, i int) int {
	t := hand[i]
	score := 0
	for j, o := range hand {
		if j == i || o.IsWild() {
			continue
		}
		switch {
		case o.Color == t.Color && o.Value == t.Value:
			score++
		case o.Color == t.Color && runGap(t.Value, o.Value) == 1:
			score += 3
		case o.Color == t.Color && runGap(t.Value, o.Value) == 2:
			score++
		case o.Color != t.Color && o.Value == t.Value:
			score += 2
		}
	}
	return score
}

// runGap 点数距离，13 与 1 相邻
func runGap(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if wrap := entity.MaxTileValue - d; wrap < d {
		d = wrap
	}
	return d
}

// AutoPlayer 用 Strategy 通过公开接口替玩家出手，和真人走同一套校验
type AutoPlayer struct {
	svc      *GameService
	strategy Strategy
}

func NewAutoPlayer(svc *GameService, strategy Strategy) *AutoPlayer {
	if strategy == nil {
		strategy = NewSimpleStrategy(svc.Checker())
	}
	return &AutoPlayer{svc: svc, strategy: strategy}
}

// PlayTurn 完成当前回合：需要时摸牌，然后胡牌或出牌
func (a *AutoPlayer) PlayTurn(ctx context.Context, roomID, playerID string) error {
	state, err := a.svc.GetRoomState(ctx, roomID)
	if err != nil {
		return err
	}
	if state.Phase != entity.PhasePlaying || state.CurrentPlayerID != playerID {
		return nil
	}

	if p := state.Players[playerID]; !p.HasDrawnThisTurn {
		fromDiscard := a.strategy.ChooseDraw(state, playerID)
		res, err := a.svc.DrawTile(ctx, roomID, playerID, fromDiscard)
		if fromDiscard && errors.Is(err, ErrDiscardPileEmpty) {
			res, err = a.svc.DrawTile(ctx, roomID, playerID, false)
		}
		if err != nil {
			return err
		}
		if res.RoundEnded {
			return nil
		}
		if state, err = a.svc.GetRoomState(ctx, roomID); err != nil {
			return err
		}
	}

	tileID, win := a.strategy.ChooseDiscard(state, playerID)
	if win {
		_, err := a.svc.DeclareWin(ctx, roomID, playerID, tileID)
		if err == nil || !errors.Is(err, ErrNotWinningHand) {
			return err
		}
	}
	_, err = a.svc.DiscardTile(ctx, roomID, playerID, tileID)
	return err
}

// OnTimeout 计时器超时回调
func (a *AutoPlayer) OnTimeout(ctx context.Context, roomID, playerID string, turnNumber int) error {
	signal, err := a.svc.HandleTimeout(ctx, roomID, playerID, turnNumber)
	if err != nil || signal == nil {
		return err
	}
	return a.PlayTurn(ctx, roomID, signal.PlayerID)
}

// BotDriver 监听回合切换，轮到机器人时延迟出手
type BotDriver struct {
	player *AutoPlayer
	delay  time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBotDriver(player *AutoPlayer, delay time.Duration) *BotDriver {
	ctx, cancel := context.WithCancel(context.Background())
	return &BotDriver{player: player, delay: delay, ctx: ctx, cancel: cancel}
}

func (d *BotDriver) Notify(_ context.Context, event share.RoomEvent) {
	if event.Type != share.EventTurnChanged {
		return
	}
	payload, ok := event.Payload.(share.TurnChangedPayload)
	if !ok || !payload.IsBot {
		return
	}
	if d.ctx.Err() != nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
		}
		if err := d.player.PlayTurn(d.ctx, event.RoomID, payload.PlayerID); err != nil {
			log.Warn("BotDriver 机器人出手失败, roomID=%s, bot=%s, err=%v", event.RoomID, payload.PlayerID, err)
		}
	}()
}

func (d *BotDriver) Close() {
	d.cancel()
	d.wg.Wait()
}
