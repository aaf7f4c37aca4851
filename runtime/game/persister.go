package game

import (
	"context"
	"sync"
	"time"

	"okey/common/log"
	"okey/core/domain/entity"
	"okey/core/domain/repository"
	"okey/runtime/game/share"
)

// GamePersister 游戏持久化组件
// 作为 Notifier 挂在事件总线上，按房间收集事件，对局结束或取消后异步写入数据库
type GamePersister struct {
	repo    repository.GameRecordRepository
	records map[string]*entity.GameRecord
	eventMu sync.Mutex
	wg      sync.WaitGroup
	closed  bool
}

func NewGamePersister(repo repository.GameRecordRepository) *GamePersister {
	return &GamePersister{
		repo:    repo,
		records: make(map[string]*entity.GameRecord),
	}
}

func (gp *GamePersister) Notify(_ context.Context, event share.RoomEvent) {
	gp.eventMu.Lock()
	defer gp.eventMu.Unlock()
	if gp.closed {
		return
	}

	switch payload := event.Payload.(type) {
	case share.GameStartedPayload:
		// 每个座位各收到一份私有的开局事件
		record := gp.records[event.RoomID]
		if record == nil || record.Status != entity.RecordInProgress {
			record = entity.NewGameRecord(event.RoomID, make([]entity.PlayerInfo, 0, entity.MaxPlayers), event.Timestamp)
			record.IndicatorTileID = payload.Indicator.ID
			record.AddEvent(string(share.EventGameStarted), -1, map[string]any{
				"indicator": payload.Indicator.ID,
				"first":     payload.FirstPlayerID,
			})
			gp.records[event.RoomID] = record
		}
		record.Players = append(record.Players, entity.PlayerInfo{
			UserID:   event.TargetPlayerID,
			Position: int(payload.Position),
		})
	case share.TurnChangedPayload:
		if record := gp.records[event.RoomID]; record != nil {
			record.TurnCount = payload.TurnNumber
			markBot(record, payload.PlayerID, payload.IsBot)
		}
	case share.TileDrawnPayload:
		if event.IsPrivate() {
			return
		}
		gp.addEvent(event, int(payload.Position), map[string]any{
			"player":       payload.PlayerID,
			"from_discard": payload.FromDiscard,
		})
	case share.TileDiscardedPayload:
		gp.addEvent(event, int(payload.Position), map[string]any{
			"player": payload.PlayerID,
			"tile":   payload.Tile.ID,
		})
	case share.AutoPlayPayload:
		gp.addEvent(event, -1, map[string]any{
			"player": payload.PlayerID,
			"turn":   payload.TurnNumber,
		})
	case share.GameEndedPayload:
		record := gp.records[event.RoomID]
		if record == nil {
			return
		}
		finishing := -1
		if payload.FinishingTile != nil {
			finishing = payload.FinishingTile.ID
		}
		record.CompleteGame(&entity.RecordResult{
			WinnerID:        payload.WinnerID,
			WinType:         string(payload.WinType),
			Score:           payload.Score,
			FinishingTileID: finishing,
			Penalties:       payload.Penalties,
		})
		gp.finalize(event.RoomID, record)
	case share.GameCancelledPayload:
		record := gp.records[event.RoomID]
		if record == nil {
			return
		}
		record.AbortGame(payload.Reason)
		gp.finalize(event.RoomID, record)
	}
}

func markBot(record *entity.GameRecord, playerID string, bot bool) {
	for i := range record.Players {
		if record.Players[i].UserID == playerID {
			record.Players[i].IsBot = bot
		}
	}
}

func (gp *GamePersister) addEvent(event share.RoomEvent, position int, data map[string]any) {
	if record := gp.records[event.RoomID]; record != nil {
		record.AddEvent(string(event.Type), position, data)
	}
}

// finalize 调用方持有 eventMu
func (gp *GamePersister) finalize(roomID string, record *entity.GameRecord) {
	delete(gp.records, roomID)

	gp.wg.Add(1)
	go func() {
		defer gp.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := gp.repo.SaveGameRecord(ctx, record); err != nil {
			log.Error("保存游戏记录失败: roomID=%s, err=%v", roomID, err)
			return
		}
		log.Info("游戏记录保存成功: gameRecordID=%s, events=%d", record.ID.Hex(), len(record.Events))
	}()
}

// Close 停止收集并等待写入完成
func (gp *GamePersister) Close() {
	gp.eventMu.Lock()
	gp.closed = true
	gp.eventMu.Unlock()
	gp.wg.Wait()
}
