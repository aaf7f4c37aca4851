package share

import (
	"time"

	"okey/core/domain/entity"
)

type EventType string

const (
	EventPlayerJoined      EventType = "room.player.joined"
	EventPlayerLeft        EventType = "room.player.left"
	EventPlayerConnection  EventType = "room.player.connection"
	EventGameStarted       EventType = "game.started"
	EventTurnChanged       EventType = "game.turn.changed"
	EventTurnTick          EventType = "game.turn.tick"
	EventTileDrawn         EventType = "game.tile.drawn"
	EventTileDiscarded     EventType = "game.tile.discarded"
	EventPileCountsUpdated EventType = "game.piles.updated"
	EventAutoPlayTriggered EventType = "game.autoplay"
	EventGameEnded         EventType = "game.ended"
	EventGameCancelled     EventType = "game.cancelled"
)

// RoomEvent 房间状态变化的事实，TargetPlayerID 非空时只推给该玩家
type RoomEvent struct {
	Type           EventType `json:"type"`
	RoomID         string    `json:"roomId"`
	TargetPlayerID string    `json:"-"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

func (e RoomEvent) IsPrivate() bool {
	return e.TargetPlayerID != ""
}

type PlayerJoinedPayload struct {
	PlayerID    string          `json:"playerId"`
	Name        string          `json:"name"`
	Position    entity.Position `json:"position"`
	IsBot       bool            `json:"isBot"`
	Reconnected bool            `json:"reconnected"`
}

type PlayerLeftPayload struct {
	PlayerID string          `json:"playerId"`
	Position entity.Position `json:"position"`
	RoomGone bool            `json:"roomGone"`
}

type PlayerConnectionPayload struct {
	PlayerID      string    `json:"playerId"`
	Connected     bool      `json:"connected"`
	TurnExpiresAt time.Time `json:"turnExpiresAt"`
}

// GameStartedPayload 每个玩家各收到一份，只含自己的手牌
type GameStartedPayload struct {
	Indicator     entity.Tile     `json:"indicator"`
	Hand          []entity.Tile   `json:"hand"`
	Position      entity.Position `json:"position"`
	FirstPlayerID string          `json:"firstPlayerId"`
	DeckCount     int             `json:"deckCount"`
}

type TurnChangedPayload struct {
	PlayerID   string           `json:"playerId"`
	Position   entity.Position  `json:"position"`
	TurnNumber int              `json:"turnNumber"`
	Phase      entity.TurnPhase `json:"phase"`
	ExpiresAt  time.Time        `json:"expiresAt"`
	IsBot      bool             `json:"isBot"`
}

type TurnTickPayload struct {
	PlayerID  string `json:"playerId"`
	Remaining int    `json:"remaining"` // 秒
}

// TileDrawnPayload 公开版本 Tile 为空，私有版本带上摸到的牌
type TileDrawnPayload struct {
	PlayerID    string          `json:"playerId"`
	Position    entity.Position `json:"position"`
	FromDiscard bool            `json:"fromDiscard"`
	Tile        *entity.Tile    `json:"tile,omitempty"`
	DiscardTop  *entity.Tile    `json:"discardTop,omitempty"` // 从弃牌堆摸时所有人都能看到
}

type TileDiscardedPayload struct {
	PlayerID     string          `json:"playerId"`
	Position     entity.Position `json:"position"`
	Tile         entity.Tile     `json:"tile"`
	NextPlayerID string          `json:"nextPlayerId,omitempty"`
	NextPosition entity.Position `json:"nextPosition"`
}

type PileCountsPayload struct {
	DeckCount     int                     `json:"deckCount"`
	DiscardCounts map[entity.Position]int `json:"discardCounts"`
}

type AutoPlayPayload struct {
	PlayerID   string `json:"playerId"`
	TurnNumber int    `json:"turnNumber"`
}

type GameEndedPayload struct {
	WinnerID      string                   `json:"winnerId,omitempty"`
	WinType       entity.WinType           `json:"winType"`
	Score         int                      `json:"score"`
	Penalties     map[string]int           `json:"penalties"`
	FinishingTile *entity.Tile             `json:"finishingTile,omitempty"`
	Hands         map[string][]entity.Tile `json:"hands,omitempty"`
}

type GameCancelledPayload struct {
	Reason string `json:"reason"`
}
