package share

import (
	"time"

	"okey/core/domain/entity"
)

// RoomView 房间的对外视图，除查看者本人外不暴露手牌
type RoomView struct {
	RoomID          string                            `json:"roomId"`
	Name            string                            `json:"name"`
	Phase           entity.GamePhase                  `json:"phase"`
	TurnPhase       entity.TurnPhase                  `json:"turnPhase"`
	CurrentPlayerID string                            `json:"currentPlayerId,omitempty"`
	CurrentPosition entity.Position                   `json:"currentPosition"`
	TurnNumber      int                               `json:"turnNumber"`
	TurnExpiresAt   time.Time                         `json:"turnExpiresAt"`
	DeckCount       int                               `json:"deckCount"`
	Indicator       *entity.Tile                      `json:"indicator,omitempty"`
	Players         []PlayerView                      `json:"players"`
	DiscardPiles    map[entity.Position][]entity.Tile `json:"discardPiles"`
	Result          *entity.RoundResult               `json:"result,omitempty"`
	UpdatedAt       time.Time                         `json:"updatedAt"`
}

type PlayerView struct {
	PlayerID      string          `json:"playerId"`
	Name          string          `json:"name"`
	Position      entity.Position `json:"position"`
	HandCount     int             `json:"handCount"`
	Hand          []entity.Tile   `json:"hand,omitempty"`
	IsBot         bool            `json:"isBot"`
	IsConnected   bool            `json:"isConnected"`
	IsCurrentTurn bool            `json:"isCurrentTurn"`
}

// NewRoomView viewerID 为空时是完全公开的视图
func NewRoomView(state *entity.GameRoomState, viewerID string) *RoomView {
	view := &RoomView{
		RoomID:          state.RoomID,
		Name:            state.Name,
		Phase:           state.Phase,
		TurnPhase:       state.TurnPhase,
		CurrentPlayerID: state.CurrentPlayerID,
		CurrentPosition: state.CurrentPosition,
		TurnNumber:      state.TurnNumber,
		TurnExpiresAt:   state.TurnExpiresAt,
		DeckCount:       len(state.Deck),
		DiscardPiles:    make(map[entity.Position][]entity.Tile, len(state.DiscardPiles)),
		Result:          state.Result,
		UpdatedAt:       state.UpdatedAt,
	}
	if t, ok := state.TileByID(state.IndicatorTileID); ok {
		view.Indicator = &t
	}
	for pos, pile := range state.DiscardPiles {
		tiles := make([]entity.Tile, 0, len(pile))
		for _, id := range pile {
			if t, ok := state.TileByID(id); ok {
				tiles = append(tiles, t)
			}
		}
		view.DiscardPiles[pos] = tiles
	}
	for _, p := range state.SortedPlayers() {
		pv := PlayerView{
			PlayerID:      p.PlayerID,
			Name:          p.Name,
			Position:      p.Position,
			HandCount:     len(p.Hand),
			IsBot:         p.IsBot,
			IsConnected:   p.IsConnected,
			IsCurrentTurn: p.IsCurrentTurn,
		}
		if viewerID != "" && viewerID == p.PlayerID {
			pv.Hand = state.HandTiles(p)
		}
		view.Players = append(view.Players, pv)
	}
	return view
}
