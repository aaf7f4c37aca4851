package status

import (
	"context"
	"errors"

	"okey/common/http"
	"okey/core/domain/entity"
	"okey/runtime/game"
	"okey/runtime/game/share"
)

// RoomQuery 状态查询只读快照，不加房间锁
type RoomQuery interface {
	GetRoomState(ctx context.Context, roomID string) (*entity.GameRoomState, error)
	ListRooms(ctx context.Context) ([]*entity.GameRoomState, error)
	Timer() game.TurnTimer
}

type RoomDetail struct {
	*share.RoomView
	Timer *game.TimerInfo `json:"timer,omitempty"`
}

type RoomSummary struct {
	RoomID  string           `json:"roomId"`
	Name    string           `json:"name"`
	Phase   entity.GamePhase `json:"phase"`
	Players int              `json:"players"`
}

func Register(server *http.HttpServer, query RoomQuery) {
	server.GET("/healthz", func(c *http.Context) error {
		c.Success(map[string]string{"status": "ok"})
		return nil
	})

	rooms := server.Group("/rooms")
	rooms.GET("", func(c *http.Context) error {
		states, err := query.ListRooms(c.Ctx())
		if err != nil {
			return err
		}
		list := make([]RoomSummary, 0, len(states))
		for _, s := range states {
			list = append(list, RoomSummary{
				RoomID:  s.RoomID,
				Name:    s.Name,
				Phase:   s.Phase,
				Players: len(s.Players),
			})
		}
		c.Success(list)
		return nil
	})
	rooms.GET("/:id", func(c *http.Context) error {
		state, err := query.GetRoomState(c.Ctx(), c.GetParam("id"))
		if errors.Is(err, game.ErrRoomNotFound) {
			c.NotFound(err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		detail := RoomDetail{RoomView: share.NewRoomView(state, "")}
		if info, ok := query.Timer().GetTimerInfo(state.RoomID); ok {
			detail.Timer = &info
		}
		c.Success(detail)
		return nil
	})
}
