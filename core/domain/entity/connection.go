package entity

import "time"

// PlayerConnection 玩家当前所在房间与最近一次连接，用于断线重连
type PlayerConnection struct {
	PlayerID     string    `json:"playerId"`
	RoomID       string    `json:"roomId"`
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
}
