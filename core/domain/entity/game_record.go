package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RecordInProgress = "in_progress"
	RecordCompleted  = "completed"
	RecordAborted    = "aborted"

	GameTypeOkey = "okey_4p"
)

// GameRecord 一局的归档记录，结束或取消时写入 mongo
type GameRecord struct {
	ID              primitive.ObjectID `bson:"_id"`
	RoomID          string             `bson:"room_id"`
	GameType        string             `bson:"game_type"`
	Players         []PlayerInfo       `bson:"players"`
	IndicatorTileID int                `bson:"indicator_tile_id"`
	StartTime       time.Time          `bson:"start_time"`
	EndTime         time.Time          `bson:"end_time"`
	Duration        int                `bson:"duration"` // 秒
	TurnCount       int                `bson:"turn_count"`
	Result          *RecordResult      `bson:"result,omitempty"`
	Events          []RecordEvent      `bson:"events"`
	Status          string             `bson:"status"`
	CreatedAt       time.Time          `bson:"created_at"`
}

type PlayerInfo struct {
	UserID   string `bson:"user_id"`
	Position int    `bson:"position"`
	Nickname string `bson:"nickname,omitempty"`
	IsBot    bool   `bson:"is_bot,omitempty"`
}

type RecordResult struct {
	WinnerID        string         `bson:"winner_id,omitempty"`
	WinType         string         `bson:"win_type"`
	Score           int            `bson:"score"`
	FinishingTileID int            `bson:"finishing_tile_id"`
	Penalties       map[string]int `bson:"penalties"`
	Reason          string         `bson:"reason,omitempty"`
}

// RecordEvent 事件流中的一条，只存事件不存快照
type RecordEvent struct {
	Sequence  int            `bson:"sequence"`
	EventType string         `bson:"event_type"`
	Timestamp time.Time      `bson:"timestamp"`
	Position  int            `bson:"position"` // -1 表示系统事件
	Data      map[string]any `bson:"data,omitempty"`
}

func NewGameRecord(roomID string, players []PlayerInfo, startTime time.Time) *GameRecord {
	return &GameRecord{
		ID:              primitive.NewObjectID(),
		RoomID:          roomID,
		GameType:        GameTypeOkey,
		Players:         players,
		IndicatorTileID: -1,
		StartTime:       startTime,
		Events:          make([]RecordEvent, 0, 128),
		Status:          RecordInProgress,
		CreatedAt:       time.Now(),
	}
}

func (gr *GameRecord) AddEvent(eventType string, position int, data map[string]any) {
	gr.Events = append(gr.Events, RecordEvent{
		Sequence:  len(gr.Events),
		EventType: eventType,
		Timestamp: time.Now(),
		Position:  position,
		Data:      data,
	})
}

func (gr *GameRecord) CompleteGame(result *RecordResult) {
	gr.EndTime = time.Now()
	gr.Duration = int(gr.EndTime.Sub(gr.StartTime).Seconds())
	gr.Result = result
	gr.Status = RecordCompleted
}

func (gr *GameRecord) AbortGame(reason string) {
	gr.EndTime = time.Now()
	gr.Duration = int(gr.EndTime.Sub(gr.StartTime).Seconds())
	gr.Result = &RecordResult{Reason: reason}
	gr.Status = RecordAborted
}
