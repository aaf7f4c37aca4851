package entity

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrInvariantViolation = errors.New("room state invariant violated")

// Position 座位，逆时针 South -> West -> North -> East
type Position int

const (
	South Position = iota
	West
	North
	East
)

const MaxPlayers = 4

var AllPositions = [MaxPlayers]Position{South, West, North, East}

func (p Position) String() string {
	switch p {
	case South:
		return "South"
	case West:
		return "West"
	case North:
		return "North"
	case East:
		return "East"
	}
	return fmt.Sprintf("Position(%d)", int(p))
}

func (p Position) Valid() bool {
	return p >= South && p <= East
}

type GamePhase string

const (
	PhaseWaitingForPlayers GamePhase = "WaitingForPlayers"
	PhaseReadyToStart      GamePhase = "ReadyToStart"
	PhaseShuffling         GamePhase = "Shuffling"
	PhaseDealing           GamePhase = "Dealing"
	PhasePlaying           GamePhase = "Playing"
	PhaseFinished          GamePhase = "Finished"
	PhaseCancelled         GamePhase = "Cancelled"
)

func (p GamePhase) IsTerminal() bool {
	return p == PhaseFinished || p == PhaseCancelled
}

// RoundInProgress 已经开始洗牌但还没结束
func (p GamePhase) RoundInProgress() bool {
	return p == PhaseShuffling || p == PhaseDealing || p == PhasePlaying
}

type TurnPhase string

const (
	TurnNone              TurnPhase = ""
	TurnWaitingForDraw    TurnPhase = "WaitingForDraw"
	TurnWaitingForDiscard TurnPhase = "WaitingForDiscard"
	TurnCompleted         TurnPhase = "TurnCompleted"
)

// WinType 胡牌类型
type WinType string

const (
	WinNormal       WinType = "Normal"
	WinPairs        WinType = "Pairs"
	WinJokerDiscard WinType = "JokerDiscard"
	WinDeckEmpty    WinType = "DeckEmpty"
)

type PlayerState struct {
	PlayerID         string    `json:"playerId"`
	Name             string    `json:"name"`
	Position         Position  `json:"position"`
	Hand             []int     `json:"hand"`
	IsBot            bool      `json:"isBot,omitempty"`
	IsConnected      bool      `json:"isConnected"`
	ConnectionID     string    `json:"connectionId,omitempty"`
	ConnectedAt      time.Time `json:"connectedAt"`
	DisconnectedAt   time.Time `json:"disconnectedAt"`
	HasDrawnThisTurn bool      `json:"hasDrawnThisTurn"`
	IsCurrentTurn    bool      `json:"isCurrentTurn"`
}

// HandIndex 牌在手中的下标，不存在返回 -1
func (p *PlayerState) HandIndex(tileID int) int {
	for i, id := range p.Hand {
		if id == tileID {
			return i
		}
	}
	return -1
}

// RemoveFromHand 移除一张牌，返回是否存在
func (p *PlayerState) RemoveFromHand(tileID int) bool {
	idx := p.HandIndex(tileID)
	if idx < 0 {
		return false
	}
	hand := make([]int, 0, len(p.Hand)-1)
	hand = append(hand, p.Hand[:idx]...)
	p.Hand = append(hand, p.Hand[idx+1:]...)
	return true
}

// RoundResult 一局的结算结果
type RoundResult struct {
	WinnerID        string         `json:"winnerId,omitempty"`
	WinType         WinType        `json:"winType,omitempty"`
	Score           int            `json:"score"`
	FinishingTileID int            `json:"finishingTileId"`
	Penalties       map[string]int `json:"penalties,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	EndedAt         time.Time      `json:"endedAt"`
}

// GameRoomState 房间聚合根，只能在持有房间锁时修改
type GameRoomState struct {
	RoomID          string                  `json:"roomId"`
	Name            string                  `json:"name"`
	OwnerID         string                  `json:"ownerId"`
	Players         map[string]*PlayerState `json:"players"`
	Deck            []int                   `json:"deck"`
	DiscardPiles    map[Position][]int      `json:"discardPiles"`
	IndicatorTileID int                     `json:"indicatorTileId"`
	Tiles           []Tile                  `json:"tiles,omitempty"`
	Phase           GamePhase               `json:"phase"`
	TurnPhase       TurnPhase               `json:"turnPhase"`
	CurrentPlayerID string                  `json:"currentPlayerId,omitempty"`
	CurrentPosition Position                `json:"currentPosition"`
	TurnNumber      int                     `json:"turnNumber"`
	TurnStartedAt   time.Time               `json:"turnStartedAt"`
	TurnExpiresAt   time.Time               `json:"turnExpiresAt"`
	AutoPlay        bool                    `json:"autoPlay,omitempty"`
	Seed            string                  `json:"seed,omitempty"`
	Result          *RoundResult            `json:"result,omitempty"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func NewGameRoomState(roomID, name string, now time.Time) *GameRoomState {
	return &GameRoomState{
		RoomID:          roomID,
		Name:            name,
		Players:         make(map[string]*PlayerState, MaxPlayers),
		DiscardPiles:    make(map[Position][]int, MaxPlayers),
		IndicatorTileID: -1,
		Phase:           PhaseWaitingForPlayers,
		TurnPhase:       TurnNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *GameRoomState) PlayerAt(pos Position) *PlayerState {
	for _, p := range s.Players {
		if p.Position == pos {
			return p
		}
	}
	return nil
}

// FreePosition 按 South、West、North、East 顺序找空座位
func (s *GameRoomState) FreePosition() (Position, bool) {
	for _, pos := range AllPositions {
		if s.PlayerAt(pos) == nil {
			return pos, true
		}
	}
	return 0, false
}

// SortedPlayers 按座位排序
func (s *GameRoomState) SortedPlayers() []*PlayerState {
	players := make([]*PlayerState, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Position < players[j].Position
	})
	return players
}

func (s *GameRoomState) TileByID(id int) (Tile, bool) {
	if id < 0 || id >= len(s.Tiles) {
		return Tile{}, false
	}
	return s.Tiles[id], true
}

// HandTiles 把玩家手牌 ID 解析为 Tile
func (s *GameRoomState) HandTiles(p *PlayerState) []Tile {
	tiles := make([]Tile, 0, len(p.Hand))
	for _, id := range p.Hand {
		if t, ok := s.TileByID(id); ok {
			tiles = append(tiles, t)
		}
	}
	return tiles
}

// TopDiscard 某座位弃牌堆顶，空堆返回 -1
func (s *GameRoomState) TopDiscard(pos Position) int {
	pile := s.DiscardPiles[pos]
	if len(pile) == 0 {
		return -1
	}
	return pile[len(pile)-1]
}

// TotalTileCount 手牌 + 牌墙 + 弃牌 + 指示牌
func (s *GameRoomState) TotalTileCount() int {
	total := len(s.Deck)
	for _, p := range s.Players {
		total += len(p.Hand)
	}
	for _, pile := range s.DiscardPiles {
		total += len(pile)
	}
	if s.IndicatorTileID >= 0 {
		total++
	}
	return total
}

// Validate 对局进行中校验牌数守恒、ID 不重复、出牌人唯一、手牌张数
// 摸过牌的出牌人 15 张，其余 14 张
// 结束或取消后玩家可以离开，不再要求守恒
func (s *GameRoomState) Validate() error {
	if len(s.Tiles) == 0 || s.Phase != PhasePlaying {
		return nil
	}
	if n := s.TotalTileCount(); n != TotalTileCount {
		return fmt.Errorf("%w: tile count %d, want %d", ErrInvariantViolation, n, TotalTileCount)
	}

	seen := make([]bool, TotalTileCount)
	mark := func(id int) error {
		if id < 0 || id >= TotalTileCount || seen[id] {
			return fmt.Errorf("%w: tile %d duplicated or out of range", ErrInvariantViolation, id)
		}
		seen[id] = true
		return nil
	}
	if err := mark(s.IndicatorTileID); err != nil {
		return err
	}
	for _, id := range s.Deck {
		if err := mark(id); err != nil {
			return err
		}
	}
	for _, pile := range s.DiscardPiles {
		for _, id := range pile {
			if err := mark(id); err != nil {
				return err
			}
		}
	}
	current := 0
	for _, p := range s.Players {
		for _, id := range p.Hand {
			if err := mark(id); err != nil {
				return err
			}
		}
		if p.IsCurrentTurn {
			current++
		}
		want := HandSize
		if p.IsCurrentTurn && p.HasDrawnThisTurn {
			want = HandSize + 1
		}
		if len(p.Hand) != want {
			return fmt.Errorf("%w: player %s holds %d tiles, want %d", ErrInvariantViolation, p.PlayerID, len(p.Hand), want)
		}
	}
	if current != 1 {
		return fmt.Errorf("%w: %d players hold the turn", ErrInvariantViolation, current)
	}
	return nil
}

// Clone 深拷贝，内存存储读写时使用
func (s *GameRoomState) Clone() *GameRoomState {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = make(map[string]*PlayerState, len(s.Players))
	for id, p := range s.Players {
		cp := *p
		cp.Hand = append([]int(nil), p.Hand...)
		c.Players[id] = &cp
	}
	c.Deck = append([]int(nil), s.Deck...)
	c.DiscardPiles = make(map[Position][]int, len(s.DiscardPiles))
	for pos, pile := range s.DiscardPiles {
		c.DiscardPiles[pos] = append([]int(nil), pile...)
	}
	c.Tiles = append([]Tile(nil), s.Tiles...)
	if s.Result != nil {
		r := *s.Result
		r.Penalties = make(map[string]int, len(s.Result.Penalties))
		for k, v := range s.Result.Penalties {
			r.Penalties[k] = v
		}
		c.Result = &r
	}
	return &c
}
