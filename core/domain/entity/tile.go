package entity

import "fmt"

type Color int

const (
	ColorNone Color = iota - 1 // 假 okey 没有颜色
	Yellow
	Blue
	Black
	Red
)

const (
	ColorCount     = 4
	MaxTileValue   = 13
	CopiesPerFace  = 2
	FalseJokers    = 2
	TotalTileCount = ColorCount*MaxTileValue*CopiesPerFace + FalseJokers // 106

	// HandSize 不在出牌中的玩家手牌数
	HandSize = 14

	// FalseJokerValue 假 okey 的点数哨兵值
	FalseJokerValue = 0
)

var colorNames = map[Color]string{
	ColorNone: "None",
	Yellow:    "Yellow",
	Blue:      "Blue",
	Black:     "Black",
	Red:       "Red",
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Color(%d)", int(c))
}

func (c Color) Valid() bool {
	return c >= Yellow && c <= Red
}

// Tile 不可变的牌值对象，按 ID 判等
//
// ID 布局: color*26 + (value-1)*2 + copy，假 okey 为 104、105
type Tile struct {
	ID           int   `json:"id"`
	Color        Color `json:"color"`
	Value        int   `json:"value"`
	IsFalseJoker bool  `json:"falseJoker,omitempty"`
	IsOkey       bool  `json:"okey,omitempty"`
}

// Face 牌面（颜色+点数），两张同面牌 Face 相同
type Face struct {
	Color Color
	Value int
}

func (t Tile) Face() Face {
	return Face{Color: t.Color, Value: t.Value}
}

// IsWild okey 牌与假 okey 都是百搭
func (t Tile) IsWild() bool {
	return t.IsOkey || t.IsFalseJoker
}

// IsTrueJoker 本局的真 okey（不含假 okey）
func (t Tile) IsTrueJoker() bool {
	return t.IsOkey && !t.IsFalseJoker
}

func (t Tile) String() string {
	if t.IsFalseJoker {
		return fmt.Sprintf("#%d FalseJoker", t.ID)
	}
	if t.IsOkey {
		return fmt.Sprintf("#%d %s-%d*", t.ID, t.Color, t.Value)
	}
	return fmt.Sprintf("#%d %s-%d", t.ID, t.Color, t.Value)
}

// TileID 由颜色、点数、副本号计算牌 ID
func TileID(color Color, value, copyIndex int) int {
	return int(color)*MaxTileValue*CopiesPerFace + (value-1)*CopiesPerFace + copyIndex
}

// FalseJokerID 第 n 张假 okey 的 ID（n 取 0 或 1）
func FalseJokerID(n int) int {
	return ColorCount*MaxTileValue*CopiesPerFace + n
}
