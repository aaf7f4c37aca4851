package okey

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"okey/core/domain/entity"
)

const (
	FirstHandSize = entity.HandSize + 1
	HandSize      = entity.HandSize
)

// Shuffler 洗牌器，外部可替换为带承诺的实现
type Shuffler interface {
	Shuffle(ids []int)
}

// RandShuffler 基于 math/rand 的洗牌器
type RandShuffler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandShuffler(seed int64) *RandShuffler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandShuffler{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandShuffler) Shuffle(ids []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// BuildTileSet 生成完整的 106 张牌，下标即 ID
func BuildTileSet() []entity.Tile {
	tiles := make([]entity.Tile, entity.TotalTileCount)
	for c := entity.Yellow; c <= entity.Red; c++ {
		for v := 1; v <= entity.MaxTileValue; v++ {
			for k := 0; k < entity.CopiesPerFace; k++ {
				id := entity.TileID(c, v, k)
				tiles[id] = entity.Tile{ID: id, Color: c, Value: v}
			}
		}
	}
	for n := 0; n < entity.FalseJokers; n++ {
		id := entity.FalseJokerID(n)
		tiles[id] = entity.Tile{ID: id, Color: entity.ColorNone, Value: entity.FalseJokerValue, IsFalseJoker: true}
	}
	return tiles
}

// JokerIdentity 指示牌同色、点数加一（13 接 1）
func JokerIdentity(indicator entity.Tile) (entity.Face, error) {
	if indicator.IsFalseJoker || !indicator.Color.Valid() {
		return entity.Face{}, fmt.Errorf("%w: %s", ErrIndicatorIsWildcard, indicator)
	}
	return entity.Face{Color: indicator.Color, Value: indicator.Value%entity.MaxTileValue + 1}, nil
}

// MarkJokers 返回标记了本局 okey 的新牌组，原切片不变
func MarkJokers(tiles []entity.Tile, indicator entity.Tile) ([]entity.Tile, error) {
	joker, err := JokerIdentity(indicator)
	if err != nil {
		return nil, err
	}
	marked := make([]entity.Tile, len(tiles))
	for i, t := range tiles {
		t.IsOkey = !t.IsFalseJoker && t.Face() == joker
		marked[i] = t
	}
	return marked, nil
}

// DealResult 一次发牌的结果
type DealResult struct {
	Tiles       []entity.Tile
	IndicatorID int
	Hands       map[entity.Position][]int
	Deck        []int
}

// Deal 洗牌、翻指示牌、标记 okey，从 South 起按座位发 15/14/14/14
// 指示牌取洗牌后第一张非假 okey 的牌
func Deal(shuffler Shuffler) (*DealResult, error) {
	base := BuildTileSet()
	ids := make([]int, len(base))
	for i := range ids {
		ids[i] = i
	}
	shuffler.Shuffle(ids)

	indicatorAt := -1
	for i, id := range ids {
		if !base[id].IsFalseJoker {
			indicatorAt = i
			break
		}
	}
	if indicatorAt < 0 {
		return nil, ErrIndicatorIsWildcard
	}
	indicatorID := ids[indicatorAt]
	rest := make([]int, 0, len(ids)-1)
	rest = append(rest, ids[:indicatorAt]...)
	rest = append(rest, ids[indicatorAt+1:]...)

	tiles, err := MarkJokers(base, base[indicatorID])
	if err != nil {
		return nil, err
	}

	hands := make(map[entity.Position][]int, entity.MaxPlayers)
	cursor := 0
	for _, pos := range entity.AllPositions {
		n := HandSize
		if pos == entity.South {
			n = FirstHandSize
		}
		hands[pos] = append([]int(nil), rest[cursor:cursor+n]...)
		cursor += n
	}

	return &DealResult{
		Tiles:       tiles,
		IndicatorID: indicatorID,
		Hands:       hands,
		Deck:        append([]int(nil), rest[cursor:]...),
	}, nil
}
