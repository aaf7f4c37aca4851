package okey

import (
	"testing"

	"okey/core/domain/entity"
)

// 指示牌 Black-5，本局 okey 为 Black-6
var testIndicator = entity.Tile{ID: entity.TileID(entity.Black, 5, 0), Color: entity.Black, Value: 5}

func markedSet(t *testing.T) []entity.Tile {
	t.Helper()
	tiles, err := MarkJokers(BuildTileSet(), testIndicator)
	if err != nil {
		t.Fatalf("mark jokers: %v", err)
	}
	return tiles
}

type face struct {
	c entity.Color
	v int
}

// pick 按牌面取牌，同牌面第二次出现时取第二张副本
func pick(t *testing.T, set []entity.Tile, faces ...face) []entity.Tile {
	t.Helper()
	used := make(map[face]int)
	out := make([]entity.Tile, 0, len(faces))
	for _, f := range faces {
		n := used[f]
		if n >= entity.CopiesPerFace {
			t.Fatalf("face %v used more than %d times", f, entity.CopiesPerFace)
		}
		used[f] = n + 1
		out = append(out, set[entity.TileID(f.c, f.v, n)])
	}
	return out
}

func trueJoker(set []entity.Tile, copyIndex int) entity.Tile {
	return set[entity.TileID(entity.Black, 6, copyIndex)]
}

func falseJoker(set []entity.Tile, n int) entity.Tile {
	return set[entity.FalseJokerID(n)]
}

func y(v int) face { return face{entity.Yellow, v} }
func b(v int) face { return face{entity.Blue, v} }
func k(v int) face { return face{entity.Black, v} }
func r(v int) face { return face{entity.Red, v} }

// winningMelds Y1-4, B4-7, 9 三色刻, R11-13，共 14 张 4 个组合
func winningMelds() []face {
	return []face{
		y(1), y(2), y(3), y(4),
		b(4), b(5), b(6), b(7),
		r(9), k(9), y(9),
		r(11), r(12), r(13),
	}
}

// sevenPairs 七对的 14 张
func sevenPairs() []face {
	return []face{
		y(1), y(1), y(5), y(5), b(2), b(2), b(9), b(9),
		r(3), r(3), r(7), r(7), y(12), y(12),
	}
}
