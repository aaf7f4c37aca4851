package okey

import (
	"sort"

	"okey/core/domain/entity"
)

const SevenPairs = 7

// FindPairs 先配同牌面，再用百搭配剩下的单张，最后百搭互配
// 返回能配出的所有对子，不保证有 7 对
func FindPairs(tiles []entity.Tile) []Pair {
	sorted := append([]entity.Tile(nil), tiles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return tileLess(sorted[i], sorted[j])
	})

	var (
		pairs   []Pair
		singles []entity.Tile
		wilds   []entity.Tile
	)
	for i := 0; i < len(sorted); i++ {
		t := sorted[i]
		if t.IsWild() {
			wilds = append(wilds, t)
			continue
		}
		if i+1 < len(sorted) && !sorted[i+1].IsWild() && sorted[i+1].Face() == t.Face() {
			pairs = append(pairs, Pair{t, sorted[i+1]})
			i++
			continue
		}
		singles = append(singles, t)
	}

	for _, s := range singles {
		if len(wilds) == 0 {
			break
		}
		pairs = append(pairs, Pair{s, wilds[0]})
		wilds = wilds[1:]
	}
	for len(wilds) >= 2 {
		pairs = append(pairs, Pair{wilds[0], wilds[1]})
		wilds = wilds[2:]
	}
	return pairs
}
