package okey

import "okey/core/domain/entity"

type MeldKind int

const (
	Run   MeldKind = iota // 同色顺子
	Group                 // 同点不同色
)

func (k MeldKind) String() string {
	if k == Group {
		return "Group"
	}
	return "Run"
}

const (
	MinMeldSize  = 3
	MaxGroupSize = entity.ColorCount
	MaxRunSize   = entity.MaxTileValue
)

type Meld struct {
	Kind  MeldKind      `json:"kind"`
	Tiles []entity.Tile `json:"tiles"`
}

// HasWild 含百搭的组合不计额外分
func (m Meld) HasWild() bool {
	for _, t := range m.Tiles {
		if t.IsWild() {
			return true
		}
	}
	return false
}

type Pair [2]entity.Tile

// ValidMeld 校验一个组合在百搭替换后是否合法，牌的顺序无关
func ValidMeld(m Meld) bool {
	n := len(m.Tiles)
	if n < MinMeldSize {
		return false
	}
	var real []entity.Tile
	for _, t := range m.Tiles {
		if !t.IsWild() {
			real = append(real, t)
		}
	}

	switch m.Kind {
	case Group:
		if n > MaxGroupSize {
			return false
		}
		var colors [entity.ColorCount]bool
		for _, t := range real {
			if t.Value != real[0].Value || colors[t.Color] {
				return false
			}
			colors[t.Color] = true
		}
		return true
	case Run:
		if n > MaxRunSize {
			return false
		}
		for _, t := range real {
			if t.Color != real[0].Color {
				return false
			}
		}
		// 13 接 1 只能作为顺子的最后一步，此时 1 视为 14
		for start := 1; start+n-1 <= entity.MaxTileValue+1; start++ {
			if fitsRun(real, start, start+n-1) {
				return true
			}
		}
	}
	return false
}

func fitsRun(real []entity.Tile, start, end int) bool {
	var used [entity.MaxTileValue + 2]bool
	for _, t := range real {
		slot := t.Value
		if slot < start && slot == 1 && end == entity.MaxTileValue+1 {
			slot = entity.MaxTileValue + 1
		}
		if slot < start || slot > end || used[slot] {
			return false
		}
		used[slot] = true
	}
	return true
}
