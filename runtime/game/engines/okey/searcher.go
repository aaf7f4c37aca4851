package okey

import (
	"math/bits"
	"sort"
	"sync"

	"okey/core/domain/entity"
)

const maxSearchTiles = 32

// arena 排序后的只读牌组，剩余集合用位图表示，回溯中不修改任何切片
type arena struct {
	tiles    []entity.Tile
	wildMask uint32
	faces    [entity.ColorCount][entity.MaxTileValue + 1]uint32 // 每个牌面的非百搭位图
}

func newArena(tiles []entity.Tile) *arena {
	sorted := append([]entity.Tile(nil), tiles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return tileLess(sorted[i], sorted[j])
	})

	a := &arena{tiles: sorted}
	for i, t := range sorted {
		if t.IsWild() {
			a.wildMask |= 1 << i
			continue
		}
		a.faces[t.Color][t.Value] |= 1 << i
	}
	return a
}

// tileLess 先非百搭按 (颜色, 点数, ID)，百搭排最后
func tileLess(a, b entity.Tile) bool {
	if a.IsWild() != b.IsWild() {
		return !a.IsWild()
	}
	if a.Color != b.Color {
		return a.Color < b.Color
	}
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	return a.ID < b.ID
}

func (a *arena) full() uint32 {
	return uint32(1)<<len(a.tiles) - 1
}

func (a *arena) meld(c candidate) Meld {
	tiles := make([]entity.Tile, len(c.order))
	for i, idx := range c.order {
		tiles[i] = a.tiles[idx]
	}
	return Meld{Kind: c.kind, Tiles: tiles}
}

func bitIndices(mask uint32) []int {
	out := make([]int, 0, bits.OnesCount32(mask))
	for mask != 0 {
		idx := bits.TrailingZeros32(mask)
		out = append(out, idx)
		mask &^= 1 << idx
	}
	return out
}

type candidate struct {
	kind  MeldKind
	order []int // 顺子按点数位置排列
	mask  uint32
	wilds int
}

// plan 某个剩余集合的最优拆法，clean 为不含百搭的组合数，-1 表示拆不开
type plan struct {
	clean  int
	choice candidate
}

// search 一次回溯的上下文，memo 记录每个剩余集合的最优拆法
type search struct {
	a    *arena
	memo map[uint32]plan
}

// best 剩余集合最多能拆出几个无百搭组合
func (s *search) best(rem uint32) int {
	if rem == 0 {
		return 0
	}
	if bits.OnesCount32(rem) < MinMeldSize {
		return -1
	}
	if p, ok := s.memo[rem]; ok {
		return p.clean
	}

	first := bits.TrailingZeros32(rem)
	if s.a.tiles[first].IsWild() {
		// 百搭排在最后，能走到这里说明只剩百搭
		order := bitIndices(rem)
		kind := Group
		if len(order) > MaxGroupSize {
			kind = Run
		}
		s.memo[rem] = plan{clean: 0, choice: candidate{kind: kind, order: order, mask: rem, wilds: len(order)}}
		return 0
	}

	p := plan{clean: -1}
	for _, c := range s.candidates(first, rem) {
		rest := s.best(rem &^ c.mask)
		if rest < 0 {
			continue
		}
		if c.wilds == 0 {
			rest++
		}
		if rest > p.clean {
			p = plan{clean: rest, choice: c}
		}
	}
	s.memo[rem] = p
	return p.clean
}

// solve 沿 memo 取出得分最高的一种拆法
func (s *search) solve(rem uint32) ([]candidate, bool) {
	if s.best(rem) < 0 {
		return nil, false
	}
	var out []candidate
	for rem != 0 {
		c := s.memo[rem].choice
		out = append(out, c)
		rem &^= c.mask
	}
	return out, true
}

// candidates 枚举所有包含 first 的合法组合，少用百搭的优先，同分时取靠前的
// 同牌面有实牌时总是用实牌，百搭只补缺
func (s *search) candidates(first int, rem uint32) []candidate {
	t := s.a.tiles[first]
	wildIdx := bitIndices(rem & s.a.wildMask)

	var out []candidate
	seen := make(map[uint32]struct{})
	add := func(c candidate) {
		if _, dup := seen[c.mask]; dup {
			return
		}
		seen[c.mask] = struct{}{}
		out = append(out, c)
	}

	for start := 1; start <= entity.MaxTileValue; start++ {
		for length := MinMeldSize; length <= MaxRunSize; length++ {
			end := start + length - 1
			if end > entity.MaxTileValue+1 {
				break
			}
			slot := runSlot(t.Value, start, end)
			if slot < 0 {
				continue
			}
			c, ok := s.buildRun(first, rem, t.Color, start, end, slot, wildIdx)
			if !ok {
				// 更长的顺子只会缺得更多
				break
			}
			add(c)
		}
	}

	others := make([]entity.Color, 0, entity.ColorCount-1)
	for c := entity.Yellow; c <= entity.Red; c++ {
		if c != t.Color {
			others = append(others, c)
		}
	}
	for subset := 1; subset < 1<<len(others); subset++ {
		if n := bits.OnesCount(uint(subset)); n+1 < MinMeldSize {
			continue
		}
		used := uint32(1) << first
		order := []int{first}
		w, ok := 0, true
		for i, color := range others {
			if subset&(1<<i) == 0 {
				continue
			}
			if pick := s.a.faces[color][t.Value] & rem &^ used; pick != 0 {
				idx := bits.TrailingZeros32(pick)
				used |= 1 << idx
				order = append(order, idx)
				continue
			}
			if w >= len(wildIdx) {
				ok = false
				break
			}
			used |= 1 << wildIdx[w]
			order = append(order, wildIdx[w])
			w++
		}
		if ok {
			add(candidate{kind: Group, order: order, mask: used, wilds: w})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].wilds != out[j].wilds {
			return out[i].wilds < out[j].wilds
		}
		return len(out[i].order) > len(out[j].order)
	})
	return out
}

// runSlot value 在 [start, end] 顺子中的位置，14 代表接在 13 后面的 1
func runSlot(value, start, end int) int {
	if value >= start && value <= end && value <= entity.MaxTileValue {
		return value
	}
	if value == 1 && end == entity.MaxTileValue+1 {
		return entity.MaxTileValue + 1
	}
	return -1
}

func (s *search) buildRun(first int, rem uint32, color entity.Color, start, end, tSlot int, wildIdx []int) (candidate, bool) {
	used := uint32(1) << first
	order := make([]int, 0, end-start+1)
	w := 0
	for slot := start; slot <= end; slot++ {
		if slot == tSlot {
			order = append(order, first)
			continue
		}
		value := slot
		if value > entity.MaxTileValue {
			value = 1
		}
		if pick := s.a.faces[color][value] & rem &^ used; pick != 0 {
			idx := bits.TrailingZeros32(pick)
			used |= 1 << idx
			order = append(order, idx)
			continue
		}
		if w >= len(wildIdx) {
			return candidate{}, false
		}
		used |= 1 << wildIdx[w]
		order = append(order, wildIdx[w])
		w++
	}
	return candidate{kind: Run, order: order, mask: used, wilds: w}, true
}

type meldEntry struct {
	ok    bool
	melds []Meld
}

// Searcher 组合搜索器，按手牌签名缓存结果，可被多个房间并发使用
type Searcher struct {
	mu         sync.RWMutex
	meldCache  map[string]meldEntry
	maxEntries int
}

func NewSearcher() *Searcher {
	return &Searcher{
		meldCache:  make(map[string]meldEntry, 4096),
		maxEntries: 1 << 16,
	}
}

// FindMelds 把全部牌恰好拆成若干组合，取无百搭组合最多的拆法，失败返回 false
func (s *Searcher) FindMelds(tiles []entity.Tile) ([]Meld, bool) {
	if len(tiles) == 0 {
		return nil, true
	}
	if len(tiles) > maxSearchTiles {
		return nil, false
	}

	key := handKey(tiles)
	s.mu.RLock()
	if e, ok := s.meldCache[key]; ok {
		s.mu.RUnlock()
		return cloneMelds(e.melds), e.ok
	}
	s.mu.RUnlock()

	a := newArena(tiles)
	srch := &search{a: a, memo: make(map[uint32]plan)}
	cands, ok := srch.solve(a.full())

	var melds []Meld
	if ok {
		melds = make([]Meld, 0, len(cands))
		for _, c := range cands {
			melds = append(melds, a.meld(c))
		}
	}

	s.mu.Lock()
	if len(s.meldCache) >= s.maxEntries {
		s.meldCache = make(map[string]meldEntry, 4096)
	}
	s.meldCache[key] = meldEntry{ok: ok, melds: melds}
	s.mu.Unlock()

	return cloneMelds(melds), ok
}

func (s *Searcher) CanFormMelds(tiles []entity.Tile) bool {
	_, ok := s.FindMelds(tiles)
	return ok
}

// handKey 按 ID 排序的签名，附带百搭标记（不同局 okey 不同）
func handKey(tiles []entity.Tile) string {
	ids := make([]entity.Tile, len(tiles))
	copy(ids, tiles)
	sort.Slice(ids, func(i, j int) bool { return ids[i].ID < ids[j].ID })

	buf := make([]byte, 0, len(ids)*2)
	for _, t := range ids {
		flag := byte(0)
		if t.IsOkey {
			flag = 1
		}
		buf = append(buf, byte(t.ID), flag)
	}
	return string(buf)
}

func cloneMelds(melds []Meld) []Meld {
	if melds == nil {
		return nil
	}
	out := make([]Meld, len(melds))
	for i, m := range melds {
		out[i] = Meld{Kind: m.Kind, Tiles: append([]entity.Tile(nil), m.Tiles...)}
	}
	return out
}
