package okey

import (
	"fmt"

	"okey/core/domain/entity"
)

const (
	WinningHandSize = 15

	// AnyTile 不指定收尾牌，由判定挑得分最高的
	AnyTile = -1
)

// Checker 胡牌判定，组合搜索交给 Searcher
type Checker struct {
	searcher *Searcher
	scorer   *ScoreCalculator
}

func NewChecker(searcher *Searcher, scorer *ScoreCalculator) *Checker {
	if searcher == nil {
		searcher = NewSearcher()
	}
	if scorer == nil {
		scorer = NewScoreCalculator()
	}
	return &Checker{searcher: searcher, scorer: scorer}
}

func (c *Checker) Scorer() *ScoreCalculator {
	return c.scorer
}

func (c *Checker) CanFormMelds(tiles []entity.Tile) bool {
	return c.searcher.CanFormMelds(tiles)
}

func (c *Checker) FindMelds(tiles []entity.Tile) ([]Meld, bool) {
	return c.searcher.FindMelds(tiles)
}

// CheckWinningHand 15 张手牌，逐张尝试作为收尾打出，返回最高分的胡法
func (c *Checker) CheckWinningHand(hand []entity.Tile) (*WinResult, error) {
	return c.CheckWinningHandWith(hand, AnyTile)
}

// CheckWinningHandWith 指定收尾牌，finishingID 为 AnyTile 时尝试所有牌
func (c *Checker) CheckWinningHandWith(hand []entity.Tile, finishingID int) (*WinResult, error) {
	if len(hand) != WinningHandSize {
		return &WinResult{Reason: fmt.Sprintf("hand has %d tiles, need %d", len(hand), WinningHandSize)},
			fmt.Errorf("%w: got %d", ErrInvalidHandSize, len(hand))
	}

	var best *WinResult
	consider := func(r *WinResult) {
		if best == nil || r.Score > best.Score {
			best = r
		}
	}

	tried := make(map[entity.Face]map[bool]bool)
	found := finishingID == AnyTile
	for i, finishing := range hand {
		if finishingID != AnyTile && finishing.ID != finishingID {
			continue
		}
		found = true

		// 同牌面、同百搭属性的收尾结果相同
		if tried[finishing.Face()][finishing.IsOkey] {
			continue
		}
		if tried[finishing.Face()] == nil {
			tried[finishing.Face()] = make(map[bool]bool, 2)
		}
		tried[finishing.Face()][finishing.IsOkey] = true

		rest := without(hand, i)
		if melds, ok := c.searcher.FindMelds(rest); ok {
			consider(c.scorer.MeldWin(melds, finishing))
		}
		if pairs := FindPairs(rest); len(pairs) == SevenPairs {
			consider(c.scorer.PairsWin(pairs, finishing))
		}
	}

	if !found {
		return &WinResult{Reason: fmt.Sprintf("tile %d is not in hand", finishingID)},
			fmt.Errorf("%w: %d", ErrTileNotInHand, finishingID)
	}
	if best == nil {
		return &WinResult{Reason: "no meld decomposition or seven pairs found"}, nil
	}
	return best, nil
}

func without(tiles []entity.Tile, i int) []entity.Tile {
	out := make([]entity.Tile, 0, len(tiles)-1)
	out = append(out, tiles[:i]...)
	return append(out, tiles[i+1:]...)
}
