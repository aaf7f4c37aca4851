package okey

import "okey/core/domain/entity"

const (
	NormalBaseScore       = 2
	PairsBaseScore        = 4
	PairsJokerBonus       = 2
	JokerDiscardBaseScore = 4
	DeckEmptyScore        = 1

	TrueJokerPenalty  = 2
	FalseJokerPenalty = 1
)

// WinResult 胡牌判定结果，未胡时 Reason 说明原因
type WinResult struct {
	IsWinning     bool           `json:"isWinning"`
	WinType       entity.WinType `json:"winType,omitempty"`
	Score         int            `json:"score"`
	BaseScore     int            `json:"baseScore"`
	FinishingTile entity.Tile    `json:"finishingTile"`
	Melds         []Meld         `json:"melds,omitempty"`
	Pairs         []Pair         `json:"pairs,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

type ScoreCalculator struct{}

func NewScoreCalculator() *ScoreCalculator {
	return &ScoreCalculator{}
}

func (sc *ScoreCalculator) BaseScore(winType entity.WinType) int {
	switch winType {
	case entity.WinNormal:
		return NormalBaseScore
	case entity.WinPairs:
		return PairsBaseScore
	case entity.WinJokerDiscard:
		return JokerDiscardBaseScore
	case entity.WinDeckEmpty:
		return DeckEmptyScore
	}
	return 0
}

// MeldWin 组合胡：每个不含百搭的组合加 1，打出真 okey 收尾算 JokerDiscard
func (sc *ScoreCalculator) MeldWin(melds []Meld, finishing entity.Tile) *WinResult {
	winType := entity.WinNormal
	if finishing.IsTrueJoker() {
		winType = entity.WinJokerDiscard
	}
	base := sc.BaseScore(winType)
	score := base
	for _, m := range melds {
		if !m.HasWild() {
			score++
		}
	}
	return &WinResult{
		IsWinning:     true,
		WinType:       winType,
		Score:         score,
		BaseScore:     base,
		FinishingTile: finishing,
		Melds:         melds,
	}
}

// PairsWin 七对，真 okey 收尾额外加分，加分计入输家的基础罚分
func (sc *ScoreCalculator) PairsWin(pairs []Pair, finishing entity.Tile) *WinResult {
	base := sc.BaseScore(entity.WinPairs)
	if finishing.IsTrueJoker() {
		base += PairsJokerBonus
	}
	return &WinResult{
		IsWinning:     true,
		WinType:       entity.WinPairs,
		Score:         base,
		BaseScore:     base,
		FinishingTile: finishing,
		Pairs:         pairs,
	}
}

// Penalties 输家罚分 = 基础分 + 手里每张真 okey 2 分 (+ JokerDiscard 时每张假 okey 1 分)，赢家 0
func (sc *ScoreCalculator) Penalties(result *WinResult, winnerID string, hands map[string][]entity.Tile) map[string]int {
	out := make(map[string]int, len(hands))
	for playerID, hand := range hands {
		if playerID == winnerID {
			out[playerID] = 0
			continue
		}
		penalty := result.BaseScore
		for _, t := range hand {
			switch {
			case t.IsTrueJoker():
				penalty += TrueJokerPenalty
			case t.IsFalseJoker && result.WinType == entity.WinJokerDiscard:
				penalty += FalseJokerPenalty
			}
		}
		out[playerID] = penalty
	}
	return out
}

// DeckEmpty 牌墙摸空流局，每人 1 分
func (sc *ScoreCalculator) DeckEmpty(playerIDs []string) map[string]int {
	out := make(map[string]int, len(playerIDs))
	for _, id := range playerIDs {
		out[id] = DeckEmptyScore
	}
	return out
}
