package okey

import (
	"errors"
	"testing"

	"okey/core/domain/entity"
)

func TestChecker_NormalWin(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	hand := pick(t, set, append(winningMelds(), b(11))...)
	finishing := hand[len(hand)-1]
	res, err := c.CheckWinningHandWith(hand, finishing.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.IsWinning || res.WinType != entity.WinNormal {
		t.Fatalf("expected normal win, got %+v", res)
	}
	if res.BaseScore != NormalBaseScore || res.Score != NormalBaseScore+4 {
		t.Fatalf("normal win with 4 clean melds expected score 6, got base=%d score=%d", res.BaseScore, res.Score)
	}
	if res.FinishingTile.ID != finishing.ID {
		t.Fatalf("finishing tile expected %d, got %d", finishing.ID, res.FinishingTile.ID)
	}

	// 不指定收尾牌时自动找到同一张
	res, err = c.CheckWinningHand(hand)
	if err != nil || !res.IsWinning || res.FinishingTile.Face() != finishing.Face() {
		t.Fatalf("any-tile check expected to finish on %v, got %+v err=%v", finishing, res, err)
	}
}

func TestChecker_WildMeldsScoreLess(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	faces := []face{y(1), y(2), y(3), y(4), b(4), b(6), b(7), r(9), k(9), y(9), r(11), r(12), r(13), b(11)}
	hand := append(pick(t, set, faces...), falseJoker(set, 0))
	finishing := hand[len(hand)-2]
	res, err := c.CheckWinningHandWith(hand, finishing.ID)
	if err != nil || !res.IsWinning {
		t.Fatalf("expected win, got %+v err=%v", res, err)
	}
	if res.Score != NormalBaseScore+3 {
		t.Fatalf("one meld uses a wild, expected score 5, got %d", res.Score)
	}
}

func TestChecker_SplitsLongRunForScore(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	// R1-6 拆成 R1-3 + R4-6 比一整条顺子多 1 分
	hand := pick(t, set,
		r(1), r(2), r(3), r(4), r(5), r(6),
		b(1), b(2), b(3), b(4),
		y(1), y(2), y(3), y(4),
		y(13),
	)
	res, err := c.CheckWinningHand(hand)
	if err != nil || !res.IsWinning {
		t.Fatalf("expected win, got %+v err=%v", res, err)
	}
	if res.FinishingTile.Face() != (entity.Face{Color: entity.Yellow, Value: 13}) {
		t.Fatalf("expected to finish on Y13, got %v", res.FinishingTile)
	}
	if len(res.Melds) != 4 || res.Score != NormalBaseScore+4 {
		t.Fatalf("expected 4 clean melds and score 6, got %d melds score %d", len(res.Melds), res.Score)
	}
}

func TestChecker_JokerDiscard(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	joker := trueJoker(set, 0)
	hand := append(pick(t, set, winningMelds()...), joker)
	res, err := c.CheckWinningHandWith(hand, joker.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.WinType != entity.WinJokerDiscard {
		t.Fatalf("expected JokerDiscard, got %s", res.WinType)
	}
	if res.BaseScore != JokerDiscardBaseScore || res.Score != JokerDiscardBaseScore+4 {
		t.Fatalf("expected base 4 score 8, got base=%d score=%d", res.BaseScore, res.Score)
	}

	// 自动选择时也应优先打出真 okey
	res, _ = c.CheckWinningHand(hand)
	if res.WinType != entity.WinJokerDiscard || res.Score != 8 {
		t.Fatalf("best finishing expected JokerDiscard 8, got %s %d", res.WinType, res.Score)
	}
}

func TestChecker_FalseJokerFinishIsNormal(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	fj := falseJoker(set, 1)
	hand := append(pick(t, set, winningMelds()...), fj)
	res, err := c.CheckWinningHandWith(hand, fj.ID)
	if err != nil || !res.IsWinning {
		t.Fatalf("expected win, got %+v err=%v", res, err)
	}
	if res.WinType != entity.WinNormal {
		t.Fatalf("finishing on a false joker is a normal win, got %s", res.WinType)
	}
}

func TestChecker_SevenPairs(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	hand := pick(t, set, append(sevenPairs(), r(10))...)
	finishing := hand[len(hand)-1]
	res, err := c.CheckWinningHandWith(hand, finishing.ID)
	if err != nil || !res.IsWinning {
		t.Fatalf("expected pairs win, got %+v err=%v", res, err)
	}
	if res.WinType != entity.WinPairs || res.Score != PairsBaseScore || len(res.Pairs) != SevenPairs {
		t.Fatalf("expected Pairs score 4 with 7 pairs, got %s %d %d", res.WinType, res.Score, len(res.Pairs))
	}

	joker := trueJoker(set, 1)
	hand = append(pick(t, set, sevenPairs()...), joker)
	res, err = c.CheckWinningHandWith(hand, joker.ID)
	if err != nil || res.WinType != entity.WinPairs {
		t.Fatalf("expected pairs win on joker, got %+v err=%v", res, err)
	}
	if res.Score != PairsBaseScore+PairsJokerBonus || res.BaseScore != res.Score {
		t.Fatalf("joker finish on pairs expected base=score=6, got base=%d score=%d", res.BaseScore, res.Score)
	}
}

func TestChecker_NotWinning(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	hand := pick(t, set,
		y(1), y(3), y(5), y(7), y(9), y(11), y(13),
		b(2), b(4), b(8), b(10), b(12),
		r(1), r(6), k(3),
	)
	res, err := c.CheckWinningHand(hand)
	if err != nil {
		t.Fatalf("non-winning hand is not an error: %v", err)
	}
	if res.IsWinning || res.Reason == "" {
		t.Fatalf("expected non-winning with reason, got %+v", res)
	}
}

func TestChecker_InputErrors(t *testing.T) {
	c := NewChecker(nil, nil)
	set := markedSet(t)

	_, err := c.CheckWinningHand(pick(t, set, winningMelds()...))
	if !errors.Is(err, ErrInvalidHandSize) {
		t.Fatalf("14 tiles expected ErrInvalidHandSize, got %v", err)
	}

	hand := pick(t, set, append(winningMelds(), b(11))...)
	_, err = c.CheckWinningHandWith(hand, entity.TileID(entity.Red, 1, 0))
	if !errors.Is(err, ErrTileNotInHand) {
		t.Fatalf("foreign finishing tile expected ErrTileNotInHand, got %v", err)
	}
}

func TestScoreCalculator_Penalties(t *testing.T) {
	sc := NewScoreCalculator()
	set := markedSet(t)

	hands := map[string][]entity.Tile{
		"winner": pick(t, set, y(1)),
		"jokers": {trueJoker(set, 0), falseJoker(set, 0), set[entity.TileID(entity.Red, 2, 0)]},
		"plain":  pick(t, set, y(2), y(3)),
	}

	jd := &WinResult{IsWinning: true, WinType: entity.WinJokerDiscard, BaseScore: JokerDiscardBaseScore}
	got := sc.Penalties(jd, "winner", hands)
	if got["winner"] != 0 || got["jokers"] != 4+2+1 || got["plain"] != 4 {
		t.Fatalf("JokerDiscard penalties unexpected: %v", got)
	}

	normal := &WinResult{IsWinning: true, WinType: entity.WinNormal, BaseScore: NormalBaseScore}
	got = sc.Penalties(normal, "winner", hands)
	if got["jokers"] != 2+2 || got["plain"] != 2 {
		t.Fatalf("false jokers only count on JokerDiscard, got %v", got)
	}

	pairs := &WinResult{IsWinning: true, WinType: entity.WinPairs, BaseScore: PairsBaseScore + PairsJokerBonus}
	got = sc.Penalties(pairs, "winner", hands)
	if got["plain"] != 6 {
		t.Fatalf("pairs joker bonus belongs to the base penalty, got %v", got)
	}
}

func TestScoreCalculator_DeckEmpty(t *testing.T) {
	got := NewScoreCalculator().DeckEmpty([]string{"a", "b", "c", "d"})
	if len(got) != 4 {
		t.Fatalf("expected 4 entries, got %v", got)
	}
	for id, v := range got {
		if v != DeckEmptyScore {
			t.Fatalf("player %s expected %d, got %d", id, DeckEmptyScore, v)
		}
	}
}
