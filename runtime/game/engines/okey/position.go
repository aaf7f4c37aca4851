package okey

import "okey/core/domain/entity"

// NextPosition South -> West -> North -> East -> South
func NextPosition(p entity.Position) entity.Position {
	return PositionAfter(p, 1)
}

// PositionAfter 向前走 n 步，n 可以为负
func PositionAfter(p entity.Position, n int) entity.Position {
	step := (int(p) + n) % entity.MaxPlayers
	if step < 0 {
		step += entity.MaxPlayers
	}
	return entity.Position(step)
}

// PreviousPosition 上家，摸弃牌时从上家的弃牌堆拿
func PreviousPosition(p entity.Position) entity.Position {
	return PositionAfter(p, -1)
}

// PositionDistance 从 a 向前走到 b 的步数 (0-3)
func PositionDistance(a, b entity.Position) int {
	return ((int(b)-int(a))%entity.MaxPlayers + entity.MaxPlayers) % entity.MaxPlayers
}
