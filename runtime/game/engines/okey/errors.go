package okey

import "errors"

var (
	// 数据不一致，属于程序错误
	ErrInvalidHandSize     = errors.New("winning check needs exactly 15 tiles")
	ErrIndicatorIsWildcard = errors.New("indicator tile must not be a wildcard")
	ErrInvalidTransition   = errors.New("invalid phase transition")
	ErrTileNotInHand       = errors.New("tile not in hand")

	// 回合动作校验
	ErrNotCurrentPlayer = errors.New("not your turn")
	ErrAlreadyDrawn     = errors.New("already drawn this turn")
	ErrNotDrawn         = errors.New("must draw before discarding")
	ErrWrongTurnPhase   = errors.New("action not allowed in current turn phase")
)
