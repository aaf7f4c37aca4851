package game

import (
	"errors"

	"okey/core/domain/repository"
	"okey/runtime/game/engines/okey"
)

var (
	ErrRoomNotFound = repository.ErrRoomNotFound
	ErrRoomBusy     = repository.ErrRoomBusy

	// 房间生命周期
	ErrRoomFull         = errors.New("room is full")
	ErrWrongPhase       = errors.New("action not allowed in current game phase")
	ErrRoundOver        = errors.New("round is already over")
	ErrNotEnoughPlayers = errors.New("need four players to start")
	ErrPlayerNotInRoom  = errors.New("player is not in this room")
	ErrPlayerInRoom     = errors.New("player already seated in another room")
	ErrInvalidPlayer    = errors.New("invalid player")

	// 回合动作
	ErrNotYourTurn      = okey.ErrNotCurrentPlayer
	ErrAlreadyDrawn     = okey.ErrAlreadyDrawn
	ErrNotDrawnYet      = okey.ErrNotDrawn
	ErrTileNotInHand    = okey.ErrTileNotInHand
	ErrDiscardPileEmpty = errors.New("discard pile is empty")
	ErrNotWinningHand   = errors.New("hand is not a winning hand")

	ErrRateLimited = errors.New("too many actions")
	ErrBadRequest  = errors.New("malformed request")
)

// IsRetryable 锁竞争和限流值得客户端稍后重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRoomBusy) || errors.Is(err, ErrRateLimited)
}

// ErrorCode 对外协议里的错误码
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, repository.ErrConnectionNotFound):
		return "CONNECTION_NOT_FOUND"
	case errors.Is(err, ErrRoomBusy):
		return "ROOM_BUSY"
	case errors.Is(err, ErrBadRequest):
		return "BAD_REQUEST"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrWrongPhase), errors.Is(err, okey.ErrWrongTurnPhase):
		return "WRONG_PHASE"
	case errors.Is(err, ErrRoundOver):
		return "ROUND_OVER"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "NOT_ENOUGH_PLAYERS"
	case errors.Is(err, ErrPlayerNotInRoom):
		return "PLAYER_NOT_IN_ROOM"
	case errors.Is(err, ErrPlayerInRoom):
		return "PLAYER_IN_ROOM"
	case errors.Is(err, ErrInvalidPlayer):
		return "INVALID_PLAYER"
	case errors.Is(err, ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, ErrAlreadyDrawn):
		return "ALREADY_DRAWN"
	case errors.Is(err, ErrNotDrawnYet):
		return "NOT_DRAWN"
	case errors.Is(err, ErrTileNotInHand):
		return "TILE_NOT_IN_HAND"
	case errors.Is(err, ErrDiscardPileEmpty):
		return "DISCARD_PILE_EMPTY"
	case errors.Is(err, ErrNotWinningHand):
		return "NOT_WINNING_HAND"
	case errors.Is(err, okey.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	}
	return "INTERNAL"
}
