package okey

import (
	"fmt"

	"okey/core/domain/entity"
)

// InvalidTransitionError 非法的状态迁移，errors.Is(err, ErrInvalidTransition) 为真
type InvalidTransitionError struct {
	Kind string // "game" 或 "turn"
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s phase transition: %s -> %s", e.Kind, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// TransitionResult 给前端展示的迁移结果
type TransitionResult struct {
	Success bool   `json:"success"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

var gamePhaseEdges = map[entity.GamePhase][]entity.GamePhase{
	entity.PhaseWaitingForPlayers: {entity.PhaseReadyToStart, entity.PhaseCancelled},
	entity.PhaseReadyToStart:      {entity.PhaseShuffling, entity.PhaseWaitingForPlayers, entity.PhaseCancelled},
	entity.PhaseShuffling:         {entity.PhaseDealing, entity.PhaseCancelled},
	entity.PhaseDealing:           {entity.PhasePlaying, entity.PhaseCancelled},
	entity.PhasePlaying:           {entity.PhaseFinished, entity.PhaseCancelled},
	entity.PhaseFinished:          {},
	entity.PhaseCancelled:         {},
}

var turnPhaseEdges = map[entity.TurnPhase]entity.TurnPhase{
	entity.TurnWaitingForDraw:    entity.TurnWaitingForDiscard,
	entity.TurnWaitingForDiscard: entity.TurnCompleted,
	entity.TurnCompleted:         entity.TurnWaitingForDraw,
}

// StateMachine 大状态（对局阶段）与小状态（回合阶段）的迁移表，本身无状态
type StateMachine struct{}

func NewStateMachine() *StateMachine {
	return &StateMachine{}
}

func (m *StateMachine) CanTransitionGame(from, to entity.GamePhase) bool {
	edges, known := gamePhaseEdges[from]
	if !known {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range edges {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionGame 合法时返回新阶段；同阶段迁移视为幂等
func (m *StateMachine) TransitionGame(from, to entity.GamePhase) (entity.GamePhase, error) {
	if !m.CanTransitionGame(from, to) {
		return from, &InvalidTransitionError{Kind: "game", From: string(from), To: string(to)}
	}
	return to, nil
}

func (m *StateMachine) TryGamePhase(from, to entity.GamePhase) TransitionResult {
	return result(string(from), string(to), func() error {
		_, err := m.TransitionGame(from, to)
		return err
	})
}

func (m *StateMachine) CanTransitionTurn(from, to entity.TurnPhase) bool {
	next, ok := turnPhaseEdges[from]
	return ok && next == to
}

func (m *StateMachine) TransitionTurn(from, to entity.TurnPhase) (entity.TurnPhase, error) {
	if !m.CanTransitionTurn(from, to) {
		return from, &InvalidTransitionError{Kind: "turn", From: string(from), To: string(to)}
	}
	return to, nil
}

func (m *StateMachine) TryTurnPhase(from, to entity.TurnPhase) TransitionResult {
	return result(string(from), string(to), func() error {
		_, err := m.TransitionTurn(from, to)
		return err
	})
}

// InitialTurnPhase 发牌后首位玩家已持有第 15 张牌，直接进入出牌阶段
func (m *StateMachine) InitialTurnPhase(firstTurn bool) entity.TurnPhase {
	if firstTurn {
		return entity.TurnWaitingForDiscard
	}
	return entity.TurnWaitingForDraw
}

func result(from, to string, do func() error) TransitionResult {
	if err := do(); err != nil {
		return TransitionResult{From: from, To: to, Message: err.Error()}
	}
	return TransitionResult{
		Success: true,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("%s -> %s", from, to),
	}
}
