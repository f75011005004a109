package rules

import (
	"fmt"

	"go.uber.org/zap"
)

// TurnManager drives the phase dispatch tree through subturns and full turns.
//
// Each phase is delivered in two tiers: first the fixed tree walk (Dispatcher), then the
// observable tier (an EventBus event of Phase.EventType). A full turn is one subturn per player.
type TurnManager struct {
	root        Node
	players     func() int
	dispatcher  *Dispatcher
	bus         *EventBus
	logger      *zap.Logger
	subTurn     int
	insideTurn  bool
	resumeReady bool
	dispatching bool
	ending      bool
}

// NewTurnManager creates a turn manager at subturn 0. players reports the current player count.
func NewTurnManager(root Node, players func() int, bus *EventBus, logger *zap.Logger) *TurnManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnManager{
		root:       root,
		players:    players,
		dispatcher: NewDispatcher(logger),
		bus:        bus,
		logger:     logger,
	}
}

// Dispatcher returns the tree dispatcher, e.g. to install a trace.
func (tm *TurnManager) Dispatcher() *Dispatcher {
	return tm.dispatcher
}

// SubTurnNumber returns the global subturn counter.
func (tm *TurnManager) SubTurnNumber() int {
	return tm.subTurn
}

// TurnNumber returns the current full turn (0-based).
func (tm *TurnManager) TurnNumber() int {
	n := tm.playerCount()
	if n == 0 {
		return 0
	}
	return tm.subTurn / n
}

// PlayerInTurn returns the index of the player the current subturn is dedicated to.
func (tm *TurnManager) PlayerInTurn() int {
	n := tm.playerCount()
	if n == 0 {
		return -1
	}
	return tm.subTurn % n
}

// IsInsideTurn reports whether StartTurn has been called without a matching EndTurn.
func (tm *TurnManager) IsInsideTurn() bool {
	return tm.insideTurn
}

// Position reports where a restored game should resume: the subturn counter and whether
// that subturn has already started. While EndTurn is dispatching, the subturn counts as finished.
func (tm *TurnManager) Position() (subTurn int, inside bool) {
	switch {
	case tm.dispatching && tm.ending:
		return tm.subTurn + 1, false
	case tm.dispatching:
		return tm.subTurn, true
	default:
		return tm.subTurn, tm.insideTurn || tm.resumeReady
	}
}

// Restore positions the manager at a saved subturn. If inside is true the next StartTurn
// resumes the saved subturn without dispatching any Pre* phase.
func (tm *TurnManager) Restore(subTurn int, inside bool) error {
	if tm.insideTurn || tm.dispatching {
		return fmt.Errorf("%w: cannot restore while inside a turn", ErrInvalidOperation)
	}
	if subTurn < 0 {
		return fmt.Errorf("%w: subturn %d is negative", ErrOutOfRange, subTurn)
	}
	tm.subTurn = subTurn
	tm.resumeReady = inside
	return nil
}

// StartTurn begins the current subturn. At a full turn boundary PreTurn and AfterPreTurn
// run first, then PreSubTurn and AfterPreSubTurn for the player in turn.
func (tm *TurnManager) StartTurn() error {
	if tm.insideTurn {
		return fmt.Errorf("%w: the game is already inside a turn", ErrInvalidOperation)
	}
	if tm.dispatching {
		return fmt.Errorf("%w: StartTurn called from a phase callback", ErrInvalidOperation)
	}
	if tm.playerCount() == 0 {
		return fmt.Errorf("%w: no players", ErrInvalidOperation)
	}

	if tm.resumeReady {
		tm.resumeReady = false
		tm.insideTurn = true
		tm.logger.Info("resumed turn",
			zap.Int("turn", tm.TurnNumber()),
			zap.Int("sub_turn", tm.subTurn),
		)
		return nil
	}

	tm.dispatching = true
	defer func() { tm.dispatching = false }()

	if tm.subTurn%tm.playerCount() == 0 {
		tm.logger.Info("turn started", zap.Int("turn", tm.TurnNumber()))
		tm.raise(PhasePreTurn)
		tm.raise(PhaseAfterPreTurn)
	}
	tm.raise(PhasePreSubTurn)
	tm.raise(PhaseAfterPreSubTurn)

	tm.insideTurn = true
	return nil
}

// EndTurn finishes the current subturn: PostSubTurn and AfterPostSubTurn, and on the last
// subturn of a full turn also PostTurn and AfterPostTurn. The subturn counter then advances.
func (tm *TurnManager) EndTurn() error {
	if !tm.insideTurn {
		return fmt.Errorf("%w: the turn is not started yet", ErrInvalidOperation)
	}
	if tm.dispatching {
		return fmt.Errorf("%w: EndTurn called from a phase callback", ErrInvalidOperation)
	}

	tm.dispatching = true
	tm.ending = true
	defer func() {
		tm.dispatching = false
		tm.ending = false
	}()

	tm.raise(PhasePostSubTurn)
	tm.raise(PhaseAfterPostSubTurn)

	if (tm.subTurn+1)%tm.playerCount() == 0 {
		tm.raise(PhasePostTurn)
		tm.raise(PhaseAfterPostTurn)
		tm.logger.Info("turn ended", zap.Int("turn", tm.TurnNumber()))
	}

	tm.subTurn++
	tm.insideTurn = false
	return nil
}

func (tm *TurnManager) raise(phase Phase) {
	ctx := PhaseContext{
		Phase:         phase,
		TurnNumber:    tm.TurnNumber(),
		SubTurnNumber: tm.subTurn,
		PlayerInTurn:  -1,
	}
	if phase.IsSubTurn() {
		ctx.PlayerInTurn = tm.PlayerInTurn()
	}

	tm.dispatcher.Dispatch(tm.root, ctx)

	if tm.bus != nil {
		evt := NewEvent(phase.EventType(), "", "", "")
		evt.TurnNumber = ctx.TurnNumber
		evt.SubTurnNumber = ctx.SubTurnNumber
		evt.Amount = float64(ctx.PlayerInTurn)
		evt.Payload = ctx
		tm.bus.Publish(evt)
	}
}

func (tm *TurnManager) playerCount() int {
	if tm.players == nil {
		return 0
	}
	return tm.players()
}
