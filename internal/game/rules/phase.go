package rules

import "fmt"

// Phase is one named callback point in the turn lifecycle.
type Phase int

const (
	PhasePreTurn Phase = iota
	PhaseAfterPreTurn
	PhasePreSubTurn
	PhaseAfterPreSubTurn
	PhasePostSubTurn
	PhaseAfterPostSubTurn
	PhasePostTurn
	PhaseAfterPostTurn
)

var phaseNames = map[Phase]string{
	PhasePreTurn:          "PRE_TURN",
	PhaseAfterPreTurn:     "AFTER_PRE_TURN",
	PhasePreSubTurn:       "PRE_SUB_TURN",
	PhaseAfterPreSubTurn:  "AFTER_PRE_SUB_TURN",
	PhasePostSubTurn:      "POST_SUB_TURN",
	PhaseAfterPostSubTurn: "AFTER_POST_SUB_TURN",
	PhasePostTurn:         "POST_TURN",
	PhaseAfterPostTurn:    "AFTER_POST_TURN",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Direction is the order in which the dispatch tree is walked.
type Direction int

const (
	// Forward visits a node before its children, children in container order.
	Forward Direction = iota
	// Backward visits children (in reverse container order) before their parent.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "BACKWARD"
	}
	return "FORWARD"
}

// Direction returns Forward for every Pre* phase and Backward for every Post* phase.
func (p Phase) Direction() Direction {
	switch p {
	case PhasePreTurn, PhaseAfterPreTurn, PhasePreSubTurn, PhaseAfterPreSubTurn:
		return Forward
	default:
		return Backward
	}
}

// IsSubTurn reports whether the phase carries a player in turn.
func (p Phase) IsSubTurn() bool {
	switch p {
	case PhasePreSubTurn, PhaseAfterPreSubTurn, PhasePostSubTurn, PhaseAfterPostSubTurn:
		return true
	default:
		return false
	}
}

// EventType returns the bus event published for the observable tier of this phase.
func (p Phase) EventType() EventType {
	return EventType(p.String())
}

// PhaseContext is handed to every node visited during one dispatch.
type PhaseContext struct {
	Phase Phase
	// TurnNumber is the full turn being played (0-based).
	TurnNumber int
	// SubTurnNumber is the global subturn counter.
	SubTurnNumber int
	// PlayerInTurn is the index of the player the subturn is dedicated to.
	// It is -1 for turn-level phases.
	PlayerInTurn int
}
