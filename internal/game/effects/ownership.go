package effects

import (
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"go.uber.org/zap"
)

// Ownership hands its target over to another player while on, and gives it back to the
// previous owner when it turns off.
type Ownership struct {
	// NewOwner is the index of the player controlling the target while the effect is on.
	NewOwner int
	// previous is the index of the player to return the target to, or -1 until first turned on.
	previous int
}

// NewOwnership creates an ownership effect handing its target to newOwner.
func NewOwnership(newOwner *game.Player) (*Ownership, error) {
	if newOwner == nil {
		return nil, fmt.Errorf("%w: new owner is nil", game.ErrInvalidArgument)
	}
	return &Ownership{NewOwner: newOwner.Index(), previous: -1}, nil
}

func restoreOwnership(p map[string]float64) (*Ownership, error) {
	owner, ok := p["owner"]
	if !ok {
		return nil, fmt.Errorf("%w: ownership effect has no owner", game.ErrInvalidArgument)
	}
	return &Ownership{NewOwner: int(owner), previous: int(param(p, "previous", -1))}, nil
}

func (o *Ownership) Kind() string        { return KindOwnership }
func (o *Ownership) Tag() game.EffectTag { return game.TagOwnership }

// Previous returns the index of the player the target returns to, or -1.
func (o *Ownership) Previous() int { return o.previous }

func (o *Ownership) OnEffectOn(e *game.Effect) {
	a, ok := e.Target()
	if !ok {
		logger(e).Warn("ownership effect needs an actor target", effectField(e))
		return
	}
	to := e.Game().Player(o.NewOwner)
	if to == nil {
		logger(e).Warn("ownership effect names an unknown player", effectField(e), zap.Int("player", o.NewOwner))
		return
	}
	// A restored effect already knows who to return the target to.
	if o.previous < 0 {
		o.previous = a.Owner().Index()
	}
	if err := a.ChangeOwner(to); err != nil {
		logger(e).Warn("ownership transfer failed", effectField(e), zap.Error(err))
		return
	}
	logger(e).Debug("actor hijacked",
		zap.String("actor", a.ID()),
		zap.String("from", e.Game().Player(o.previous).Name()),
		zap.String("to", to.Name()),
	)
}

func (o *Ownership) OnEffectOff(e *game.Effect) {
	a, ok := e.Target()
	if !ok {
		return
	}
	back := e.Game().Player(o.previous)
	if back == nil {
		return
	}
	if err := a.ChangeOwner(back); err != nil {
		logger(e).Warn("ownership return failed", effectField(e), zap.Error(err))
	}
}

func (o *Ownership) OnTargetDestroy(*game.Effect) {}

func (o *Ownership) EncodeState() map[string]float64 {
	return map[string]float64{"owner": float64(o.NewOwner), "previous": float64(o.previous)}
}
