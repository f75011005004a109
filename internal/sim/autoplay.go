package sim

import (
	"github.com/civmodel/civkernel/internal/game"
	"go.uber.org/zap"
)

// DefaultMaxActions caps the actions one unit takes per subturn.
const DefaultMaxActions = 4

// Autoplayer drives every unit of the player in turn with a greedy policy: a skill or attack
// against an enemy in reach when one is legal, otherwise a step toward the nearest enemy.
// Ties between equally good steps are broken with the game's random source.
type Autoplayer struct {
	MaxActions int
	logger     *zap.Logger
}

func NewAutoplayer(logger *zap.Logger) *Autoplayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autoplayer{MaxActions: DefaultMaxActions, logger: logger}
}

// neighborer is implemented by boards that can enumerate adjacent tiles.
type neighborer interface {
	Neighbors(pt game.Point) []game.Point
}

// reacher is implemented by skills that target a tile within a fixed distance.
type reacher interface {
	Reach() int
}

// PlaySubTurn acts for the player in turn and returns the number of actions taken.
func (ap *Autoplayer) PlaySubTurn(g *game.Game) int {
	p := g.PlayerInTurn()
	if p == nil {
		return 0
	}
	grid, ok := g.Terrain().(neighborer)
	if !ok {
		return 0
	}
	n := 0
	for _, u := range p.Units() {
		for range ap.MaxActions {
			if u.IsDestroyed() || u.Owner() != p || !ap.step(g, grid, u) {
				break
			}
			n++
		}
	}
	return n
}

func (ap *Autoplayer) step(g *game.Game, grid neighborer, u *game.Actor) bool {
	pos, placed := u.Position()
	if !placed {
		return false
	}
	for _, kind := range u.Actions() {
		if !kind.IsSpecial() {
			continue
		}
		reach := 1
		if r, ok := u.Spec().Specials[kind.SpecialIndex()].(reacher); ok {
			reach = r.Reach()
		}
		for _, pt := range ring(grid, g.Terrain(), pos, reach) {
			if enemyAt(g, u, pt) && ap.try(u, kind, pt) {
				return true
			}
		}
	}

	near := grid.Neighbors(pos)
	for _, kind := range []game.ActionKind{game.ActionHoldingAttack, game.ActionMovingAttack, game.ActionPillage} {
		for _, pt := range near {
			if ap.try(u, kind, pt) {
				return true
			}
		}
	}

	target, ok := nearestEnemy(g, u, pos)
	if !ok {
		return false
	}
	terrain := g.Terrain()
	best := terrain.Distance(pos, target)
	var moves []game.Point
	for _, pt := range near {
		if _, err := u.RequiredAP(game.ActionMove, pt); err != nil {
			continue
		}
		switch d := terrain.Distance(pt, target); {
		case d < best:
			best = d
			moves = append(moves[:0], pt)
		case d == best && len(moves) > 0:
			moves = append(moves, pt)
		}
	}
	if len(moves) == 0 {
		return false
	}
	return ap.try(u, game.ActionMove, moves[g.Rand().IntN(len(moves))])
}

func (ap *Autoplayer) try(u *game.Actor, kind game.ActionKind, pt game.Point) bool {
	required, err := u.RequiredAP(kind, pt)
	if err != nil || !u.CanConsumeAP(required) {
		return false
	}
	if err := u.Act(kind, pt); err != nil {
		ap.logger.Debug("autoplay action failed",
			zap.String("actor", u.ID()),
			zap.Stringer("action", kind),
			zap.Stringer("target", pt),
			zap.Error(err),
		)
		return false
	}
	return true
}

// ring returns the tiles at distance 1..reach from pos, nearest first.
func ring(grid neighborer, terrain game.Terrain, pos game.Point, reach int) []game.Point {
	seen := map[game.Point]bool{pos: true}
	frontier := []game.Point{pos}
	var out []game.Point
	for range reach {
		var next []game.Point
		for _, p := range frontier {
			for _, n := range grid.Neighbors(p) {
				if seen[n] || !terrain.Contains(n) {
					continue
				}
				seen[n] = true
				next = append(next, n)
			}
		}
		out = append(out, next...)
		frontier = next
	}
	return out
}

func isEnemy(u, other *game.Actor) bool {
	return other != nil && !other.IsDestroyed() && !u.Owner().IsAlliedWith(other.Owner())
}

func enemyAt(g *game.Game, u *game.Actor, pt game.Point) bool {
	return isEnemy(u, g.UnitAt(pt)) || isEnemy(u, g.TileBuildingAt(pt))
}

func nearestEnemy(g *game.Game, u *game.Actor, pos game.Point) (game.Point, bool) {
	var best game.Point
	bestDist := -1
	for a := range g.Actors() {
		at, placed := a.Position()
		if !placed || !isEnemy(u, a) {
			continue
		}
		if d := g.Terrain().Distance(pos, at); bestDist < 0 || d < bestDist {
			best, bestDist = at, d
		}
	}
	return best, bestDist >= 0
}
