// Package sim runs games turn by turn: an optional autoplayer acts for every player, snapshots
// are persisted at full turn boundaries and a Manager tracks concurrent runs.
package sim

import (
	"context"
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/store"
	"go.uber.org/zap"
)

// Runner advances one game. A Runner must only be used from one goroutine, the game's.
type Runner struct {
	game       *game.Game
	store      store.Store
	autoplayer *Autoplayer
	logger     *zap.Logger
	onTurn     []func(TurnReport)
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore saves a snapshot after every full turn.
func WithStore(st store.Store) Option {
	return func(r *Runner) { r.store = st }
}

// WithAutoplayer lets ap act during every subturn. Without one, subturns pass without actions.
func WithAutoplayer(ap *Autoplayer) Option {
	return func(r *Runner) { r.autoplayer = ap }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTurnHook calls fn on the game goroutine after every full turn. Hooks run in the order
// they were added.
func WithTurnHook(fn func(TurnReport)) Option {
	return func(r *Runner) { r.onTurn = append(r.onTurn, fn) }
}

// TurnReport summarises one full turn.
type TurnReport struct {
	Turn     int
	Actions  int
	Snapshot *store.Info
	// Standing is the number of teams with at least one player not eliminated.
	Standing int
}

// Result summarises a run.
type Result struct {
	Turns     int
	Actions   int
	Snapshots []store.Info
	// Finished is set when the run stopped because at most one team was left.
	Finished bool
}

func NewRunner(g *game.Game, opts ...Option) *Runner {
	r := &Runner{game: g, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run plays up to turns full turns. It stops early when ctx is done or when at most one team
// still stands; the remaining players then achieve their first victory ending and the
// eliminated ones their first defeat ending, where the game offers such endings.
func (r *Runner) Run(ctx context.Context, turns int) (Result, error) {
	var res Result
	if len(r.game.Players()) == 0 {
		return res, fmt.Errorf("%w: the game has no players", game.ErrInvalidOperation)
	}
	for range turns {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		report, err := r.fullTurn(ctx)
		if err != nil {
			return res, err
		}
		res.Turns++
		res.Actions += report.Actions
		if report.Snapshot != nil {
			res.Snapshots = append(res.Snapshots, *report.Snapshot)
		}
		for _, fn := range r.onTurn {
			fn(report)
		}
		if report.Standing <= 1 {
			res.Finished = true
			r.settleEndings()
			break
		}
	}
	r.logger.Info("run complete",
		zap.String("game", r.game.ID()),
		zap.Int("turns", res.Turns),
		zap.Int("actions", res.Actions),
		zap.Bool("finished", res.Finished),
	)
	return res, nil
}

func (r *Runner) fullTurn(ctx context.Context) (TurnReport, error) {
	g := r.game
	start := g.TurnNumber()
	report := TurnReport{Turn: start}
	for g.TurnNumber() == start {
		if !g.IsInsideTurn() {
			if err := g.StartTurn(); err != nil {
				return report, err
			}
		}
		if r.autoplayer != nil {
			report.Actions += r.autoplayer.PlaySubTurn(g)
		}
		if err := g.EndTurn(); err != nil {
			return report, err
		}
	}
	report.Standing = standingTeams(g)

	if r.store != nil {
		info, err := r.store.Save(ctx, g.Snapshot())
		if err != nil {
			return report, fmt.Errorf("saving turn %d: %w", start, err)
		}
		report.Snapshot = &info
	}
	r.logger.Debug("turn complete",
		zap.Int("turn", start),
		zap.Int("actions", report.Actions),
		zap.Int("standing", report.Standing),
	)
	return report, nil
}

func (r *Runner) settleEndings() {
	for _, p := range r.game.Players() {
		if p.HasEnding() {
			continue
		}
		want := game.EndingVictory
		if p.IsEliminated() {
			want = game.EndingDefeat
		}
		for _, e := range p.AvailableEndings() {
			if e.Type != want {
				continue
			}
			if err := p.AchieveEnding(e); err != nil {
				r.logger.Warn("failed to settle ending", zap.String("player", p.Name()), zap.Error(err))
			}
			break
		}
	}
}

func standingTeams(g *game.Game) int {
	teams := make(map[int]bool)
	for _, p := range g.Players() {
		if !p.IsEliminated() {
			teams[p.Team()] = true
		}
	}
	return len(teams)
}
