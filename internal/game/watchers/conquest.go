package watchers

import (
	"fmt"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"go.uber.org/zap"
)

// ConquestQuestName is the quest name Conquest registers under.
const ConquestQuestName = "conquest"

// Conquest is a quest behavior asking the requestee to win Victories battles while the quest is
// accepted. It listens for AFTER_BATTLE itself because battle statistics watchers reset every
// turn and a conquest may span several.
type Conquest struct {
	Victories int

	won    int
	handle int
	quest  *game.Quest
}

// NewConquest creates a conquest quest behavior.
func NewConquest(victories int) (*Conquest, error) {
	if victories <= 0 {
		return nil, fmt.Errorf("%w: a conquest needs at least one victory", game.ErrOutOfRange)
	}
	return &Conquest{Victories: victories, handle: -1}, nil
}

// ConquestFactory returns a quest factory building conquests of victories battles.
func ConquestFactory(victories int) game.QuestFactory {
	return func(game.QuestSpec) (game.QuestBehavior, error) {
		c, err := NewConquest(victories)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Won returns the victories counted since the quest was last accepted.
func (c *Conquest) Won() int { return c.won }

func (c *Conquest) OnAccept(q *game.Quest) {
	c.won = 0
	c.listen(q)
}

// OnResume re-subscribes a restored accepted quest. Progress made before the snapshot is lost.
func (c *Conquest) OnResume(q *game.Quest) {
	if q.Status() == game.QuestAccepted {
		c.listen(q)
	}
}

func (c *Conquest) OnGiveup(q *game.Quest) {
	c.stop(q)
}

func (c *Conquest) OnComplete(q *game.Quest) {
	c.stop(q)
	q.Game().Logger().Info("conquest completed",
		zap.String("quest", q.ID()),
		zap.String("player", q.Requestee().Name()),
		zap.Int("victories", c.won),
	)
}

func (c *Conquest) listen(q *game.Quest) {
	c.stop(q)
	c.quest = q
	c.handle = q.Game().Bus().SubscribeTyped(game.EventAfterBattle, c.onBattle, rules.PriorityModel)
}

func (c *Conquest) stop(q *game.Quest) {
	if c.handle >= 0 {
		q.Game().Bus().Unsubscribe(c.handle)
		c.handle = -1
	}
	c.quest = nil
}

func (c *Conquest) onBattle(event rules.Event) {
	q := c.quest
	if q == nil || q.Status() != game.QuestAccepted {
		return
	}
	report, ok := event.Payload.(game.BattleReport)
	if !ok {
		return
	}
	me := q.Requestee()
	switch {
	case report.Result == game.BattleVictory && report.AttackerOwner == me:
	case report.Result == game.BattleDefeated && report.DefenderOwner == me:
	default:
		return
	}
	c.won++
	if c.won < c.Victories {
		return
	}
	if err := q.Complete(); err != nil {
		q.Game().Logger().Warn("conquest completion failed", zap.String("quest", q.ID()), zap.Error(err))
	}
}
