package viewer

import (
	"time"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
)

// Message is the JSON form of one bus event.
type Message struct {
	Type      rules.EventType `json:"type"`
	GameID    string          `json:"game_id"`
	EventID   string          `json:"event_id"`
	Turn      int             `json:"turn"`
	SubTurn   int             `json:"sub_turn"`
	PlayerID  string          `json:"player_id,omitempty"`
	SourceID  string          `json:"source_id,omitempty"`
	TargetID  string          `json:"target_id,omitempty"`
	Amount    float64         `json:"amount,omitempty"`
	Data      any             `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ActorView struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Owner string `json:"owner,omitempty"`
}

type BattleView struct {
	Result         string  `json:"result"`
	AttackerID     string  `json:"attacker_id"`
	DefenderID     string  `json:"defender_id"`
	AttackerDamage float64 `json:"attacker_damage"`
	DefenderDamage float64 `json:"defender_damage"`
	AttackerDied   bool    `json:"attacker_died"`
	DefenderDied   bool    `json:"defender_died"`
	Melee          bool    `json:"melee"`
	Skill          bool    `json:"skill"`
}

type EffectView struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	Tag  string `json:"tag,omitempty"`
}

type OwnerView struct {
	Actor ActorView `json:"actor"`
	From  string    `json:"from,omitempty"`
	To    string    `json:"to,omitempty"`
}

type PhaseView struct {
	Phase        string `json:"phase"`
	PlayerInTurn int    `json:"player_in_turn"`
}

type QuestView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type EndingView struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Attach forwards every event of g to the hub. The listener runs at presentation priority on
// the game goroutine and never blocks it. Call the returned function to stop.
func (h *Hub) Attach(g *game.Game) (detach func()) {
	gameID := g.ID()
	bus := g.Bus()
	handle := bus.Subscribe(func(e rules.Event) {
		h.Broadcast(gameID, NewMessage(gameID, e))
	}, rules.PriorityPresentation)
	return func() { bus.Unsubscribe(handle) }
}

// NewMessage converts e, copying the fields of known payloads so nothing mutable escapes the
// game goroutine.
func NewMessage(gameID string, e rules.Event) Message {
	return Message{
		Type:      e.Type,
		GameID:    gameID,
		EventID:   e.ID,
		Turn:      e.TurnNumber,
		SubTurn:   e.SubTurnNumber,
		PlayerID:  e.PlayerID,
		SourceID:  e.SourceID,
		TargetID:  e.TargetID,
		Amount:    e.Amount,
		Data:      view(e.Payload),
		Timestamp: e.Timestamp,
	}
}

func view(payload any) any {
	switch p := payload.(type) {
	case game.BattleReport:
		return BattleView{
			Result:         p.Result.String(),
			AttackerID:     actorID(p.Attacker),
			DefenderID:     actorID(p.Defender),
			AttackerDamage: p.AttackerDamage,
			DefenderDamage: p.DefenderDamage,
			AttackerDied:   p.AttackerDied,
			DefenderDied:   p.DefenderDied,
			Melee:          p.IsMelee,
			Skill:          p.IsSkillAttack,
		}
	case *game.Actor:
		return actorView(p)
	case game.OwnerChange:
		return OwnerView{Actor: actorView(p.Actor), From: playerName(p.From), To: playerName(p.To)}
	case *game.Effect:
		return EffectView{ID: p.ID(), Kind: p.Kind(), Tag: string(p.Tag())}
	case rules.PhaseContext:
		return PhaseView{Phase: p.Phase.String(), PlayerInTurn: p.PlayerInTurn}
	case *game.Quest:
		return QuestView{ID: p.ID(), Name: p.Name(), Status: p.Status().String()}
	case *game.Ending:
		return EndingView{Name: p.Name, Type: p.Type.String()}
	case game.Point:
		return p
	default:
		return nil
	}
}

func actorView(a *game.Actor) ActorView {
	if a == nil {
		return ActorView{}
	}
	return ActorView{ID: a.ID(), Kind: a.Kind(), Owner: playerName(a.Owner())}
}

func actorID(a *game.Actor) string {
	if a == nil {
		return ""
	}
	return a.ID()
}

func playerName(p *game.Player) string {
	if p == nil {
		return ""
	}
	return p.Name()
}
