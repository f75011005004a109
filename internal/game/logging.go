package game

import "go.uber.org/zap"

func zapActor(a *Actor) zap.Field {
	return zap.String("actor", a.spec.Kind+"#"+a.id)
}

func zapPoint(pt Point) zap.Field {
	return zap.Stringer("point", pt)
}

func zapPlayer(p *Player) zap.Field {
	if p == nil {
		return zap.Skip()
	}
	return zap.String("player", p.name)
}

func zapEffect(e *Effect) zap.Field {
	return zap.String("effect", e.kind+"#"+e.id)
}
