package game

import "fmt"

// Point is a tile coordinate. Hex grids use odd-r offset coordinates.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Terrain answers the geometry questions used by action legality checks.
type Terrain interface {
	Contains(pt Point) bool
	Distance(a, b Point) int
}

// HexGrid is a rectangular board of pointy-top hexagons in odd-r offset layout.
type HexGrid struct {
	Width  int
	Height int
}

// NewHexGrid creates a width x height board.
func NewHexGrid(width, height int) *HexGrid {
	return &HexGrid{Width: width, Height: height}
}

// Contains reports whether pt lies on the board.
func (h *HexGrid) Contains(pt Point) bool {
	return pt.X >= 0 && pt.Y >= 0 && pt.X < h.Width && pt.Y < h.Height
}

// Distance returns the number of hex steps between a and b.
func (h *HexGrid) Distance(a, b Point) int {
	ax, ay, az := toCube(a)
	bx, by, bz := toCube(b)
	return max(abs(ax-bx), abs(ay-by), abs(az-bz))
}

// Neighbors returns the on-board tiles adjacent to pt.
func (h *HexGrid) Neighbors(pt Point) []Point {
	var offsets [6][2]int
	if pt.Y&1 == 0 {
		offsets = [6][2]int{{1, 0}, {-1, 0}, {0, -1}, {-1, -1}, {0, 1}, {-1, 1}}
	} else {
		offsets = [6][2]int{{1, 0}, {-1, 0}, {1, -1}, {0, -1}, {1, 1}, {0, 1}}
	}
	out := make([]Point, 0, 6)
	for _, o := range offsets {
		n := Point{X: pt.X + o[0], Y: pt.Y + o[1]}
		if h.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

func toCube(p Point) (x, y, z int) {
	x = p.X - (p.Y-(p.Y&1))/2
	z = p.Y
	y = -x - z
	return x, y, z
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// tile holds what stands on one board position.
type tile struct {
	unit     *Actor
	building *Actor
	owner    *Player
}

func (g *Game) tileAt(pt Point) *tile {
	t, ok := g.tiles[pt]
	if !ok {
		t = &tile{}
		g.tiles[pt] = t
	}
	return t
}

// UnitAt returns the unit standing on pt, if any.
func (g *Game) UnitAt(pt Point) *Actor {
	if t, ok := g.tiles[pt]; ok {
		return t.unit
	}
	return nil
}

// TileBuildingAt returns the tile building (city or otherwise) on pt, if any.
func (g *Game) TileBuildingAt(pt Point) *Actor {
	if t, ok := g.tiles[pt]; ok {
		return t.building
	}
	return nil
}

// TileOwner returns the player whose territory contains pt.
func (g *Game) TileOwner(pt Point) *Player {
	if t, ok := g.tiles[pt]; ok {
		return t.owner
	}
	return nil
}

// PlaceActor puts an unplaced actor on the board.
func (g *Game) PlaceActor(a *Actor, pt Point) error {
	if a == nil {
		return fmt.Errorf("%w: actor is nil", ErrInvalidArgument)
	}
	if a.IsDestroyed() {
		return fmt.Errorf("%w: actor %s is destroyed", ErrInvalidOperation, a.id)
	}
	if a.placed {
		return fmt.Errorf("%w: actor %s is already placed at %s", ErrInvalidOperation, a.id, a.position)
	}
	if !g.terrain.Contains(pt) {
		return fmt.Errorf("%w: %s is outside the board", ErrOutOfRange, pt)
	}
	t := g.tileAt(pt)
	if a.IsUnit() {
		if t.unit != nil {
			return fmt.Errorf("%w: %s already has a unit", ErrInvalidOperation, pt)
		}
		t.unit = a
	} else {
		if t.building != nil {
			return fmt.Errorf("%w: %s already has a tile building", ErrInvalidOperation, pt)
		}
		t.building = a
	}
	a.placed = true
	a.position = pt

	if !a.IsUnit() {
		a.owner.TryAddTerritory(pt)
	}

	g.logger.Debug("actor placed",
		zapActor(a),
		zapPoint(pt),
	)
	g.publish(EventActorPlaced, a.id, "", a.owner)
	return nil
}

// moveActor relocates a placed unit. Legality is checked by the caller.
func (g *Game) moveActor(a *Actor, pt Point) {
	from := g.tileAt(a.position)
	if from.unit == a {
		from.unit = nil
	}
	g.tileAt(pt).unit = a
	a.position = pt
}

// unplace removes a from the board without touching territory.
func (g *Game) unplace(a *Actor) {
	if !a.placed {
		return
	}
	if t, ok := g.tiles[a.position]; ok {
		if t.unit == a {
			t.unit = nil
		}
		if t.building == a {
			t.building = nil
		}
	}
	a.placed = false
}
