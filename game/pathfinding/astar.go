package pathfinding

import (
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

const (
	// OrthogonalCost is the cost of a horizontal or vertical step.
	OrthogonalCost = 10
	// DiagonalCost is the cost of a diagonal step.
	DiagonalCost = 14
)

// neighbourOffsets is the expansion order; tie-breaking depends on it.
var neighbourOffsets = [8]grid.Position{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// Result describes the outcome of one search.
type Result struct {
	// Path runs from the goal back to the start. Nil when Found is false.
	Path []grid.Cell `json:"path"`
	// Cost is the summed 10/14 step cost of Path.
	Cost int `json:"cost"`
	// Expanded counts the nodes moved to the closed set.
	Expanded int  `json:"expanded"`
	Found    bool `json:"found"`
}

// Len returns the number of cells on the path.
func (r Result) Len() int {
	return len(r.Path)
}

// FindPath returns a least-cost path from start to goal, goal first and
// start last. The second result is false when the goal cannot be reached.
//
// When start and goal are the same cell the path is that single cell.
// FindPath panics if either endpoint lies outside g.
func FindPath(g *grid.Grid, start, goal grid.Cell) ([]grid.Cell, bool) {
	r := Search(g, start, goal)
	return r.Path, r.Found
}

// Search runs the same A* search as FindPath and also reports the path cost
// and how many nodes were expanded.
func Search(g *grid.Grid, start, goal grid.Cell) Result {
	startCell := g.CellAt(start.X, start.Y)
	g.CellAt(goal.X, goal.Y)

	s := newSearch(g)
	s.push(node{cell: startCell, parent: noParent})

	for s.open.len() > 0 {
		currentIdx := s.open.popLowest(s.arena)
		current := s.arena[currentIdx]

		if current.cell.X == goal.X && current.cell.Y == goal.Y {
			return Result{
				Path:     s.reconstruct(currentIdx),
				Cost:     current.g,
				Expanded: s.expanded,
				Found:    true,
			}
		}

		for _, off := range neighbourOffsets {
			nx, ny := current.cell.X+off.X, current.cell.Y+off.Y
			if !g.InBounds(nx, ny) || s.isClosed(nx, ny) {
				continue
			}
			neighbour := g.CellAt(nx, ny)
			if neighbour.Solid {
				continue
			}

			tentative := current.g + stepCost(off)
			if idx, ok := s.open.lookup(nx, ny); ok {
				if s.arena[idx].g <= tentative {
					continue
				}
				h := heuristic(neighbour, goal)
				s.arena[idx].g = tentative
				s.arena[idx].h = h
				s.arena[idx].f = tentative + h
				s.arena[idx].parent = currentIdx
				continue
			}

			h := heuristic(neighbour, goal)
			s.push(node{cell: neighbour, g: tentative, h: h, f: tentative + h, parent: currentIdx})
		}

		s.close(current.cell.X, current.cell.Y)
	}

	return Result{Expanded: s.expanded}
}

// PathCost sums the 10/14 step costs along path. Consecutive cells that are
// not king-move neighbours are costed as if the step were legal; validating
// adjacency is the caller's job.
func PathCost(path []grid.Cell) int {
	cost := 0
	for i := 1; i < len(path); i++ {
		dx := abs(path[i].X - path[i-1].X)
		dy := abs(path[i].Y - path[i-1].Y)
		switch {
		case dx == 0 && dy == 0:
		case dx != 0 && dy != 0:
			cost += DiagonalCost
		default:
			cost += OrthogonalCost
		}
	}
	return cost
}

func stepCost(off grid.Position) int {
	if off.X != 0 && off.Y != 0 {
		return DiagonalCost
	}
	return OrthogonalCost
}

// heuristic is the unscaled Manhattan distance. It is admissible for 10/14
// costs because each step changes it by at most two.
func heuristic(from, to grid.Cell) int {
	return abs(from.X-to.X) + abs(from.Y-to.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
