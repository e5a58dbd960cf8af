package pathfinding

import (
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

const noParent = -1

// node is a search-tree entry. Nodes live in an arena slice and refer to
// their predecessor by arena index.
type node struct {
	cell    grid.Cell
	g, h, f int
	parent  int
}

// openSet keeps arena indices in insertion order. Selection is a linear
// scan so that ties resolve to the earliest stored node.
type openSet struct {
	order []int
	byPos map[grid.Position]int
}

func (o *openSet) len() int {
	return len(o.order)
}

func (o *openSet) add(cell grid.Cell, arenaIdx int) {
	o.order = append(o.order, arenaIdx)
	o.byPos[cell.Pos()] = arenaIdx
}

func (o *openSet) lookup(x, y int) (int, bool) {
	idx, ok := o.byPos[grid.Position{X: x, Y: y}]
	return idx, ok
}

// popLowest removes and returns the first node with the smallest f.
func (o *openSet) popLowest(arena []node) int {
	best := 0
	for i := 1; i < len(o.order); i++ {
		if arena[o.order[i]].f < arena[o.order[best]].f {
			best = i
		}
	}
	idx := o.order[best]
	copy(o.order[best:], o.order[best+1:])
	o.order = o.order[:len(o.order)-1]
	delete(o.byPos, arena[idx].cell.Pos())
	return idx
}

// search is the per-call state. Nothing here outlives a single Search.
type search struct {
	width    int
	arena    []node
	open     openSet
	closed   []bool
	expanded int
}

func newSearch(g *grid.Grid) *search {
	return &search{
		width:  g.Width,
		open:   openSet{byPos: make(map[grid.Position]int)},
		closed: make([]bool, g.Width*g.Height),
	}
}

func (s *search) push(n node) {
	s.arena = append(s.arena, n)
	s.open.add(n.cell, len(s.arena)-1)
}

func (s *search) isClosed(x, y int) bool {
	return s.closed[y*s.width+x]
}

func (s *search) close(x, y int) {
	s.closed[y*s.width+x] = true
	s.expanded++
}

// reconstruct follows predecessor links from idx back to the start.
func (s *search) reconstruct(idx int) []grid.Cell {
	var path []grid.Cell
	for i := idx; i != noParent; i = s.arena[i].parent {
		path = append(path, s.arena[i].cell)
	}
	return path
}
