package main

import (
	"container/heap"
	"math"

	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/pathfinding"
)

const unreachable = math.MaxInt

// distances holds the least step cost from one start cell to every cell of
// a grid, indexed [y][x]. Unreachable cells hold unreachable.
type distances [][]int

func (d distances) to(p grid.Position) (int, bool) {
	c := d[p.Y][p.X]
	return c, c != unreachable
}

type queueItem struct {
	pos  grid.Position
	cost int
}

type costQueue []queueItem

func (q costQueue) Len() int           { return len(q) }
func (q costQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }
func (q costQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *costQueue) Push(x any)        { *q = append(*q, x.(queueItem)) }
func (q *costQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// dijkstra expands every cell reachable from start using the same eight
// moves and 10/14 costs as the server. Solid cells are never entered, but a
// solid start still expands its neighbours.
func dijkstra(g *grid.Grid, start grid.Position) distances {
	dist := make(distances, g.Height)
	for y := range dist {
		dist[y] = make([]int, g.Width)
		for x := range dist[y] {
			dist[y][x] = unreachable
		}
	}

	dist[start.Y][start.X] = 0
	q := &costQueue{{pos: start}}
	for q.Len() > 0 {
		item := heap.Pop(q).(queueItem)
		if item.cost > dist[item.pos.Y][item.pos.X] {
			continue
		}
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := item.pos.X+dx, item.pos.Y+dy
				if !g.InBounds(nx, ny) || g.CellAt(nx, ny).Solid {
					continue
				}
				step := pathfinding.OrthogonalCost
				if dx != 0 && dy != 0 {
					step = pathfinding.DiagonalCost
				}
				if c := item.cost + step; c < dist[ny][nx] {
					dist[ny][nx] = c
					heap.Push(q, queueItem{pos: grid.Position{X: nx, Y: ny}, cost: c})
				}
			}
		}
	}
	return dist
}
