package board

import (
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

// Render characters beyond grid.OpenChar and grid.SolidChar.
const (
	PointAChar = 'A'
	PointBChar = 'B'
	PathChar   = '*'
)

var kingMoves = [8]grid.Position{
	{X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: -1, Y: 0}, {X: 1, Y: 0},
	{X: -1, Y: 1}, {X: 0, Y: 1}, {X: 1, Y: 1},
}

// RenderState draws the board as text: '#' solid, '.' open, 'A' and 'B'
// for the points and '*' for the path between them.
func RenderState(state *BoardState) []string {
	if state == nil || state.Grid == nil {
		return nil
	}
	g := state.Grid
	rows := make([][]byte, g.Height)
	for y := 0; y < g.Height; y++ {
		rows[y] = make([]byte, g.Width)
		for x := 0; x < g.Width; x++ {
			if g.Cells[y][x].Solid {
				rows[y][x] = grid.SolidChar
			} else {
				rows[y][x] = grid.OpenChar
			}
		}
	}
	for _, c := range state.Path {
		if g.InBounds(c.X, c.Y) {
			rows[c.Y][c.X] = PathChar
		}
	}
	if p := state.PointA; p != nil && g.InBounds(p.X, p.Y) {
		rows[p.Y][p.X] = PointAChar
	}
	if p := state.PointB; p != nil && g.InBounds(p.X, p.Y) {
		rows[p.Y][p.X] = PointBChar
	}

	out := make([]string, g.Height)
	for y, row := range rows {
		out[y] = string(row)
	}
	return out
}

// CountOpenNeighbours counts the non-solid king-move neighbours of (x, y).
func CountOpenNeighbours(g *grid.Grid, x, y int) int {
	n := 0
	for _, off := range kingMoves {
		nx, ny := x+off.X, y+off.Y
		if g.InBounds(nx, ny) && !g.Cells[ny][nx].Solid {
			n++
		}
	}
	return n
}

// CountRegions returns the number of 8-connected groups of open cells.
func CountRegions(g *grid.Grid) int {
	seen := make([]bool, g.Width*g.Height)
	regions := 0
	var stack []grid.Position

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Cells[y][x].Solid || seen[y*g.Width+x] {
				continue
			}
			regions++
			seen[y*g.Width+x] = true
			stack = append(stack[:0], grid.Position{X: x, Y: y})
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				for _, off := range kingMoves {
					nx, ny := p.X+off.X, p.Y+off.Y
					if !g.InBounds(nx, ny) || g.Cells[ny][nx].Solid || seen[ny*g.Width+nx] {
						continue
					}
					seen[ny*g.Width+nx] = true
					stack = append(stack, grid.Position{X: nx, Y: ny})
				}
			}
		}
	}
	return regions
}

// FirstOpenCell scans row by row from the top-left corner.
func FirstOpenCell(g *grid.Grid) (grid.Position, bool) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if !g.Cells[y][x].Solid {
				return grid.Position{X: x, Y: y}, true
			}
		}
	}
	return grid.Position{}, false
}

// LastOpenCell scans row by row backwards from the bottom-right corner.
func LastOpenCell(g *grid.Grid) (grid.Position, bool) {
	for y := g.Height - 1; y >= 0; y-- {
		for x := g.Width - 1; x >= 0; x-- {
			if !g.Cells[y][x].Solid {
				return grid.Position{X: x, Y: y}, true
			}
		}
	}
	return grid.Position{}, false
}

// SolidRatio returns the share of solid cells on g.
func SolidRatio(g *grid.Grid) float64 {
	total := g.Width * g.Height
	if total == 0 {
		return 0
	}
	return float64(g.SolidCount()) / float64(total)
}
