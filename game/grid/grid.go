package grid

import (
	"errors"
	"fmt"
	"strings"
)

// Layout characters understood by FromRows and Rows.
const (
	OpenChar  = '.'
	SolidChar = '#'
)

var (
	ErrEmptyLayout     = errors.New("grid: layout has no rows")
	ErrRaggedLayout    = errors.New("grid: layout rows differ in length")
	ErrUnknownCellChar = errors.New("grid: unknown cell character")
	ErrInvalidSize     = errors.New("grid: width and height must be positive")
	ErrOutOfBounds     = errors.New("grid: coordinates out of bounds")
)

// Position is a bare coordinate pair. It is the identity of a Cell.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Cell is one square of the board.
type Cell struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Solid bool `json:"solid"`
}

// Pos returns the coordinates of the cell.
func (c Cell) Pos() Position {
	return Position{X: c.X, Y: c.Y}
}

// SameAs reports whether c and other refer to the same coordinates.
func (c Cell) SameAs(other Cell) bool {
	return c.X == other.X && c.Y == other.Y
}

func (c Cell) String() string {
	if c.Solid {
		return fmt.Sprintf("(%d,%d)#", c.X, c.Y)
	}
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Grid is a rectangular board of cells indexed Cells[row][col].
type Grid struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Cells  [][]Cell `json:"cells"`
}

// New returns a width x height grid with every cell open.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidSize, width, height)
	}
	g := &Grid{Width: width, Height: height, Cells: make([][]Cell, height)}
	for y := 0; y < height; y++ {
		g.Cells[y] = make([]Cell, width)
		for x := 0; x < width; x++ {
			g.Cells[y][x] = Cell{X: x, Y: y}
		}
	}
	return g, nil
}

// FromRows builds a grid from text rows, '#' for solid and '.' for open.
func FromRows(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyLayout
	}
	width := len(rows[0])
	if width == 0 {
		return nil, ErrEmptyLayout
	}

	g, err := New(width, len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrRaggedLayout, y, len(row), width)
		}
		for x, ch := range row {
			switch ch {
			case OpenChar:
			case SolidChar:
				g.Cells[y][x].Solid = true
			default:
				return nil, fmt.Errorf("%w: %q at (%d,%d)", ErrUnknownCellChar, ch, x, y)
			}
		}
	}
	return g, nil
}

// InBounds reports whether (x, y) lies inside the declared rectangle.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// CellAt returns the cell at column x, row y.
//
// Calling CellAt outside the declared bounds is a programming error and
// panics; use InBounds first when the coordinates come from user input.
func (g *Grid) CellAt(x, y int) Cell {
	if !g.InBounds(x, y) {
		panic(fmt.Sprintf("grid: CellAt(%d,%d) outside %dx%d board", x, y, g.Width, g.Height))
	}
	return g.Cells[y][x]
}

// Lookup is the checked form of CellAt.
func (g *Grid) Lookup(x, y int) (Cell, error) {
	if !g.InBounds(x, y) {
		return Cell{}, fmt.Errorf("%w: (%d,%d) on %dx%d board", ErrOutOfBounds, x, y, g.Width, g.Height)
	}
	return g.Cells[y][x], nil
}

// SetSolid changes the solidity of one cell.
func (g *Grid) SetSolid(x, y int, solid bool) error {
	if !g.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) on %dx%d board", ErrOutOfBounds, x, y, g.Width, g.Height)
	}
	g.Cells[y][x].Solid = solid
	return nil
}

// Clone returns a deep copy trimmed to the declared size. Searches run on
// clones so the board can be edited while a search is in flight.
func (g *Grid) Clone() *Grid {
	c := &Grid{Width: g.Width, Height: g.Height, Cells: make([][]Cell, g.Height)}
	for y := 0; y < g.Height; y++ {
		c.Cells[y] = make([]Cell, g.Width)
		copy(c.Cells[y], g.Cells[y][:g.Width])
	}
	return c
}

// Resize returns a new grid of the given size. Cells that exist in both
// grids keep their solidity; new cells are open.
func (g *Grid) Resize(width, height int) (*Grid, error) {
	r, err := New(width, height)
	if err != nil {
		return nil, err
	}
	for y := 0; y < height && y < g.Height; y++ {
		for x := 0; x < width && x < g.Width; x++ {
			r.Cells[y][x].Solid = g.Cells[y][x].Solid
		}
	}
	return r, nil
}

// SolidCount returns how many cells inside the declared bounds are solid.
func (g *Grid) SolidCount() int {
	n := 0
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Cells[y][x].Solid {
				n++
			}
		}
	}
	return n
}

// Rows renders the grid back into the layout format accepted by FromRows.
func (g *Grid) Rows() []string {
	rows := make([]string, g.Height)
	var sb strings.Builder
	for y := 0; y < g.Height; y++ {
		sb.Reset()
		for x := 0; x < g.Width; x++ {
			if g.Cells[y][x].Solid {
				sb.WriteRune(SolidChar)
			} else {
				sb.WriteRune(OpenChar)
			}
		}
		rows[y] = sb.String()
	}
	return rows
}
