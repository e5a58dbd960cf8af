package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g, err := New(4, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 3, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			c := g.CellAt(x, y)
			assert.Equal(t, x, c.X)
			assert.Equal(t, y, c.Y)
			assert.False(t, c.Solid)
		}
	}

	_, err = New(0, 3)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(3, -1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestFromRows(t *testing.T) {
	tests := []struct {
		name    string
		rows    []string
		wantErr error
	}{
		{"valid", []string{"..#", "#..", "..."}, nil},
		{"empty", nil, ErrEmptyLayout},
		{"empty row", []string{""}, ErrEmptyLayout},
		{"ragged", []string{"...", ".."}, ErrRaggedLayout},
		{"unknown char", []string{"..x"}, ErrUnknownCellChar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromRows(tt.rows)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.rows, g.Rows())
		})
	}
}

func TestCellAt(t *testing.T) {
	g, err := FromRows([]string{"...", ".#.", "..."})
	require.NoError(t, err)

	assert.True(t, g.CellAt(1, 1).Solid)
	assert.False(t, g.CellAt(2, 1).Solid)

	assert.Panics(t, func() { g.CellAt(3, 0) })
	assert.Panics(t, func() { g.CellAt(0, -1) })
}

func TestDeclaredBoundsSmallerThanStorage(t *testing.T) {
	g, err := New(5, 5)
	require.NoError(t, err)
	g.Width, g.Height = 3, 2

	assert.True(t, g.InBounds(2, 1))
	assert.False(t, g.InBounds(3, 1))
	assert.False(t, g.InBounds(2, 2))
	assert.Panics(t, func() { g.CellAt(4, 4) })

	_, err = g.Lookup(4, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	c := g.Clone()
	assert.Len(t, c.Cells, 2)
	assert.Len(t, c.Cells[0], 3)
}

func TestSetSolidAndClone(t *testing.T) {
	g, err := New(3, 3)
	require.NoError(t, err)

	snapshot := g.Clone()
	require.NoError(t, g.SetSolid(1, 1, true))

	assert.True(t, g.CellAt(1, 1).Solid)
	assert.False(t, snapshot.CellAt(1, 1).Solid, "clone must not share cells")
	assert.Equal(t, 1, g.SolidCount())

	assert.ErrorIs(t, g.SetSolid(3, 3, true), ErrOutOfBounds)
}

func TestResize(t *testing.T) {
	g, err := FromRows([]string{"#..", "...", "..#"})
	require.NoError(t, err)

	bigger, err := g.Resize(4, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"#...", "....", "..#.", "...."}, bigger.Rows())

	smaller, err := g.Resize(2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"#.", ".."}, smaller.Rows())

	_, err = g.Resize(0, 2)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestCellIdentity(t *testing.T) {
	a := Cell{X: 2, Y: 3}
	b := Cell{X: 2, Y: 3, Solid: true}
	assert.True(t, a.SameAs(b))
	assert.Equal(t, a.Pos(), b.Pos())
	assert.Equal(t, "(2,3)", a.Pos().String())
}
