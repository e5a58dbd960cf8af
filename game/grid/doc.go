// Package grid holds the board model searched by the pathfinding engine.
//
// A Grid is a rectangle of Cells stored row-major as Cells[row][col]. Each
// Cell carries its own coordinates and a Solid flag; two cells are the same
// cell when their coordinates match, regardless of any other field.
//
// The declared Width and Height bound every lookup. The backing slice may be
// larger than the declared size (the board driver keeps spare rows around
// when the board shrinks), but cells outside the declared rectangle are never
// returned.
//
// Usage:
//
//	g, err := grid.FromRows([]string{
//		"...",
//		".#.",
//		"...",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	c := g.CellAt(1, 1) // c.Solid == true
package grid
