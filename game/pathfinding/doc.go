// Package pathfinding finds shortest routes between two cells of a grid.Grid
// using A*.
//
// Movement is the eight king moves. Orthogonal steps cost 10 and diagonal
// steps cost 14. The heuristic is the plain Manhattan distance between a
// cell and the goal, which never overestimates the remaining 10/14 cost, so
// the first time the goal leaves the open set its path is optimal.
//
// Ordering:
//
// The open set is scanned linearly and the first node with the lowest f
// wins ties. Removing a node keeps the order of the others, and a node whose
// cost improves keeps its slot. Neighbours are generated in the fixed order
// (-1,-1), (0,-1), (1,-1), (-1,0), (1,0), (-1,1), (0,1), (1,1). Together
// these rules make the returned path deterministic for a given grid.
//
// Endpoints:
//
// Solid cells are never entered as neighbours, but start and goal are not
// checked; callers that care must reject solid endpoints themselves.
// Endpoints outside the grid are a programming error and panic.
//
// Complexity:
//
//	FindPath / Search: O(N^2) time worst case for N open cells (linear
//	selection), O(N) memory. Nothing is kept between calls.
//
// Usage:
//
//	g, _ := grid.New(3, 3)
//	path, ok := pathfinding.FindPath(g, g.CellAt(0, 0), g.CellAt(2, 2))
//	// ok == true, path == [(2,2) (1,1) (0,0)]
package pathfinding
