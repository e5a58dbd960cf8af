// Package board drives a single pathfinding board: its terrain, the two
// endpoints A and B, and the result of the last search.
//
// The Engine interface is implemented by BoardEngine. BoardState is the
// serializable state of a board, while BoardConfig is the preset it was
// created from (loaded from JSON or YAML by the config package).
//
// Usage:
//
//	b, err := board.NewEngine(preset)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	b.PlacePoint(0, 0) // point A
//	b.PlacePoint(5, 3) // point B
//	result, err := b.FindPath()
//
// Rules:
//
// Placements alternate between A and B. A point cannot be placed on a solid
// cell unless the preset sets allow_solid_endpoints. Any terrain or point
// change clears the stored path. Searches run on a snapshot of the terrain,
// and every search is appended to a capped history that survives Reset.
package board
