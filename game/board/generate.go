package board

import (
	"math/rand/v2"
	"time"

	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

func newSeed() int64 {
	return time.Now().UnixNano()
}

// generateGrid fills a width x height grid with solid cells at the given
// ratio. The same seed always yields the same board.
func generateGrid(width, height int, ratio float64, seed int64) *grid.Grid {
	if width < MinBoardSize {
		width = MinBoardSize
	}
	if height < MinBoardSize {
		height = MinBoardSize
	}
	g, _ := grid.New(width, height)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1^0x9e3779b97f4a7c15))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.Cells[y][x].Solid = rng.Float64() < ratio
		}
	}
	return g
}
