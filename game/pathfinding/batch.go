package pathfinding

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

// ErrQueryOutOfBounds is returned by SearchBatch when an endpoint lies
// outside the grid.
var ErrQueryOutOfBounds = errors.New("pathfinding: query endpoint out of bounds")

// Query is one start/goal pair for SearchBatch.
type Query struct {
	Start grid.Cell `json:"start"`
	Goal  grid.Cell `json:"goal"`
}

// SearchBatch runs every query against g concurrently, at most workers at a
// time (workers <= 0 means GOMAXPROCS). Results are returned in query order.
//
// g must not be modified until SearchBatch returns. A search that has started
// always runs to completion; cancelling ctx only stops new searches from
// starting and makes SearchBatch return ctx.Err().
func SearchBatch(ctx context.Context, g *grid.Grid, queries []Query, workers int) ([]Result, error) {
	for i, q := range queries {
		if !g.InBounds(q.Start.X, q.Start.Y) || !g.InBounds(q.Goal.X, q.Goal.Y) {
			return nil, fmt.Errorf("%w: query %d %s -> %s", ErrQueryOutOfBounds, i, q.Start.Pos(), q.Goal.Pos())
		}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(queries))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, q := range queries {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = Search(g, q.Start, q.Goal)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
