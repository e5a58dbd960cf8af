package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/pathfinding"
)

var (
	ErrOutOfBounds     = errors.New("coordinates out of bounds")
	ErrSolidCell       = errors.New("cell is solid")
	ErrPointsNotPlaced = errors.New("both points must be placed")
	ErrInvalidSize     = errors.New("invalid board size")
)

// Engine provides the board operations driven by the API and MCP tools.
type Engine interface {
	// State management
	GetState() *BoardState
	SetState(state *BoardState) error
	GetConfig() *BoardConfig
	Reset() *BoardState

	// Terrain
	Regenerate(seed int64) *BoardState
	Resize(width, height int) error
	ToggleCell(x, y int) error
	SetCell(x, y int, solid bool) error

	// Endpoints
	PlacePoint(x, y int) (PointLabel, error)
	SetPoints(a, b grid.Position) error
	ClearPoints()

	// Search
	FindPath() (pathfinding.Result, error)
	ApplyResult(a, b grid.Position, result pathfinding.Result)
	Snapshot() *grid.Grid
	GetSearchHistory() []SearchRecord
	GetLastSearch() *SearchRecord

	// Views
	DescribeCell(x, y int) (*CellInfo, error)
	Render() []string
}

// BoardEngine implements Engine. It is not safe for concurrent use; the
// service layer serializes access.
type BoardEngine struct {
	state  *BoardState
	config *BoardConfig
}

var _ Engine = (*BoardEngine)(nil)

// NewEngine creates a board from the provided preset
func NewEngine(config *BoardConfig) (*BoardEngine, error) {
	if err := ValidateBoardConfig(config); err != nil {
		return nil, err
	}
	return &BoardEngine{
		config: config,
		state:  InitBoardStateFromConfig(config),
	}, nil
}

// NewEngineWithDefaults creates a board from DefaultBoardConfig
func NewEngineWithDefaults() *BoardEngine {
	config := DefaultBoardConfig()
	return &BoardEngine{
		config: config,
		state:  InitBoardStateFromConfig(config),
	}
}

// GetState returns the current board state
func (e *BoardEngine) GetState() *BoardState {
	return e.state
}

// SetState replaces the board state (used for persistence loading)
func (e *BoardEngine) SetState(state *BoardState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Grid == nil {
		return fmt.Errorf("state has no grid")
	}
	if state.NextPoint != PointA && state.NextPoint != PointB {
		state.NextPoint = PointA
	}
	if state.PointA != nil && !state.Grid.InBounds(state.PointA.X, state.PointA.Y) {
		state.PointA = nil
	}
	if state.PointB != nil && !state.Grid.InBounds(state.PointB.X, state.PointB.Y) {
		state.PointB = nil
	}
	if state.SearchHistory == nil {
		state.SearchHistory = []SearchRecord{}
	}
	e.state = state
	return nil
}

// GetConfig returns the preset the board was created from
func (e *BoardEngine) GetConfig() *BoardConfig {
	return e.config
}

// Reset restores the preset's initial terrain and clears the points.
// Search history and totals survive the reset.
func (e *BoardEngine) Reset() *BoardState {
	prevHistory := e.state.SearchHistory
	prevTotal := e.state.TotalSearches
	prevGeneration := e.state.Generation

	e.state = InitBoardStateFromConfig(e.config)

	e.state.SearchHistory = prevHistory
	e.state.TotalSearches = prevTotal
	e.state.Generation = prevGeneration + 1
	return e.state
}

// Regenerate replaces the terrain with random cells at the preset's solid
// ratio and clears both points and the path. A preset layout is ignored;
// Reset brings it back. A zero seed picks one.
func (e *BoardEngine) Regenerate(seed int64) *BoardState {
	if seed == 0 {
		seed = newSeed()
	}
	e.state.Grid = generateGrid(e.state.Grid.Width, e.state.Grid.Height, e.config.SolidRatio, seed)
	e.state.Seed = seed
	e.state.Generation++
	e.clearPoints()
	e.state.Message = e.config.messages().Regenerated
	return e.state
}

// Resize changes the board dimensions. Overlapping cells keep their
// terrain, points that fall outside are dropped and the path is cleared.
func (e *BoardEngine) Resize(width, height int) error {
	if width < MinBoardSize || width > MaxBoardSize || height < MinBoardSize || height > MaxBoardSize {
		return fmt.Errorf("%w: %dx%d, must be between %d and %d", ErrInvalidSize, width, height, MinBoardSize, MaxBoardSize)
	}
	g, err := e.state.Grid.Resize(width, height)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSize, err)
	}
	e.state.Grid = g
	if e.state.PointA != nil && !g.InBounds(e.state.PointA.X, e.state.PointA.Y) {
		e.state.PointA = nil
	}
	if e.state.PointB != nil && !g.InBounds(e.state.PointB.X, e.state.PointB.Y) {
		e.state.PointB = nil
	}
	switch {
	case e.state.PointA == nil:
		e.state.NextPoint = PointA
	case e.state.PointB == nil:
		e.state.NextPoint = PointB
	}
	e.clearPath()
	e.state.Message = fmt.Sprintf("Board resized to %dx%d", width, height)
	return nil
}

// ToggleCell flips the solidity of one cell.
func (e *BoardEngine) ToggleCell(x, y int) error {
	cell, err := e.lookup(x, y)
	if err != nil {
		return err
	}
	return e.SetCell(x, y, !cell.Solid)
}

// SetCell sets the solidity of one cell and clears the stored path.
// Points standing on the cell are kept.
func (e *BoardEngine) SetCell(x, y int, solid bool) error {
	if err := e.state.Grid.SetSolid(x, y, solid); err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, err)
	}
	e.clearPath()
	return nil
}

// PlacePoint puts the next endpoint on (x, y). Placements alternate between
// point A and point B.
func (e *BoardEngine) PlacePoint(x, y int) (PointLabel, error) {
	if err := e.checkEndpoint(x, y); err != nil {
		return "", err
	}

	label := e.state.NextPoint
	pos := &grid.Position{X: x, Y: y}
	if label == PointB {
		e.state.PointB = pos
		e.state.NextPoint = PointA
	} else {
		label = PointA
		e.state.PointA = pos
		e.state.NextPoint = PointB
	}
	e.clearPath()
	e.state.Message = fmt.Sprintf(e.config.messages().PointPlaced, labelName(label), x, y)
	return label, nil
}

// SetPoints places both endpoints at once.
func (e *BoardEngine) SetPoints(a, b grid.Position) error {
	if err := e.checkEndpoint(a.X, a.Y); err != nil {
		return fmt.Errorf("point A: %w", err)
	}
	if err := e.checkEndpoint(b.X, b.Y); err != nil {
		return fmt.Errorf("point B: %w", err)
	}
	e.state.PointA = &grid.Position{X: a.X, Y: a.Y}
	e.state.PointB = &grid.Position{X: b.X, Y: b.Y}
	e.state.NextPoint = PointA
	e.clearPath()
	e.state.Message = fmt.Sprintf("Points set: A %s, B %s", a, b)
	return nil
}

// ClearPoints removes both endpoints and the stored path.
func (e *BoardEngine) ClearPoints() {
	e.clearPoints()
	e.state.Message = e.config.messages().Welcome
}

// FindPath searches from point A to point B on a snapshot of the terrain
// and stores the result on the board.
func (e *BoardEngine) FindPath() (pathfinding.Result, error) {
	if e.state.PointA == nil || e.state.PointB == nil {
		e.state.Message = e.config.messages().PointsMissing
		return pathfinding.Result{}, ErrPointsNotPlaced
	}

	snapshot := e.Snapshot()
	a, b := *e.state.PointA, *e.state.PointB
	result := pathfinding.Search(snapshot, snapshot.CellAt(a.X, a.Y), snapshot.CellAt(b.X, b.Y))
	e.ApplyResult(a, b, result)
	return result, nil
}

// ApplyResult stores a search result computed elsewhere (for example on a
// snapshot taken by the service) and records it in the history.
func (e *BoardEngine) ApplyResult(a, b grid.Position, result pathfinding.Result) {
	found := result.Found
	e.state.Found = &found
	e.state.Path = result.Path
	e.state.PathCost = result.Cost
	e.state.Expanded = result.Expanded

	msgs := e.config.messages()
	if found {
		e.state.Message = fmt.Sprintf(msgs.PathFound, result.Len(), result.Cost)
	} else {
		e.state.Message = msgs.NoPath
	}
	e.addSearchToHistory(a, b, result)
}

// Snapshot returns a copy of the terrain that later edits do not touch.
func (e *BoardEngine) Snapshot() *grid.Grid {
	return e.state.Grid.Clone()
}

// GetSearchHistory returns the cumulative search history
func (e *BoardEngine) GetSearchHistory() []SearchRecord {
	return e.state.SearchHistory
}

// GetLastSearch returns the most recent search, or nil if none
func (e *BoardEngine) GetLastSearch() *SearchRecord {
	if len(e.state.SearchHistory) == 0 {
		return nil
	}
	return &e.state.SearchHistory[len(e.state.SearchHistory)-1]
}

// DescribeCell reports a cell's terrain and its relation to the points and
// the stored path.
func (e *BoardEngine) DescribeCell(x, y int) (*CellInfo, error) {
	cell, err := e.lookup(x, y)
	if err != nil {
		return nil, err
	}
	info := &CellInfo{
		X:              x,
		Y:              y,
		Solid:          cell.Solid,
		IsPointA:       samePos(e.state.PointA, x, y),
		IsPointB:       samePos(e.state.PointB, x, y),
		PathIndex:      -1,
		OpenNeighbours: CountOpenNeighbours(e.state.Grid, x, y),
	}
	for i, c := range e.state.Path {
		if c.X == x && c.Y == y {
			info.OnPath = true
			info.PathIndex = i
			break
		}
	}
	return info, nil
}

// Render returns the board as text rows.
func (e *BoardEngine) Render() []string {
	return RenderState(e.state)
}

func (e *BoardEngine) lookup(x, y int) (grid.Cell, error) {
	cell, err := e.state.Grid.Lookup(x, y)
	if err != nil {
		return grid.Cell{}, fmt.Errorf("%w: (%d,%d) on %dx%d board", ErrOutOfBounds, x, y, e.state.Grid.Width, e.state.Grid.Height)
	}
	return cell, nil
}

func (e *BoardEngine) checkEndpoint(x, y int) error {
	cell, err := e.lookup(x, y)
	if err != nil {
		return err
	}
	if cell.Solid && !e.config.AllowSolidEndpoints {
		return fmt.Errorf("%w: (%d,%d)", ErrSolidCell, x, y)
	}
	return nil
}

func (e *BoardEngine) clearPoints() {
	e.state.PointA = nil
	e.state.PointB = nil
	e.state.NextPoint = PointA
	e.clearPath()
}

func (e *BoardEngine) clearPath() {
	e.state.Path = nil
	e.state.PathCost = 0
	e.state.Expanded = 0
	e.state.Found = nil
}

func (e *BoardEngine) addSearchToHistory(a, b grid.Position, result pathfinding.Result) {
	e.state.TotalSearches++
	entry := SearchRecord{
		ID:        uuid.NewString(),
		Start:     a,
		Goal:      b,
		Found:     result.Found,
		Cost:      result.Cost,
		Length:    result.Len(),
		Expanded:  result.Expanded,
		Timestamp: time.Now().Unix(),
		Number:    e.state.TotalSearches,
	}
	e.state.SearchHistory = append(e.state.SearchHistory, entry)
	if over := len(e.state.SearchHistory) - MaxSearchHistory; over > 0 {
		e.state.SearchHistory = append([]SearchRecord(nil), e.state.SearchHistory[over:]...)
	}
}

func labelName(l PointLabel) string {
	if l == PointB {
		return "B"
	}
	return "A"
}

func samePos(p *grid.Position, x, y int) bool {
	return p != nil && p.X == x && p.Y == y
}
