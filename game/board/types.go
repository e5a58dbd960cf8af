package board

import (
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

// PointLabel names one of the two search endpoints.
type PointLabel string

const (
	PointA PointLabel = "a"
	PointB PointLabel = "b"

	// Validation constants
	MinBoardSize     = 2
	MaxBoardSize     = 42
	MaxSolidRatio    = 0.9
	MaxSearchHistory = 100

	// DefaultBoardWidth and DefaultBoardHeight size the built-in board.
	DefaultBoardWidth  = 20
	DefaultBoardHeight = 20
	// DefaultSolidRatio is the share of solid cells produced by Regenerate
	// on the built-in board.
	DefaultSolidRatio = 0.5
)

// Messages holds the user-facing strings of a preset. Empty entries fall
// back to the defaults in DefaultMessages.
type Messages struct {
	Welcome       string `json:"welcome,omitempty" yaml:"welcome,omitempty"`
	PointPlaced   string `json:"point_placed,omitempty" yaml:"point_placed,omitempty"`     // %s label, %d x, %d y
	PathFound     string `json:"path_found,omitempty" yaml:"path_found,omitempty"`         // %d cells, %d cost
	NoPath        string `json:"no_path,omitempty" yaml:"no_path,omitempty"`
	PointsMissing string `json:"points_missing,omitempty" yaml:"points_missing,omitempty"`
	Regenerated   string `json:"regenerated,omitempty" yaml:"regenerated,omitempty"`
}

// BoardConfig is a board preset loaded from the presets directory.
type BoardConfig struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Width       int      `json:"width" yaml:"width"`
	Height      int      `json:"height" yaml:"height"`
	Layout      []string `json:"layout,omitempty" yaml:"layout,omitempty"`
	// SolidRatio is the probability of a cell being solid when the board is
	// generated at random.
	SolidRatio float64 `json:"solid_ratio" yaml:"solid_ratio"`
	// Seed fixes the initial random terrain of presets without a layout.
	// Zero picks a time based seed.
	Seed                int64    `json:"seed,omitempty" yaml:"seed,omitempty"`
	AllowSolidEndpoints bool     `json:"allow_solid_endpoints,omitempty" yaml:"allow_solid_endpoints,omitempty"`
	Messages            Messages `json:"messages" yaml:"messages"`
}

// SearchRecord is one entry of the board's search history.
type SearchRecord struct {
	ID        string        `json:"id"`
	Start     grid.Position `json:"start"`
	Goal      grid.Position `json:"goal"`
	Found     bool          `json:"found"`
	Cost      int           `json:"cost"`
	Length    int           `json:"length"`
	Expanded  int           `json:"expanded"`
	Timestamp int64         `json:"timestamp"`
	Number    int           `json:"number"`
}

// CellInfo describes a single cell relative to the current points and path.
type CellInfo struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Solid    bool `json:"solid"`
	IsPointA bool `json:"is_point_a"`
	IsPointB bool `json:"is_point_b"`
	OnPath   bool `json:"on_path"`
	// PathIndex is the position on the stored path (goal first), -1 if off path.
	PathIndex int `json:"path_index"`
	// OpenNeighbours counts in-bounds, non-solid king-move neighbours.
	OpenNeighbours int `json:"open_neighbours"`
}

// BoardState is the complete mutable state of one board.
type BoardState struct {
	Grid       *grid.Grid     `json:"grid"`
	PointA     *grid.Position `json:"point_a,omitempty"`
	PointB     *grid.Position `json:"point_b,omitempty"`
	NextPoint  PointLabel     `json:"next_point"`
	Message    string         `json:"message"`
	ConfigName string         `json:"config_name"`
	Seed       int64          `json:"seed"`
	Generation int            `json:"generation"`

	// Path holds the last search result from point B back to point A.
	Path     []grid.Cell `json:"path"`
	PathCost int         `json:"path_cost"`
	Expanded int         `json:"expanded"`
	// Found is nil until a search has run on the current terrain and points.
	Found *bool `json:"found,omitempty"`

	// SearchHistory is cumulative across resets and capped at MaxSearchHistory.
	SearchHistory []SearchRecord `json:"search_history"`
	TotalSearches int            `json:"total_searches"`

	// Computed helper view
	Rendered []string `json:"rendered,omitempty"`
}

// Clone returns a deep copy of the state that is safe to hand to readers
// while the board keeps changing.
func (s *BoardState) Clone() *BoardState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Grid != nil {
		c.Grid = s.Grid.Clone()
	}
	if s.PointA != nil {
		a := *s.PointA
		c.PointA = &a
	}
	if s.PointB != nil {
		b := *s.PointB
		c.PointB = &b
	}
	if s.Found != nil {
		f := *s.Found
		c.Found = &f
	}
	c.Path = append([]grid.Cell(nil), s.Path...)
	c.SearchHistory = append([]SearchRecord{}, s.SearchHistory...)
	c.Rendered = append([]string(nil), s.Rendered...)
	return &c
}
