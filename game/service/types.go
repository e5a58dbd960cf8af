package service

import (
	"errors"
	"time"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("config not found")
	ErrTooManyQueries  = errors.New("too many path queries")
)

// MaxBatchQueries caps the number of queries accepted by FindPaths.
const MaxBatchQueries = 64

// SessionInfo provides information about a board session
type SessionInfo struct {
	ID             string             `json:"id"`
	ConfigName     string             `json:"config_name"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
	BoardState     *board.BoardState  `json:"board_state"`
	BoardConfig    *board.BoardConfig `json:"board_config"`
}

// PointResult is returned when a point is placed
type PointResult struct {
	Label      board.PointLabel  `json:"label"`
	Position   grid.Position     `json:"position"`
	BoardState *board.BoardState `json:"board_state"`
	Message    string            `json:"message"`
}

// PathResult is the outcome of searching between the board's points
type PathResult struct {
	Found      bool                `json:"found"`
	Path       []grid.Position     `json:"path"`
	Cost       int                 `json:"cost"`
	Length     int                 `json:"length"`
	Expanded   int                 `json:"expanded"`
	DurationMs float64             `json:"duration_ms"`
	Message    string              `json:"message"`
	Record     *board.SearchRecord `json:"record,omitempty"`
	BoardState *board.BoardState   `json:"board_state"`
	Events     []BoardEvent        `json:"events,omitempty"`
}

// PathQuery is one start/goal pair of a batch search
type PathQuery struct {
	Start grid.Position `json:"start"`
	Goal  grid.Position `json:"goal"`
}

// PathQueryResult is the answer to one PathQuery
type PathQueryResult struct {
	Start    grid.Position   `json:"start"`
	Goal     grid.Position   `json:"goal"`
	Found    bool            `json:"found"`
	Path     []grid.Position `json:"path"`
	Cost     int             `json:"cost"`
	Expanded int             `json:"expanded"`
}

// BatchPathResult holds the answers of a batch search, in query order.
// The board itself is not changed by a batch search.
type BatchPathResult struct {
	Results    []PathQueryResult `json:"results"`
	Generation int               `json:"generation"`
	Found      int               `json:"found"`
}

// BoardEvent represents something that happened on a board
type BoardEvent struct {
	Type      string        `json:"type"` // "point_placed", "path_found", "no_path", "regenerated", "resized", "cell_toggled", "reset"
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	Position  grid.Position `json:"position,omitempty"`
}

// HistoryOptions configures search history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated search history
type HistoryResponse struct {
	Searches      []board.SearchRecord `json:"searches"`
	TotalSearches int                  `json:"total_searches"`
	Retained      int                  `json:"retained"`
	Page          int                  `json:"page"`
	PageSize      int                  `json:"page_size"`
	TotalPages    int                  `json:"total_pages"`
	HasNext       bool                 `json:"has_next"`
	HasPrevious   bool                 `json:"has_previous"`
}

// ConfigInfo provides information about a board preset
type ConfigInfo struct {
	Filename    string  `json:"filename"`
	ConfigID    string  `json:"config_id"` // The identifier to use for session creation
	Name        string  `json:"name"`      // Display name
	Description string  `json:"description"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SolidRatio  float64 `json:"solid_ratio"`
	HasLayout   bool    `json:"has_layout"`
}

func positions(cells []grid.Cell) []grid.Position {
	out := make([]grid.Position, len(cells))
	for i, c := range cells {
		out[i] = c.Pos()
	}
	return out
}
