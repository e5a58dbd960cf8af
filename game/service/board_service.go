package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

// BoardService defines all board and search operations
type BoardService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SaveAllSessions(ctx context.Context) error

	// Board Operations
	GetBoard(ctx context.Context, sessionID string) (*board.BoardState, error)
	Regenerate(ctx context.Context, sessionID string, seed int64) (*board.BoardState, error)
	Resize(ctx context.Context, sessionID string, width, height int) (*board.BoardState, error)
	ToggleCell(ctx context.Context, sessionID string, x, y int) (*board.BoardState, error)
	SetCell(ctx context.Context, sessionID string, x, y int, solid bool) (*board.BoardState, error)
	PlacePoint(ctx context.Context, sessionID string, x, y int) (*PointResult, error)
	SetPoints(ctx context.Context, sessionID string, a, b grid.Position) (*board.BoardState, error)
	ClearPoints(ctx context.Context, sessionID string) (*board.BoardState, error)
	Reset(ctx context.Context, sessionID string) (*board.BoardState, error)
	DescribeCell(ctx context.Context, sessionID string, x, y int) (*board.CellInfo, error)

	// Search
	FindPath(ctx context.Context, sessionID string) (*PathResult, error)
	FindPaths(ctx context.Context, sessionID string, queries []PathQuery) (*BatchPathResult, error)
	GetSearchHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*board.BoardConfig, error)
	SaveConfig(ctx context.Context, configName string, config *board.BoardConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, config *board.BoardConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, config *board.BoardConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	SaveAll() error
}

// ConfigManager handles board preset loading
type ConfigManager interface {
	LoadConfig(name string) (*board.BoardConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *board.BoardConfig
	SaveConfig(name string, config *board.BoardConfig) error
}

// Session represents an active board session
type Session struct {
	ID             string
	Engine         *board.BoardEngine
	Config         *board.BoardConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
