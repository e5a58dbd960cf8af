package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/pathfinding"
)

// boardServiceImpl implements the BoardService interface
type boardServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	logger   *slog.Logger
	tracer   trace.Tracer
	mu       sync.RWMutex
}

// Option configures the board service.
type Option func(*boardServiceImpl)

// WithTracerProvider sends the service's spans to tp instead of the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *boardServiceImpl) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewBoardService creates a new board service instance. A nil logger uses
// slog.Default().
func NewBoardService(sessions SessionManager, configs ConfigManager, logger *slog.Logger, opts ...Option) BoardService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &boardServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id for a given preset display name
func (s *boardServiceImpl) getConfigID(configName string) string {
	availableConfigs, err := s.configs.ListConfigs()
	if err == nil {
		for _, cfg := range availableConfigs {
			if cfg.Name == configName {
				return cfg.ConfigID
			}
		}
	}
	if configName == "" {
		return "default"
	}
	return configName
}

func (s *boardServiceImpl) session(id string) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	return sess, nil
}

// view returns a copy of the board state with the text rendering filled in.
func view(sess *Session) *board.BoardState {
	state := sess.Engine.GetState().Clone()
	state.Rendered = sess.Engine.Render()
	return state
}

func (s *boardServiceImpl) info(sess *Session, configID string) *SessionInfo {
	if configID == "" {
		configID = s.getConfigID(sess.Config.Name)
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     configID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		BoardState:     view(sess),
		BoardConfig:    sess.Config,
	}
}

// persist saves the session and logs instead of failing the request.
func (s *boardServiceImpl) persist(sessionID, after string) {
	if err := s.sessions.Save(sessionID); err != nil {
		s.logger.Warn("failed to persist session", "session", sessionID, "after", after, "error", err)
	}
}

// mutate runs fn against a session's board under the write lock, saves the
// session and returns the resulting view. The view is built before the lock
// is released so it never overlaps another request's write.
func (s *boardServiceImpl) mutate(sessionID, operation string, fn func(e *board.BoardEngine) error) (*board.BoardState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)

	if err := fn(sess.Engine); err != nil {
		return nil, err
	}
	recordEdit(operation)
	s.persist(sessionID, operation)
	return view(sess), nil
}

// CreateSession creates a new board session
func (s *boardServiceImpl) CreateSession(ctx context.Context, configName string) (info *SessionInfo, err error) {
	_, span := s.startSpan(ctx, "CreateSession", "")
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	var config *board.BoardConfig
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s'. Available configs: %v", ErrConfigNotFound, configName, configIDs)
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
	}

	sess, err := s.sessions.Create("", config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	s.logger.Info("session created", "session", sess.ID, "config", config.Name)

	return s.info(sess, configName), nil
}

// GetSession retrieves session information
func (s *boardServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	// info reads LastAccessedAt, which read-locked calls update.
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return s.info(sess, ""), nil
}

// ListSessions returns all active sessions
func (s *boardServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess, ""))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *boardServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	s.logger.Info("session deleted", "session", sessionID)
	return nil
}

// SaveAllSessions writes every in-memory session to persistence. Boards
// are not modified while saving.
func (s *boardServiceImpl) SaveAllSessions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.SaveAll()
}

// GetBoard returns the current board state
func (s *boardServiceImpl) GetBoard(ctx context.Context, sessionID string) (*board.BoardState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return view(sess), nil
}

// Regenerate fills the board with random terrain
func (s *boardServiceImpl) Regenerate(ctx context.Context, sessionID string, seed int64) (state *board.BoardState, err error) {
	_, span := s.startSpan(ctx, "Regenerate", sessionID)
	defer func() { endSpan(span, err) }()

	state, err = s.mutate(sessionID, "regenerate", func(e *board.BoardEngine) error {
		e.Regenerate(seed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("board.seed", state.Seed))
	return state, nil
}

// Resize changes the board dimensions
func (s *boardServiceImpl) Resize(ctx context.Context, sessionID string, width, height int) (state *board.BoardState, err error) {
	_, span := s.startSpan(ctx, "Resize", sessionID)
	defer func() { endSpan(span, err) }()

	state, err = s.mutate(sessionID, "resize", func(e *board.BoardEngine) error {
		return e.Resize(width, height)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ToggleCell flips one cell between open and solid
func (s *boardServiceImpl) ToggleCell(ctx context.Context, sessionID string, x, y int) (state *board.BoardState, err error) {
	_, span := s.startSpan(ctx, "ToggleCell", sessionID)
	defer func() { endSpan(span, err) }()

	state, err = s.mutate(sessionID, "toggle", func(e *board.BoardEngine) error {
		return e.ToggleCell(x, y)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetCell sets the solidity of one cell
func (s *boardServiceImpl) SetCell(ctx context.Context, sessionID string, x, y int, solid bool) (state *board.BoardState, err error) {
	_, span := s.startSpan(ctx, "SetCell", sessionID)
	defer func() { endSpan(span, err) }()

	state, err = s.mutate(sessionID, "set_cell", func(e *board.BoardEngine) error {
		return e.SetCell(x, y, solid)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// PlacePoint places the next of point A / point B
func (s *boardServiceImpl) PlacePoint(ctx context.Context, sessionID string, x, y int) (result *PointResult, err error) {
	_, span := s.startSpan(ctx, "PlacePoint", sessionID)
	defer func() { endSpan(span, err) }()

	var label board.PointLabel
	state, err := s.mutate(sessionID, "place_point", func(e *board.BoardEngine) error {
		var placeErr error
		label, placeErr = e.PlacePoint(x, y)
		return placeErr
	})
	if err != nil {
		return nil, err
	}
	return &PointResult{
		Label:      label,
		Position:   grid.Position{X: x, Y: y},
		BoardState: state,
		Message:    state.Message,
	}, nil
}

// SetPoints places both points at once
func (s *boardServiceImpl) SetPoints(ctx context.Context, sessionID string, a, b grid.Position) (state *board.BoardState, err error) {
	_, span := s.startSpan(ctx, "SetPoints", sessionID)
	defer func() { endSpan(span, err) }()

	state, err = s.mutate(sessionID, "set_points", func(e *board.BoardEngine) error {
		return e.SetPoints(a, b)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// ClearPoints removes both points and the path
func (s *boardServiceImpl) ClearPoints(ctx context.Context, sessionID string) (*board.BoardState, error) {
	state, err := s.mutate(sessionID, "clear_points", func(e *board.BoardEngine) error {
		e.ClearPoints()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Reset restores the preset's initial board
func (s *boardServiceImpl) Reset(ctx context.Context, sessionID string) (state *board.BoardState, err error) {
	_, span := s.startSpan(ctx, "Reset", sessionID)
	defer func() { endSpan(span, err) }()

	state, err = s.mutate(sessionID, "reset", func(e *board.BoardEngine) error {
		e.Reset()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DescribeCell reports one cell relative to the points and path
func (s *boardServiceImpl) DescribeCell(ctx context.Context, sessionID string, x, y int) (*board.CellInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.DescribeCell(x, y)
}

// FindPath searches between the board's points and stores the result
func (s *boardServiceImpl) FindPath(ctx context.Context, sessionID string) (result *PathResult, err error) {
	_, span := s.startSpan(ctx, "FindPath", sessionID)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)

	start := time.Now()
	res, err := sess.Engine.FindPath()
	elapsed := time.Since(start)
	if err != nil {
		searchesTotal.WithLabelValues("no_points").Inc()
		return nil, err
	}
	recordSearch("single", res.Found, res.Expanded, elapsed)
	span.SetAttributes(
		attribute.Bool("path.found", res.Found),
		attribute.Int("path.cost", res.Cost),
		attribute.Int("path.expanded", res.Expanded),
	)

	state := view(sess)
	event := BoardEvent{Type: "no_path", Message: state.Message, Timestamp: time.Now()}
	if res.Found {
		event.Type = "path_found"
	}
	if state.PointB != nil {
		event.Position = *state.PointB
	}

	s.persist(sessionID, "find_path")
	s.logger.Info("path search",
		slog.String("session", sessionID),
		slog.Bool("found", res.Found),
		slog.Int("cost", res.Cost),
		slog.Int("length", res.Len()),
		slog.Int("expanded", res.Expanded),
		slog.Duration("elapsed", elapsed),
	)

	return &PathResult{
		Found:      res.Found,
		Path:       positions(res.Path),
		Cost:       res.Cost,
		Length:     res.Len(),
		Expanded:   res.Expanded,
		DurationMs: float64(elapsed.Microseconds()) / 1000,
		Message:    state.Message,
		Record:     sess.Engine.GetLastSearch(),
		BoardState: state,
		Events:     []BoardEvent{event},
	}, nil
}

// FindPaths answers several start/goal queries against one snapshot of the
// board. The stored path and history are left alone.
func (s *boardServiceImpl) FindPaths(ctx context.Context, sessionID string, queries []PathQuery) (result *BatchPathResult, err error) {
	ctx, span := s.startSpan(ctx, "FindPaths", sessionID)
	defer func() { endSpan(span, err) }()

	if len(queries) > MaxBatchQueries {
		return nil, fmt.Errorf("%w: %d, max %d", ErrTooManyQueries, len(queries), MaxBatchQueries)
	}

	s.mu.RLock()
	sess, err := s.session(sessionID)
	if err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	snapshot := sess.Engine.Snapshot()
	generation := sess.Engine.GetState().Generation
	s.mu.RUnlock()

	batch := make([]pathfinding.Query, len(queries))
	for i, q := range queries {
		if !snapshot.InBounds(q.Start.X, q.Start.Y) || !snapshot.InBounds(q.Goal.X, q.Goal.Y) {
			return nil, fmt.Errorf("%w: query %d %s -> %s", board.ErrOutOfBounds, i, q.Start, q.Goal)
		}
		batch[i] = pathfinding.Query{
			Start: snapshot.CellAt(q.Start.X, q.Start.Y),
			Goal:  snapshot.CellAt(q.Goal.X, q.Goal.Y),
		}
	}

	start := time.Now()
	results, err := pathfinding.SearchBatch(ctx, snapshot, batch, 0)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	out := &BatchPathResult{Results: make([]PathQueryResult, len(results)), Generation: generation}
	for i, r := range results {
		recordSearch("batch", r.Found, r.Expanded, elapsed/time.Duration(len(results)))
		if r.Found {
			out.Found++
		}
		out.Results[i] = PathQueryResult{
			Start:    queries[i].Start,
			Goal:     queries[i].Goal,
			Found:    r.Found,
			Path:     positions(r.Path),
			Cost:     r.Cost,
			Expanded: r.Expanded,
		}
	}
	span.SetAttributes(attribute.Int("batch.size", len(queries)), attribute.Int("batch.found", out.Found))
	s.logger.Debug("batch path search", "session", sessionID, "queries", len(queries), "found", out.Found, "elapsed", elapsed)
	return out, nil
}

// GetSearchHistory returns paginated search history
func (s *boardServiceImpl) GetSearchHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetSearchHistory()
	total := len(history)

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	searches := []board.SearchRecord{}
	if opts.Order == "desc" {
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			searches = append(searches, history[i])
		}
	} else if start < total {
		searches = append(searches, history[start:end]...)
	}

	return &HistoryResponse{
		Searches:      searches,
		TotalSearches: sess.Engine.GetState().TotalSearches,
		Retained:      total,
		Page:          opts.Page,
		PageSize:      opts.Limit,
		TotalPages:    totalPages,
		HasNext:       opts.Page < totalPages,
		HasPrevious:   opts.Page > 1,
	}, nil
}

// ListConfigs returns available board presets
func (s *boardServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific board preset
func (s *boardServiceImpl) LoadConfig(ctx context.Context, configName string) (*board.BoardConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a board preset to disk
func (s *boardServiceImpl) SaveConfig(ctx context.Context, configName string, config *board.BoardConfig) error {
	return s.configs.SaveConfig(configName, config)
}
