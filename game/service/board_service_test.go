package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*service.Session
	saves    int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{sessions: make(map[string]*service.Session)}
}

func (m *MockSessionManager) Create(id string, config *board.BoardConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}
	eng, err := board.NewEngine(config)
	if err != nil {
		return nil, err
	}
	sess := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	m.sessions[id] = sess
	return sess, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, exists := m.sessions[id]
	if !exists {
		return nil, errors.New("no such session")
	}
	return sess, nil
}

func (m *MockSessionManager) GetOrCreate(id string, config *board.BoardConfig) (*service.Session, error) {
	if sess, err := m.Get(id); err == nil {
		return sess, nil
	}
	return m.Create(id, config)
}

func (m *MockSessionManager) List() []*service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[id]; !exists {
		return errors.New("no such session")
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, exists := m.sessions[id]; exists {
		sess.LastAccessedAt = time.Now()
		return nil
	}
	return errors.New("no such session")
}

func (m *MockSessionManager) Save(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

func (m *MockSessionManager) SaveAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves += len(m.sessions)
	return nil
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*board.BoardConfig
}

func testPreset() *board.BoardConfig {
	return &board.BoardConfig{
		Name:        "test",
		Description: "Test preset",
		Width:       5,
		Height:      5,
		Layout: []string{
			".....",
			".###.",
			".....",
			".....",
			"....#",
		},
		SolidRatio: 0.2,
	}
}

func NewMockConfigManager() *MockConfigManager {
	preset := testPreset()
	return &MockConfigManager{
		configs: map[string]*board.BoardConfig{
			"test":    preset,
			"default": preset,
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*board.BoardConfig, error) {
	config, exists := m.configs[name]
	if !exists {
		return nil, errors.New("configuration not found")
	}
	return config, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	return []*service.ConfigInfo{
		{Filename: "test.json", ConfigID: "test", Name: "test", Width: 5, Height: 5},
	}, nil
}

func (m *MockConfigManager) GetDefault() *board.BoardConfig {
	return m.configs["default"]
}

func (m *MockConfigManager) SaveConfig(name string, config *board.BoardConfig) error {
	if err := board.ValidateBoardConfig(config); err != nil {
		return err
	}
	m.configs[name] = config
	return nil
}

func newTestService(t *testing.T) (service.BoardService, *MockSessionManager) {
	t.Helper()
	sessions := NewMockSessionManager()
	return service.NewBoardService(sessions, NewMockConfigManager(), nil), sessions
}

func newTestSession(t *testing.T, svc service.BoardService) string {
	t.Helper()
	info, err := svc.CreateSession(context.Background(), "test")
	require.NoError(t, err)
	return info.ID
}

func TestBoardService_CreateSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tests := []struct {
		name       string
		configName string
		wantErr    error
		wantConfig string
	}{
		{"default preset", "", nil, "test"},
		{"named preset", "test", nil, "test"},
		{"unknown preset", "missing", service.ErrConfigNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := svc.CreateSession(ctx, tt.configName)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Contains(t, err.Error(), "Available configs: [test]")
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, info.ID)
			assert.Equal(t, tt.wantConfig, info.ConfigName)
			require.NotNil(t, info.BoardState)
			assert.Len(t, info.BoardState.Rendered, 5)
			assert.Equal(t, board.PointA, info.BoardState.NextPoint)
		})
	}
}

func TestBoardService_SessionNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = svc.GetBoard(ctx, "nope")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = svc.FindPath(ctx, "nope")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = svc.ToggleCell(ctx, "nope", 0, 0)
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, "nope"), service.ErrSessionNotFound)
}

func TestBoardService_PlacePointsAndFindPath(t *testing.T) {
	ctx := context.Background()
	svc, sessions := newTestService(t)
	id := newTestSession(t, svc)

	res, err := svc.PlacePoint(ctx, id, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, board.PointA, res.Label)

	res, err = svc.PlacePoint(ctx, id, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, board.PointB, res.Label)
	assert.Equal(t, "Point B placed at (2,2)", res.Message)

	_, err = svc.PlacePoint(ctx, id, 1, 1)
	assert.ErrorIs(t, err, board.ErrSolidCell)

	path, err := svc.FindPath(ctx, id)
	require.NoError(t, err)
	require.True(t, path.Found)
	assert.Equal(t, grid.Position{X: 2, Y: 2}, path.Path[0])
	assert.Equal(t, grid.Position{X: 0, Y: 0}, path.Path[len(path.Path)-1])
	// Around the wall on row 1: down, diagonal, east.
	assert.Equal(t, 10+14+10, path.Cost)
	assert.Equal(t, path.Length, len(path.Path))
	require.NotNil(t, path.Record)
	assert.Equal(t, 1, path.Record.Number)
	require.Len(t, path.Events, 1)
	assert.Equal(t, "path_found", path.Events[0].Type)
	assert.Contains(t, path.BoardState.Rendered[2], "B")

	assert.GreaterOrEqual(t, sessions.saves, 3)
}

func TestBoardService_FindPathWithoutPoints(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	_, err := svc.FindPath(ctx, id)
	assert.ErrorIs(t, err, board.ErrPointsNotPlaced)
}

func TestBoardService_NoPath(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	_, err := svc.SetPoints(ctx, id, grid.Position{X: 0, Y: 0}, grid.Position{X: 3, Y: 4})
	require.NoError(t, err)
	// Wall off the top-left corner.
	for _, p := range []grid.Position{{X: 1, Y: 0}, {X: 0, Y: 1}} {
		_, err = svc.SetCell(ctx, id, p.X, p.Y, true)
		require.NoError(t, err)
	}

	path, err := svc.FindPath(ctx, id)
	require.NoError(t, err)
	assert.False(t, path.Found)
	assert.Empty(t, path.Path)
	assert.Equal(t, "no_path", path.Events[0].Type)
}

func TestBoardService_ReturnedStateIsACopy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	before, err := svc.GetBoard(ctx, id)
	require.NoError(t, err)
	_, err = svc.ToggleCell(ctx, id, 0, 0)
	require.NoError(t, err)

	assert.False(t, before.Grid.CellAt(0, 0).Solid)
	after, err := svc.GetBoard(ctx, id)
	require.NoError(t, err)
	assert.True(t, after.Grid.CellAt(0, 0).Solid)
}

func TestBoardService_RegenerateResizeReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	state, err := svc.Regenerate(ctx, id, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), state.Seed)
	assert.Equal(t, 1, state.Generation)

	state, err = svc.Resize(ctx, id, 8, 6)
	require.NoError(t, err)
	assert.Equal(t, 8, state.Grid.Width)
	assert.Equal(t, 6, state.Grid.Height)

	_, err = svc.Resize(ctx, id, 100, 6)
	assert.ErrorIs(t, err, board.ErrInvalidSize)

	state, err = svc.Reset(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, testPreset().Layout, state.Grid.Rows())
}

func TestBoardService_ClearPointsAndDescribe(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	_, err := svc.SetPoints(ctx, id, grid.Position{X: 0, Y: 0}, grid.Position{X: 4, Y: 0})
	require.NoError(t, err)

	info, err := svc.DescribeCell(ctx, id, 4, 0)
	require.NoError(t, err)
	assert.True(t, info.IsPointB)

	state, err := svc.ClearPoints(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, state.PointA)
	assert.Nil(t, state.PointB)

	_, err = svc.DescribeCell(ctx, id, 9, 9)
	assert.ErrorIs(t, err, board.ErrOutOfBounds)
}

func TestBoardService_FindPaths(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	result, err := svc.FindPaths(ctx, id, []service.PathQuery{
		{Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 4, Y: 0}},
		{Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 0, Y: 0}},
		{Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 4, Y: 4}},
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 3)
	assert.Equal(t, 40, result.Results[0].Cost)
	assert.Equal(t, []grid.Position{{X: 0, Y: 0}}, result.Results[1].Path)
	assert.False(t, result.Results[2].Found, "goal cell is solid")
	assert.Equal(t, 2, result.Found)

	// Batch searches leave the board's own search state alone.
	state, err := svc.GetBoard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, state.TotalSearches)
	assert.Nil(t, state.Found)

	_, err = svc.FindPaths(ctx, id, []service.PathQuery{
		{Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 5, Y: 0}},
	})
	assert.ErrorIs(t, err, board.ErrOutOfBounds)

	tooMany := make([]service.PathQuery, service.MaxBatchQueries+1)
	_, err = svc.FindPaths(ctx, id, tooMany)
	assert.ErrorIs(t, err, service.ErrTooManyQueries)

	empty, err := svc.FindPaths(ctx, id, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Results)
}

func TestBoardService_GetSearchHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)

	_, err := svc.SetPoints(ctx, id, grid.Position{X: 0, Y: 0}, grid.Position{X: 4, Y: 2})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.FindPath(ctx, id)
		require.NoError(t, err)
	}

	tests := []struct {
		name        string
		opts        service.HistoryOptions
		wantNumbers []int
		wantPages   int
		hasNext     bool
	}{
		{"defaults are newest first", service.HistoryOptions{}, []int{5, 4, 3, 2, 1}, 1, false},
		{"ascending page 1", service.HistoryOptions{Page: 1, Limit: 2, Order: "asc"}, []int{1, 2}, 3, true},
		{"ascending page 3", service.HistoryOptions{Page: 3, Limit: 2, Order: "asc"}, []int{5}, 3, false},
		{"descending page 2", service.HistoryOptions{Page: 2, Limit: 2, Order: "desc"}, []int{3, 2}, 3, true},
		{"past the end", service.HistoryOptions{Page: 9, Limit: 2, Order: "asc"}, []int{}, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := svc.GetSearchHistory(ctx, id, tt.opts)
			require.NoError(t, err)
			numbers := []int{}
			for _, r := range resp.Searches {
				numbers = append(numbers, r.Number)
			}
			assert.Equal(t, tt.wantNumbers, numbers)
			assert.Equal(t, tt.wantPages, resp.TotalPages)
			assert.Equal(t, tt.hasNext, resp.HasNext)
			assert.Equal(t, 5, resp.TotalSearches)
		})
	}
}

func TestBoardService_ListAndDeleteSessions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a := newTestSession(t, svc)
	newTestSession(t, svc)

	list, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.SaveAllSessions(ctx))

	require.NoError(t, svc.DeleteSession(ctx, a))
	list, err = svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBoardService_Configs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	configs, err := svc.ListConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, configs, 1)

	cfg, err := svc.LoadConfig(ctx, "test")
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Name)

	custom := testPreset()
	custom.Name = "custom"
	require.NoError(t, svc.SaveConfig(ctx, "custom", custom))
	info, err := svc.CreateSession(ctx, "custom")
	require.NoError(t, err)
	assert.Equal(t, "custom", info.ConfigName)

	bad := testPreset()
	bad.Width = 0
	assert.Error(t, svc.SaveConfig(ctx, "bad", bad))
}

func TestBoardService_ConcurrentEdits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	id := newTestSession(t, svc)
	_, err := svc.SetPoints(ctx, id, grid.Position{X: 0, Y: 0}, grid.Position{X: 4, Y: 3})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		states []*board.BoardState
	)
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			if state, err := svc.ToggleCell(ctx, id, i%5, 2); err == nil {
				mu.Lock()
				states = append(states, state)
				mu.Unlock()
			}
		}(i)
		go func() {
			defer wg.Done()
			_, _ = svc.FindPath(ctx, id)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.FindPaths(ctx, id, []service.PathQuery{
				{Start: grid.Position{X: 0, Y: 0}, Goal: grid.Position{X: 4, Y: 3}},
			})
		}()
	}
	wg.Wait()

	state, err := svc.GetBoard(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 20, state.TotalSearches)

	// Every returned view must be one board, not a mix of two.
	require.Len(t, states, 20)
	for _, st := range states {
		assertRenderMatchesGrid(t, st)
	}
}

func assertRenderMatchesGrid(t *testing.T, state *board.BoardState) {
	t.Helper()
	require.Len(t, state.Rendered, state.Grid.Height)
	for y, row := range state.Rendered {
		for x, ch := range row {
			switch ch {
			case 'A', 'B':
				continue
			case '#':
				assert.True(t, state.Grid.CellAt(x, y).Solid, "(%d,%d) rendered solid but is open", x, y)
			default:
				assert.False(t, state.Grid.CellAt(x, y).Solid, "(%d,%d) rendered %q but is solid", x, y, ch)
			}
		}
	}
	if state.Found != nil && !*state.Found {
		assert.Empty(t, state.Path)
	}
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestBoardService_FindPathSpans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(ctx)

	svc := service.NewBoardService(NewMockSessionManager(), NewMockConfigManager(), nil,
		service.WithTracerProvider(tp))
	id := newTestSession(t, svc)

	_, err := svc.SetPoints(ctx, id, grid.Position{X: 0, Y: 0}, grid.Position{X: 4, Y: 3})
	require.NoError(t, err)
	result, err := svc.FindPath(ctx, id)
	require.NoError(t, err)
	require.True(t, result.Found)

	_, err = svc.ClearPoints(ctx, id)
	require.NoError(t, err)
	_, err = svc.FindPath(ctx, id)
	require.ErrorIs(t, err, board.ErrPointsNotPlaced)

	var searches []sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		if span.Name() == "BoardService.FindPath" {
			searches = append(searches, span)
		}
	}
	require.Len(t, searches, 2)

	found := spanAttrs(searches[0])
	assert.Equal(t, id, found["session.id"].AsString())
	assert.True(t, found["path.found"].AsBool())
	assert.Equal(t, int64(result.Cost), found["path.cost"].AsInt64())
	assert.Equal(t, int64(result.Expanded), found["path.expanded"].AsInt64())
	assert.Equal(t, codes.Unset, searches[0].Status().Code)

	assert.NotContains(t, spanAttrs(searches[1]), attribute.Key("path.found"))
	assert.Equal(t, codes.Error, searches[1].Status().Code)
	require.NotEmpty(t, searches[1].Events(), "the error is recorded as an event")
}

func TestBoardService_EditSpans(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(ctx)

	svc := service.NewBoardService(NewMockSessionManager(), NewMockConfigManager(), nil,
		service.WithTracerProvider(tp))
	id := newTestSession(t, svc)

	_, err := svc.Regenerate(ctx, id, 99)
	require.NoError(t, err)
	_, err = svc.ToggleCell(ctx, id, 50, 50)
	require.Error(t, err)

	names := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range recorder.Ended() {
		names[span.Name()] = span
	}
	require.Contains(t, names, "BoardService.CreateSession")
	require.Contains(t, names, "BoardService.Regenerate")
	require.Contains(t, names, "BoardService.ToggleCell")

	assert.Equal(t, int64(99), spanAttrs(names["BoardService.Regenerate"])["board.seed"].AsInt64())
	assert.Equal(t, codes.Error, names["BoardService.ToggleCell"].Status().Code)
}
