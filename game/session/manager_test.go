package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
)

func smallPreset() *board.BoardConfig {
	return &board.BoardConfig{
		Name:   "Small",
		Width:  5,
		Height: 4,
		Layout: []string{
			".....",
			".#.#.",
			".#...",
			".....",
		},
	}
}

func TestManager_Create(t *testing.T) {
	m := NewManager()

	sess, err := m.Create("board-1", smallPreset())
	require.NoError(t, err)
	assert.Equal(t, "board-1", sess.ID)
	require.NotNil(t, sess.Engine)
	assert.Equal(t, []string{".....", ".#.#.", ".#...", "....."}, sess.Engine.GetState().Grid.Rows())
	assert.Equal(t, sess.CreatedAt, sess.LastAccessedAt)

	tests := []struct {
		name    string
		id      string
		preset  *board.BoardConfig
		wantErr error
	}{
		{"duplicate", "board-1", smallPreset(), ErrSessionAlreadyExists},
		{"duplicate in other case", "BOARD-1", smallPreset(), ErrSessionAlreadyExists},
		{"path separator", "../escape", smallPreset(), ErrInvalidSessionID},
		{"backslash", `a\b`, smallPreset(), ErrInvalidSessionID},
		{"dot", "board.json", smallPreset(), ErrInvalidSessionID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(tt.id, tt.preset)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("invalid preset", func(t *testing.T) {
		bad := smallPreset()
		bad.Width = 1
		_, err := m.Create("bad", bad)
		assert.Error(t, err)
		assert.Equal(t, 1, m.Count())
	})
}

func TestManager_GeneratedIDs(t *testing.T) {
	m := NewManager()
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		sess, err := m.Create("", smallPreset())
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9a-f]{4}$`, sess.ID)
		assert.False(t, seen[sess.ID], "duplicate ID %s", sess.ID)
		seen[sess.ID] = true
	}
}

func TestManager_GetIsCaseInsensitive(t *testing.T) {
	m := NewManager()
	created, err := m.Create("Maze-Run", smallPreset())
	require.NoError(t, err)

	for _, id := range []string{"Maze-Run", "maze-run", "MAZE-RUN"} {
		got, err := m.Get(id)
		require.NoError(t, err, id)
		assert.Same(t, created, got)
	}

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager()

	first, err := m.GetOrCreate("shared", smallPreset())
	require.NoError(t, err)
	second, err := m.GetOrCreate("SHARED", smallPreset())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, m.Count())
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()
	_, err := m.Create("gone", smallPreset())
	require.NoError(t, err)

	require.NoError(t, m.Delete("GONE"))
	_, err = m.Get("gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, m.Delete("gone"), ErrSessionNotFound)
	assert.ErrorIs(t, m.DeleteFromMemory("gone"), ErrSessionNotFound)
}

func TestManager_ListOldestFirst(t *testing.T) {
	m := NewManager()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		sess, err := m.Create(id, smallPreset())
		require.NoError(t, err)
		sess.CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}

	var ids []string
	for _, sess := range m.List() {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestManager_CleanupExpiredSessions(t *testing.T) {
	m := NewManager()
	for _, id := range []string{"fresh", "stale-b", "stale-a"} {
		_, err := m.Create(id, smallPreset())
		require.NoError(t, err)
	}
	for _, id := range []string{"stale-a", "stale-b"} {
		sess, _ := m.Get(id)
		sess.LastAccessedAt = time.Now().Add(-2 * time.Hour)
	}

	removed := m.CleanupExpiredSessions(time.Hour)

	assert.Equal(t, []string{"stale-a", "stale-b"}, removed)
	assert.Equal(t, 1, m.Count())
	assert.Empty(t, m.CleanupExpiredSessions(time.Hour))
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	m := NewManager()
	sess, err := m.Create("touch", smallPreset())
	require.NoError(t, err)
	before := sess.LastAccessedAt

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, m.UpdateLastAccessed("TOUCH"))

	assert.True(t, sess.LastAccessedAt.After(before))
	assert.ErrorIs(t, m.UpdateLastAccessed("missing"), ErrSessionNotFound)
}

func TestManager_MaxSessionsWithoutPersistence(t *testing.T) {
	m := NewManager(WithMaxSessions(2))

	for _, id := range []string{"one", "two"} {
		_, err := m.Create(id, smallPreset())
		require.NoError(t, err)
	}

	_, err := m.Create("three", smallPreset())
	assert.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.Delete("one"))
	_, err = m.Create("three", smallPreset())
	assert.NoError(t, err)
}

func TestManager_SaveWithoutPersistence(t *testing.T) {
	m := NewManager()
	_, err := m.Create("mem", smallPreset())
	require.NoError(t, err)

	assert.NoError(t, m.Save("mem"))
	assert.NoError(t, m.SaveAll())
	assert.NoError(t, m.LoadPersistedSessions())
}

func TestManager_ConcurrentCreate(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every ID is claimed twice; exactly one claim must win.
			_, err := m.Create(fmt.Sprintf("race-%d", i%50), smallPreset())
			if err != nil && err != ErrSessionAlreadyExists {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Equal(t, 50, m.Count())
}

func TestManager_SessionsHaveIndependentBoards(t *testing.T) {
	m := NewManager()
	preset := smallPreset()
	first, err := m.Create("first", preset)
	require.NoError(t, err)
	second, err := m.Create("second", preset)
	require.NoError(t, err)

	require.NoError(t, first.Engine.ToggleCell(0, 0))
	_, err = first.Engine.PlacePoint(4, 3)
	require.NoError(t, err)

	state := second.Engine.GetState()
	assert.False(t, state.Grid.CellAt(0, 0).Solid)
	assert.Nil(t, state.PointA)
	assert.Equal(t, ".....", preset.Layout[0], "editing a board must not change the preset")
	assert.Equal(t, grid.Position{X: 4, Y: 3}, *first.Engine.GetState().PointA)
}
