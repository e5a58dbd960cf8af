package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/config"
	"github.com/wricardo/mcp-training/pathboard/game/grid"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

// newTestPersistence stores sessions in a temporary directory and resolves
// presets from a copy of the shipped classic preset.
func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager) {
	t.Helper()
	presets := t.TempDir()
	data, err := os.ReadFile("../../presets/classic.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(presets, "classic.json"), data, 0644))

	configs, err := config.NewManager(presets)
	require.NoError(t, err)
	fp, err := NewFilePersistence(t.TempDir(), configs)
	require.NoError(t, err)
	return fp, configs
}

func newSession(t *testing.T, id string, preset *board.BoardConfig) *service.Session {
	t.Helper()
	eng, err := board.NewEngine(preset)
	require.NoError(t, err)
	now := time.Now()
	return &service.Session{ID: id, Engine: eng, Config: preset, CreatedAt: now, LastAccessedAt: now}
}

func readStored(t *testing.T, fp *FilePersistence, id string) PersistedSessionData {
	t.Helper()
	raw, err := os.ReadFile(fp.path(id))
	require.NoError(t, err)
	var data PersistedSessionData
	require.NoError(t, json.Unmarshal(raw, &data))
	return data
}

func TestFilePersistence_RoundTrip(t *testing.T) {
	fp, configs := newTestPersistence(t)
	sess := newSession(t, "Trip", configs.GetDefault())

	require.NoError(t, sess.Engine.ToggleCell(5, 5))
	require.NoError(t, sess.Engine.SetPoints(grid.Position{X: 0, Y: 0}, grid.Position{X: 11, Y: 7}))
	_, err := sess.Engine.FindPath()
	require.NoError(t, err)

	require.NoError(t, fp.Save(sess))
	assert.True(t, fp.Exists("trip"), "IDs are stored lower-cased")

	loaded, err := fp.Load("TRIP")
	require.NoError(t, err)

	want, got := sess.Engine.GetState(), loaded.Engine.GetState()
	assert.Equal(t, "Trip", loaded.ID)
	assert.Equal(t, want.Grid.Rows(), got.Grid.Rows())
	assert.True(t, got.Grid.CellAt(5, 5).Solid)
	require.NotNil(t, got.PointB)
	assert.Equal(t, grid.Position{X: 11, Y: 7}, *got.PointB)
	require.NotNil(t, got.Found)
	assert.True(t, *got.Found)
	assert.Equal(t, want.Path, got.Path)
	assert.Len(t, loaded.Engine.GetSearchHistory(), 1)
	assert.WithinDuration(t, sess.CreatedAt, loaded.CreatedAt, time.Millisecond)
}

func TestFilePersistence_FileFormat(t *testing.T) {
	fp, configs := newTestPersistence(t)
	require.NoError(t, fp.Save(newSession(t, "fmt1", configs.GetDefault())))

	stored := readStored(t, fp, "fmt1")
	assert.Equal(t, persistedFormat, stored.Version)
	assert.Equal(t, "classic", stored.ConfigName, "presets are referenced by ID, not display name")
	require.NotNil(t, stored.Preset)
	assert.Equal(t, "Classic", stored.Preset.Name)
	require.NotNil(t, stored.BoardState)

	entries, err := os.ReadDir(fp.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestFilePersistence_SurvivesPresetRemoval(t *testing.T) {
	fp, _ := newTestPersistence(t)
	custom := smallPreset()
	custom.Name = "Scratch"
	require.NoError(t, fp.Save(newSession(t, "keep", custom)))

	// "Scratch" was never a preset file; the embedded copy is enough.
	loaded, err := fp.Load("keep")
	require.NoError(t, err)
	assert.Equal(t, "Scratch", loaded.Config.Name)
	assert.Equal(t, custom.Layout, loaded.Engine.GetState().Grid.Rows())
}

func TestFilePersistence_LegacyFileWithoutPreset(t *testing.T) {
	fp, configs := newTestPersistence(t)
	sess := newSession(t, "old", configs.GetDefault())

	legacy := PersistedSessionData{
		ID:             "old",
		ConfigName:     "classic",
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		BoardState:     sess.Engine.GetState(),
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fp.path("old"), raw, 0644))

	loaded, err := fp.Load("old")
	require.NoError(t, err)
	assert.Equal(t, "Classic", loaded.Config.Name)

	legacy.ConfigName = "vanished"
	raw, err = json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fp.path("old"), raw, 0644))

	_, err = fp.Load("old")
	assert.ErrorContains(t, err, `failed to load preset "vanished"`)
}

func TestFilePersistence_BuiltInDefault(t *testing.T) {
	configs, err := config.NewManager(t.TempDir())
	require.NoError(t, err)
	fp, err := NewFilePersistence(t.TempDir(), configs)
	require.NoError(t, err)

	require.NoError(t, fp.Save(newSession(t, "builtin", configs.GetDefault())))
	assert.Equal(t, board.DefaultBoardConfig().Name, readStored(t, fp, "builtin").ConfigName)

	loaded, err := fp.Load("builtin")
	require.NoError(t, err)
	assert.Equal(t, board.DefaultBoardConfig().Name, loaded.Config.Name)
}

func TestFilePersistence_Errors(t *testing.T) {
	fp, _ := newTestPersistence(t)

	_, err := fp.Load("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, fp.Delete("missing"), ErrSessionNotFound)
	assert.Error(t, fp.Save(nil))

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not json", "{", "failed to parse session"},
		{"no board", `{"version": 2, "id": "x", "config_name": "classic"}`, "has no board state"},
		{"future version", `{"version": 9, "id": "x"}`, "format version 9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(fp.path("broken"), []byte(tt.content), 0644))
			_, err := fp.Load("broken")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFilePersistence_ListAllAndDelete(t *testing.T) {
	fp, configs := newTestPersistence(t)
	for _, id := range []string{"a1", "b2"} {
		require.NoError(t, fp.Save(newSession(t, id, configs.GetDefault())))
	}
	require.NoError(t, os.WriteFile(filepath.Join(fp.dir, "c3.json.123.tmp"), []byte("{}"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(fp.dir, "nested.json"), 0755))

	ids, err := fp.ListAll()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1", "b2"}, ids)

	require.NoError(t, fp.Delete("B2"))
	assert.False(t, fp.Exists("b2"))
}

func TestManager_WithFilePersistence(t *testing.T) {
	fp, configs := newTestPersistence(t)
	m := NewManagerWithPersistence(fp)

	sess, err := m.Create("live", configs.GetDefault())
	require.NoError(t, err)
	assert.True(t, fp.Exists("live"), "sessions are saved on creation")

	t.Run("changes reach storage on Save", func(t *testing.T) {
		_, err := sess.Engine.PlacePoint(0, 0)
		require.NoError(t, err)
		require.NoError(t, sess.Engine.ToggleCell(11, 0))
		require.NoError(t, m.Save("live"))

		got, err := NewManagerWithPersistence(fp).Get("LIVE")
		require.NoError(t, err)
		state := got.Engine.GetState()
		require.NotNil(t, state.PointA)
		assert.Equal(t, grid.Position{X: 0, Y: 0}, *state.PointA)
		assert.True(t, state.Grid.CellAt(11, 0).Solid)
	})

	t.Run("lazy load is cached", func(t *testing.T) {
		fresh := NewManagerWithPersistence(fp)
		first, err := fresh.Get("live")
		require.NoError(t, err)
		second, err := fresh.Get("Live")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("last access survives SaveAll", func(t *testing.T) {
		before := sess.LastAccessedAt
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, m.UpdateLastAccessed("live"))
		require.NoError(t, m.SaveAll())

		got, err := NewManagerWithPersistence(fp).Get("live")
		require.NoError(t, err)
		assert.True(t, got.LastAccessedAt.After(before))
	})

	t.Run("cleanup keeps the stored copy", func(t *testing.T) {
		sess.LastAccessedAt = time.Now().Add(-2 * time.Hour)
		assert.Equal(t, []string{"live"}, m.CleanupExpiredSessions(time.Hour))
		assert.True(t, fp.Exists("live"))

		_, err := m.Get("live")
		assert.NoError(t, err, "expired sessions reload from storage")
	})

	t.Run("delete removes the stored copy", func(t *testing.T) {
		_, err := m.Create("doomed", configs.GetDefault())
		require.NoError(t, err)
		require.NoError(t, m.Delete("doomed"))
		assert.False(t, fp.Exists("doomed"))
		_, err = m.Get("doomed")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestManager_LoadPersistedSessions(t *testing.T) {
	fp, configs := newTestPersistence(t)
	writer := NewManagerWithPersistence(fp)
	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := writer.Create(id, configs.GetDefault())
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(fp.path("corrupt"), []byte("{"), 0644))

	restarted := NewManagerWithPersistence(fp, WithLogger(nil))
	require.NoError(t, restarted.LoadPersistedSessions())
	assert.Equal(t, 3, restarted.Count(), "unreadable files are skipped")

	capped := NewManagerWithPersistence(fp, WithMaxSessions(2))
	require.NoError(t, capped.LoadPersistedSessions())
	assert.Equal(t, 2, capped.Count())
	_, err := capped.Get("s3")
	assert.NoError(t, err, "sessions past the cap load on demand")
	assert.Equal(t, 2, capped.Count())
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	fp, configs := newTestPersistence(t)
	m := NewManagerWithPersistence(fp, WithMaxSessions(2))

	old, err := m.Create("old", configs.GetDefault())
	require.NoError(t, err)
	_, err = m.Create("new", configs.GetDefault())
	require.NoError(t, err)
	old.LastAccessedAt = time.Now().Add(-time.Minute)
	_, err = old.Engine.PlacePoint(3, 0)
	require.NoError(t, err)

	_, err = m.Create("newest", configs.GetDefault())
	require.NoError(t, err)

	assert.Equal(t, 2, m.Count())
	var ids []string
	for _, sess := range m.List() {
		ids = append(ids, sess.ID)
	}
	assert.NotContains(t, ids, "old")

	// The evicted board was saved with its latest changes
	back, err := m.Get("old")
	require.NoError(t, err)
	require.NotNil(t, back.Engine.GetState().PointA)
	assert.Equal(t, grid.Position{X: 3, Y: 0}, *back.Engine.GetState().PointA)
}
