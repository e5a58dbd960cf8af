package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

const sessionFileExt = ".json"

// FilePersistence keeps one JSON file per session in a directory.
type FilePersistence struct {
	dir     string
	configs service.ConfigManager
}

var _ SessionPersistence = (*FilePersistence)(nil)

// NewFilePersistence stores sessions in dir, creating it if needed. configs
// resolves preset IDs for files written without an embedded preset.
func NewFilePersistence(dir string, configs service.ConfigManager) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &FilePersistence{dir: dir, configs: configs}, nil
}

func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.dir, strings.ToLower(id)+sessionFileExt)
}

// Save writes the session, replacing any previous file atomically.
func (fp *FilePersistence) Save(sess *service.Session) error {
	if sess == nil {
		return errors.New("session cannot be nil")
	}

	data, err := json.MarshalIndent(PersistedSessionData{
		Version:        persistedFormat,
		ID:             sess.ID,
		ConfigName:     fp.configID(sess.Config.Name),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Preset:         sess.Config,
		BoardState:     sess.Engine.GetState(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sess.ID, err)
	}

	if err := writeFileAtomic(fp.dir, fp.path(sess.ID), data); err != nil {
		return fmt.Errorf("failed to write session %s: %w", sess.ID, err)
	}
	return nil
}

// writeFileAtomic writes data to a temporary file in dir and renames it
// over target.
func writeFileAtomic(dir, target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Load reads a session and rebuilds its board. Files without an embedded
// preset resolve it through the config manager.
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	raw, err := os.ReadFile(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", id, err)
	}
	if data.Version > persistedFormat {
		return nil, fmt.Errorf("session %s has format version %d, newest supported is %d", id, data.Version, persistedFormat)
	}
	if data.BoardState == nil {
		return nil, fmt.Errorf("session %s has no board state", id)
	}

	preset := data.Preset
	if preset == nil {
		if preset, err = fp.lookupPreset(data.ConfigName); err != nil {
			return nil, fmt.Errorf("failed to load preset %q for session %s: %w", data.ConfigName, id, err)
		}
	}

	eng, err := board.NewEngine(preset)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if err := eng.SetState(data.BoardState); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}

	return &service.Session{
		ID:             data.ID,
		Engine:         eng,
		Config:         preset,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// Delete removes a stored session.
func (fp *FilePersistence) Delete(id string) error {
	err := os.Remove(fp.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove session %s: %w", id, err)
	}
	return nil
}

// ListAll returns the IDs of every session file. Leftover temporary files
// are ignored.
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != sessionFileExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, sessionFileExt))
	}
	return ids, nil
}

func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.path(id))
	return err == nil
}

// lookupPreset resolves a preset ID. The built-in default has no file and
// is matched by display name.
func (fp *FilePersistence) lookupPreset(configID string) (*board.BoardConfig, error) {
	cfg, err := fp.configs.LoadConfig(configID)
	if err == nil {
		return cfg, nil
	}
	if def := fp.configs.GetDefault(); def != nil && def.Name == configID {
		return def, nil
	}
	return nil, err
}

// configID maps a preset's display name back to its ID. Unknown names,
// such as the built-in default, are stored as is.
func (fp *FilePersistence) configID(name string) string {
	infos, err := fp.configs.ListConfigs()
	if err != nil {
		return name
	}
	for _, info := range infos {
		if info.Name == name {
			return info.ConfigID
		}
	}
	return name
}
