package session

import (
	"time"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

// SessionPersistence stores sessions outside the process.
type SessionPersistence interface {
	Save(session *service.Session) error
	// Load returns ErrSessionNotFound when nothing is stored under id.
	Load(id string) (*service.Session, error)
	Delete(id string) error
	// ListAll returns the stored session IDs.
	ListAll() ([]string, error)
	Exists(id string) bool
}

// persistedFormat is the current version of PersistedSessionData.
// Version 1 files carry no preset and are rebuilt from the presets
// directory.
const persistedFormat = 2

// PersistedSessionData is the stored form of a session.
type PersistedSessionData struct {
	Version        int       `json:"version"`
	ID             string    `json:"id"`
	ConfigName     string    `json:"config_name"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// Preset is the preset the board was created from, so a session
	// survives its preset file being edited or removed.
	Preset     *board.BoardConfig `json:"preset,omitempty"`
	BoardState *board.BoardState  `json:"board_state"`
}
