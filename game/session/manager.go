package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/pathboard/game/board"
	"github.com/wricardo/mcp-training/pathboard/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
	ErrTooManySessions      = errors.New("too many sessions")
)

// Option configures a Manager.
type Option func(*Manager)

// WithPersistence mirrors sessions to p.
func WithPersistence(p SessionPersistence) Option {
	return func(m *Manager) { m.persistence = p }
}

// WithLogger sets the manager's logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMaxSessions caps the number of boards held in memory. When the cap is
// reached, Create evicts the least recently used session that is safely in
// storage; without persistence it fails with ErrTooManySessions. Zero means
// no cap.
func WithMaxSessions(n int) Option {
	return func(m *Manager) { m.maxSessions = n }
}

// Manager owns the in-memory board sessions. IDs are case-insensitive.
type Manager struct {
	mu          sync.RWMutex
	boards      map[string]*service.Session
	persistence SessionPersistence
	logger      *slog.Logger
	maxSessions int
}

var _ service.SessionManager = (*Manager)(nil)

// NewManager creates a session manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		boards: make(map[string]*service.Session),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerWithPersistence is shorthand for NewManager(WithPersistence(p), ...).
func NewManagerWithPersistence(p SessionPersistence, opts ...Option) *Manager {
	return NewManager(append([]Option{WithPersistence(p)}, opts...)...)
}

func key(id string) string {
	return strings.ToLower(id)
}

// Create builds a board from config and registers it under id. An empty id
// gets a random 4-character hex one.
func (m *Manager) Create(id string, config *board.BoardConfig) (*service.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case id == "":
		id = m.newID()
	case strings.ContainsAny(id, `/\.`):
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	case m.boards[key(id)] != nil:
		return nil, ErrSessionAlreadyExists
	}

	if err := m.makeRoom(); err != nil {
		return nil, err
	}

	eng, err := board.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create board: %w", err)
	}

	now := time.Now()
	sess := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.boards[key(id)] = sess

	if m.persistence != nil {
		if err := m.persistence.Save(sess); err != nil {
			m.logger.Warn("failed to persist new session", "session", id, "error", err)
		}
	}
	return sess, nil
}

// makeRoom evicts the least recently accessed board when the manager is at
// capacity. Callers hold m.mu.
func (m *Manager) makeRoom() error {
	if m.maxSessions <= 0 || len(m.boards) < m.maxSessions {
		return nil
	}
	if m.persistence == nil {
		return fmt.Errorf("%w: limit is %d", ErrTooManySessions, m.maxSessions)
	}

	var oldest *service.Session
	for _, sess := range m.boards {
		if oldest == nil || sess.LastAccessedAt.Before(oldest.LastAccessedAt) {
			oldest = sess
		}
	}
	if err := m.persistence.Save(oldest); err != nil {
		return fmt.Errorf("%w: could not store %s before evicting it: %v", ErrTooManySessions, oldest.ID, err)
	}
	delete(m.boards, key(oldest.ID))
	m.logger.Debug("session evicted from memory", "session", oldest.ID)
	return nil
}

// Get returns the session with the given ID. A session that is only in
// storage is loaded back into memory.
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	sess := m.boards[key(id)]
	m.mu.RUnlock()
	if sess != nil {
		return sess, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess := m.boards[key(id)]; sess != nil {
		return sess, nil
	}
	if err := m.makeRoom(); err != nil {
		return nil, err
	}
	sess, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}
	m.boards[key(id)] = sess
	m.logger.Debug("session loaded from storage", "session", id)
	return sess, nil
}

// GetOrCreate returns the session with the given ID, creating it from
// config when it does not exist.
func (m *Manager) GetOrCreate(id string, config *board.BoardConfig) (*service.Session, error) {
	sess, err := m.Get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, config)
	}
	return sess, err
}

// List returns the in-memory sessions, oldest first.
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	out := make([]*service.Session, 0, len(m.boards))
	for _, sess := range m.boards {
		out = append(out, sess)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Delete removes a session from memory and storage.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, inMemory := m.boards[key(id)]
	delete(m.boards, key(id))

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}
	if !inMemory {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory forgets a session without touching storage.
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.boards[key(id)]; !ok {
		return ErrSessionNotFound
	}
	delete(m.boards, key(id))
	return nil
}

// UpdateLastAccessed marks a session as used now. The time reaches storage
// with the next save.
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.boards[key(id)]
	if sess == nil {
		return ErrSessionNotFound
	}
	sess.LastAccessedAt = time.Now()
	return nil
}

// Save writes one session to storage. It is a no-op without persistence.
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	sess := m.boards[key(id)]
	m.mu.RUnlock()
	if sess == nil {
		return ErrSessionNotFound
	}
	return m.persistence.Save(sess)
}

// CleanupExpiredSessions drops sessions idle for longer than maxAge from
// memory and returns their IDs in order. Stored copies stay in storage.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var removed []string
	for k, sess := range m.boards {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.boards, k)
			removed = append(removed, sess.ID)
		}
	}
	sort.Strings(removed)

	if len(removed) > 0 {
		m.logger.Info("expired sessions removed", "count", len(removed), "max_age", maxAge)
	}
	return removed
}

// Count returns the number of sessions in memory.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.boards)
}

// newID returns a random 4-character hex ID that is neither in memory nor
// in storage. Callers hold m.mu.
func (m *Manager) newID() string {
	buf := make([]byte, 2)
	for {
		rand.Read(buf)
		id := hex.EncodeToString(buf)
		if m.boards[id] == nil && (m.persistence == nil || !m.persistence.Exists(id)) {
			return id
		}
	}
}

// LoadPersistedSessions loads every stored session that is not already in
// memory, up to the session cap. Sessions that fail to load are skipped.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, id := range ids {
		if m.maxSessions > 0 && len(m.boards) >= m.maxSessions {
			m.logger.Info("session cap reached, remaining sessions load on demand", "limit", m.maxSessions)
			break
		}
		if m.boards[key(id)] != nil {
			continue
		}
		sess, err := m.persistence.Load(id)
		if err != nil {
			m.logger.Warn("failed to load persisted session", "session", id, "error", err)
			continue
		}
		m.boards[key(id)] = sess
		loaded++
	}

	if loaded > 0 {
		m.logger.Info("loaded persisted sessions", "count", loaded)
	}
	return nil
}

// SaveAll writes every in-memory session to storage and reports how many
// failed.
func (m *Manager) SaveAll() error {
	if m.persistence == nil {
		return nil
	}

	failed := 0
	for _, sess := range m.List() {
		if err := m.persistence.Save(sess); err != nil {
			m.logger.Warn("failed to save session", "session", sess.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to save %d sessions", failed)
	}
	return nil
}
