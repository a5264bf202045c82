package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HerbHall/skillpath/internal/metrics"
)

// ErrTooManySessions is returned by Open when the manager is full.
var ErrTooManySessions = errors.New("session: too many active sessions")

// Session is the state owned by one conversation. Its context is cancelled
// when the session closes, which abandons any in-flight work.
type Session struct {
	ID        string
	Transport string
	StartedAt time.Time
	History   *History

	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the session's lifetime context.
func (s *Session) Context() context.Context { return s.ctx }

// View is the JSON representation of a session.
type View struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	StartedAt time.Time `json:"started_at"`
	Searches  int       `json:"searches"`
}

// View returns a snapshot of the session for display.
func (s *Session) View() View {
	return View{
		ID:        s.ID,
		Transport: s.Transport,
		StartedAt: s.StartedAt,
		Searches:  s.History.Len(),
	}
}

// Manager tracks open sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	onClose  []func(id string)
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewManager creates a manager that allows at most maxSessions concurrent sessions.
// A limit of zero or less means no limit.
func NewManager(maxSessions int, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		max:      maxSessions,
		logger:   logger,
		metrics:  m,
	}
}

// OnClose registers fn to run after a session is closed.
func (m *Manager) OnClose(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = append(m.onClose, fn)
}

// Open starts a session derived from parent.
func (m *Manager) Open(parent context.Context, transport string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, ErrTooManySessions
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:        uuid.New().String(),
		Transport: transport,
		StartedAt: time.Now().UTC(),
		History:   NewHistory(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.sessions[s.ID] = s
	m.metrics.SessionOpened()
	m.logger.Info("session opened", zap.String("session_id", s.ID), zap.String("transport", transport))
	return s, nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns all open sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels and removes a session. Closing an unknown session is a no-op.
func (m *Manager) Close(id string, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	hooks := append([]func(string){}, m.onClose...)
	m.mu.Unlock()

	if !ok {
		return
	}

	s.cancel()
	for _, fn := range hooks {
		fn(id)
	}
	m.metrics.SessionClosed()
	m.logger.Info("session closed",
		zap.String("session_id", id),
		zap.String("reason", reason),
		zap.Int("searches", s.History.Len()),
		zap.Duration("duration", time.Since(s.StartedAt)),
	)
}

// CloseAll closes every open session.
func (m *Manager) CloseAll(reason string) {
	for _, s := range m.List() {
		m.Close(s.ID, reason)
	}
}
