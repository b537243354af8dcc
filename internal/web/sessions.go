package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/sellsmart-bot/internal/llm"
	"github.com/raine/sellsmart-bot/internal/session"
	"github.com/rs/zerolog/log"
)

// DefaultIdleTTL is how long a web session may go untouched before it is
// dropped.
const DefaultIdleTTL = 30 * time.Minute

// webSession is one browser tab's listing.
type webSession struct {
	id         string
	controller *session.Controller
	createdAt  time.Time

	mu           sync.Mutex
	lastActivity time.Time
}

func (s *webSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()
}

func (s *webSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SessionManager owns the controllers of web sessions, keyed by UUID.
// Sessions live in memory only.
type SessionManager struct {
	gateway llm.Gateway
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*webSession
}

// NewSessionManager creates a manager whose sessions share gateway.
func NewSessionManager(gateway llm.Gateway, idleTTL time.Duration) *SessionManager {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &SessionManager{
		gateway:  gateway,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: make(map[string]*webSession),
	}
}

// Create starts a new session in the initial state.
func (m *SessionManager) Create() *webSession {
	now := m.now()
	ws := &webSession{
		id:           uuid.NewString(),
		controller:   session.NewController(m.gateway),
		createdAt:    now,
		lastActivity: now,
	}

	m.mu.Lock()
	m.sessions[ws.id] = ws
	count := len(m.sessions)
	m.mu.Unlock()

	log.Info().Str("sessionId", ws.id).Int("active", count).Msg("web session created")
	return ws
}

// Get returns the session with the given id and marks it active.
func (m *SessionManager) Get(id string) (*webSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errSessionNotFound
	}

	m.mu.RLock()
	ws, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errSessionNotFound
	}
	ws.touch(m.now())
	return ws, nil
}

// Delete drops a session. A call still running on it finishes, but its
// result has nowhere to go.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	ws, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errSessionNotFound
	}
	ws.controller.Reset()
	log.Info().Str("sessionId", id).Msg("web session deleted")
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cleanupExpired drops sessions idle for longer than the TTL. Sessions with
// a running call are kept.
func (m *SessionManager) cleanupExpired() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, ws := range m.sessions {
		if ws.idleSince().Before(cutoff) && !ws.controller.Busy() {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Int("active", len(m.sessions)).Msg("cleaned up idle web sessions")
	}
	return removed
}

// RunCleanup removes idle sessions every interval until ctx is done.
func (m *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.cleanupExpired()
		}
	}
}
