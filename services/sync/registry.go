package sync

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rapidcare/models"

	"go.uber.org/zap"
)

// Registry owns every live polling session, at most one per session id.
// It is an explicit object, not a package-level singleton, so lifecycles stay
// testable; create one with NewRegistry and tear it down with StopAll.
type Registry struct {
	logger *zap.Logger

	mu        sync.Mutex
	sessions  map[string]*Session
	authToken string

	// Hooks applied to sessions created after SetEventHandlers.
	onConnect    func(sessionID string)
	onDisconnect func(sessionID string)
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// SetAuthToken stores the token fetch functions read through Token.
func (r *Registry) SetAuthToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authToken = token
}

// Token returns the current upstream auth token.
func (r *Registry) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authToken
}

// SetEventHandlers installs connect/disconnect hooks for all sessions created
// afterward. Existing sessions keep the hooks they were created with.
func (r *Registry) SetEventHandlers(onConnect, onDisconnect func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnect = onConnect
	r.onDisconnect = onDisconnect
}

// Start registers and launches a session. If a session with the same id is
// already live it is stopped first; the stop and the replacement are atomic
// with respect to other Start/Stop calls, so two timers for one id can never
// run concurrently.
func (r *Registry) Start(ctx context.Context, sessionID, endpointKind, scopeID string, cfg SessionConfig) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("session %s: fetch function is required", sessionID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.sessions[sessionID]; ok {
		r.logger.Info("replacing existing polling session", zap.String("sessionId", sessionID))
		old.Stop()
		delete(r.sessions, sessionID)
	}

	if cfg.OnConnect == nil {
		cfg.OnConnect = r.onConnect
	}
	if cfg.OnDisconnect == nil {
		cfg.OnDisconnect = r.onDisconnect
	}

	s := newSession(sessionID, endpointKind, scopeID, cfg, r.logger)
	s.start(ctx)
	r.sessions[sessionID] = s

	r.logger.Info("polling session started",
		zap.String("sessionId", sessionID),
		zap.String("endpointKind", endpointKind),
		zap.String("scopeId", scopeID),
		zap.Duration("interval", cfg.Interval))
	return s, nil
}

// Get looks up a live session by id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// Stop stops and removes the session with the given id. Stopping an unknown
// id is a no-op.
func (r *Registry) Stop(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	s.Stop()
	delete(r.sessions, sessionID)
	return true
}

// PruneFinished drops sessions whose loop already exited on its own, such as
// after the polled endpoint went away. Returns the removed session ids.
func (r *Registry) PruneFinished() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pruned []string
	for id, s := range r.sessions {
		if s.Status().Cancelled {
			delete(r.sessions, id)
			pruned = append(pruned, id)
		}
	}
	return pruned
}

// StopAll tears down every live session.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.Stop()
		delete(r.sessions, id)
	}
}

// Status returns the current state of every registered session, ordered by id.
func (r *Registry) Status() []models.SessionStatus {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	statuses := make([]models.SessionStatus, 0, len(sessions))
	for _, s := range sessions {
		statuses = append(statuses, s.Status())
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].SessionID < statuses[j].SessionID })
	return statuses
}

// Connection derives the aggregate UI connection state from the sessions
// whose ids are given. All connected means Live; any session mid-retry means
// Reconnecting with the highest retry count; otherwise Disconnected.
func (r *Registry) Connection(sessionIDs ...string) models.ConnectionStatus {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if s, ok := r.sessions[id]; ok {
			sessions = append(sessions, s)
		}
	}
	r.mu.Unlock()

	if len(sessions) == 0 {
		return models.ConnectionStatus{State: models.ConnectionDisconnected}
	}

	allConnected := true
	maxRetries := 0
	for _, s := range sessions {
		st := s.Status()
		if !st.Connected {
			allConnected = false
		}
		if st.RetryCount > maxRetries {
			maxRetries = st.RetryCount
		}
	}
	switch {
	case allConnected:
		return models.ConnectionStatus{State: models.ConnectionLive}
	case maxRetries > 0:
		return models.ConnectionStatus{State: models.ConnectionReconnecting, RetryCount: maxRetries}
	default:
		return models.ConnectionStatus{State: models.ConnectionDisconnected}
	}
}
