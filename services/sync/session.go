package sync

import (
	"context"
	"sync"
	"time"

	"rapidcare/models"

	"go.uber.org/zap"
)

// MinInterval is the floor for polling intervals.
const MinInterval = time.Second

// FetchFunc performs one poll against the upstream collaborator.
type FetchFunc func(ctx context.Context) (*models.FetchResult, error)

// SessionConfig enumerates what a polling session needs to run.
type SessionConfig struct {
	Interval time.Duration
	Backoff  Policy
	Fetch    FetchFunc

	// Connect/disconnect hooks for the UI surface; the full event stream is
	// delivered on Events().
	OnConnect    func(sessionID string)
	OnDisconnect func(sessionID string)

	// Buffer for the event channel. Zero means a small default.
	Buffer int
}

// Session is one independently cancellable polling loop. The first fetch runs
// immediately on start; each subsequent attempt is scheduled a full interval
// after the previous attempt completes, so a slow fetch never causes two
// in-flight calls for the same session.
type Session struct {
	id      string
	kind    string
	scopeID string
	backoff Policy
	fetch   FetchFunc

	onConnect    func(string)
	onDisconnect func(string)

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}
	logger *zap.Logger

	mu         sync.Mutex
	interval   time.Duration
	retryCount int
	connected  bool
	lastUpdate time.Time
	stopping   bool
	finished   bool
}

func newSession(id, kind, scopeID string, cfg SessionConfig, logger *zap.Logger) *Session {
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = cfg.Interval
	}
	if cfg.Backoff.Max <= 0 {
		cfg.Backoff.Max = 10 * cfg.Backoff.Base
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Session{
		id:           id,
		kind:         kind,
		scopeID:      scopeID,
		interval:     cfg.Interval,
		backoff:      cfg.Backoff,
		fetch:        cfg.Fetch,
		onConnect:    cfg.OnConnect,
		onDisconnect: cfg.OnDisconnect,
		events:       make(chan Event, buffer),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

// ID returns the caller-chosen session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the session's ordered event stream. The channel is closed
// once the session stops, whether by Stop or by an unavailable endpoint.
func (s *Session) Events() <-chan Event { return s.events }

// Status returns a point-in-time view of the session.
func (s *Session) Status() models.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SessionStatus{
		SessionID:    s.id,
		EndpointKind: s.kind,
		ScopeID:      s.scopeID,
		Interval:     s.interval,
		RetryCount:   s.retryCount,
		Connected:    s.connected,
		LastUpdateAt: s.lastUpdate,
		Cancelled:    s.stopping || s.finished,
	}
}

// Stop cancels the session and waits for its loop to exit. No event is
// delivered after Stop returns; an in-flight fetch result is discarded.
// Calling Stop more than once is harmless.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopping = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

// start launches the polling loop. Called exactly once, by the registry.
func (s *Session) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.finished = true
		s.mu.Unlock()
		close(s.events)
		close(s.done)
	}()

	// Immediate first fetch, then interval from completion of each attempt.
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		result, err := s.fetch(ctx)
		if ctx.Err() != nil {
			// Stopped while the fetch was in flight; discard the result.
			return
		}

		if err != nil {
			retries, wasConnected := s.recordFailure()
			if wasConnected {
				s.emit(ctx, Event{SessionID: s.id, Kind: EventDisconnected, At: time.Now()})
				if s.onDisconnect != nil {
					s.onDisconnect(s.id)
				}
			}
			s.emit(ctx, Event{SessionID: s.id, Kind: EventError, Err: err, RetryCount: retries, At: time.Now()})

			if IsEndpointUnavailable(err) {
				s.logger.Warn("polling endpoint unavailable, stopping session",
					zap.String("sessionId", s.id), zap.Error(err))
				return
			}
			timer.Reset(s.backoff.Delay(retries))
			continue
		}

		wasDisconnected := s.recordSuccess()
		if wasDisconnected {
			s.emit(ctx, Event{SessionID: s.id, Kind: EventConnected, At: time.Now()})
			if s.onConnect != nil {
				s.onConnect(s.id)
			}
		}
		s.emit(ctx, Event{SessionID: s.id, Kind: EventUpdate, Result: result, At: time.Now()})

		s.mu.Lock()
		interval := s.interval
		s.mu.Unlock()
		timer.Reset(interval)
	}
}

func (s *Session) recordFailure() (retries int, wasConnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount++
	wasConnected = s.connected
	s.connected = false
	return s.retryCount, wasConnected
}

func (s *Session) recordSuccess() (wasDisconnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasDisconnected = !s.connected
	s.retryCount = 0
	s.connected = true
	s.lastUpdate = time.Now()
	return wasDisconnected
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
