package terminal

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hydrogen-host/terminal/src/handler/constants"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrShuttingDown     = errors.New("shutting down")
	ErrNotFound         = errors.New("session not found")
	ErrAlreadyBound     = errors.New("session already bound")
)

// SessionId is a monotonically assigned identifier, stringified as
// "<counter>-<unix_ms>" for logs.
type SessionId struct {
	Counter int64
	Millis  int64
}

func (id SessionId) String() string { return fmt.Sprintf("%d-%d", id.Counter, id.Millis) }

// CloseReason tags why a Session was closed.
type CloseReason struct {
	Kind     string // one of constants.CloseReason*
	ExitCode int    // valid when Kind == CloseReasonShellExit
}

func (r CloseReason) String() string {
	if r.Kind == constants.CloseReasonShellExit {
		return fmt.Sprintf("%s(%d)", r.Kind, r.ExitCode)
	}
	return r.Kind
}

// WsBinding is the narrow handle a Session uses to push frames to, or
// request the close of, a bound WebSocket without owning the socket
// itself (the WsEndpoint owns the strong reference).
type WsBinding interface {
	SendOutput(data []byte) error
	SendExit(code int) error
	RequestClose(code int, reason string)
}

// Session is a live pairing of one PtyChannel with at most one bound
// WebSocket client.
type Session struct {
	ID            SessionId
	Owner         string
	CreatedAt     time.Time
	lastActivity  atomic.Int64 // unix nano
	Pty           *PtyChannel
	mu            sync.Mutex
	ws            WsBinding
	state         string
	closeReason   *CloseReason
	closeOnce     sync.Once
	closeOnDisconn bool
}

func (s *Session) touch() { s.lastActivity.Store(time.Now().UnixNano()) }

// LastActivity returns the instant of the last successful byte
// transfer or pong in either direction.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// State returns the current monotonic lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseReason returns the reason the session closed, if any.
func (s *Session) CloseReason() *CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason
}

// SessionManager owns the lifecycle of all live Sessions: creation,
// capacity, timeouts, and drain-on-shutdown fan-out.
//
// Grounded on the teacher's session_manager.go (cleanup ticker idiom;
// its ring-buffer replay is not carried over) but rebuilt without the package-level
// sync.Once singleton — the spec's design note forbids module-level
// mutable state, so SessionManager is constructed explicitly by
// TerminalService.
type SessionManager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
	draining atomic.Bool
	counter  atomic.Int64
}

// ManagerConfig mirrors the terminal-relevant subset of TerminalConfig.
type ManagerConfig struct {
	MaxSessions        int
	IdleTimeoutSeconds  int
	MaxSessionSeconds   int
	ShellCommand       string
	BufferSize         int
	ExitGrace          time.Duration
	CloseOnDisconnect  bool
}

func NewSessionManager(cfg ManagerConfig) *SessionManager {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 10
	}
	if cfg.IdleTimeoutSeconds <= 0 {
		cfg.IdleTimeoutSeconds = 600
	}
	if cfg.MaxSessionSeconds <= 0 {
		cfg.MaxSessionSeconds = 3600
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.ExitGrace <= 0 {
		cfg.ExitGrace = 2 * time.Second
	}
	return &SessionManager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create allocates a SessionId, spawns a PtyChannel, and inserts a new
// Session in the Starting state. It returns CapacityExceeded or
// ShuttingDown without mutating state, and releases the PTY if table
// insertion cannot proceed (per the spec's partial-failure note).
func (m *SessionManager) Create(owner string, initial Window, envOverrides map[string]string) (*Session, error) {
	if m.draining.Load() {
		return nil, ErrShuttingDown
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	// Allocate the id under the lock, then release it before the
	// (possibly slow) PTY spawn syscalls, per the "no lock across a
	// process syscall" resource policy. No slot is held during the
	// spawn: draining and capacity are checked again before insertion.
	id := SessionId{Counter: m.counter.Add(1), Millis: time.Now().UnixMilli()}
	m.mu.Unlock()

	pty, err := Spawn(m.cfg.ShellCommand, envOverrides, initial, m.cfg.ExitGrace)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:             id,
		Owner:          owner,
		CreatedAt:      time.Now(),
		Pty:            pty,
		state:          constants.SessionStateStarting,
		closeOnDisconn: m.cfg.CloseOnDisconnect,
	}
	s.touch()

	m.mu.Lock()
	if m.draining.Load() {
		m.mu.Unlock()
		_ = pty.Close()
		return nil, ErrShuttingDown
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		_ = pty.Close()
		return nil, ErrCapacityExceeded
	}
	m.sessions[id.String()] = s
	m.mu.Unlock()

	s.mu.Lock()
	s.state = constants.SessionStateRunning
	s.mu.Unlock()

	go func() {
		<-pty.Done()
		m.closeInternal(s, CloseReason{Kind: constants.CloseReasonShellExit, ExitCode: pty.ExitCode()})
	}()

	logrus.WithField("session", id.String()).Info("terminal session created")
	return s, nil
}

// BindWs attaches a WsBinding to a Session. At most one binding is
// permitted at a time.
func (m *SessionManager) BindWs(id string, ws WsBinding) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == constants.SessionStateClosed {
		return ErrClosed
	}
	if s.ws != nil {
		return ErrAlreadyBound
	}
	s.ws = ws
	return nil
}

// UnbindWs detaches the bound WsBinding, if any. It is idempotent. If
// the session's close-on-disconnect policy is set, it schedules a
// ClientClose.
func (m *SessionManager) UnbindWs(id string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.ws = nil
	shouldClose := s.closeOnDisconn
	s.mu.Unlock()

	if shouldClose {
		m.closeInternal(s, CloseReason{Kind: constants.CloseReasonClientClose})
	}
}

// Close closes a session by id, idempotently, with the given reason.
// The first reason to win a race is the one reported.
func (m *SessionManager) Close(id string, reason CloseReason) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	m.closeInternal(s, reason)
	return nil
}

func (m *SessionManager) closeInternal(s *Session, reason CloseReason) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = constants.SessionStateDraining
		s.closeReason = &reason
		ws := s.ws
		s.mu.Unlock()

		if ws != nil {
			code := closeCodeFor(reason)
			if reason.Kind == constants.CloseReasonShellExit {
				_ = ws.SendExit(reason.ExitCode)
			}
			ws.RequestClose(code, reason.Kind)
		}

		_ = s.Pty.Close()

		s.mu.Lock()
		s.state = constants.SessionStateClosed
		s.mu.Unlock()

		m.mu.Lock()
		delete(m.sessions, s.ID.String())
		m.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"session": s.ID.String(),
			"reason":  reason.String(),
		}).Info("terminal session closed")
	})
}

func closeCodeFor(r CloseReason) int {
	switch r.Kind {
	case constants.CloseReasonAuthFailure:
		return 4401
	case constants.CloseReasonIdleTimeout:
		return 4408
	case constants.CloseReasonCapacityExceeded:
		return 4429
	case constants.CloseReasonShellExit:
		return 4500
	case constants.CloseReasonShuttingDown:
		return 1001
	case constants.CloseReasonIoError, constants.CloseReasonProtocolError:
		return 1011
	default:
		return 1000
	}
}

// Tick evaluates idle and absolute timeouts for every live session.
// It snapshots decisions under the lock and performs the actual
// closes after releasing it, so the lock is never held across a PTY
// reap.
func (m *SessionManager) Tick(now time.Time) {
	type expiry struct {
		s      *Session
		reason CloseReason
	}
	var expired []expiry

	m.mu.RLock()
	for _, s := range m.sessions {
		last := s.LastActivity()
		if now.Sub(last) >= time.Duration(m.cfg.IdleTimeoutSeconds)*time.Second {
			expired = append(expired, expiry{s, CloseReason{Kind: constants.CloseReasonIdleTimeout}})
			continue
		}
		if now.Sub(s.CreatedAt) >= time.Duration(m.cfg.MaxSessionSeconds)*time.Second {
			expired = append(expired, expiry{s, CloseReason{Kind: constants.CloseReasonAbsoluteTimeout}})
		}
	}
	m.mu.RUnlock()

	for _, e := range expired {
		m.closeInternal(e.s, e.reason)
	}
}

// Drain rejects new sessions and closes every live session with
// ShuttingDown, blocking until the table is empty.
func (m *SessionManager) Drain() {
	m.draining.Store(true)

	m.mu.RLock()
	toClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		toClose = append(toClose, s)
	}
	m.mu.RUnlock()

	for _, s := range toClose {
		m.closeInternal(s, CloseReason{Kind: constants.CloseReasonShuttingDown})
	}

	for {
		m.mu.RLock()
		n := len(m.sessions)
		m.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Get looks up a live session by id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List returns a snapshot of live session ids, for introspection
// (e.g. the MCP terminal_list_sessions tool).
func (m *SessionManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Touch records a successful byte transfer or pong for a session.
func (m *SessionManager) Touch(id string) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.touch()
	}
}

// StartTicker launches the periodic tick task and returns a stop
// function.
func (m *SessionManager) StartTicker(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				m.Tick(now)
			}
		}
	}()
	return func() { close(done) }
}
