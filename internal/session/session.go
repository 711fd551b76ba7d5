// Package session tracks per-connection server-side bookkeeping: an opaque
// session id, its granted permission set, and activity counters, with an
// idle-expiry sweep independent of the underlying network connection.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// ClientInfo identifies the remote peer a session was created for.
type ClientInfo struct {
	RemoteAddr string
	UserAgent  string
}

// defaultPermissions is what every session starts with before
// authentication promotes it.
var defaultPermissions = []string{"basic"}

// Session is one server-side bookkeeping record. It is not itself a
// network connection; NetworkListener holds the connection, the session
// outlives any one read/write on it.
type Session struct {
	id   string
	info ClientInfo

	mu            sync.RWMutex
	permissions   map[string]struct{}
	createdAt     time.Time
	lastActivity  time.Time
	commandCount  uint64
	authenticated bool
	username      string
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// ClientInfo returns the client info the session was created with.
func (s *Session) ClientInfo() ClientInfo { return s.info }

// Permissions returns a sorted snapshot of the session's current
// permission set.
func (s *Session) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.permissions))
	for p := range s.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Authenticated reports whether Authenticate has been called successfully
// on this session.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Username returns the authenticated username, or "" if the session has
// not authenticated.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// CommandCount returns how many commands have been recorded against this
// session via Touch.
func (s *Session) CommandCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commandCount
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// LastActivity returns the timestamp of the most recent Touch.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Touch records one processed command against the session and refreshes
// its activity timestamp, resetting the idle-expiry clock.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandCount++
	s.lastActivity = time.Now()
}

// Authenticate promotes the session's permission set by union with
// granted, the permissions assigned to the authenticated user/role.
func (s *Session) Authenticate(username string, granted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.username = username
	for _, p := range granted {
		s.permissions[p] = struct{}{}
	}
}

func newSession(id string, info ClientInfo) *Session {
	now := time.Now()
	perms := make(map[string]struct{}, len(defaultPermissions))
	for _, p := range defaultPermissions {
		perms[p] = struct{}{}
	}
	return &Session{
		id:           id,
		info:         info,
		permissions:  perms,
		createdAt:    now,
		lastActivity: now,
	}
}

// Manager creates and tracks Sessions, sweeping out ones idle past timeout.
type Manager struct {
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a Manager expiring sessions idle for longer than
// timeout.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		timeout:  timeout,
		sessions: make(map[string]*Session),
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Create allocates a new Session with default permissions and registers
// it under a fresh opaque id.
func (m *Manager) Create(info ClientInfo) *Session {
	s := newSession(newSessionID(), info)
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	return s
}

// Get returns the session registered under id, or nil if none exists or
// it has already been swept.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Remove unregisters a session, e.g. on explicit logout or connection
// close.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of currently registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ExpireIdle removes every session whose last activity is at least
// timeout in the past, returning the ids removed. Idempotent and safe to
// call from periodic maintenance.
func (m *Manager) ExpireIdle() []string {
	now := time.Now()

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		s.mu.RLock()
		idle := now.Sub(s.lastActivity)
		s.mu.RUnlock()
		if idle >= m.timeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return nil
	}

	m.mu.Lock()
	for _, id := range expired {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	return expired
}
