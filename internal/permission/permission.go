// Package permission resolves role-based and session-level access checks
// for incoming commands.
package permission

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/breeze-rmm/control-server/internal/protocol"
)

// wildcard grants every permission.
const wildcard = "*"

// Role is a named permission set, optionally restricted to an activation
// window.
type Role struct {
	Name        string
	Permissions []string
	ValidFrom   *time.Time
	ValidUntil  *time.Time
}

func (r Role) active(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

func (r Role) grants(permission string) bool {
	for _, p := range r.Permissions {
		if p == permission || p == wildcard {
			return true
		}
	}
	return false
}

// Manager maps users to roles and answers permission/authorization
// queries against the union of a user's currently active roles.
type Manager struct {
	mu        sync.RWMutex
	roles     map[string]Role
	userRoles map[string][]string
}

// New returns a Manager with no roles or assignments.
func New() *Manager {
	return &Manager{
		roles:     make(map[string]Role),
		userRoles: make(map[string][]string),
	}
}

// CreateRole registers an always-active role.
func (m *Manager) CreateRole(name string, permissions []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[name] = Role{Name: name, Permissions: append([]string(nil), permissions...)}
}

// CreateTimeRestrictedRole registers a role only active within
// [validFrom, validUntil].
func (m *Manager) CreateTimeRestrictedRole(name string, permissions []string, validFrom, validUntil time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[name] = Role{
		Name:        name,
		Permissions: append([]string(nil), permissions...),
		ValidFrom:   &validFrom,
		ValidUntil:  &validUntil,
	}
}

// AssignRole attaches an existing role to a user.
func (m *Manager) AssignRole(username, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleName]; !ok {
		return fmt.Errorf("role %q does not exist", roleName)
	}
	m.userRoles[username] = append(m.userRoles[username], roleName)
	return nil
}

// RemoveRole deletes a role and unassigns it from every user.
func (m *Manager) RemoveRole(roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleName]; !ok {
		return fmt.Errorf("role %q not found", roleName)
	}
	delete(m.roles, roleName)
	for user, names := range m.userRoles {
		m.userRoles[user] = removeString(names, roleName)
	}
	return nil
}

// RemoveUserRole unassigns one role from one user.
func (m *Manager) RemoveUserRole(username, roleName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := removeString(m.userRoles[username], roleName)
	if len(remaining) == 0 {
		delete(m.userRoles, username)
		return
	}
	m.userRoles[username] = remaining
}

func removeString(items []string, target string) []string {
	out := items[:0]
	for _, item := range items {
		if item != target {
			out = append(out, item)
		}
	}
	return out
}

// CheckPermission reports whether username currently holds permission via
// any active assigned role.
func (m *Manager) CheckPermission(username, permission string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	for _, roleName := range m.userRoles[username] {
		role, ok := m.roles[roleName]
		if !ok || !role.active(now) {
			continue
		}
		if role.grants(permission) {
			return true
		}
	}
	return false
}

// UserPermissions returns the sorted, deduplicated union of permissions
// granted by username's currently active roles.
func (m *Manager) UserPermissions(username string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	seen := make(map[string]struct{})
	for _, roleName := range m.userRoles[username] {
		role, ok := m.roles[roleName]
		if !ok || !role.active(now) {
			continue
		}
		for _, p := range role.Permissions {
			seen[p] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RequiredPermission maps a command type to the role permission it needs.
func RequiredPermission(commandType protocol.CommandType) (string, error) {
	switch commandType {
	case protocol.CommandMouseMove, protocol.CommandMouseClick, protocol.CommandMouseScroll:
		return "mouse_control", nil
	case protocol.CommandKeyPress, protocol.CommandKeyRelease, protocol.CommandTypeText:
		return "keyboard_control", nil
	case protocol.CommandCaptureScreen:
		return "screen_capture", nil
	case protocol.CommandGetDisplays, protocol.CommandGetWindowInfo, protocol.CommandListWindows:
		return "window_management", nil
	default:
		return "", fmt.Errorf("no permission mapping for command type %q", commandType)
	}
}

// AuthorizeCommand checks a user's roles against the permission a command
// requires.
func (m *Manager) AuthorizeCommand(username string, commandType protocol.CommandType) error {
	required, err := RequiredPermission(commandType)
	if err != nil {
		return err
	}
	if m.CheckPermission(username, required) {
		return nil
	}
	return fmt.Errorf("permission denied: user %q lacks %q permission for command type %q", username, required, commandType)
}

// defaultSessionPermissions is granted to every session once it
// authenticates, regardless of role assignment, so a newly authenticated
// client can immediately drive input and capture without a role having
// been pre-provisioned.
var defaultSessionPermissions = []string{"mouse_control", "keyboard_control", "screen_capture", "window_management", "basic"}

// DefaultSessionPermissions returns the baseline permission set granted on
// authentication.
func DefaultSessionPermissions() []string {
	return append([]string(nil), defaultSessionPermissions...)
}

// SessionAuthorized checks a command against a flat session permission set
// (as opposed to role-based CheckPermission): the session is authorized if
// it holds the specific permission the command needs, or holds "admin".
func SessionAuthorized(sessionPermissions []string, commandType protocol.CommandType) (bool, error) {
	required, err := RequiredPermission(commandType)
	if err != nil {
		return false, err
	}
	for _, p := range sessionPermissions {
		if p == required || p == "admin" {
			return true, nil
		}
	}
	return false, nil
}
