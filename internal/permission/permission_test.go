package permission

import (
	"testing"
	"time"

	"github.com/breeze-rmm/control-server/internal/protocol"
)

func TestCheckPermissionViaAssignedRole(t *testing.T) {
	m := New()
	m.CreateRole("operator", []string{"mouse_control"})
	if err := m.AssignRole("alice", "operator"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if !m.CheckPermission("alice", "mouse_control") {
		t.Fatal("expected alice to hold mouse_control")
	}
	if m.CheckPermission("alice", "keyboard_control") {
		t.Fatal("expected alice not to hold keyboard_control")
	}
}

func TestCheckPermissionWildcardGrantsEverything(t *testing.T) {
	m := New()
	m.CreateRole("admin", []string{"*"})
	if err := m.AssignRole("bob", "admin"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if !m.CheckPermission("bob", "screen_capture") {
		t.Fatal("expected wildcard role to grant screen_capture")
	}
}

func TestCheckPermissionRespectsTimeRestriction(t *testing.T) {
	m := New()
	past := time.Now().Add(-time.Hour)
	alreadyExpired := time.Now().Add(-time.Minute)
	m.CreateTimeRestrictedRole("temp", []string{"mouse_control"}, past, alreadyExpired)
	if err := m.AssignRole("carol", "temp"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if m.CheckPermission("carol", "mouse_control") {
		t.Fatal("expected expired time-restricted role to not grant permission")
	}
}

func TestCheckPermissionFutureRoleNotYetActive(t *testing.T) {
	m := New()
	future := time.Now().Add(time.Hour)
	farFuture := time.Now().Add(2 * time.Hour)
	m.CreateTimeRestrictedRole("upcoming", []string{"mouse_control"}, future, farFuture)
	if err := m.AssignRole("dave", "upcoming"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if m.CheckPermission("dave", "mouse_control") {
		t.Fatal("expected not-yet-active role to not grant permission")
	}
}

func TestUserPermissionsUnionIsSortedAndDeduplicated(t *testing.T) {
	m := New()
	m.CreateRole("a", []string{"mouse_control", "screen_capture"})
	m.CreateRole("b", []string{"screen_capture", "keyboard_control"})
	if err := m.AssignRole("erin", "a"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := m.AssignRole("erin", "b"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	perms := m.UserPermissions("erin")
	want := []string{"keyboard_control", "mouse_control", "screen_capture"}
	if len(perms) != len(want) {
		t.Fatalf("UserPermissions = %v, want %v", perms, want)
	}
	for i := range want {
		if perms[i] != want[i] {
			t.Fatalf("UserPermissions = %v, want %v", perms, want)
		}
	}
}

func TestAssignRoleUnknownRoleErrors(t *testing.T) {
	m := New()
	if err := m.AssignRole("frank", "ghost"); err == nil {
		t.Fatal("expected error assigning an unknown role")
	}
}

func TestRemoveRoleClearsAssignments(t *testing.T) {
	m := New()
	m.CreateRole("temp", []string{"mouse_control"})
	if err := m.AssignRole("gail", "temp"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := m.RemoveRole("temp"); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if m.CheckPermission("gail", "mouse_control") {
		t.Fatal("expected permission to be gone after role removal")
	}
}

func TestRequiredPermissionMapsEveryCommandType(t *testing.T) {
	cases := map[protocol.CommandType]string{
		protocol.CommandMouseMove:     "mouse_control",
		protocol.CommandMouseClick:    "mouse_control",
		protocol.CommandMouseScroll:   "mouse_control",
		protocol.CommandKeyPress:      "keyboard_control",
		protocol.CommandKeyRelease:    "keyboard_control",
		protocol.CommandTypeText:      "keyboard_control",
		protocol.CommandCaptureScreen: "screen_capture",
		protocol.CommandGetDisplays:   "window_management",
		protocol.CommandGetWindowInfo: "window_management",
		protocol.CommandListWindows:   "window_management",
	}
	for ct, want := range cases {
		got, err := RequiredPermission(ct)
		if err != nil {
			t.Fatalf("RequiredPermission(%q): %v", ct, err)
		}
		if got != want {
			t.Fatalf("RequiredPermission(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestAuthorizeCommandDeniedWithoutPermission(t *testing.T) {
	m := New()
	if err := m.AuthorizeCommand("nobody", protocol.CommandMouseMove); err == nil {
		t.Fatal("expected permission denied error")
	}
}

func TestSessionAuthorizedAdminOverride(t *testing.T) {
	ok, err := SessionAuthorized([]string{"admin"}, protocol.CommandCaptureScreen)
	if err != nil {
		t.Fatalf("SessionAuthorized: %v", err)
	}
	if !ok {
		t.Fatal("expected admin permission to authorize every command")
	}
}

func TestSessionAuthorizedSpecificPermission(t *testing.T) {
	ok, err := SessionAuthorized([]string{"basic", "mouse_control"}, protocol.CommandMouseClick)
	if err != nil {
		t.Fatalf("SessionAuthorized: %v", err)
	}
	if !ok {
		t.Fatal("expected mouse_control to authorize mouse_click")
	}

	ok, err = SessionAuthorized([]string{"basic"}, protocol.CommandMouseClick)
	if err != nil {
		t.Fatalf("SessionAuthorized: %v", err)
	}
	if ok {
		t.Fatal("expected basic-only permissions to not authorize mouse_click")
	}
}

func TestDefaultSessionPermissionsIsDefensiveCopy(t *testing.T) {
	perms := DefaultSessionPermissions()
	perms[0] = "mutated"
	if DefaultSessionPermissions()[0] == "mutated" {
		t.Fatal("expected DefaultSessionPermissions to return a fresh copy each call")
	}
}
