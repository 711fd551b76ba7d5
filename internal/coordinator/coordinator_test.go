package coordinator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/breeze-rmm/control-server/internal/capability"
	"github.com/breeze-rmm/control-server/internal/config"
	"github.com/breeze-rmm/control-server/internal/platform"
	"github.com/breeze-rmm/control-server/internal/protocol"
	"github.com/breeze-rmm/control-server/internal/session"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	cfg := config.Default()
	cfg.AuditPath = filepath.Join(t.TempDir(), "audit.jsonl")

	backend, _ := platform.Select("headless")
	gate := capability.New(backend)

	c, err := New(cfg, gate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func mouseMoveCommand(id string) protocol.Command {
	x, y := int64(10), int64(20)
	return protocol.Command{
		ID:   id,
		Type: protocol.CommandMouseMove,
		Payload: protocol.CommandPayload{
			Type: string(protocol.CommandMouseMove),
			X:    &x,
			Y:    &y,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func TestProcessRejectsUnauthenticatedMouseMove(t *testing.T) {
	c := newTestCoordinator(t)
	info := session.ClientInfo{RemoteAddr: "127.0.0.1:1"}

	result := c.Process(context.Background(), "", info, mouseMoveCommand("m1"))

	if result.Response.Status != protocol.StatusError {
		t.Fatalf("status = %v, want error", result.Response.Status)
	}
	if result.Response.Error == nil || *result.Response.Error != "Permission denied" {
		t.Fatalf("error = %v, want Permission denied", result.Response.Error)
	}
}

func TestProcessExecutesMouseMoveAfterAuthentication(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.Auth.AddUser("alice", "correct-horse", nil); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	info := session.ClientInfo{RemoteAddr: "127.0.0.1:2"}
	sess := c.Sessions.Create(info)
	if _, err := c.AuthenticateSession(sess, "alice", "correct-horse"); err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}

	result := c.Process(context.Background(), sess.ID(), info, mouseMoveCommand("m2"))

	if result.Response.Status != protocol.StatusSuccess {
		t.Fatalf("status = %v, want success (error=%v)", result.Response.Status, result.Response.Error)
	}
	if result.SessionID != sess.ID() {
		t.Fatalf("SessionID = %q, want %q", result.SessionID, sess.ID())
	}
}

func TestAuthenticateSessionFailsWithWrongPassword(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.Auth.AddUser("alice", "correct-horse", nil); err != nil {
		t.Fatalf("AddUser: %v", err)
	}

	sess := c.Sessions.Create(session.ClientInfo{})
	if _, err := c.AuthenticateSession(sess, "alice", "wrong-password"); err == nil {
		t.Fatal("expected AuthenticateSession to fail with a wrong password")
	}
	if sess.Authenticated() {
		t.Fatal("session should remain unauthenticated after a failed login")
	}
}

func TestProcessRejectsMalformedPayload(t *testing.T) {
	c := newTestCoordinator(t)
	cmd := mouseMoveCommand("m3")
	cmd.Payload.Type = "mouse_click" // deliberately mismatched

	result := c.Process(context.Background(), "", session.ClientInfo{}, cmd)

	if result.Response.Status != protocol.StatusError {
		t.Fatalf("status = %v, want error", result.Response.Status)
	}
}

func TestProcessBatchPreservesOrder(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.Auth.AddUser("bob", "hunter22", nil); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	info := session.ClientInfo{RemoteAddr: "127.0.0.1:3"}
	sess := c.Sessions.Create(info)
	if _, err := c.AuthenticateSession(sess, "bob", "hunter22"); err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}

	commands := []protocol.Command{mouseMoveCommand("b1"), mouseMoveCommand("b2"), mouseMoveCommand("b3")}
	results := c.ProcessBatch(context.Background(), sess.ID(), info, commands)

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, want := range []string{"b1", "b2", "b3"} {
		if results[i].Response.CommandID != want {
			t.Fatalf("results[%d].CommandID = %q, want %q", i, results[i].Response.CommandID, want)
		}
		if results[i].Response.Status != protocol.StatusSuccess {
			t.Fatalf("results[%d] status = %v, want success", i, results[i].Response.Status)
		}
	}
}

// The headless backend hands back a bare 8-byte PNG signature rather than
// a decodable image, so the capture path falls into its decode-failure
// fallback and must still report the bytes' real format, not whatever the
// display engine's preferred format happens to be.
func TestCaptureScreenOnHeadlessReportsPNGFormat(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.Auth.AddUser("carol", "swordfish1", nil); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	info := session.ClientInfo{RemoteAddr: "127.0.0.1:4"}
	sess := c.Sessions.Create(info)
	if _, err := c.AuthenticateSession(sess, "carol", "swordfish1"); err != nil {
		t.Fatalf("AuthenticateSession: %v", err)
	}

	cmd := protocol.Command{
		ID:   "cap1",
		Type: protocol.CommandCaptureScreen,
		Payload: protocol.CommandPayload{
			Type: string(protocol.CommandCaptureScreen),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	result := c.Process(context.Background(), sess.ID(), info, cmd)

	if result.Response.Status != protocol.StatusSuccess {
		t.Fatalf("status = %v, want success (error=%v)", result.Response.Status, result.Response.Error)
	}
	if result.Response.Data == nil {
		t.Fatal("response data is nil")
	}
	if result.Response.Data.Format != "png" {
		t.Fatalf("format = %q, want png", result.Response.Data.Format)
	}
	if result.Response.Data.Size != 8 {
		t.Fatalf("size = %d, want 8", result.Response.Data.Size)
	}
	if len(result.BinaryTrailer) != 8 {
		t.Fatalf("binary trailer length = %d, want 8", len(result.BinaryTrailer))
	}
}

func TestMaintenanceExpiresIdleSessions(t *testing.T) {
	cfg := config.Default()
	cfg.AuditPath = filepath.Join(t.TempDir(), "audit.jsonl")
	cfg.SessionTimeoutSeconds = 1

	backend, _ := platform.Select("headless")
	gate := capability.New(backend)
	c, err := New(cfg, gate)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sess := c.Sessions.Create(session.ClientInfo{})
	time.Sleep(1100 * time.Millisecond)

	c.Maintenance(0)

	if c.Sessions.Get(sess.ID()) != nil {
		t.Fatal("expected idle session to be expired by Maintenance")
	}
}
