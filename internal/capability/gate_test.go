package capability

import (
	"errors"
	"testing"

	"github.com/breeze-rmm/control-server/internal/platform"
	"github.com/breeze-rmm/control-server/internal/protocol"
)

type stubBackend struct {
	caps    platform.Capabilities
	called  bool
	capture []byte
}

func (s *stubBackend) Capabilities() platform.Capabilities { return s.caps }
func (s *stubBackend) MouseMove(x, y int64) error           { s.called = true; return nil }
func (s *stubBackend) MouseClick(b protocol.MouseButton, x, y int64) error {
	s.called = true
	return nil
}
func (s *stubBackend) MouseScroll(dx, dy int64) error { s.called = true; return nil }
func (s *stubBackend) KeyPress(key string) error      { s.called = true; return nil }
func (s *stubBackend) KeyRelease(key string) error    { s.called = true; return nil }
func (s *stubBackend) TypeText(text string) error     { s.called = true; return nil }
func (s *stubBackend) CaptureScreen(displayID uint32) ([]byte, error) {
	s.called = true
	return s.capture, nil
}
func (s *stubBackend) GetDisplays() ([]protocol.DisplayInfo, error) {
	s.called = true
	return []protocol.DisplayInfo{{ID: 0, IsPrimary: true}}, nil
}
func (s *stubBackend) GetWindowAt(x, y int64) (*protocol.WindowInfo, error) {
	s.called = true
	return &protocol.WindowInfo{ID: 1}, nil
}
func (s *stubBackend) ListWindows() ([]protocol.WindowInfo, error) {
	s.called = true
	return []protocol.WindowInfo{{ID: 1}}, nil
}
func (s *stubBackend) GetActiveWindow() (*protocol.WindowInfo, error) {
	s.called = true
	return &protocol.WindowInfo{ID: 1}, nil
}

func TestGateDelegatesWhenCapabilityPresent(t *testing.T) {
	backend := &stubBackend{caps: platform.Capabilities{CanControlMouse: true}}
	gate := New(backend)

	if err := gate.MouseMove(1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !backend.called {
		t.Fatal("expected backend to be invoked when capability is present")
	}
}

func TestGateNoOpsWhenCapabilityAbsent(t *testing.T) {
	backend := &stubBackend{caps: platform.Capabilities{CanControlMouse: false}}
	gate := New(backend)

	if err := gate.MouseMove(1, 2); err != nil {
		t.Fatalf("expected typed no-op success, got %v", err)
	}
	if backend.called {
		t.Fatal("backend should not be invoked when capability is absent")
	}
}

func TestGateCaptureScreenEnhancedErrorsWhenUnsupported(t *testing.T) {
	backend := &stubBackend{caps: platform.Capabilities{CanCaptureScreen: false}}
	gate := New(backend)

	_, err := gate.CaptureScreen(0, true)
	if !errors.Is(err, ErrScreenCaptureNotSupported) {
		t.Fatalf("expected ErrScreenCaptureNotSupported, got %v", err)
	}
}

func TestGateCaptureScreenNonEnhancedReturnsEmptyBytes(t *testing.T) {
	backend := &stubBackend{caps: platform.Capabilities{CanCaptureScreen: false}}
	gate := New(backend)

	data, err := gate.CaptureScreen(0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected empty bytes, got %d", len(data))
	}
}

func TestGateListWindowsEmptyWhenUnsupported(t *testing.T) {
	backend := &stubBackend{caps: platform.Capabilities{CanEnumerateWindows: false}}
	gate := New(backend)

	windows, err := gate.ListWindows()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("expected empty window list, got %d", len(windows))
	}
}
