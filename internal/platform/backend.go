// Package platform implements the PlatformBackend contract: synchronous
// input/display primitives behind two concrete variants (Native, Headless)
// selected by environment inspection.
package platform

import "github.com/breeze-rmm/control-server/internal/protocol"

// Backend is the synchronous primitive set every platform variant
// implements. Each primitive either succeeds or returns a typed backend
// error; callers (the CapabilityGate) decide whether an error becomes a
// no-op based on the published Capabilities.
type Backend interface {
	MouseMove(x, y int64) error
	MouseClick(button protocol.MouseButton, x, y int64) error
	MouseScroll(dx, dy int64) error

	KeyPress(key string) error
	KeyRelease(key string) error
	TypeText(text string) error

	CaptureScreen(displayID uint32) ([]byte, error)
	GetDisplays() ([]protocol.DisplayInfo, error)

	GetWindowAt(x, y int64) (*protocol.WindowInfo, error)
	ListWindows() ([]protocol.WindowInfo, error)
	GetActiveWindow() (*protocol.WindowInfo, error)

	// Capabilities reports what this backend instance actually supports;
	// consulted by the CapabilityGate, never by the backend itself.
	Capabilities() Capabilities
}

// Capabilities describes which primitives are meaningful on the current
// backend. has_gui implies every flag is true; the absence of a GUI forces
// supports_real_input false while the rest are observed from the backend.
type Capabilities struct {
	HasGUI              bool `json:"has_gui"`
	CanControlMouse      bool `json:"can_control_mouse"`
	CanControlKeyboard   bool `json:"can_control_keyboard"`
	CanCaptureScreen     bool `json:"can_capture_screen"`
	CanEnumerateWindows  bool `json:"can_enumerate_windows"`
	SupportsRealInput    bool `json:"supports_real_input"`
}
