package platform

import "github.com/breeze-rmm/control-server/internal/protocol"

// pngSignature is the fixed byte sequence the headless backend returns for
// every capture_screen call.
var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// headless is the deterministic mock backend used in environments without a
// usable GUI display. Every input primitive succeeds without touching the
// host; enumeration and capture primitives return fixed, documented values.
type headless struct {
	logActions bool
}

func newHeadless(silent bool) (Backend, Capabilities) {
	h := &headless{logActions: !silent}
	return h, h.Capabilities()
}

func (h *headless) logAction(action string) {
	if h.logActions {
		log.Info("headless backend action", "action", action)
	}
}

func (h *headless) MouseMove(x, y int64) error {
	h.logAction("mouse move")
	return nil
}

func (h *headless) MouseClick(button protocol.MouseButton, x, y int64) error {
	h.logAction("mouse click")
	return nil
}

func (h *headless) MouseScroll(dx, dy int64) error {
	h.logAction("mouse scroll")
	return nil
}

func (h *headless) KeyPress(key string) error {
	h.logAction("key press")
	return nil
}

func (h *headless) KeyRelease(key string) error {
	h.logAction("key release")
	return nil
}

func (h *headless) TypeText(text string) error {
	h.logAction("type text")
	return nil
}

func (h *headless) CaptureScreen(displayID uint32) ([]byte, error) {
	h.logAction("capture screen")
	out := make([]byte, len(pngSignature))
	copy(out, pngSignature)
	return out, nil
}

func (h *headless) GetDisplays() ([]protocol.DisplayInfo, error) {
	h.logAction("get displays")
	return []protocol.DisplayInfo{
		{ID: 0, Name: "Headless Display", Width: 1920, Height: 1080, X: 0, Y: 0, IsPrimary: true},
	}, nil
}

func (h *headless) GetWindowAt(x, y int64) (*protocol.WindowInfo, error) {
	h.logAction("get window at position")
	return &protocol.WindowInfo{
		ID: 12345, Title: "Headless Window",
		X: int32(x), Y: int32(y), Width: 800, Height: 600,
		ProcessName: "headless",
	}, nil
}

func (h *headless) ListWindows() ([]protocol.WindowInfo, error) {
	h.logAction("list windows")
	return []protocol.WindowInfo{
		{ID: 1, Title: "Terminal", X: 0, Y: 0, Width: 800, Height: 600, ProcessName: "terminal"},
		{ID: 2, Title: "Editor", X: 800, Y: 0, Width: 1120, Height: 1080, ProcessName: "editor"},
	}, nil
}

func (h *headless) GetActiveWindow() (*protocol.WindowInfo, error) {
	h.logAction("get active window")
	return &protocol.WindowInfo{
		ID: 1, Title: "Active Terminal",
		X: 0, Y: 0, Width: 800, Height: 600, ProcessName: "terminal",
	}, nil
}

func (h *headless) Capabilities() Capabilities {
	return Capabilities{
		HasGUI:              false,
		CanControlMouse:     false,
		CanControlKeyboard:  false,
		CanCaptureScreen:    true,
		CanEnumerateWindows: false,
		SupportsRealInput:   false,
	}
}
