// Package capability wraps a platform.Backend so that an absent capability
// degrades to a typed empty success instead of propagating a backend error,
// giving callers uniform behavior across headless and GUI hosts.
package capability

import (
	"fmt"

	"github.com/breeze-rmm/control-server/internal/platform"
	"github.com/breeze-rmm/control-server/internal/protocol"
)

// ErrScreenCaptureNotSupported is the one path where an absent capability
// is still surfaced as an error: a caller explicitly asking for real pixel
// data on a backend that cannot produce any.
var ErrScreenCaptureNotSupported = fmt.Errorf("Screen capture not supported")

// Gate wraps a Backend and its published Capabilities.
type Gate struct {
	backend platform.Backend
	caps    platform.Capabilities
}

// New wraps backend behind its own published capabilities.
func New(backend platform.Backend) *Gate {
	return &Gate{backend: backend, caps: backend.Capabilities()}
}

// Capabilities returns the wrapped backend's published capability record.
func (g *Gate) Capabilities() platform.Capabilities {
	return g.caps
}

func (g *Gate) MouseMove(x, y int64) error {
	if !g.caps.CanControlMouse {
		return nil
	}
	return g.backend.MouseMove(x, y)
}

func (g *Gate) MouseClick(button protocol.MouseButton, x, y int64) error {
	if !g.caps.CanControlMouse {
		return nil
	}
	return g.backend.MouseClick(button, x, y)
}

func (g *Gate) MouseScroll(dx, dy int64) error {
	if !g.caps.CanControlMouse {
		return nil
	}
	return g.backend.MouseScroll(dx, dy)
}

func (g *Gate) KeyPress(key string) error {
	if !g.caps.CanControlKeyboard {
		return nil
	}
	return g.backend.KeyPress(key)
}

func (g *Gate) KeyRelease(key string) error {
	if !g.caps.CanControlKeyboard {
		return nil
	}
	return g.backend.KeyRelease(key)
}

func (g *Gate) TypeText(text string) error {
	if !g.caps.CanControlKeyboard {
		return nil
	}
	return g.backend.TypeText(text)
}

// CaptureScreen returns empty bytes when capture is unsupported, UNLESS
// enhanced requests real pixels (the one capability error exception).
func (g *Gate) CaptureScreen(displayID uint32, enhanced bool) ([]byte, error) {
	if !g.caps.CanCaptureScreen {
		if enhanced {
			return nil, ErrScreenCaptureNotSupported
		}
		return []byte{}, nil
	}
	return g.backend.CaptureScreen(displayID)
}

func (g *Gate) GetDisplays() ([]protocol.DisplayInfo, error) {
	if !g.caps.CanCaptureScreen {
		return []protocol.DisplayInfo{}, nil
	}
	return g.backend.GetDisplays()
}

func (g *Gate) GetWindowAt(x, y int64) (*protocol.WindowInfo, error) {
	if !g.caps.CanEnumerateWindows {
		return nil, nil
	}
	return g.backend.GetWindowAt(x, y)
}

func (g *Gate) ListWindows() ([]protocol.WindowInfo, error) {
	if !g.caps.CanEnumerateWindows {
		return []protocol.WindowInfo{}, nil
	}
	return g.backend.ListWindows()
}

func (g *Gate) GetActiveWindow() (*protocol.WindowInfo, error) {
	if !g.caps.CanEnumerateWindows {
		return nil, nil
	}
	return g.backend.GetActiveWindow()
}
