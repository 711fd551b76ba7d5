//go:build !linux

package platform

import (
	"errors"

	"github.com/breeze-rmm/control-server/internal/protocol"
)

// ErrNotSupported is returned by every nativeBackend primitive on platforms
// this build was not compiled for. The core's contract with the raw
// native-input and screen-grab backends is out of scope (spec §1); only
// Linux gets a real shell-out implementation here, matching the way the
// teacher tree gates capture behind per-OS build tags and falls back to an
// explicit unsupported error rather than guessing at an implementation.
var ErrNotSupported = errors.New("native backend not supported on this platform build")

type nativeBackend struct{}

func newNativeBackend() Backend {
	return &nativeBackend{}
}

func (b *nativeBackend) Capabilities() Capabilities {
	return nativeCapabilities()
}

func (b *nativeBackend) MouseMove(x, y int64) error                  { return ErrNotSupported }
func (b *nativeBackend) MouseClick(button protocol.MouseButton, x, y int64) error {
	return ErrNotSupported
}
func (b *nativeBackend) MouseScroll(dx, dy int64) error               { return ErrNotSupported }
func (b *nativeBackend) KeyPress(key string) error                    { return ErrNotSupported }
func (b *nativeBackend) KeyRelease(key string) error                  { return ErrNotSupported }
func (b *nativeBackend) TypeText(text string) error                   { return ErrNotSupported }
func (b *nativeBackend) CaptureScreen(displayID uint32) ([]byte, error) {
	return nil, ErrNotSupported
}
func (b *nativeBackend) GetDisplays() ([]protocol.DisplayInfo, error) {
	return nil, ErrNotSupported
}
func (b *nativeBackend) GetWindowAt(x, y int64) (*protocol.WindowInfo, error) {
	return nil, ErrNotSupported
}
func (b *nativeBackend) ListWindows() ([]protocol.WindowInfo, error) {
	return nil, ErrNotSupported
}
func (b *nativeBackend) GetActiveWindow() (*protocol.WindowInfo, error) {
	return nil, ErrNotSupported
}
