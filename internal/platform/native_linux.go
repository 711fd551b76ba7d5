//go:build linux

package platform

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/breeze-rmm/control-server/internal/protocol"
)

// nativeBackend drives real input and capture on Linux by shelling out to
// xdotool, xrandr, wmctrl and ImageMagick's import, mirroring the
// subprocess-per-primitive style used elsewhere in this tree for
// platform-specific work.
type nativeBackend struct{}

func newNativeBackend() Backend {
	return &nativeBackend{}
}

func (b *nativeBackend) Capabilities() Capabilities {
	return nativeCapabilities()
}

func (b *nativeBackend) MouseMove(x, y int64) error {
	return exec.Command("xdotool", "mousemove", strconv.FormatInt(x, 10), strconv.FormatInt(y, 10)).Run()
}

func (b *nativeBackend) MouseClick(button protocol.MouseButton, x, y int64) error {
	if err := b.MouseMove(x, y); err != nil {
		return err
	}
	return exec.Command("xdotool", "click", xdotoolButton(button)).Run()
}

func (b *nativeBackend) MouseScroll(dx, dy int64) error {
	btn, amount := "4", dy
	if dy < 0 {
		btn, amount = "5", -dy
	}
	for i := int64(0); i < amount; i++ {
		if err := exec.Command("xdotool", "click", btn).Run(); err != nil {
			return err
		}
	}
	if dx != 0 {
		hbtn, hamount := "7", dx
		if dx < 0 {
			hbtn, hamount = "6", -dx
		}
		for i := int64(0); i < hamount; i++ {
			if err := exec.Command("xdotool", "click", hbtn).Run(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *nativeBackend) KeyPress(key string) error {
	native, err := TranslateKey(key)
	if err != nil {
		return err
	}
	return exec.Command("xdotool", "key", native).Run()
}

func (b *nativeBackend) KeyRelease(key string) error {
	native, err := TranslateKey(key)
	if err != nil {
		return err
	}
	return exec.Command("xdotool", "keyup", native).Run()
}

func (b *nativeBackend) TypeText(text string) error {
	return exec.Command("xdotool", "type", "--", text).Run()
}

func (b *nativeBackend) CaptureScreen(displayID uint32) ([]byte, error) {
	cmd := exec.Command("import", "-window", "root", "-display", fmt.Sprintf(":0.%d", displayID), "png:-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return out.Bytes(), nil
}

var xrandrLineRe = regexp.MustCompile(`^(\S+) connected( primary)? (\d+)x(\d+)\+(\d+)\+(\d+)`)

func (b *nativeBackend) GetDisplays() ([]protocol.DisplayInfo, error) {
	out, err := exec.Command("xrandr", "--query").Output()
	if err != nil {
		return nil, fmt.Errorf("get displays: %w", err)
	}

	var displays []protocol.DisplayInfo
	id := uint32(0)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := xrandrLineRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		width, _ := strconv.ParseUint(m[3], 10, 32)
		height, _ := strconv.ParseUint(m[4], 10, 32)
		x, _ := strconv.ParseInt(m[5], 10, 32)
		y, _ := strconv.ParseInt(m[6], 10, 32)
		displays = append(displays, protocol.DisplayInfo{
			ID:        id,
			Name:      m[1],
			Width:     uint32(width),
			Height:    uint32(height),
			X:         int32(x),
			Y:         int32(y),
			IsPrimary: m[2] != "",
		})
		id++
	}
	return displays, nil
}

// GetWindowAt resolves the topmost window whose bounding box contains
// (x, y) by reading wmctrl's geometry listing, the same tool ListWindows
// parses, rather than xdotool (which has no arbitrary-point query).
func (b *nativeBackend) GetWindowAt(x, y int64) (*protocol.WindowInfo, error) {
	out, err := exec.Command("wmctrl", "-l", "-G").Output()
	if err != nil {
		return nil, fmt.Errorf("get window at position: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 8 {
			continue
		}
		wx, errX := strconv.ParseInt(fields[2], 10, 64)
		wy, errY := strconv.ParseInt(fields[3], 10, 64)
		width, errW := strconv.ParseInt(fields[4], 10, 64)
		height, errH := strconv.ParseInt(fields[5], 10, 64)
		if errX != nil || errY != nil || errW != nil || errH != nil {
			continue
		}
		if x < wx || y < wy || x >= wx+width || y >= wy+height {
			continue
		}

		idHex := strings.TrimPrefix(fields[0], "0x")
		id, _ := strconv.ParseUint(idHex, 16, 64)
		return &protocol.WindowInfo{ID: id, Title: strings.Join(fields[7:], " ")}, nil
	}
	return nil, nil
}

func (b *nativeBackend) ListWindows() ([]protocol.WindowInfo, error) {
	out, err := exec.Command("wmctrl", "-l").Output()
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	var windows []protocol.WindowInfo
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), " ", 4)
		if len(fields) < 4 {
			continue
		}
		idHex := strings.TrimPrefix(fields[0], "0x")
		id, _ := strconv.ParseUint(idHex, 16, 64)
		windows = append(windows, protocol.WindowInfo{
			ID:    id,
			Title: strings.TrimSpace(fields[3]),
		})
	}
	return windows, nil
}

func (b *nativeBackend) GetActiveWindow() (*protocol.WindowInfo, error) {
	id, err := exec.Command("xdotool", "getactivewindow").Output()
	if err != nil {
		return nil, fmt.Errorf("get active window: %w", err)
	}
	return windowInfoByID(strings.TrimSpace(string(id)))
}

func windowInfoByID(id string) (*protocol.WindowInfo, error) {
	name, err := exec.Command("xdotool", "getwindowname", id).Output()
	if err != nil {
		return nil, fmt.Errorf("get window name: %w", err)
	}
	idNum, _ := strconv.ParseUint(id, 10, 64)
	return &protocol.WindowInfo{
		ID:    idNum,
		Title: strings.TrimSpace(string(name)),
	}, nil
}

func xdotoolButton(button protocol.MouseButton) string {
	switch button {
	case protocol.MouseButtonRight:
		return "3"
	case protocol.MouseButtonMiddle:
		return "2"
	default:
		return "1"
	}
}
