package platform

import (
	"testing"

	"github.com/breeze-rmm/control-server/internal/protocol"
)

func TestTranslateKeyNamedKeysCaseInsensitive(t *testing.T) {
	cases := map[string]string{
		"Enter":  "Return",
		"RETURN": "Return",
		"esc":    "Escape",
		"Space":  "space",
		"F5":     "F5",
		"CMD":    "super",
	}
	for in, want := range cases {
		got, err := TranslateKey(in)
		if err != nil {
			t.Fatalf("TranslateKey(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("TranslateKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTranslateKeySingleCharacter(t *testing.T) {
	got, err := TranslateKey("a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
}

func TestTranslateKeyUnknownMultiChar(t *testing.T) {
	if _, err := TranslateKey("notakey"); err == nil {
		t.Fatal("expected Unknown key error")
	}
}

func TestHeadlessCaptureScreenReturnsPNGSignature(t *testing.T) {
	backend, caps := newHeadless(false)
	if caps.HasGUI {
		t.Fatal("headless capabilities must not report has_gui")
	}

	data, err := backend.CaptureScreen(0)
	if err != nil {
		t.Fatalf("capture screen: %v", err)
	}
	want := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	if len(data) != len(want) {
		t.Fatalf("capture length = %d, want %d", len(data), len(want))
	}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("capture byte %d = %x, want %x", i, data[i], want[i])
		}
	}
}

func TestHeadlessGetDisplaysExactlyOnePrimary(t *testing.T) {
	backend, _ := newHeadless(false)
	displays, err := backend.GetDisplays()
	if err != nil {
		t.Fatalf("get displays: %v", err)
	}
	primaries := 0
	for _, d := range displays {
		if d.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary display, got %d", primaries)
	}
}

func TestHeadlessInputPrimitivesAlwaysSucceed(t *testing.T) {
	backend, _ := newHeadless(true)
	if err := backend.MouseMove(10, 20); err != nil {
		t.Fatalf("mouse move: %v", err)
	}
	if err := backend.MouseClick(protocol.MouseButtonLeft, 10, 20); err != nil {
		t.Fatalf("mouse click: %v", err)
	}
	if err := backend.KeyPress("enter"); err != nil {
		t.Fatalf("key press: %v", err)
	}
	if err := backend.TypeText("hello"); err != nil {
		t.Fatalf("type text: %v", err)
	}
}
