package validator

import "testing"

func TestMouseCoordinatesRejectsNegative(t *testing.T) {
	if err := MouseCoordinates(-1, 0); err == nil {
		t.Fatal("expected rejection for x=-1")
	}
	if err := MouseCoordinates(0, -1); err == nil {
		t.Fatal("expected rejection for y=-1")
	}
	if err := MouseCoordinates(100, 200); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestEnhancedMouseCoordinatesAppliesBaselineFirst(t *testing.T) {
	err := EnhancedMouseCoordinates(-1, -1)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if got := err.Error(); got != "negative coordinates: mouse coordinates must be non-negative" {
		t.Fatalf("expected baseline negative-coordinate message, got %q", got)
	}
}

func TestEnhancedMouseCoordinatesRejectsExtreme(t *testing.T) {
	if err := EnhancedMouseCoordinates(20000, 5); err == nil {
		t.Fatal("expected rejection for |x| > 10000")
	}
	if err := EnhancedMouseCoordinates(5, 5); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
}

func TestKeyRejectsEmpty(t *testing.T) {
	if err := Key(""); err == nil {
		t.Fatal("expected rejection for empty key")
	}
}

func TestKeyRejectsTooLong(t *testing.T) {
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	if err := Key(string(long)); err == nil {
		t.Fatal("expected rejection for 101-char key")
	}
}

func TestKeyAcceptsMaxLength(t *testing.T) {
	ok := make([]byte, 100)
	for i := range ok {
		ok[i] = 'a'
	}
	if err := Key(string(ok)); err != nil {
		t.Fatalf("expected acceptance for 100-char key, got %v", err)
	}
}

func TestKeyRejectsNUL(t *testing.T) {
	if err := Key("a\x00b"); err == nil {
		t.Fatal("expected rejection for key containing NUL")
	}
}

func TestTextBoundary(t *testing.T) {
	ok := make([]byte, 1000)
	for i := range ok {
		ok[i] = 'x'
	}
	if err := Text(string(ok)); err != nil {
		t.Fatalf("expected 1000-char text to succeed, got %v", err)
	}

	tooLong := append(ok, 'x')
	if err := Text(string(tooLong)); err == nil {
		t.Fatal("expected 1001-char text to be rejected")
	}
}
