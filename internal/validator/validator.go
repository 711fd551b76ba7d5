// Package validator holds the pure validation functions enforced before a
// command reaches the platform backend: coordinate bounds, key-name shape,
// and text length.
package validator

import (
	"fmt"
	"strings"
)

const (
	maxKeyLength    = 100
	maxTextLength   = 1000
	enhancedBound   = 10000
)

// MouseCoordinates rejects negative coordinates, the baseline rule applied
// on every path regardless of capability.
func MouseCoordinates(x, y int64) error {
	if x < 0 || y < 0 {
		return fmt.Errorf("negative coordinates: mouse coordinates must be non-negative")
	}
	return nil
}

// EnhancedMouseCoordinates applies the baseline rule first, then the
// capability-aware extreme-coordinate bound used on backends that report
// can_control_mouse. The baseline (stricter for negative values) always
// runs first per the design notes' open-question resolution.
func EnhancedMouseCoordinates(x, y int64) error {
	if err := MouseCoordinates(x, y); err != nil {
		return err
	}
	if x > enhancedBound || x < -enhancedBound || y > enhancedBound || y < -enhancedBound {
		return fmt.Errorf("coordinates out of range: |x| and |y| must be at most %d", enhancedBound)
	}
	return nil
}

// Key validates a key name for key_press/key_release: non-empty, no NUL
// byte, at most maxKeyLength characters.
func Key(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key too long: maximum length is %d", maxKeyLength)
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("key cannot contain NUL bytes")
	}
	return nil
}

// Text validates the text argument of type_text: at most maxTextLength
// characters.
func Text(text string) error {
	if len(text) > maxTextLength {
		return fmt.Errorf("text input too long: maximum length is %d", maxTextLength)
	}
	return nil
}
