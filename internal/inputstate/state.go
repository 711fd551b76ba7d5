// Package inputstate holds the shared mutable records consulted and
// updated on every command: the last observed input state and the running
// operation metrics.
package inputstate

import (
	"sync"
	"time"
)

// Position is a last-known mouse location.
type Position struct {
	X, Y int64
}

// State tracks last mouse position, currently-held keys/buttons, and a
// running command counter. An entry exists in PressedKeys/PressedButtons
// iff the last observed event for that key/button was a press/down.
type State struct {
	mu sync.RWMutex

	lastMousePosition *Position
	pressedKeys       map[string]time.Time
	pressedButtons    map[string]time.Time
	totalCommands     uint64
	lastCommandTime    *time.Time
}

// New returns an empty input state.
func New() *State {
	return &State{
		pressedKeys:    make(map[string]time.Time),
		pressedButtons: make(map[string]time.Time),
	}
}

// RecordMouseMove updates the last-known mouse position.
func (s *State) RecordMouseMove(x, y int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMousePosition = &Position{X: x, Y: y}
}

// RecordKeyPress marks a key as currently held, since now.
func (s *State) RecordKeyPress(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressedKeys[key] = time.Now()
}

// RecordKeyRelease clears a key's held state.
func (s *State) RecordKeyRelease(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pressedKeys, key)
}

// RecordButtonDown marks a mouse button as currently held.
func (s *State) RecordButtonDown(button string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pressedButtons[button] = time.Now()
}

// RecordButtonUp clears a mouse button's held state.
func (s *State) RecordButtonUp(button string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pressedButtons, button)
}

// RecordCommand increments the total-commands counter and stamps the last
// command time.
func (s *State) RecordCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCommands++
	now := time.Now()
	s.lastCommandTime = &now
}

// Snapshot is a point-in-time copy of State safe to hand to callers
// without holding the lock.
type Snapshot struct {
	LastMousePosition     *Position
	PressedKeys           map[string]time.Time
	PressedButtons        map[string]time.Time
	TotalCommandsExecuted uint64
	LastCommandTime       *time.Time
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]time.Time, len(s.pressedKeys))
	for k, v := range s.pressedKeys {
		keys[k] = v
	}
	buttons := make(map[string]time.Time, len(s.pressedButtons))
	for k, v := range s.pressedButtons {
		buttons[k] = v
	}

	return Snapshot{
		LastMousePosition:     s.lastMousePosition,
		PressedKeys:           keys,
		PressedButtons:        buttons,
		TotalCommandsExecuted: s.totalCommands,
		LastCommandTime:       s.lastCommandTime,
	}
}
