// Package protocol defines the command/response schema exchanged with
// clients and the newline-delimited JSON framing used on the wire.
package protocol

import (
	"encoding/json"
	"fmt"
)

// CommandType tags the kind of operation a Command carries.
type CommandType string

const (
	CommandMouseMove     CommandType = "mouse_move"
	CommandMouseClick    CommandType = "mouse_click"
	CommandMouseScroll   CommandType = "mouse_scroll"
	CommandKeyPress      CommandType = "key_press"
	CommandKeyRelease    CommandType = "key_release"
	CommandTypeText      CommandType = "type_text"
	CommandCaptureScreen CommandType = "capture_screen"
	CommandGetDisplays   CommandType = "get_displays"
	CommandGetWindowInfo CommandType = "get_window_info"
	CommandListWindows   CommandType = "list_windows"
)

// MouseButton enumerates the buttons a mouse_click payload may name.
type MouseButton string

const (
	MouseButtonLeft   MouseButton = "Left"
	MouseButtonRight  MouseButton = "Right"
	MouseButtonMiddle MouseButton = "Middle"
)

// Command is one client→server request line.
type Command struct {
	ID        string          `json:"id"`
	Type      CommandType     `json:"type"`
	Payload   CommandPayload  `json:"payload"`
	Timestamp string          `json:"timestamp"`
	Raw       json.RawMessage `json:"-"`
}

// CommandPayload is the tagged-union body of a Command. Exactly one of the
// pointer fields matching Type is expected to be populated; Unmarshal fills
// it based on the payload's own "type" tag.
type CommandPayload struct {
	Type string `json:"type"`

	X *int64 `json:"x,omitempty"`
	Y *int64 `json:"y,omitempty"`

	Button MouseButton `json:"button,omitempty"`

	DX *int64 `json:"dx,omitempty"`
	DY *int64 `json:"dy,omitempty"`

	Key string `json:"key,omitempty"`

	Text string `json:"text,omitempty"`

	DisplayID *uint32 `json:"display_id,omitempty"`
}

// UnmarshalJSON captures the raw line alongside structured decoding so the
// codec can surface precise "Invalid JSON" errors and so Raw is available
// for round-trip tests.
func (c *Command) UnmarshalJSON(data []byte) error {
	type alias Command
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = Command(a)
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// Validate enforces the payload-matches-type invariant only. Coordinate,
// key and text rules, including capability-aware enhanced bounds, live in
// package validator.
func (c *Command) Validate() error {
	if string(c.Type) != c.Payload.Type {
		return fmt.Errorf("payload type %q does not match command type %q", c.Payload.Type, c.Type)
	}
	return nil
}

// ResponseStatus is "success" or "error".
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

// Response is one server→client response line.
type Response struct {
	CommandID string         `json:"command_id"`
	Status    ResponseStatus `json:"status"`
	Error     *string        `json:"error"`
	Data      *ResponseData  `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// ResponseData is the tagged-union body of a successful Response.
type ResponseData struct {
	Type string `json:"type"`

	// screen_capture
	Size   int    `json:"size,omitempty"`
	Format string `json:"format,omitempty"`

	// display_info
	Displays []DisplayInfo `json:"displays,omitempty"`

	// window_info
	Windows []WindowInfo `json:"windows,omitempty"`
}

// DisplayInfo describes one enumerated display.
type DisplayInfo struct {
	ID        uint32 `json:"id"`
	Name      string `json:"name"`
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	X         int32  `json:"x"`
	Y         int32  `json:"y"`
	IsPrimary bool   `json:"is_primary"`
}

// WindowInfo describes one enumerated window.
type WindowInfo struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	X           int32  `json:"x"`
	Y           int32  `json:"y"`
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	ProcessName string `json:"process_name"`
}

// ErrorResponse builds an error Response for commandID with the given
// message, no data payload.
func ErrorResponse(commandID, errMsg, timestamp string) Response {
	msg := errMsg
	return Response{
		CommandID: commandID,
		Status:    StatusError,
		Error:     &msg,
		Timestamp: timestamp,
	}
}

// SuccessResponse builds a success Response, optionally carrying data.
func SuccessResponse(commandID string, data *ResponseData, timestamp string) Response {
	return Response{
		CommandID: commandID,
		Status:    StatusSuccess,
		Data:      data,
		Timestamp: timestamp,
	}
}
