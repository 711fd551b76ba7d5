package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestCommandRoundTrip(t *testing.T) {
	x := int64(100)
	y := int64(200)
	original := Command{
		ID:   "m1",
		Type: CommandMouseMove,
		Payload: CommandPayload{
			Type: "mouse_move",
			X:    &x,
			Y:    &y,
		},
		Timestamp: "t",
	}

	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := ParseCommand(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	reencoded, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}

	redecoded, err := ParseCommand(reencoded)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}

	if redecoded.ID != original.ID || redecoded.Type != original.Type {
		t.Fatalf("round trip mismatch: got %+v, want id/type from %+v", redecoded, original)
	}
	if redecoded.Payload.X == nil || *redecoded.Payload.X != x {
		t.Fatalf("round trip lost payload.x: %+v", redecoded.Payload)
	}
}

func TestParseCommandInvalidJSON(t *testing.T) {
	_, err := ParseCommand([]byte("{ invalid json }"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if got := err.Error(); len(got) < len("Invalid JSON") || got[:len("Invalid JSON")] != "Invalid JSON" {
		t.Fatalf("expected error to begin with 'Invalid JSON', got %q", got)
	}
}

func TestCommandValidatePayloadTypeMismatch(t *testing.T) {
	cmd := Command{
		ID:      "x1",
		Type:    CommandMouseMove,
		Payload: CommandPayload{Type: "key_press"},
	}
	if err := cmd.Validate(); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestWriterWriteResponseFramesTrailer(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	data := &ResponseData{Type: "screen_capture", Size: 8, Format: "png"}
	resp := SuccessResponse("c1", data, "t")
	trailer := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

	if err := w.WriteResponse(resp, trailer); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := buf.Bytes()
	nl := bytes.IndexByte(out, '\n')
	if nl < 0 {
		t.Fatal("expected newline after JSON response")
	}

	jsonLine := out[:nl]
	rest := out[nl+1:]
	if !bytes.Equal(rest, trailer) {
		t.Fatalf("trailer mismatch: got %x, want %x", rest, trailer)
	}

	var decoded Response
	if err := json.Unmarshal(jsonLine, &decoded); err != nil {
		t.Fatalf("decode response line: %v", err)
	}
	if decoded.Data == nil || decoded.Data.Size != 8 {
		t.Fatalf("expected data.size=8, got %+v", decoded.Data)
	}
}

func TestReaderReadLineStripsDelimiter(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("{\"id\":\"a\"}\n{\"id\":\"b\"}\n")))

	line1, err := r.ReadLine()
	if err != nil {
		t.Fatalf("read line 1: %v", err)
	}
	if string(line1) != `{"id":"a"}` {
		t.Fatalf("line1 = %q", line1)
	}

	line2, err := r.ReadLine()
	if err != nil {
		t.Fatalf("read line 2: %v", err)
	}
	if string(line2) != `{"id":"b"}` {
		t.Fatalf("line2 = %q", line2)
	}
}
