package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// maxLineSize bounds a single JSON request line to guard against a
// pathological client streaming an unbounded line.
const maxLineSize = 1 << 20

// Reader reads newline-delimited Command lines off a connection.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for line-oriented Command reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the next newline-terminated line (without the
// delimiter), or io.EOF when the peer closes the connection.
func (r *Reader) ReadLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		if len(line) > 0 && err == io.EOF {
			return line, nil
		}
		return nil, err
	}
	if len(line) > maxLineSize {
		return nil, fmt.Errorf("line exceeds maximum size of %d bytes", maxLineSize)
	}
	return line[:len(line)-1], nil
}

// ReadExact reads exactly n raw bytes (the binary trailer following a
// screen_capture response is never sent by the server to itself, but
// clients use the same primitive; exposed here for symmetry and tests).
func (r *Reader) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ParseCommand decodes one line into a Command, returning a descriptive
// "Invalid JSON: ..." error on failure per the framing contract.
func ParseCommand(line []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(line, &cmd); err != nil {
		return Command{}, fmt.Errorf("Invalid JSON: %w", err)
	}
	return cmd, nil
}

// Writer serializes Responses (plus any binary trailer) onto a connection
// under a single mutex so that writes from concurrent goroutines — the
// reader's dispatch path and any out-of-band pusher — never interleave.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w for serialized Response writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteResponse marshals resp, writes it followed by a newline, and then
// writes trailer verbatim if non-nil (the raw image bytes for a
// screen_capture success). The whole sequence is atomic with respect to
// other WriteResponse calls on the same Writer.
func (w *Writer) WriteResponse(resp Response, trailer []byte) error {
	encoded, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(encoded); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte{'\n'}); err != nil {
		return err
	}
	if len(trailer) > 0 {
		if _, err := w.w.Write(trailer); err != nil {
			return err
		}
	}
	return nil
}
