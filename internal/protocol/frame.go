// Package protocol implements the fleetwatch wire format:
//
//	<COMMAND>!<base64(JSON payload)>
//
// A frame is at most MaxFrameSize bytes. The sender writes one frame and
// half-closes the connection; the server answers with plain UTF-8 text.
package protocol

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameSize is the hard ceiling on an encoded frame, delimiter included.
const MaxFrameSize = 1024

// Delimiter separates the command token from the payload.
const Delimiter = '!'

// Frame is one decoded request.
type Frame struct {
	Command Command
	Payload Payload
}

// Encode builds a frame. A nil payload encodes as an empty body, which is how
// SETUP and EXIT are sent.
func Encode(cmd Command, payload any) ([]byte, error) {
	if _, ok := commandTokens[cmd]; !ok || cmd == Error {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCommand, cmd)
	}

	var body string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", cmd, err)
		}
		body = base64.StdEncoding.EncodeToString(raw)
	}

	frame := make([]byte, 0, len(cmd.String())+1+len(body))
	frame = append(frame, cmd.String()...)
	frame = append(frame, Delimiter)
	frame = append(frame, body...)

	if len(frame) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s frame is %d bytes (max %d)", ErrFrameTooLarge, cmd, len(frame), MaxFrameSize)
	}
	return frame, nil
}

// Decode parses a frame. Trailing NUL padding and whitespace are ignored.
// For SETUP and EXIT an undecodable body is tolerated and yields an empty
// payload; for every other command it is an error.
func Decode(data []byte) (Frame, error) {
	data = bytes.TrimRight(data, "\x00 \r\n\t")

	if len(data) > MaxFrameSize {
		return Frame{Command: Error}, fmt.Errorf("%w: %d bytes (max %d)", ErrFrameTooLarge, len(data), MaxFrameSize)
	}

	idx := bytes.IndexByte(data, Delimiter)
	if idx < 0 {
		return Frame{Command: Error}, ErrMissingDelimiter
	}

	cmd := ParseCommand(string(data[:idx]))
	if cmd == Unrecognized || cmd == Error {
		return Frame{Command: Error}, fmt.Errorf("%w: %q", ErrUnknownCommand, data[:idx])
	}

	payload, err := decodeBody(data[idx+1:])
	if err != nil {
		if !cmd.HasPayload() {
			return Frame{Command: cmd, Payload: Payload{}}, nil
		}
		return Frame{Command: Error}, fmt.Errorf("decode %s payload: %w", cmd, err)
	}
	return Frame{Command: cmd, Payload: payload}, nil
}

func decodeBody(body []byte) (Payload, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(body)))
	n, err := base64.StdEncoding.Decode(raw, body)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	raw = raw[:n]

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrTypeMismatch)
	}
	return p, nil
}

// ReadFrame reads one frame from r, stopping at EOF. It never buffers more
// than MaxFrameSize+1 bytes, so an oversized frame is detected without
// draining the sender. On a read error the bytes received so far are
// returned with it.
func ReadFrame(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFrameSize+1))
	if err != nil {
		return data, err
	}
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFrameTooLarge, MaxFrameSize)
	}
	return data, nil
}
