package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// MaxFramePayload is the maximum allowed body size for a single frame.
// Preview images and dump notifications fit comfortably; the limit protects
// against frames that could exhaust memory.
const MaxFramePayload = 16 << 20 // 16 MiB

// frameHeaderLen is the size of the big-endian length prefix.
const frameHeaderLen = 4

// DecodeError describes a frame that could not be decoded into a known
// Message. The session logs it and drops the frame; the connection survives.
type DecodeError struct {
	Kind   Kind
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("decode %q: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("decode: %s", e.Reason)
}

// EncodeFrame serializes a message into one length-prefixed frame.
// Encoding is deterministic: the same logical message always produces the
// same bytes.
func EncodeFrame(m *Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxFramePayload {
		return nil, &DecodeError{Kind: m.Kind, Reason: "frame body exceeds maximum payload size"}
	}

	frame := make([]byte, frameHeaderLen+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[frameHeaderLen:], body)
	return frame, nil
}

// DecodeFrame parses one complete length-prefixed frame into a Message.
// A malformed envelope or an unknown kind tag yields a *DecodeError.
func DecodeFrame(frame []byte) (*Message, error) {
	if len(frame) < frameHeaderLen {
		return nil, &DecodeError{Reason: "frame shorter than length prefix"}
	}

	bodyLen := binary.BigEndian.Uint32(frame)
	if bodyLen > MaxFramePayload {
		return nil, &DecodeError{Reason: "frame body exceeds maximum payload size"}
	}
	if int(bodyLen) != len(frame)-frameHeaderLen {
		return nil, &DecodeError{Reason: fmt.Sprintf("length prefix %d does not match body of %d bytes", bodyLen, len(frame)-frameHeaderLen)}
	}

	var msg Message
	if err := json.Unmarshal(frame[frameHeaderLen:], &msg); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}

	if msg.Version < 1 {
		return nil, &DecodeError{Kind: msg.Kind, Reason: "missing protocol version"}
	}
	if msg.Kind == "" {
		return nil, &DecodeError{Reason: "missing kind tag"}
	}
	if !KnownKind(msg.Kind) {
		return nil, &DecodeError{Kind: msg.Kind, Reason: "unknown message kind"}
	}
	if msg.ID == "" {
		return nil, &DecodeError{Kind: msg.Kind, Reason: "missing message id"}
	}

	return &msg, nil
}
