package vfs

import (
	"encoding/json"
	"fmt"
)

// Buffer is the envelope binary data travels in. Its JSON form is
// {"buffer": "<base64>"}.
type Buffer struct {
	Bytes []byte `json:"buffer"`
}

// Wrap puts b in an envelope.
func Wrap(b []byte) Buffer {
	if b == nil {
		b = []byte{}
	}
	return Buffer{Bytes: b}
}

// ReadReply is the reply of a positional read: the [buffer, bytesRead] tuple.
type ReadReply struct {
	Data      Buffer
	BytesRead int
}

// MarshalJSON encodes the reply tuple.
func (r ReadReply) MarshalJSON() ([]byte, error) {
	return marshalTuple(r.Data, r.BytesRead)
}

// UnmarshalJSON decodes the reply tuple.
func (r *ReadReply) UnmarshalJSON(data []byte) error {
	if err := unmarshalTuple(data, &r.Data, &r.BytesRead); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	return nil
}

func marshalTuple(items ...any) ([]byte, error) {
	return json.Marshal(items)
}

func unmarshalTuple(data []byte, targets ...any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != len(targets) {
		return fmt.Errorf("expected %d elements, got %d", len(targets), len(raw))
	}
	for i, target := range targets {
		if err := json.Unmarshal(raw[i], target); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}
