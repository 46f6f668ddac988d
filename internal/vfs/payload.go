package vfs

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// EndMarker is the literal payload that ends a stream.
const EndMarker = "end"

// StreamPayload is one event of a streaming read: a StreamChunk, StreamEnd or
// StreamError.
type StreamPayload interface {
	isStreamPayload()
}

// StreamChunk carries the next bytes of the resource.
type StreamChunk struct {
	Data []byte
}

// StreamEnd marks successful completion.
type StreamEnd struct{}

// StreamError carries an error value as received. It may or may not be a
// well-formed wire error.
type StreamError struct {
	Raw json.RawMessage
}

func (StreamChunk) isStreamPayload() {}
func (StreamEnd) isStreamPayload()   {}
func (StreamError) isStreamPayload() {}

// DecodeStreamPayload classifies a raw payload. A buffer envelope is a chunk,
// the end marker is the end, and any other value is an error.
func DecodeStreamPayload(raw json.RawMessage) StreamPayload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return StreamError{Raw: json.RawMessage(`""`)}
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil && s == EndMarker {
			return StreamEnd{}
		}
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err == nil {
			if _, ok := probe["buffer"]; ok && len(probe) == 1 {
				var b Buffer
				if err := json.Unmarshal(trimmed, &b); err == nil {
					return StreamChunk{Data: b.Bytes}
				}
			}
		}
	}
	return StreamError{Raw: append(json.RawMessage(nil), trimmed...)}
}

// EncodeStreamPayload produces the wire form of p.
func EncodeStreamPayload(p StreamPayload) (json.RawMessage, error) {
	switch v := p.(type) {
	case StreamChunk:
		return json.Marshal(Wrap(v.Data))
	case StreamEnd:
		return json.Marshal(EndMarker)
	case StreamError:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("unknown stream payload %T", p)
	}
}
