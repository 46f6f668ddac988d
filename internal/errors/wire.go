package errors

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// WireError is the form a FileSystemError takes when it crosses a channel.
// It travels as the data member of a JSON-RPC error object.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToWire converts err to its wire form. Errors outside the taxonomy are sent
// as internal errors; a cancelled context becomes a cancellation.
func ToWire(err error) WireError {
	if err == nil {
		return WireError{}
	}
	if errors.Is(err, context.Canceled) {
		return WireError{Code: ErrCodeCanceled, Message: "canceled"}
	}
	fe := asFileSystemError(err)
	return WireError{Code: fe.Code, Message: fe.Message}
}

// FromWire rebuilds the FileSystemError a peer sent. A missing code yields an
// unknown error.
func FromWire(w WireError) *FileSystemError {
	if w.Code == "" {
		return Unknown(w.Message)
	}
	return New(w.Code, w.Message, nil)
}

// Coerce normalises an error value received from a remote stream. A
// well-formed wire error keeps its code; a bare string or any other JSON
// value becomes ERR_599_UNKNOWN carrying the raw text.
func Coerce(raw json.RawMessage) *FileSystemError {
	var w WireError
	if err := json.Unmarshal(raw, &w); err == nil && w.Code != "" && strings.HasPrefix(w.Code, "ERR_") {
		return FromWire(w)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return Unknown(text)
	}
	return Unknown(string(raw))
}
