package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// asFileSystemError returns the first FileSystemError in err's chain, or wraps
// err as an internal error.
func asFileSystemError(err error) *FileSystemError {
	var fe *FileSystemError
	if errors.As(err, &fe) {
		return fe
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	fe := asFileSystemError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", fe.Message))
	if resource, ok := fe.Details["resource"]; ok {
		sb.WriteString(fmt.Sprintf("  Resource: %s\n", resource))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", fe.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Details  map[string]string `json:"details,omitempty"`
	Cause    string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error.
// Suitable for machine consumption and structured logging.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	fe := asFileSystemError(err)
	je := jsonError{
		Code:     fe.Code,
		Message:  fe.Message,
		Category: string(fe.Category),
		Details:  fe.Details,
	}
	if fe.Cause != nil {
		je.Cause = fe.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error for structured logging.
// Returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	var fe *FileSystemError
	if !errors.As(err, &fe) {
		return map[string]any{
			"error": err.Error(),
		}
	}

	result := map[string]any{
		"error_code": fe.Code,
		"message":    fe.Message,
		"category":   string(fe.Category),
	}
	if fe.Cause != nil {
		result["cause"] = fe.Cause.Error()
	}
	for k, v := range fe.Details {
		result["detail_"+k] = v
	}

	return result
}
