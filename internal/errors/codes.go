// Package errors provides the structured error taxonomy of remotefs.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: File system errors reported by a provider
//   - 3XX: Transport errors (channel unavailable, protocol violations)
//   - 4XX: Caller errors (invalid input, cancellation)
//   - 5XX: Internal and unknown errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryFileSystem indicates errors raised by a file system provider.
	CategoryFileSystem Category = "FILESYSTEM"
	// CategoryTransport indicates the channel to the provider failed.
	CategoryTransport Category = "TRANSPORT"
	// CategoryCaller indicates invalid input or a cancelled request.
	CategoryCaller Category = "CALLER"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_102_CONFIG_NOT_FOUND"

	// File system errors (200-299)
	ErrCodeFileExists        = "ERR_201_FILE_EXISTS"
	ErrCodeFileNotFound      = "ERR_202_FILE_NOT_FOUND"
	ErrCodeFileNotADirectory = "ERR_203_FILE_NOT_A_DIRECTORY"
	ErrCodeFileIsADirectory  = "ERR_204_FILE_IS_A_DIRECTORY"
	ErrCodeFileTooLarge      = "ERR_205_FILE_TOO_LARGE"
	ErrCodeFileWriteLocked   = "ERR_206_FILE_WRITE_LOCKED"
	ErrCodeNoPermissions     = "ERR_207_NO_PERMISSIONS"
	ErrCodeBadFileDescriptor = "ERR_208_BAD_DESCRIPTOR"

	// Transport errors (300-399)
	ErrCodeUnavailable = "ERR_301_UNAVAILABLE"
	ErrCodeProtocol    = "ERR_302_PROTOCOL"

	// Caller errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeCanceled     = "ERR_499_CANCELED"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
	ErrCodeUnknown  = "ERR_599_UNKNOWN"
)

// knownCodes lists every code this package defines. Codes received from a
// peer that are not listed here are preserved verbatim but categorised as
// internal.
var knownCodes = map[string]struct{}{
	ErrCodeConfigInvalid:     {},
	ErrCodeConfigNotFound:    {},
	ErrCodeFileExists:        {},
	ErrCodeFileNotFound:      {},
	ErrCodeFileNotADirectory: {},
	ErrCodeFileIsADirectory:  {},
	ErrCodeFileTooLarge:      {},
	ErrCodeFileWriteLocked:   {},
	ErrCodeNoPermissions:     {},
	ErrCodeBadFileDescriptor: {},
	ErrCodeUnavailable:       {},
	ErrCodeProtocol:          {},
	ErrCodeInvalidInput:      {},
	ErrCodeCanceled:          {},
	ErrCodeInternal:          {},
	ErrCodeUnknown:           {},
}

// IsKnownCode reports whether code is one of the codes defined above.
func IsKnownCode(code string) bool {
	_, ok := knownCodes[code]
	return ok
}

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if !IsKnownCode(code) || len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "202" from "ERR_202_FILE_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryFileSystem
	case '3':
		return CategoryTransport
	case '4':
		return CategoryCaller
	default:
		return CategoryInternal
	}
}
