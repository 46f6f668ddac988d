package errors

import (
	"context"
	"errors"
	"io/fs"
	"syscall"
)

// FromOS maps an error returned by the os package to the file system
// taxonomy. path is recorded as the resource detail. Errors that already
// belong to the taxonomy are returned unchanged.
func FromOS(err error, path string) error {
	if err == nil {
		return nil
	}

	var fe *FileSystemError
	if errors.As(err, &fe) {
		return fe
	}

	code := ErrCodeUnknown
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeCanceled
	case errors.Is(err, fs.ErrNotExist):
		code = ErrCodeFileNotFound
	case errors.Is(err, fs.ErrExist), errors.Is(err, syscall.ENOTEMPTY):
		code = ErrCodeFileExists
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		code = ErrCodeNoPermissions
	case errors.Is(err, syscall.ENOTDIR):
		code = ErrCodeFileNotADirectory
	case errors.Is(err, syscall.EISDIR):
		code = ErrCodeFileIsADirectory
	case errors.Is(err, syscall.EFBIG):
		code = ErrCodeFileTooLarge
	case errors.Is(err, syscall.EBADF), errors.Is(err, fs.ErrClosed):
		code = ErrCodeBadFileDescriptor
	}

	return New(code, err.Error(), err).WithDetail("resource", path)
}
