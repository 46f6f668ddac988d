package provider

import (
	"context"
	"encoding/json"

	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// Channel is the call/listen primitive a remote provider is reached through.
type Channel interface {
	// Call invokes method with args and decodes the result into reply.
	// reply may be nil when the result is not needed. A failure reported by
	// the peer is returned as the peer's *errors.FileSystemError.
	Call(ctx context.Context, method string, args []any, reply any) error

	// Listen subscribes to event keyed by args. Payloads are delivered in
	// the order the peer sent them. Disposing ends the subscription.
	Listen(event string, args []any, listener func(json.RawMessage)) event.Disposable
}

// Method and event names of the wire protocol.
const (
	MethodStat      = "stat"
	MethodReadDir   = "readdir"
	MethodReadFile  = "readFile"
	MethodWriteFile = "writeFile"
	MethodOpen      = "open"
	MethodClose     = "close"
	MethodRead      = "read"
	MethodWrite     = "write"
	MethodMkdir     = "mkdir"
	MethodDelete    = "delete"
	MethodRename    = "rename"
	MethodCopy      = "copy"
	MethodWatch     = "watch"
	MethodUnwatch   = "unwatch"
	EventReadStream = "readFileStream"
	EventFileChange = "filechange"
)

// FileSystem is the operation set shared by IPCProvider and DiskProvider.
type FileSystem interface {
	Capabilities() vfs.Capabilities

	Stat(ctx context.Context, resource vfs.URI) (vfs.Stat, error)
	ReadDir(ctx context.Context, resource vfs.URI) ([]vfs.DirEntry, error)
	ReadFile(ctx context.Context, resource vfs.URI) ([]byte, error)
	ReadFileStream(ctx context.Context, resource vfs.URI, opts vfs.ReadStreamOptions) *vfs.ReadStream
	WriteFile(ctx context.Context, resource vfs.URI, content []byte, opts vfs.WriteOptions) error

	Open(ctx context.Context, resource vfs.URI, opts vfs.OpenOptions) (int, error)
	Close(ctx context.Context, fd int) error
	Read(ctx context.Context, fd int, pos int64, data []byte, offset, length int) (int, error)
	Write(ctx context.Context, fd int, pos int64, data []byte, offset, length int) (int, error)

	Mkdir(ctx context.Context, resource vfs.URI) error
	Delete(ctx context.Context, resource vfs.URI, opts vfs.DeleteOptions) error
	Rename(ctx context.Context, from, to vfs.URI, opts vfs.OverwriteOptions) error
	Copy(ctx context.Context, from, to vfs.URI, opts vfs.OverwriteOptions) error

	Watch(ctx context.Context, resource vfs.URI, opts vfs.WatchOptions) (event.Disposable, error)
	OnDidChangeFile(fn func([]vfs.FileChange)) event.Disposable
	OnDidErrorOccur(fn func(string)) event.Disposable
	OnDidChangeCapabilities(fn func()) event.Disposable

	Dispose()
}
