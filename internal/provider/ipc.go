package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// DefaultUnwatchTimeout bounds the unwatch call issued when a watch handle is
// disposed.
const DefaultUnwatchTimeout = 10 * time.Second

// IPCOptions configures an IPCProvider.
type IPCOptions struct {
	Logger *slog.Logger
	// HighWaterMark is the number of buffered stream bytes above which the
	// transport is paused. Zero uses vfs.DefaultHighWaterMark.
	HighWaterMark int
	// CaseSensitive reports whether the remote paths are case sensitive.
	CaseSensitive bool
	// UnwatchTimeout bounds unwatch calls. Zero uses DefaultUnwatchTimeout.
	UnwatchTimeout time.Duration
}

// IPCProvider is a FileSystem whose storage lives behind a Channel.
type IPCProvider struct {
	channel        Channel
	logger         *slog.Logger
	hwm            int
	unwatchTimeout time.Duration

	sessionID string
	session   event.Disposable

	caps    *vfs.CapabilitySet
	changes *event.Emitter[[]vfs.FileChange]
	errs    *event.Emitter[string]

	disposeOnce sync.Once
}

var _ FileSystem = (*IPCProvider)(nil)

// NewIPCProvider creates a provider and opens its watch session stream.
func NewIPCProvider(channel Channel, opts IPCOptions) *IPCProvider {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UnwatchTimeout <= 0 {
		opts.UnwatchTimeout = DefaultUnwatchTimeout
	}

	p := &IPCProvider{
		channel:        channel,
		hwm:            opts.HighWaterMark,
		unwatchTimeout: opts.UnwatchTimeout,
		sessionID:      uuid.NewString(),
		caps:           vfs.NewCapabilitySet(vfs.DefaultCapabilities),
		changes:        event.NewEmitter[[]vfs.FileChange](),
		errs:           event.NewEmitter[string](),
	}
	p.logger = opts.Logger.With(slog.String("component", "ipc-provider"))
	p.caps.SetCaseSensitive(opts.CaseSensitive)
	p.session = channel.Listen(EventFileChange, []any{p.sessionID}, p.onFileChange)
	return p
}

// Capabilities returns the current capability bitset.
func (p *IPCProvider) Capabilities() vfs.Capabilities {
	return p.caps.Value()
}

// SetCaseSensitive updates the case sensitivity capability.
func (p *IPCProvider) SetCaseSensitive(sensitive bool) {
	p.caps.SetCaseSensitive(sensitive)
}

// OnDidChangeCapabilities registers a listener for capability changes.
func (p *IPCProvider) OnDidChangeCapabilities(fn func()) event.Disposable {
	return p.caps.OnDidChange(fn)
}

// OnDidChangeFile registers a listener for change batches of every watch
// issued through this provider.
func (p *IPCProvider) OnDidChangeFile(fn func([]vfs.FileChange)) event.Disposable {
	return p.changes.On(fn)
}

// OnDidErrorOccur registers a listener for watcher errors reported by the
// peer.
func (p *IPCProvider) OnDidErrorOccur(fn func(string)) event.Disposable {
	return p.errs.On(fn)
}

func (p *IPCProvider) Stat(ctx context.Context, resource vfs.URI) (vfs.Stat, error) {
	var st vfs.Stat
	err := p.channel.Call(ctx, MethodStat, []any{resource}, &st)
	return st, err
}

func (p *IPCProvider) ReadDir(ctx context.Context, resource vfs.URI) ([]vfs.DirEntry, error) {
	var entries []vfs.DirEntry
	err := p.channel.Call(ctx, MethodReadDir, []any{resource}, &entries)
	return entries, err
}

// ReadFile returns the whole content of resource.
func (p *IPCProvider) ReadFile(ctx context.Context, resource vfs.URI) ([]byte, error) {
	var buf vfs.Buffer
	if err := p.channel.Call(ctx, MethodReadFile, []any{resource}, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes, nil
}

func (p *IPCProvider) WriteFile(ctx context.Context, resource vfs.URI, content []byte, opts vfs.WriteOptions) error {
	return p.channel.Call(ctx, MethodWriteFile, []any{resource, vfs.Wrap(content), opts}, nil)
}

func (p *IPCProvider) Open(ctx context.Context, resource vfs.URI, opts vfs.OpenOptions) (int, error) {
	var fd int
	err := p.channel.Call(ctx, MethodOpen, []any{resource, opts}, &fd)
	return fd, err
}

func (p *IPCProvider) Close(ctx context.Context, fd int) error {
	return p.channel.Call(ctx, MethodClose, []any{fd}, nil)
}

// Read reads up to length bytes at pos into data[offset:]. The peer's buffer
// is a separate copy; exactly the bytes it reports as read are copied over.
func (p *IPCProvider) Read(ctx context.Context, fd int, pos int64, data []byte, offset, length int) (int, error) {
	var reply vfs.ReadReply
	if err := p.channel.Call(ctx, MethodRead, []any{fd, pos, length}, &reply); err != nil {
		return 0, err
	}

	n := reply.BytesRead
	if n < 0 || n > len(reply.Data.Bytes) || offset < 0 || offset+n > len(data) {
		return 0, errors.New(errors.ErrCodeProtocol,
			fmt.Sprintf("read reply of %d bytes does not fit buffer of %d at offset %d", n, len(data), offset), nil)
	}
	copy(data[offset:offset+n], reply.Data.Bytes[:n])
	return n, nil
}

// Write writes data[offset:offset+length] at pos. The whole buffer is sent
// together with offset and length.
func (p *IPCProvider) Write(ctx context.Context, fd int, pos int64, data []byte, offset, length int) (int, error) {
	var n int
	err := p.channel.Call(ctx, MethodWrite, []any{fd, pos, vfs.Wrap(data), offset, length}, &n)
	return n, err
}

func (p *IPCProvider) Mkdir(ctx context.Context, resource vfs.URI) error {
	return p.channel.Call(ctx, MethodMkdir, []any{resource}, nil)
}

func (p *IPCProvider) Delete(ctx context.Context, resource vfs.URI, opts vfs.DeleteOptions) error {
	return p.channel.Call(ctx, MethodDelete, []any{resource, opts}, nil)
}

func (p *IPCProvider) Rename(ctx context.Context, from, to vfs.URI, opts vfs.OverwriteOptions) error {
	return p.channel.Call(ctx, MethodRename, []any{from, to, opts}, nil)
}

func (p *IPCProvider) Copy(ctx context.Context, from, to vfs.URI, opts vfs.OverwriteOptions) error {
	return p.channel.Call(ctx, MethodCopy, []any{from, to, opts}, nil)
}

// Watch asks the peer to watch resource under this provider's session.
// Changes arrive on OnDidChangeFile. Disposing the handle issues unwatch
// once; a failing unwatch is logged and reported on OnDidErrorOccur.
func (p *IPCProvider) Watch(ctx context.Context, resource vfs.URI, opts vfs.WatchOptions) (event.Disposable, error) {
	requestID := uuid.NewString()
	if err := p.channel.Call(ctx, MethodWatch, []any{p.sessionID, requestID, resource, opts}, nil); err != nil {
		return nil, err
	}

	return event.OnDispose(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.unwatchTimeout)
		defer cancel()

		if err := p.channel.Call(ctx, MethodUnwatch, []any{p.sessionID, requestID}, nil); err != nil {
			msg := fmt.Sprintf("failed to unwatch %s: %v", resource, err)
			p.logger.Warn("unwatch failed",
				slog.String("resource", resource.String()),
				slog.String("request_id", requestID),
				slog.String("error", err.Error()))
			p.errs.Fire(msg)
		}
	}), nil
}

// onFileChange handles one payload of the session stream: an array of
// changes or an error string.
func (p *IPCProvider) onFileChange(raw json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return
	}

	switch trimmed[0] {
	case '[':
		var batch []vfs.FileChange
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			p.errs.Fire(fmt.Sprintf("malformed change batch: %v", err))
			return
		}
		revived, err := vfs.ReviveChanges(batch)
		if err != nil {
			p.errs.Fire(fmt.Sprintf("malformed change batch: %v", err))
			return
		}
		p.changes.Fire(revived)
	case '"':
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			p.errs.Fire(string(trimmed))
			return
		}
		p.errs.Fire(msg)
	default:
		p.logger.Warn("ignoring unexpected filechange payload", slog.String("payload", string(trimmed)))
	}
}

// Dispose releases the session stream and drops every listener.
func (p *IPCProvider) Dispose() {
	p.disposeOnce.Do(func() {
		p.session.Dispose()
		p.changes.Dispose()
		p.errs.Dispose()
		p.caps.Dispose()
	})
}
