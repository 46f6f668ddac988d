package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/provider"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// FileSystemHandler serves the file system methods and streams of a
// DiskProvider. Watches are grouped by session: each session owns a watch
// scope whose events are delivered only on that session's filechange
// stream.
type FileSystemHandler struct {
	provider *provider.DiskProvider
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

var _ RequestHandler = (*FileSystemHandler)(nil)

// session is the watch state of one remote provider instance.
type session struct {
	id       string
	scope    *provider.WatchScope
	requests map[string]event.Disposable
}

// NewFileSystemHandler creates a handler serving p.
func NewFileSystemHandler(p *provider.DiskProvider, logger *slog.Logger) *FileSystemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSystemHandler{
		provider: p,
		logger:   logger.With(slog.String("component", "fs-handler")),
		sessions: make(map[string]*session),
	}
}

// Handle serves one file system call.
func (h *FileSystemHandler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	p := h.provider

	switch method {
	case provider.MethodStat:
		var res vfs.URI
		if err := decodeResource(params, &res); err != nil {
			return nil, err
		}
		return p.Stat(ctx, res)

	case provider.MethodReadDir:
		var res vfs.URI
		if err := decodeResource(params, &res); err != nil {
			return nil, err
		}
		return p.ReadDir(ctx, res)

	case provider.MethodReadFile:
		var res vfs.URI
		if err := decodeResource(params, &res); err != nil {
			return nil, err
		}
		data, err := p.ReadFile(ctx, res)
		if err != nil {
			return nil, err
		}
		return vfs.Wrap(data), nil

	case provider.MethodWriteFile:
		var (
			res  vfs.URI
			buf  vfs.Buffer
			opts vfs.WriteOptions
		)
		if err := decodeResource(params, &res, &buf, &opts); err != nil {
			return nil, err
		}
		return nil, p.WriteFile(ctx, res, buf.Bytes, opts)

	case provider.MethodOpen:
		var (
			res  vfs.URI
			opts vfs.OpenOptions
		)
		if err := decodeResource(params, &res, &opts); err != nil {
			return nil, err
		}
		return p.Open(ctx, res, opts)

	case provider.MethodClose:
		var fd int
		if err := decodeArgs(params, &fd); err != nil {
			return nil, err
		}
		return nil, p.Close(ctx, fd)

	case provider.MethodRead:
		var (
			fd     int
			pos    int64
			length int
		)
		if err := decodeArgs(params, &fd, &pos, &length); err != nil {
			return nil, err
		}
		if length < 0 {
			return nil, fserrors.InvalidInput(fmt.Sprintf("invalid read length %d", length))
		}
		buf := make([]byte, length)
		n, err := p.Read(ctx, fd, pos, buf, 0, length)
		if err != nil {
			return nil, err
		}
		return vfs.ReadReply{Data: vfs.Wrap(buf[:n]), BytesRead: n}, nil

	case provider.MethodWrite:
		var (
			fd             int
			pos            int64
			buf            vfs.Buffer
			offset, length int
		)
		if err := decodeArgs(params, &fd, &pos, &buf, &offset, &length); err != nil {
			return nil, err
		}
		return p.Write(ctx, fd, pos, buf.Bytes, offset, length)

	case provider.MethodMkdir:
		var res vfs.URI
		if err := decodeResource(params, &res); err != nil {
			return nil, err
		}
		return nil, p.Mkdir(ctx, res)

	case provider.MethodDelete:
		var (
			res  vfs.URI
			opts vfs.DeleteOptions
		)
		if err := decodeResource(params, &res, &opts); err != nil {
			return nil, err
		}
		return nil, p.Delete(ctx, res, opts)

	case provider.MethodRename, provider.MethodCopy:
		var (
			from, to vfs.URI
			opts     vfs.OverwriteOptions
		)
		if err := decodeArgs(params, &from, &to, &opts); err != nil {
			return nil, err
		}
		if err := reviveAll(&from, &to); err != nil {
			return nil, err
		}
		if method == provider.MethodRename {
			return nil, p.Rename(ctx, from, to, opts)
		}
		return nil, p.Copy(ctx, from, to, opts)

	case provider.MethodWatch:
		var (
			sessionID, requestID string
			res                  vfs.URI
			opts                 vfs.WatchOptions
		)
		if err := decodeArgs(params, &sessionID, &requestID, &res, &opts); err != nil {
			return nil, err
		}
		if err := reviveAll(&res); err != nil {
			return nil, err
		}
		return nil, h.watch(sessionID, requestID, res, opts)

	case provider.MethodUnwatch:
		var sessionID, requestID string
		if err := decodeArgs(params, &sessionID, &requestID); err != nil {
			return nil, err
		}
		h.unwatch(sessionID, requestID)
		return nil, nil

	default:
		return nil, ErrMethodNotFound
	}
}

// decodeResource decodes params whose first argument is a resource.
func decodeResource(params json.RawMessage, res *vfs.URI, rest ...any) error {
	if err := decodeArgs(params, append([]any{res}, rest...)...); err != nil {
		return err
	}
	return reviveAll(res)
}

func reviveAll(uris ...*vfs.URI) error {
	for _, u := range uris {
		revived, err := vfs.ReviveURI(*u)
		if err != nil {
			return fserrors.InvalidInput(err.Error())
		}
		*u = revived
	}
	return nil
}

// Listen serves the readFileStream and filechange streams.
func (h *FileSystemHandler) Listen(ctx context.Context, name string, args json.RawMessage, emit Emit) error {
	switch name {
	case provider.EventReadStream:
		var (
			res  vfs.URI
			opts = vfs.WholeFile
		)
		if err := decodeResource(args, &res, &opts); err != nil {
			return err
		}
		return h.streamFile(ctx, res, opts, emit)

	case provider.EventFileChange:
		var sessionID string
		if err := decodeArgs(args, &sessionID); err != nil {
			return err
		}
		if sessionID == "" {
			return fserrors.InvalidInput("session id is required")
		}
		return h.streamChanges(ctx, sessionID, emit)

	default:
		return ErrMethodNotFound
	}
}

// streamFile emits chunks, then the end marker or the error.
func (h *FileSystemHandler) streamFile(ctx context.Context, res vfs.URI, opts vfs.ReadStreamOptions, emit Emit) error {
	stream := h.provider.ReadFileStream(ctx, res, opts)
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		var payload vfs.StreamPayload
		switch {
		case err == nil:
			payload = vfs.StreamChunk{Data: chunk}
		case err == io.EOF:
			payload = vfs.StreamEnd{}
		default:
			raw, merr := json.Marshal(fserrors.ToWire(err))
			if merr != nil {
				return merr
			}
			payload = vfs.StreamError{Raw: raw}
		}

		raw, err := vfs.EncodeStreamPayload(payload)
		if err != nil {
			return err
		}
		if err := emit(raw); err != nil {
			return nil
		}
		if _, ok := payload.(vfs.StreamChunk); !ok {
			return nil
		}
	}
}

// streamChanges forwards the session's change batches and errors until the
// client hangs up, then disposes the session.
func (h *FileSystemHandler) streamChanges(ctx context.Context, sessionID string, emit Emit) error {
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}
	defer h.disposeSession(sessionID)

	send := func(v any) {
		raw, err := json.Marshal(v)
		if err != nil {
			h.logger.Warn("failed to encode change payload", slog.String("error", err.Error()))
			return
		}
		if err := emit(raw); err != nil {
			h.logger.Debug("change stream write failed", slog.String("session", sessionID), slog.String("error", err.Error()))
		}
	}
	listeners := event.Combine(
		s.scope.OnDidChangeFile(func(batch []vfs.FileChange) { send(batch) }),
		s.scope.OnDidErrorOccur(func(msg string) { send(msg) }),
	)
	defer listeners.Dispose()

	h.logger.Info("Session attached", slog.String("session", sessionID))
	<-ctx.Done()
	h.logger.Info("Session detached", slog.String("session", sessionID))
	return nil
}

// session returns the session named id, creating it on first use.
func (h *FileSystemHandler) session(id string) (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fserrors.Unavailable("daemon is shutting down", nil)
	}
	s, ok := h.sessions[id]
	if !ok {
		s = &session{
			id:       id,
			scope:    h.provider.NewWatchScope(),
			requests: make(map[string]event.Disposable),
		}
		h.sessions[id] = s
	}
	return s, nil
}

func (h *FileSystemHandler) watch(sessionID, requestID string, res vfs.URI, opts vfs.WatchOptions) error {
	if sessionID == "" || requestID == "" {
		return fserrors.InvalidInput("session and request ids are required")
	}
	s, err := h.session(sessionID)
	if err != nil {
		return err
	}

	handle, err := s.scope.Watch(res, opts)
	if err != nil {
		return err
	}

	h.mu.Lock()
	prev := s.requests[requestID]
	s.requests[requestID] = handle
	h.mu.Unlock()
	if prev != nil {
		prev.Dispose()
	}

	h.logger.Debug("Watch added",
		slog.String("session", sessionID),
		slog.String("request", requestID),
		slog.String("resource", res.String()),
		slog.Bool("recursive", opts.Recursive))
	return nil
}

// unwatch releases a watch. Unknown ids are ignored.
func (h *FileSystemHandler) unwatch(sessionID, requestID string) {
	h.mu.Lock()
	var handle event.Disposable
	if s, ok := h.sessions[sessionID]; ok {
		handle = s.requests[requestID]
		delete(s.requests, requestID)
	}
	h.mu.Unlock()

	if handle != nil {
		handle.Dispose()
		h.logger.Debug("Watch removed", slog.String("session", sessionID), slog.String("request", requestID))
	}
}

func (h *FileSystemHandler) disposeSession(id string) {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		s.scope.Dispose()
	}
}

// Status reports sessions, watches and open descriptors.
func (h *FileSystemHandler) Status(status *StatusResult) {
	h.mu.Lock()
	status.Sessions = len(h.sessions)
	for _, s := range h.sessions {
		status.Watches += len(s.requests)
	}
	h.mu.Unlock()
	status.Root = h.provider.Root()
	status.OpenFiles = h.provider.OpenFiles()
}

// Close disposes every session.
func (h *FileSystemHandler) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.scope.Dispose()
	}
}
