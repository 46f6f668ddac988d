package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
)

// Emit sends one payload on a listen stream.
type Emit func(payload json.RawMessage) error

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	// Handle serves one call. It returns ErrMethodNotFound for methods it
	// does not know.
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)

	// Listen serves one stream until it completes or ctx is done. An error
	// returned before the first emit is reported as the call's error.
	Listen(ctx context.Context, event string, args json.RawMessage, emit Emit) error

	// Status fills the handler's part of the daemon status.
	Status(status *StatusResult)
}

// Server listens on a Unix socket and handles RPC requests. Each connection
// carries one request; a listen request keeps its connection open as a
// stream of notifications.
type Server struct {
	socketPath string
	listener   net.Listener
	handler    RequestHandler
	started    time.Time
	timeout    time.Duration
	grace      time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool
	conns    map[net.Conn]struct{}
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRequestTimeout bounds a non-streaming request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// WithShutdownGracePeriod bounds how long shutdown waits for connections
// before closing them.
func WithShutdownGracePeriod(d time.Duration) ServerOption {
	return func(s *Server) { s.grace = d }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new server that listens on the given socket path.
func NewServer(socketPath string, opts ...ServerOption) (*Server, error) {
	s := &Server{
		socketPath: socketPath,
		timeout:    30 * time.Second,
		grace:      10 * time.Second,
		logger:     slog.Default(),
		conns:      make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetHandler sets the request handler for file system operations.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Clean up any stale socket
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	// Clean up socket on exit
	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("Server listening", slog.String("socket", s.socketPath))

	// Handle shutdown
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	var g errgroup.Group
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("Accept error", slog.String("error", err.Error()))
			continue
		}

		s.track(conn)
		g.Go(func() error {
			defer s.untrack(conn)
			s.handleConnection(ctx, conn)
			return nil
		})
	}

	s.drain(&g)
	return ctx.Err()
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// drain waits for active connections, closing the stragglers once the grace
// period is over.
func (s *Server) drain(g *errgroup.Group) {
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(s.grace):
	}

	s.mu.Lock()
	s.logger.Warn("Closing connections after grace period", slog.Int("connections", len(s.conns)))
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	<-done
}

// handleConnection processes a single client connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Set read deadline
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("Failed to set connection deadline", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		resp := NewErrorResponse("", ErrCodeParseError, "failed to parse request")
		_ = encoder.Encode(resp)
		return
	}

	if req.Method == MethodListen {
		s.handleListen(ctx, conn, encoder, req)
		return
	}

	resp := s.handleRequest(ctx, req)
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the appropriate handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	result, err := s.handler.Handle(ctx, req.Method, req.Params)
	if errors.Is(err, ErrMethodNotFound) {
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
	if err != nil {
		s.logger.Debug("Request failed",
			slog.String("method", req.Method),
			slog.Any("error", fserrors.FormatForLog(err)))
		return NewFileSystemErrorResponse(req.ID, err)
	}
	return NewSuccessResponse(req.ID, result)
}

// handleListen turns the connection into a notification stream. The stream
// ends when the handler returns, the client hangs up or the server stops.
func (s *Server) handleListen(ctx context.Context, conn net.Conn, encoder *json.Encoder, req Request) {
	var params ListenParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"))
		return
	}
	if err := params.Validate(); err != nil {
		_ = encoder.Encode(NewFileSystemErrorResponse(req.ID, err))
		return
	}
	if s.handler == nil {
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured"))
		return
	}

	// Streams have no deadline.
	_ = conn.SetDeadline(time.Time{})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The client sends nothing after its request; a read returning means it
	// hung up.
	go func() {
		_, _ = io.Copy(io.Discard, conn)
		cancel()
	}()

	var (
		mu      sync.Mutex
		emitted bool
	)
	emit := func(payload json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emitted = true
		if err := encoder.Encode(NewNotification(payload)); err != nil {
			cancel()
			return err
		}
		return nil
	}

	s.logger.Debug("Stream opened", slog.String("event", params.Event))
	err := s.handler.Listen(ctx, params.Event, params.Args, emit)

	mu.Lock()
	defer mu.Unlock()
	switch {
	case errors.Is(err, ErrMethodNotFound):
		_ = encoder.Encode(NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("event not found: %s", params.Event)))
	case err != nil && !emitted && ctx.Err() == nil:
		_ = encoder.Encode(NewFileSystemErrorResponse(req.ID, err))
	}
	s.logger.Debug("Stream closed", slog.String("event", params.Event))
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(started).Round(time.Second).String(),
	}

	if s.handler != nil {
		s.handler.Status(&status)
	}

	return status
}

// Close stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		return listener.Close()
	}
	return nil
}
