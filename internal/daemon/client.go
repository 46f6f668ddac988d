package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	fserrors "github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/provider"
)

// Client connects to the daemon. It implements provider.Channel: every call
// and every listen uses its own connection.
type Client struct {
	socketPath string
	timeout    time.Duration
	logger     *slog.Logger
	requestID  atomic.Uint64
}

var _ provider.Channel = (*Client)(nil)

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
		logger:     slog.Default().With(slog.String("component", "daemon-client")),
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fserrors.Canceled()
		}
		return nil, fserrors.Unavailable(fmt.Sprintf("daemon is not reachable at %s", c.socketPath), err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect(context.Background())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	if err := c.Call(ctx, MethodPing, nil, &result); err != nil {
		return err
	}
	if !result.Pong {
		return fserrors.New(fserrors.ErrCodeProtocol, "daemon did not answer ping", nil)
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.Call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Call sends one request and decodes its result into reply. Errors reported
// by the daemon come back as the FileSystemError the daemon produced.
func (c *Client) Call(ctx context.Context, method string, args []any, reply any) error {
	params, err := encodeArgs(args)
	if err != nil {
		return fserrors.InvalidInput(fmt.Sprintf("encode %s params: %v", method, err))
	}

	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fserrors.Unavailable("failed to set deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := c.send(conn, req); err != nil {
		return c.transportError(ctx, err)
	}

	resp, err := c.receive(conn)
	if err != nil {
		return c.transportError(ctx, err)
	}
	if resp.Error != nil {
		return resp.Error.Err()
	}

	if reply == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, reply); err != nil {
		return fserrors.New(fserrors.ErrCodeProtocol, fmt.Sprintf("failed to decode %s result", method), err)
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fserrors.Canceled()
	}
	return fserrors.Unavailable("connection to daemon failed", err)
}

// Listen opens a stream and delivers its payloads in order on one goroutine.
// A transport failure is delivered as a JSON string payload. Disposing
// closes the connection and stops delivery.
func (c *Client) Listen(name string, args []any, listener func(json.RawMessage)) event.Disposable {
	l := &clientListen{}
	go c.runListen(l, name, args, listener)
	return event.OnDispose(l.close)
}

// clientListen owns the connection of one listen stream.
type clientListen struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// attach records conn, closing it at once when the stream was already
// disposed.
func (l *clientListen) attach(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		_ = conn.Close()
		return false
	}
	l.conn = conn
	return true
}

func (l *clientListen) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *clientListen) close() {
	l.mu.Lock()
	l.closed = true
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) runListen(l *clientListen, name string, args []any, listener func(json.RawMessage)) {
	fail := func(msg string) {
		if l.isClosed() {
			return
		}
		payload, _ := json.Marshal(msg)
		listener(payload)
	}

	rawArgs, err := encodeArgs(args)
	if err != nil {
		fail(fmt.Sprintf("encode %s args: %v", name, err))
		return
	}
	params, err := json.Marshal(ListenParams{Event: name, Args: rawArgs})
	if err != nil {
		fail(fmt.Sprintf("encode %s params: %v", name, err))
		return
	}

	conn, err := c.Connect(context.Background())
	if err != nil {
		fail(err.Error())
		return
	}
	if !l.attach(conn) {
		return
	}
	defer conn.Close()

	req := Request{
		JSONRPC: "2.0",
		Method:  MethodListen,
		Params:  params,
		ID:      c.nextID(),
	}
	if err := c.send(conn, req); err != nil {
		fail(err.Error())
		return
	}

	decoder := json.NewDecoder(conn)
	for {
		var msg struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			Error  *Error          `json:"error"`
		}
		if err := decoder.Decode(&msg); err != nil {
			fail(fmt.Sprintf("%s stream lost: %v", name, err))
			return
		}
		if l.isClosed() {
			return
		}

		switch {
		case msg.Error != nil:
			wire := fserrors.ToWire(msg.Error.Err())
			payload, _ := json.Marshal(wire)
			listener(payload)
			return
		case msg.Method == NotificationMethod:
			listener(msg.Params)
		default:
			c.logger.Warn("ignoring unexpected stream message", slog.String("event", name), slog.String("method", msg.Method))
		}
	}
}

// send encodes and writes a request to the connection.
func (c *Client) send(conn net.Conn, req Request) error {
	encoder := json.NewEncoder(conn)
	if err := encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	return nil
}

// receive reads and decodes a response from the connection.
func (c *Client) receive(conn net.Conn) (*Response, error) {
	decoder := json.NewDecoder(conn)
	var resp Response
	if err := decoder.Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to receive response: %w", err)
	}
	return &resp, nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
