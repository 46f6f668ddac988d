package vfs

import (
	"io"
	"io/fs"
	"sync"
)

// DefaultHighWaterMark is the number of buffered bytes above which Write
// blocks until the consumer catches up.
const DefaultHighWaterMark = 256 * 1024

// ReadStream is the consumer end of a streaming read. It is push based: a
// producer calls Write, Fail and End while a single consumer pulls chunks with
// Next or bytes with Read. A stream cannot be restarted.
//
// Buffered chunks are delivered before a failure is reported, so a stream
// failed after its first chunk yields that chunk followed by the error.
type ReadStream struct {
	mu       sync.Mutex
	cond     *sync.Cond
	chunks   [][]byte
	buffered int
	hwm      int
	err      error
	ended    bool
	closed   bool
	onClose  []func()
	done     chan struct{}

	// unread remainder of the chunk last returned to Read
	pending []byte
}

// NewReadStream creates an open stream. highWaterMark <= 0 selects
// DefaultHighWaterMark.
func NewReadStream(highWaterMark int) *ReadStream {
	if highWaterMark <= 0 {
		highWaterMark = DefaultHighWaterMark
	}
	s := &ReadStream{hwm: highWaterMark, done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write appends a chunk, blocking while the buffer is above the high-water
// mark. It reports false once the stream has failed, ended or been closed;
// the chunk is then dropped.
func (s *ReadStream) Write(chunk []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.buffered >= s.hwm && s.acceptingLocked() {
		s.cond.Wait()
	}
	if !s.acceptingLocked() {
		return false
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	s.buffered += len(chunk)
	s.cond.Broadcast()
	return true
}

// Fail records err as the stream's terminal error. Only the first Fail on an
// open stream has an effect; it reports whether this call did.
func (s *ReadStream) Fail(err error) bool {
	if err == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptingLocked() {
		return false
	}
	s.err = err
	s.cond.Broadcast()
	return true
}

// End closes the producer side. It reports whether this call did.
func (s *ReadStream) End() bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	s.ended = true
	close(s.done)
	s.cond.Broadcast()
	s.mu.Unlock()
	return true
}

func (s *ReadStream) acceptingLocked() bool {
	return s.err == nil && !s.ended && !s.closed
}

// Next returns the next chunk. It returns io.EOF after a successful end, the
// terminal error after a failure, and fs.ErrClosed once the consumer closed
// the stream.
func (s *ReadStream) Next() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.chunks) == 0 && s.err == nil && !s.ended && !s.closed {
		s.cond.Wait()
	}

	switch {
	case s.closed:
		return nil, fs.ErrClosed
	case len(s.chunks) > 0:
		chunk := s.chunks[0]
		s.chunks[0] = nil
		s.chunks = s.chunks[1:]
		s.buffered -= len(chunk)
		s.cond.Broadcast()
		return chunk, nil
	case s.err != nil:
		return nil, s.err
	default:
		return nil, io.EOF
	}
}

// Read implements io.Reader on top of Next.
func (s *ReadStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		chunk, err := s.Next()
		if err != nil {
			return 0, err
		}
		s.pending = chunk
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close releases the stream from the consumer side. Buffered chunks are
// dropped, blocked writers are released and OnClose hooks run once.
func (s *ReadStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.chunks = nil
	s.buffered = 0
	hooks := s.onClose
	s.onClose = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return nil
}

// OnClose registers fn to run when the consumer closes the stream. If the
// stream is already closed fn runs immediately.
func (s *ReadStream) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

// Done is closed once the producer has ended the stream.
func (s *ReadStream) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminal error, if any.
func (s *ReadStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ReadAll drains the stream and returns its contents.
func ReadAll(s *ReadStream) ([]byte, error) {
	return io.ReadAll(s)
}

var _ io.ReadCloser = (*ReadStream)(nil)
