package provider

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Aman-CERP/remotefs/internal/errors"
	"github.com/Aman-CERP/remotefs/internal/event"
	"github.com/Aman-CERP/remotefs/internal/vfs"
)

// subscription holds a listener that may be disposed before Listen returns.
type subscription struct {
	mu       sync.Mutex
	listener event.Disposable
	done     bool
}

func (s *subscription) set(l event.Disposable) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		l.Dispose()
		return
	}
	s.listener = l
	s.mu.Unlock()
}

func (s *subscription) Dispose() {
	s.mu.Lock()
	s.done = true
	l := s.listener
	s.listener = nil
	s.mu.Unlock()

	if l != nil {
		l.Dispose()
	}
}

// ReadFileStream streams resource. The stream is returned at once and fills
// as chunks arrive. Cancelling ctx fails it with ERR_499_CANCELED unless it
// already ended; an error from the peer is normalised into the error
// taxonomy. Either way the remote listener is released exactly once.
func (p *IPCProvider) ReadFileStream(ctx context.Context, resource vfs.URI, opts vfs.ReadStreamOptions) *vfs.ReadStream {
	stream := vfs.NewReadStream(p.hwm)
	sub := &subscription{}

	stop := context.AfterFunc(ctx, func() {
		stream.Fail(errors.Canceled())
		stream.End()
		sub.Dispose()
	})
	finish := func() {
		stop()
		sub.Dispose()
	}
	stream.OnClose(finish)

	listener := p.channel.Listen(EventReadStream, []any{resource, opts}, func(raw json.RawMessage) {
		switch payload := vfs.DecodeStreamPayload(raw).(type) {
		case vfs.StreamChunk:
			stream.Write(payload.Data)
		case vfs.StreamEnd:
			if stream.End() {
				finish()
			}
		case vfs.StreamError:
			stream.Fail(errors.Coerce(payload.Raw))
			if stream.End() {
				finish()
			}
		}
	})
	sub.set(listener)
	return stream
}
