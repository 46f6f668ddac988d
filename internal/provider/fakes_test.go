package provider

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Aman-CERP/remotefs/internal/event"
)

type call struct {
	method string
	args   []any
}

type listen struct {
	event    string
	args     []any
	listener func(json.RawMessage)
	disposed int
}

// fakeChannel answers calls from canned results and lets a test push payloads
// into listeners.
type fakeChannel struct {
	mu      sync.Mutex
	calls   []call
	listens []*listen
	results map[string]any
	errs    map[string]error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{results: map[string]any{}, errs: map[string]error{}}
}

func (c *fakeChannel) Call(ctx context.Context, method string, args []any, reply any) error {
	c.mu.Lock()
	c.calls = append(c.calls, call{method: method, args: args})
	result, err := c.results[method], c.errs[method]
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if reply == nil || result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, reply)
}

func (c *fakeChannel) Listen(name string, args []any, listener func(json.RawMessage)) event.Disposable {
	l := &listen{event: name, args: args, listener: listener}
	c.mu.Lock()
	c.listens = append(c.listens, l)
	c.mu.Unlock()
	return event.OnDispose(func() {
		c.mu.Lock()
		l.disposed++
		c.mu.Unlock()
	})
}

func (c *fakeChannel) callsTo(method string) []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []call
	for _, cl := range c.calls {
		if cl.method == method {
			out = append(out, cl)
		}
	}
	return out
}

func (c *fakeChannel) listenersFor(name string) []*listen {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*listen
	for _, l := range c.listens {
		if l.event == name {
			out = append(out, l)
		}
	}
	return out
}

func (c *fakeChannel) disposals(l *listen) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return l.disposed
}

// push delivers a raw JSON payload to l.
func (l *listen) push(raw string) {
	l.listener(json.RawMessage(raw))
}
