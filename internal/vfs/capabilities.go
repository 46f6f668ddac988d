package vfs

import (
	"strings"
	"sync"

	"github.com/Aman-CERP/remotefs/internal/event"
)

// Capabilities is a bitmask of the operations a provider supports. Values are
// the wire values.
type Capabilities int

const (
	CapFileReadWrite          Capabilities = 1 << 1
	CapFileOpenReadWriteClose Capabilities = 1 << 2
	CapFileFolderCopy         Capabilities = 1 << 3
	CapFileReadStream         Capabilities = 1 << 4
	CapPathCaseSensitive      Capabilities = 1 << 10
	CapReadonly               Capabilities = 1 << 11
	CapFileWriteUnlock        Capabilities = 1 << 13
)

// DefaultCapabilities is what both providers support before case sensitivity
// is known.
const DefaultCapabilities = CapFileReadWrite |
	CapFileOpenReadWriteClose |
	CapFileReadStream |
	CapFileFolderCopy |
	CapFileWriteUnlock

// Has reports whether every bit of c is set.
func (c Capabilities) Has(flag Capabilities) bool {
	return c&flag == flag
}

func (c Capabilities) String() string {
	names := []struct {
		flag Capabilities
		name string
	}{
		{CapFileReadWrite, "readwrite"},
		{CapFileOpenReadWriteClose, "open-read-write-close"},
		{CapFileFolderCopy, "folder-copy"},
		{CapFileReadStream, "read-stream"},
		{CapPathCaseSensitive, "case-sensitive"},
		{CapReadonly, "readonly"},
		{CapFileWriteUnlock, "write-unlock"},
	}
	var parts []string
	for _, n := range names {
		if c.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CapabilitySet holds a provider's capabilities. Case sensitivity is the only
// flag that changes at runtime.
type CapabilitySet struct {
	mu      sync.Mutex
	value   Capabilities
	changed *event.Emitter[struct{}]
}

// NewCapabilitySet creates a set with the given initial value.
func NewCapabilitySet(initial Capabilities) *CapabilitySet {
	return &CapabilitySet{
		value:   initial,
		changed: event.NewEmitter[struct{}](),
	}
}

// Value returns the current capabilities.
func (s *CapabilitySet) Value() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// SetCaseSensitive sets or clears CapPathCaseSensitive. Listeners are only
// notified when the value changes.
func (s *CapabilitySet) SetCaseSensitive(sensitive bool) {
	s.mu.Lock()
	next := s.value &^ CapPathCaseSensitive
	if sensitive {
		next |= CapPathCaseSensitive
	}
	changed := next != s.value
	s.value = next
	s.mu.Unlock()

	if changed {
		s.changed.Fire(struct{}{})
	}
}

// OnDidChange registers a listener called after the value changes. The new
// value must be re-read with Value.
func (s *CapabilitySet) OnDidChange(fn func()) event.Disposable {
	return s.changed.On(func(struct{}) { fn() })
}

// Dispose drops every listener.
func (s *CapabilitySet) Dispose() {
	s.changed.Dispose()
}
