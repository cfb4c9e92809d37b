package kv

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Compile-time assertion that MemBackend satisfies the Backend interface.
var _ Backend = (*MemBackend)(nil)

// MemBackend is a thread-safe, in-memory [Backend]. Nothing survives the
// process. The zero value is ready to use.
type MemBackend struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

// NewMemBackend returns an empty [MemBackend].
func NewMemBackend() *MemBackend {
	return &MemBackend{entries: make(map[string]string)}
}

// Keys implements [Backend.Keys].
func (b *MemBackend) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return SortedKeys(b.entries), nil
}

// Get implements [Backend.Get].
func (b *MemBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", false, ErrClosed
	}
	v, ok := b.entries[key]
	return v, ok, nil
}

// Set implements [Backend.Set].
func (b *MemBackend) Set(_ context.Context, key, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrClosed
	}
	if b.entries == nil {
		b.entries = make(map[string]string)
	}
	_, replaced := b.entries[key]
	b.entries[key] = value
	return replaced, nil
}

// Delete implements [Backend.Delete].
func (b *MemBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	delete(b.entries, key)
	return nil
}

// Clear implements [Backend.Clear].
func (b *MemBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	clear(b.entries)
	return nil
}

// Snapshot implements [Backend.Snapshot].
func (b *MemBackend) Snapshot(_ context.Context) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	out := make(map[string]string, len(b.entries))
	maps.Copy(out, b.entries)
	return out, nil
}

// Ping implements [Backend.Ping].
func (b *MemBackend) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close implements [Backend.Close]. Closing twice is a no-op.
func (b *MemBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// SortedKeys returns the keys of m in ascending order, never nil.
func SortedKeys(m map[string]string) []string {
	keys := slices.Sorted(maps.Keys(m))
	if keys == nil {
		keys = []string{}
	}
	return keys
}
