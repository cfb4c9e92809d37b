// Package mock provides a recording test double for [kv.Backend].
//
// [Backend] stores data in an embedded [kv.MemBackend] so callers observe
// realistic behaviour, records every method call for assertion, and exposes
// *Err fields that force individual methods to fail. It is safe for
// concurrent use.
//
// Typical usage:
//
//	b := &mock.Backend{}
//	b.SetErr = errors.New("disk full")
//
//	// inject b into the system under test …
//
//	if got := b.CallCount("Set"); got != 1 {
//	    t.Errorf("expected 1 Set call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/spellin/pkg/kv"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Backend is a configurable test double for [kv.Backend]. All exported *Err
// fields default to nil, in which case the call is served by the embedded
// in-memory store.
type Backend struct {
	mu    sync.Mutex
	calls []Call
	data  kv.MemBackend

	// KeysErr is returned by [Backend.Keys] when non-nil.
	KeysErr error

	// GetErr is returned by [Backend.Get] when non-nil.
	GetErr error

	// SetErr is returned by [Backend.Set] when non-nil. The value is not stored.
	SetErr error

	// DeleteErr is returned by [Backend.Delete] when non-nil.
	DeleteErr error

	// ClearErr is returned by [Backend.Clear] when non-nil.
	ClearErr error

	// SnapshotErr is returned by [Backend.Snapshot] when non-nil.
	SnapshotErr error

	// PingErr is returned by [Backend.Ping] when non-nil.
	PingErr error

	// CloseErr is returned by [Backend.Close] when non-nil.
	CloseErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *Backend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Backend) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering stored data or error
// configuration.
func (m *Backend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *Backend) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// errFor reads an *Err field under the lock so tests may flip it while
// other goroutines are calling.
func (m *Backend) errFor(field *error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *field
}

// Keys implements [kv.Backend].
func (m *Backend) Keys(ctx context.Context) ([]string, error) {
	m.record("Keys")
	if err := m.errFor(&m.KeysErr); err != nil {
		return nil, err
	}
	return m.data.Keys(ctx)
}

// Get implements [kv.Backend].
func (m *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	m.record("Get", key)
	if err := m.errFor(&m.GetErr); err != nil {
		return "", false, err
	}
	return m.data.Get(ctx, key)
}

// Set implements [kv.Backend].
func (m *Backend) Set(ctx context.Context, key, value string) (bool, error) {
	m.record("Set", key, value)
	if err := m.errFor(&m.SetErr); err != nil {
		return false, err
	}
	return m.data.Set(ctx, key, value)
}

// Delete implements [kv.Backend].
func (m *Backend) Delete(ctx context.Context, key string) error {
	m.record("Delete", key)
	if err := m.errFor(&m.DeleteErr); err != nil {
		return err
	}
	return m.data.Delete(ctx, key)
}

// Clear implements [kv.Backend].
func (m *Backend) Clear(ctx context.Context) error {
	m.record("Clear")
	if err := m.errFor(&m.ClearErr); err != nil {
		return err
	}
	return m.data.Clear(ctx)
}

// Snapshot implements [kv.Backend].
func (m *Backend) Snapshot(ctx context.Context) (map[string]string, error) {
	m.record("Snapshot")
	if err := m.errFor(&m.SnapshotErr); err != nil {
		return nil, err
	}
	return m.data.Snapshot(ctx)
}

// Ping implements [kv.Backend].
func (m *Backend) Ping(ctx context.Context) error {
	m.record("Ping")
	if err := m.errFor(&m.PingErr); err != nil {
		return err
	}
	return m.data.Ping(ctx)
}

// Close implements [kv.Backend].
func (m *Backend) Close() error {
	m.record("Close")
	if err := m.errFor(&m.CloseErr); err != nil {
		return err
	}
	return m.data.Close()
}

// Ensure Backend satisfies the interface at compile time.
var _ kv.Backend = (*Backend)(nil)
