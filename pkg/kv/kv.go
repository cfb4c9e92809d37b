// Package kv defines the durable string key/value namespace that backs the
// favourites store.
//
// A [Backend] owns exactly one namespace. Implementations must make every
// single-key read, write and delete atomic and must be safe for concurrent
// use; no cross-key transactions are offered. Three implementations ship
// with spellin:
//
//   - [MemBackend] in this package, for tests and throwaway sessions.
//   - pkg/kv/file, a sealed JSON document on local disk (the default).
//   - pkg/kv/postgres, a table shared by any number of namespaces.
package kv

import (
	"context"
	"errors"
)

// SchemaVersion is the layout version written by the persistent backends.
// Bump it together with a migration whenever the stored layout changes.
const SchemaVersion = 1

// ErrClosed is returned by operations on a backend after Close.
var ErrClosed = errors.New("kv: backend closed")

// Backend is a namespaced string key/value store.
type Backend interface {
	// Keys returns every key in the namespace in ascending order.
	// An empty namespace yields an empty, non-nil slice.
	Keys(ctx context.Context) ([]string, error)

	// Get returns the value stored at key. found is false when the key is
	// absent; that is not an error.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value at key, replacing any previous value. replaced
	// reports whether a previous value existed.
	Set(ctx context.Context, key, value string) (replaced bool, err error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key in the namespace.
	Clear(ctx context.Context) error

	// Snapshot returns a consistent copy of the whole namespace.
	Snapshot(ctx context.Context) (map[string]string, error)

	// Ping verifies that the underlying storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
