// Package file provides a [kv.Backend] that keeps one namespace in a single
// JSON document on local disk.
//
// The whole namespace is held in memory and written through on every
// mutation: the document is written to a temporary file which is then renamed
// over the original, so a crash leaves either the old or the new state. When
// a [kv.Sealer] is configured the entries are encrypted and stored as a
// base64 blob; otherwise they are stored as a plain JSON object.
package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/spellin/pkg/kv"
)

// Compile-time interface check.
var _ kv.Backend = (*Backend)(nil)

// document is the on-disk layout.
type document struct {
	Version int               `json:"version"`
	StoreID string            `json:"store_id"`
	Sealed  bool              `json:"sealed"`
	Data    string            `json:"data,omitempty"`
	Entries map[string]string `json:"entries,omitempty"`
}

// Backend is a file-backed [kv.Backend]. It is safe for concurrent use within
// one process; two processes must not open the same file.
type Backend struct {
	mu      sync.RWMutex
	path    string
	storeID string
	sealer  *kv.Sealer
	entries map[string]string
	closed  bool
}

// Path returns the document path used for storeID inside dir.
func Path(dir, storeID string) string {
	return filepath.Join(dir, storeID+".json")
}

// Open loads the namespace storeID from dir, creating the directory and an
// empty document when they do not exist. Open fails when the directory is not
// writable, the document is corrupt, was written by a newer schema version,
// or cannot be opened with sealer.
func Open(dir, storeID string, sealer *kv.Sealer) (*Backend, error) {
	if storeID == "" {
		return nil, errors.New("file: store id is required")
	}
	b := &Backend{
		path:    Path(dir, storeID),
		storeID: storeID,
		sealer:  sealer,
		entries: make(map[string]string),
	}

	data, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Write the empty document now so an unwritable location is reported
		// at startup rather than on the first mutation.
		if err := b.writeAtomic(b.entries); err != nil {
			return nil, fmt.Errorf("file: create %q: %w", b.path, err)
		}
		return b, nil
	case err != nil:
		return nil, fmt.Errorf("file: read %q: %w", b.path, err)
	}

	entries, err := b.decode(data)
	if err != nil {
		return nil, fmt.Errorf("file: load %q: %w", b.path, err)
	}
	b.entries = entries
	return b, nil
}

// Keys implements [kv.Backend.Keys].
func (b *Backend) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, kv.ErrClosed
	}
	return kv.SortedKeys(b.entries), nil
}

// Get implements [kv.Backend.Get].
func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return "", false, kv.ErrClosed
	}
	v, ok := b.entries[key]
	return v, ok, nil
}

// Set implements [kv.Backend.Set]. The in-memory state only changes once the
// document has been written.
func (b *Backend) Set(_ context.Context, key, value string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, kv.ErrClosed
	}

	next := maps.Clone(b.entries)
	_, replaced := next[key]
	next[key] = value
	if err := b.writeAtomic(next); err != nil {
		return false, fmt.Errorf("file: set %q: %w", key, err)
	}
	b.entries = next
	return replaced, nil
}

// Delete implements [kv.Backend.Delete].
func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return kv.ErrClosed
	}
	if _, ok := b.entries[key]; !ok {
		return nil
	}

	next := maps.Clone(b.entries)
	delete(next, key)
	if err := b.writeAtomic(next); err != nil {
		return fmt.Errorf("file: delete %q: %w", key, err)
	}
	b.entries = next
	return nil
}

// Clear implements [kv.Backend.Clear].
func (b *Backend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return kv.ErrClosed
	}

	empty := make(map[string]string)
	if err := b.writeAtomic(empty); err != nil {
		return fmt.Errorf("file: clear: %w", err)
	}
	b.entries = empty
	return nil
}

// Snapshot implements [kv.Backend.Snapshot].
func (b *Backend) Snapshot(_ context.Context) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, kv.ErrClosed
	}
	return maps.Clone(b.entries), nil
}

// Ping implements [kv.Backend.Ping] by checking that the document still
// exists.
func (b *Backend) Ping(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return kv.ErrClosed
	}
	if _, err := os.Stat(b.path); err != nil {
		return fmt.Errorf("file: ping: %w", err)
	}
	return nil
}

// Close implements [kv.Backend.Close].
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Encoding
// ─────────────────────────────────────────────────────────────────────────────

func (b *Backend) encode(entries map[string]string) ([]byte, error) {
	doc := document{
		Version: kv.SchemaVersion,
		StoreID: b.storeID,
		Sealed:  b.sealer.Enabled(),
	}
	if doc.Sealed {
		plain, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("marshal entries: %w", err)
		}
		sealed, err := b.sealer.Seal(plain)
		if err != nil {
			return nil, err
		}
		doc.Data = base64.StdEncoding.EncodeToString(sealed)
	} else {
		doc.Entries = entries
	}
	return json.MarshalIndent(doc, "", "  ")
}

func (b *Backend) decode(data []byte) (map[string]string, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Version > kv.SchemaVersion {
		return nil, fmt.Errorf("schema version %d is newer than supported version %d", doc.Version, kv.SchemaVersion)
	}
	if doc.StoreID != "" && doc.StoreID != b.storeID {
		return nil, fmt.Errorf("document belongs to store %q, not %q", doc.StoreID, b.storeID)
	}
	if doc.Sealed != b.sealer.Enabled() {
		if doc.Sealed {
			return nil, errors.New("document is encrypted but no encryption key is configured")
		}
		return nil, errors.New("document is not encrypted but an encryption key is configured")
	}

	if !doc.Sealed {
		if doc.Entries == nil {
			doc.Entries = make(map[string]string)
		}
		return doc.Entries, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode sealed data: %w", err)
	}
	plain, err := b.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string)
	if err := json.Unmarshal(plain, &entries); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	return entries, nil
}

// writeAtomic writes to a temp file then renames it over the document.
// Caller must hold b.mu (or own b exclusively, as Open does).
func (b *Backend) writeAtomic(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return err
	}
	data, err := b.encode(entries)
	if err != nil {
		return err
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}
