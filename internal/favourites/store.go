// Package favourites persists named text snippets for later recall.
//
// A [Store] wraps one [kv.Backend] namespace. Each entry is keyed by the name
// the user chose or, when no name was given, by the [Normalize]d snippet
// text. Keys are unique and [Store.Add] overwrites silently, so the last
// write wins. Not finding a key is a normal outcome and never an error; the
// only errors returned are storage failures, [ErrEmptyKey] and
// [ErrInvalidText].
package favourites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/spellin/internal/observe"
	"github.com/MrWong99/spellin/pkg/kv"
)

// ErrEmptyKey is returned by [Store.Add] when neither a name nor any text was
// supplied, leaving nothing to key the entry by.
var ErrEmptyKey = errors.New("favourites: empty key")

// ErrInvalidText is returned by [Store.Add] when the text or name is not
// valid UTF-8. The file backend would otherwise replace the bad bytes.
var ErrInvalidText = errors.New("favourites: text is not valid UTF-8")

// Entry is one stored favourite.
type Entry struct {
	// Key identifies the entry: the user-supplied name or the normalised text.
	Key string `json:"key"`

	// Text is the snippet as the user entered it.
	Text string `json:"text"`
}

// Option configures a [Store].
type Option func(*Store)

// WithMetrics records operation counts and latencies on m. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Store is the favourites collection. It is safe for concurrent use as long
// as the backend is; every [kv.Backend] shipped with spellin is.
type Store struct {
	backend kv.Backend
	metrics *observe.Metrics
}

// New returns a [Store] on top of backend. The backend must already be open;
// the store never closes it.
func New(backend kv.Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// List returns every key in ascending order. An empty store yields an empty
// slice.
func (s *Store) List(ctx context.Context) (keys []string, err error) {
	ctx, done := s.begin(ctx, "list")
	defer func() { done(err) }()

	keys, err = s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("favourites: list: %w", err)
	}
	return keys, nil
}

// ListWithContent returns every entry ordered by key. Keys and texts come
// from a single backend snapshot, so they are always consistent.
func (s *Store) ListWithContent(ctx context.Context) (entries []Entry, err error) {
	ctx, done := s.begin(ctx, "list_with_content")
	defer func() { done(err) }()

	snap, err := s.backend.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("favourites: list with content: %w", err)
	}
	entries = make([]Entry, 0, len(snap))
	for _, k := range kv.SortedKeys(snap) {
		entries = append(entries, Entry{Key: k, Text: snap[k]})
	}
	return entries, nil
}

// Get returns the text stored under key. found is false when key is absent.
func (s *Store) Get(ctx context.Context, key string) (text string, found bool, err error) {
	ctx, done := s.begin(ctx, "get", attribute.String("favourite.key", key))
	defer func() { done(err) }()

	text, found, err = s.backend.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("favourites: get %q: %w", key, err)
	}
	return text, found, nil
}

// Exists reports whether text is currently used as a key. Values are not
// searched: a snippet saved under a custom name is found by that name only.
func (s *Store) Exists(ctx context.Context, text string) (exists bool, err error) {
	ctx, done := s.begin(ctx, "exists")
	defer func() { done(err) }()

	_, exists, err = s.backend.Get(ctx, text)
	if err != nil {
		return false, fmt.Errorf("favourites: exists: %w", err)
	}
	return exists, nil
}

// Add stores text under name, or under Normalize(text) when name is blank,
// and returns the key it used. An existing entry with the same key is
// replaced.
func (s *Store) Add(ctx context.Context, text, name string) (key string, err error) {
	if !utf8.ValidString(text) || !utf8.ValidString(name) {
		return "", ErrInvalidText
	}
	key = name
	if strings.TrimSpace(key) == "" {
		key = Normalize(text)
	}
	if key == "" {
		return "", ErrEmptyKey
	}

	ctx, done := s.begin(ctx, "add", attribute.String("favourite.key", key))
	defer func() { done(err) }()

	replaced, err := s.backend.Set(ctx, key, text)
	if err != nil {
		return "", fmt.Errorf("favourites: add %q: %w", key, err)
	}
	if replaced {
		s.metrics.RecordFavouriteOverwrite(ctx)
	}
	observe.Logger(ctx).Debug("favourite saved", "key", key, "overwrote", replaced)
	return key, nil
}

// Delete removes key. Removing an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	ctx, done := s.begin(ctx, "delete", attribute.String("favourite.key", key))
	defer func() { done(err) }()

	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("favourites: delete %q: %w", key, err)
	}
	observe.Logger(ctx).Debug("favourite deleted", "key", key)
	return nil
}

// ClearAll removes every entry, but only when confirmed is true. Without
// confirmation it does nothing and reports no error.
func (s *Store) ClearAll(ctx context.Context, confirmed bool) (err error) {
	if !confirmed {
		observe.Logger(ctx).Debug("favourites clear skipped, not confirmed")
		return nil
	}

	ctx, done := s.begin(ctx, "clear")
	defer func() { done(err) }()

	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("favourites: clear: %w", err)
	}
	observe.Logger(ctx).Debug("favourites cleared")
	return nil
}

// Ping checks that the backing storage is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("favourites: ping: %w", err)
	}
	return nil
}

// begin starts a span for op. The returned func records the outcome and ends
// the span.
func (s *Store) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "favourites."+op,
		trace.WithAttributes(attrs...),
	)
	return ctx, func(err error) {
		s.metrics.RecordFavouriteOp(ctx, op, err, time.Since(start))
		observe.Fail(span, err)
		if err != nil {
			observe.Logger(ctx).Warn("favourites operation failed", "op", op, "err", err)
		}
		span.End()
	}
}
