package resilience

import (
	"context"

	"github.com/MrWong99/spellin/pkg/kv"
)

// Compile-time assertion that Backend satisfies the kv.Backend interface.
var _ kv.Backend = (*Backend)(nil)

// Backend routes every call to the wrapped [kv.Backend] through a [Breaker].
// Close is never guarded.
type Backend struct {
	inner   kv.Backend
	breaker *Breaker
}

// Guard wraps b with br. A nil br gets a breaker with default settings.
func Guard(b kv.Backend, br *Breaker) *Backend {
	if br == nil {
		br = NewBreaker(Config{})
	}
	return &Backend{inner: b, breaker: br}
}

// Breaker returns the breaker guarding the backend.
func (g *Backend) Breaker() *Breaker { return g.breaker }

// Keys implements [kv.Backend.Keys].
func (g *Backend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		keys, err = g.inner.Keys(ctx)
		return err
	})
	return keys, err
}

// Get implements [kv.Backend.Get].
func (g *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		value, found, err = g.inner.Get(ctx, key)
		return err
	})
	return value, found, err
}

// Set implements [kv.Backend.Set].
func (g *Backend) Set(ctx context.Context, key, value string) (bool, error) {
	var replaced bool
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		replaced, err = g.inner.Set(ctx, key, value)
		return err
	})
	return replaced, err
}

// Delete implements [kv.Backend.Delete].
func (g *Backend) Delete(ctx context.Context, key string) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.inner.Delete(ctx, key)
	})
}

// Clear implements [kv.Backend.Clear].
func (g *Backend) Clear(ctx context.Context) error {
	return g.breaker.Do(ctx, g.inner.Clear)
}

// Snapshot implements [kv.Backend.Snapshot].
func (g *Backend) Snapshot(ctx context.Context) (map[string]string, error) {
	var snap map[string]string
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, err = g.inner.Snapshot(ctx)
		return err
	})
	return snap, err
}

// Ping implements [kv.Backend.Ping]. An open breaker makes Ping fail, which
// marks the service not ready.
func (g *Backend) Ping(ctx context.Context) error {
	return g.breaker.Do(ctx, g.inner.Ping)
}

// Close implements [kv.Backend.Close].
func (g *Backend) Close() error {
	return g.inner.Close()
}
