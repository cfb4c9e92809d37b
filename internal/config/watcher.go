package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls when no interval is set.
const DefaultWatchInterval = 5 * time.Second

// revision identifies one version of the config file on disk.
type revision struct {
	modTime time.Time
	size    int64
	sum     [sha256.Size]byte
}

// Watcher polls a config file and hands every valid new revision to a
// callback. A revision that fails to load or validate is reported once and
// the last good config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, next *Config)
	onError  func(error)

	mu      sync.Mutex
	current *Config
	seen    revision
	missing bool // stat failed on the last poll
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithErrorHandler is called with the load error of each broken revision and
// once when the file becomes unreadable.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

// NewWatcher loads path once and returns a Watcher that reports later
// revisions to onChange. Polling starts with [Watcher.Run].
func NewWatcher(path string, onChange func(old, next *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval, onChange: onChange}
	for _, o := range opts {
		o(w)
	}

	cfg, rev, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.seen = cfg, rev
	return w, nil
}

// Current returns the last config that loaded successfully.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is done. Reload errors go to the error handler or,
// without one, to the log.
func (w *Watcher) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := w.Poll(); err != nil && w.onError == nil {
				slog.Warn("config reload failed", "path", w.path, "err", err)
			}
		}
	}
}

// Poll checks the file once. It returns true when a new valid config was
// applied. An error is returned only for a revision or outage not reported
// before.
func (w *Watcher) Poll() (bool, error) {
	info, err := os.Stat(w.path)
	w.mu.Lock()
	wasMissing := w.missing
	w.missing = err != nil
	seen := w.seen
	w.mu.Unlock()
	if err != nil {
		if wasMissing {
			return false, nil
		}
		err = fmt.Errorf("config: stat %s: %w", w.path, err)
		if w.onError != nil {
			w.onError(err)
		}
		return false, err
	}

	if info.ModTime().Equal(seen.modTime) && info.Size() == seen.size {
		return false, nil
	}

	cfg, rev, err := w.read()
	if err != nil {
		w.mu.Lock()
		w.seen = revision{modTime: info.ModTime(), size: info.Size(), sum: seen.sum}
		w.mu.Unlock()
		if w.onError != nil {
			w.onError(err)
		}
		return false, err
	}

	w.mu.Lock()
	if rev.sum == w.seen.sum {
		// Touched, or restored to the content already in use.
		w.seen = rev
		w.mu.Unlock()
		return false, nil
	}
	old := w.current
	w.current, w.seen = cfg, rev
	w.mu.Unlock()

	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) read() (*Config, revision, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, revision{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, revision{}, err
	}
	rev := revision{modTime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, rev, err
	}
	return cfg, rev, nil
}
