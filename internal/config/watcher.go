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

// DefaultWatchInterval is how often a [Watcher] polls unless [WithInterval]
// says otherwise.
const DefaultWatchInterval = 5 * time.Second

// fingerprint identifies one revision of the config file. The mtime lets a
// poll skip reading an untouched file; the digest decides whether a touched
// file actually changed.
type fingerprint struct {
	mtime  time.Time
	digest [sha256.Size]byte
}

// Watcher polls a config file and hands every valid new revision to a
// callback. A revision that fails to parse or validate is reported once and
// the running config stays in place until the file is fixed.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	log      *slog.Logger

	mu       sync.Mutex
	current  *Config
	seen     fingerprint
	rejected [sha256.Size]byte
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

// NewWatcher loads the config at path; an unreadable or invalid file is an
// error. Polling starts with [Watcher.Run].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		log:      slog.With("path", path),
	}
	for _, opt := range opts {
		opt(w)
	}

	fp, data, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.current, w.seen = cfg, fp
	return w, nil
}

// Current returns the config most recently accepted.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is cancelled and then returns nil, so it can share an
// errgroup with the servers.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.Check()
		}
	}
}

// Check looks at the file once. A new valid revision replaces the current
// config and is passed to the callback; Check then reports true.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config watcher: stat failed", "err", err)
		return false
	}
	w.mu.Lock()
	touched := !info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if !touched {
		return false
	}

	fp, data, err := w.read()
	if err != nil {
		w.log.Warn("config watcher: read failed", "err", err)
		return false
	}

	w.mu.Lock()
	prev := w.seen
	w.seen.mtime = fp.mtime
	alreadyRejected := fp.digest == w.rejected
	w.mu.Unlock()
	if fp.digest == prev.digest || alreadyRejected {
		return false
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		w.mu.Lock()
		w.rejected = fp.digest
		w.mu.Unlock()
		w.log.Warn("config watcher: keeping previous config", "err", err)
		return false
	}

	w.mu.Lock()
	old := w.current
	w.current, w.seen = cfg, fp
	w.mu.Unlock()

	w.log.Info("config watcher: configuration reloaded")
	// Called unlocked; the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true
}

func (w *Watcher) read() (fingerprint, []byte, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fingerprint{}, nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fingerprint{}, nil, err
	}
	return fingerprint{mtime: info.ModTime(), digest: sha256.Sum256(data)}, data, nil
}
