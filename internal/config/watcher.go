package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher re-checks the config file.
const defaultPollInterval = 5 * time.Second

// snapshot is one successfully parsed read of the config file, with enough
// file state to tell the next read apart from it.
type snapshot struct {
	cfg   *Config
	hash  [sha256.Size]byte
	mtime time.Time
}

// Watcher polls the config file so cueing defaults and practice timeouts can
// be adjusted without restarting the gateway. A reload that fails to parse
// or validate is logged and discarded; the last good config stays current,
// and live practice sessions are never handed a broken one.
//
// Polling was chosen over fsnotify: one small YAML file on a 5s tick costs
// nothing, and it behaves the same across bind mounts and editors that
// replace rather than rewrite the file.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu   sync.Mutex
	last snapshot

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval overrides the 5s polling interval. Non-positive values are
// ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in the
// background. onChange, if non-nil, runs after every accepted reload with
// the previous and new configs. An unreadable or invalid initial file is an
// error — there is no last good config to fall back on yet.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.last = snap

	go w.poll()
	return w, nil
}

// Current returns the last good config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last.cfg
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.reload()
		}
	}
}

// reload re-reads the file when its mtime moved and swaps in the new config
// when the content actually changed and parsed cleanly.
func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.last.mtime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	snap, err := w.read()
	if err != nil {
		slog.Warn("config watcher: reload rejected, keeping last good config",
			"path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.hash == w.last.hash {
		// Touched but identical, remember the mtime so the next tick skips
		// the re-read.
		w.last.mtime = snap.mtime
		w.mu.Unlock()
		return
	}
	old := w.last.cfg
	w.last = snap
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
}

// read parses and validates the file in one pass, hashing the same bytes it
// parsed so the hash can never disagree with the config it labels.
func (w *Watcher) read() (snapshot, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return snapshot{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return snapshot{}, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return snapshot{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}

	return snapshot{cfg: cfg, hash: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
