package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is long enough to cover one index build writing
// its files one after another.
const DefaultDebounceWindow = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is the quiet period before a batch is emitted.
	// Default: 500ms
	DebounceWindow time.Duration

	Logger *slog.Logger
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = DefaultDebounceWindow
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Watcher reports changes to a fixed set of files.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	targets   map[string]struct{}
	logger    *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New watches the parent directory of every path in files. The
// directories must exist; the files need not.
func New(files []string, opts Options) (*Watcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	w := &Watcher{
		fs:        fsw,
		debouncer: NewDebouncer(opts.DebounceWindow),
		targets:   make(map[string]struct{}, len(files)),
		logger:    opts.Logger,
		stopCh:    make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", f, err)
		}
		w.targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Changes returns batches of changed target paths. The channel is closed
// once the watcher stops.
func (w *Watcher) Changes() <-chan []string {
	return w.debouncer.Output()
}

// Run forwards file events until ctx is cancelled or Stop is called.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(event.Name)
	if _, ok := w.targets[path]; !ok {
		return
	}
	w.logger.Debug("watched_file_changed",
		slog.String("path", path),
		slog.String("op", event.Op.String()))
	w.debouncer.Add(path)
}

// Stop releases the watcher. Safe to call multiple times.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fs.Close()
		w.debouncer.Stop()
	})
	return err
}
