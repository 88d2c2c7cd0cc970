package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/errs"
)

const (
	defaultDebounce = 2 * time.Second
	defaultGlob     = "*"
	tickInterval    = 100 * time.Millisecond
)

// Handler processes a settled file. Returned errors are logged and the
// watcher moves on.
type Handler func(ctx context.Context, path string) error

type Options struct {
	Dir      string
	Glob     string
	Debounce time.Duration
}

// Watcher hands files created or written in a directory to a handler once
// they stop changing. Files are handled one at a time in path order.
type Watcher struct {
	dir      string
	glob     string
	debounce time.Duration
	handler  Handler
	now      func() time.Time

	pending map[string]time.Time
}

func New(opts Options, handler Handler) (*Watcher, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if handler == nil {
		return nil, errors.New("watch handler is required")
	}
	glob := strings.TrimSpace(opts.Glob)
	if glob == "" {
		glob = defaultGlob
	}
	if _, err := filepath.Match(glob, ""); err != nil {
		return nil, errs.Wrapf(err, "invalid watch glob %q", glob)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		dir:      dir,
		glob:     glob,
		debounce: debounce,
		handler:  handler,
		now:      time.Now,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fs watcher")
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return errs.Wrapf(err, "watch %s", w.dir)
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "watcher"), slog.String("dir", w.dir))
	logging.Info(logCtx, "watching directory", slog.String("glob", w.glob), slog.Duration("debounce", w.debounce))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(logCtx, "watcher stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("fs watcher event channel closed")
			}
			w.observe(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fs watcher error channel closed")
			}
			logging.Warn(logCtx, "fs watcher error", slog.Any("err", err))

		case <-ticker.C:
			for _, path := range w.settled() {
				if ctx.Err() != nil {
					return nil
				}
				w.handle(logCtx, path)
			}
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(event.Name) {
		return
	}
	w.pending[event.Name] = w.now()
}

func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	ok, err := filepath.Match(w.glob, base)
	return err == nil && ok
}

// settled removes and returns the pending paths quiet for at least the
// debounce window.
func (w *Watcher) settled() []string {
	now := w.now()
	var out []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) handle(ctx context.Context, path string) {
	fileCtx := logging.WithAttrs(ctx, slog.String("file", path))
	if err := w.handler(fileCtx, path); err != nil {
		logging.Error(fileCtx, "handle watched file failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	logging.Debug(fileCtx, "watched file handled")
}
