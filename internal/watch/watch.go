// Package watch reports each committed change to a file-backed game.
//
// The file backend replaces its document by renaming a temp file over it,
// so the watcher follows the containing directory rather than the file and
// filters events by name. Bursts of events are debounced and the document
// is re-read under the store's shared lock.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/giftswap/internal/logging"
	"github.com/Iron-Ham/giftswap/internal/world"
)

// DefaultDebounce collapses the create, write and rename events of one
// commit.
const DefaultDebounce = 50 * time.Millisecond

// Source is a file-backed store.
type Source interface {
	ReadAll(ctx context.Context) (*world.State, error)
	Path() string
}

// Watcher follows a Source's document.
type Watcher struct {
	src      Source
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait for events to settle.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the watcher's logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New starts watching src's directory.
func New(src Source, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		src:      src,
		fsw:      fsw,
		debounce: DefaultDebounce,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := fsw.Add(filepath.Dir(src.Path())); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops the underlying watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

// Run calls fn with the current document, then again after every change,
// until ctx is done or the watcher is closed. Changes that leave the
// document's last-updated stamp untouched are not reported.
func (w *Watcher) Run(ctx context.Context, fn func(*world.State)) error {
	target := filepath.Clean(w.src.Path())

	var last world.Timestamp
	emit := func() {
		st, err := w.src.ReadAll(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("watch: read state failed", "error", err.Error())
			}
			return
		}
		if !last.IsZero() && st.Meta.LastUpdated.Equal(last.Time) {
			return
		}
		last = st.Meta.LastUpdated
		fn(st)
	}
	emit()

	timer := time.NewTimer(0)
	<-timer.C
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			timer.Reset(w.debounce)

		case <-timer.C:
			if pending {
				pending = false
				emit()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch: filesystem error", "error", err.Error())
		}
	}
}
