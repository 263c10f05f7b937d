package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// OutDir receives the converted documents.
	OutDir string
	// To is the output format.
	To Format
	// Debounce is how long a file must stay quiet before it is converted.
	Debounce time.Duration
	// Extensions lists the source extensions to react to, such as ".xml".
	// Empty means both .stb and .xml.
	Extensions []string
	// OnResult, when set, is called after every conversion attempt.
	OnResult func(Result, error)
}

// Watcher re-exports room documents whenever they change on disk. Outputs
// are always overwritten.
type Watcher struct {
	conv    *Converter
	opts    WatchOptions
	exts    map[string]bool
	watcher *fsnotify.Watcher
	once    sync.Once
}

// NewWatcher starts watching dirs. Events that arrive before Run is called
// are queued.
//
// Precondition: each dir must exist.
// Postcondition: returns a Watcher that must be released with Close or by
// Run returning, or a non-nil error.
func NewWatcher(conv *Converter, opts WatchOptions, dirs ...string) (*Watcher, error) {
	if opts.To == FormatUnknown {
		return nil, fmt.Errorf("watch: %w", ErrUnknownFormat)
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{FormatSTB.Ext(), FormatXML.Ext()}
	}
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[strings.ToLower(e)] = true
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	return &Watcher{conv: conv, opts: opts, exts: set, watcher: fw}, nil
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) matches(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}

// Run converts changed files until ctx is cancelled or the watcher is
// closed. Each path is converted once it has been quiet for the debounce
// interval.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	logger := w.conv.logger.With(zap.String("out", w.opts.OutDir), zap.Stringer("to", w.opts.To))
	logger.Info("watching for changes")

	deb := newDebouncer(w.opts.Debounce, ctx.Done())
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.matches(event.Name) {
				continue
			}
			deb.touch(event.Name)
		case path := <-deb.ready:
			deb.done(path)
			w.convert(path, logger)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) convert(path string, logger *zap.Logger) {
	dst := DestPath(path, w.opts.OutDir, w.opts.To)
	if samePath(path, dst) {
		return
	}
	res, err := w.conv.convert(path, dst, w.opts.To, true)
	if err != nil {
		logger.Warn("conversion failed", zap.String("path", path), zap.Error(err))
	}
	if w.opts.OnResult != nil {
		w.opts.OnResult(res, err)
	}
}
