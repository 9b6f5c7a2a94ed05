// Package watch decodes transmission files as they appear in a directory.
package watch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/geal-ai/bitspacket/internal/batch"
)

// Handler receives the outcomes decoded from one file.
type Handler func(path string, outcomes []batch.Outcome)

// Watcher decodes every file created or written in a directory.
type Watcher struct {
	watcher *fsnotify.Watcher
	dir     string
	opts    batch.Options
	handle  Handler
	log     *zap.Logger

	// seen holds the content hash last decoded per path; editors and
	// os.WriteFile emit several events for one logical write. Entries go
	// when the path is removed or renamed away.
	seen map[string][sha256.Size]byte
}

// New starts watching dir. Call Run to process events and Close when done.
func New(dir string, opts batch.Options, handle Handler, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{
		watcher: w,
		dir:     dir,
		opts:    opts,
		handle:  handle,
		log:     log,
		seen:    make(map[string][sha256.Size]byte),
	}, nil
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("watching for transmissions", zap.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				w.log.Debug("no more events, channel closed")
				return nil
			}
			w.dispatch(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				w.log.Debug("no more errors, channel closed")
				return nil
			}
			w.log.Warn("error while watching", zap.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error { return w.watcher.Close() }

func (w *Watcher) dispatch(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.seen, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.process(ctx, event.Name)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.log.Warn("stat failed", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Warn("read failed", zap.String("path", path), zap.Error(err))
		return
	}
	sum := sha256.Sum256(data)
	if prev, ok := w.seen[path]; ok && prev == sum {
		return
	}
	w.seen[path] = sum

	lines, err := batch.ReadLines(bytes.NewReader(data))
	if err != nil {
		w.log.Warn("bad transmission file", zap.String("path", path), zap.Error(err))
		return
	}
	if len(lines) == 0 {
		return
	}
	w.log.Debug("decoding file", zap.String("path", path), zap.Int("lines", len(lines)))
	w.handle(path, batch.Run(ctx, lines, w.opts))
}
