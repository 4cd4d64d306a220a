// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to
// have stabilised to work around some editors writing an empty file
// and then the buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a change to a watched file identified by Watch.
type Change struct {
	Event []fsnotify.Event
	Err   error
}

// Op returns an aggregated fsnotify.Op for all elements of the
// receiver's Event field.
func (c Change) Op() fsnotify.Op {
	var op fsnotify.Op
	for _, o := range c.Event {
		op |= o.Op
	}
	return op
}

// Watch watches the file at path, sending change events on the
// changes channel until ctx is cancelled. Events are debounced and
// deduplicated by content checksum so editor write patterns do not
// produce spurious changes. The debounce parameter specifies how long
// to wait after an fsnotify.Event before reading the file; if it is
// less than zero, FileDebounce is used.
func Watch(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the parent directory so rename-into-place saves
	// are observed.
	err = watcher.Add(filepath.Dir(path))
	if err != nil {
		watcher.Close()
		return err
	}
	if debounce < 0 {
		debounce = FileDebounce
	}
	w := &fileWatcher{
		path:     path,
		debounce: debounce,
		watcher:  watcher,
		changes:  changes,
		log:      log.With(slog.String("component", "watcher")),
	}
	w.sum = w.checksum()
	go w.watch(ctx)
	return nil
}

type fileWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	changes  chan<- Change
	sum      [sha1.Size]byte
	log      *slog.Logger
}

func (w *fileWatcher) watch(ctx context.Context) {
	defer w.watcher.Close()
	var pending []fsnotify.Event
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("watcher closing", slog.Any("error", ctx.Err()))
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			w.log.Debug("event", slog.Any("op", ev.Op), slog.String("name", ev.Name))
			pending = append(pending, ev)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.changes <- Change{Err: err}:
			case <-ctx.Done():
				return
			}
		case <-fire:
			fire = nil
			sum := w.checksum()
			if sum == w.sum {
				w.log.Debug("content unchanged")
				pending = nil
				continue
			}
			w.sum = sum
			c := Change{Event: pending}
			pending = nil
			select {
			case w.changes <- c:
			case <-ctx.Done():
				return
			}
		}
	}
}

// checksum returns the sha1 sum of the watched file, or the zero sum
// if the file cannot be read.
func (w *fileWatcher) checksum() [sha1.Size]byte {
	var sum [sha1.Size]byte
	f, err := os.Open(w.path)
	if err != nil {
		return sum
	}
	defer f.Close()
	h := sha1.New()
	_, err = io.Copy(h, f)
	if err != nil {
		return sum
	}
	copy(sum[:], h.Sum(nil))
	return sum
}
