// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flipbook

import (
	"log/slog"
	"sync"

	"github.com/kortschak/flipbook/decode"
)

// DefaultPreloadCount is the frame cache capacity used when none is
// configured.
const DefaultPreloadCount = 5

// Window is a bounded cache holding a contiguous, wrapping window of
// decoded frames around the current playback position. At most its
// capacity of frames are resident at any time. Eviction removes the
// frame furthest behind the window head first, ties broken by decode
// order.
//
// A Window optionally decodes on a single background worker so the
// tick path never blocks on decoding; in that mode Get returns the
// nearest earlier resident frame as a placeholder until the decode
// lands. Results arriving after Close are discarded.
type Window struct {
	session  *decode.Session
	capacity int
	log      *slog.Logger

	mu       sync.Mutex
	head     int
	want     map[int]bool
	resident map[int]entry
	seq      uint64
	closed   bool

	// Async decode plumbing. reqs is nil for synchronous windows.
	reqs chan int
	done chan struct{}
}

type entry struct {
	frame *decode.Frame
	seq   uint64
}

// NewWindow returns a Window over the provided session. The first
// frame is decoded synchronously so the window is never empty; a
// decode failure that cannot be degraded is returned as an error.
// If async is true, subsequent decoding runs on a background worker
// that is the session's only user.
func NewWindow(session *decode.Session, capacity int, async bool, log *slog.Logger) (*Window, error) {
	if capacity < 1 {
		capacity = DefaultPreloadCount
	}
	w := &Window{
		session:  session,
		capacity: capacity,
		log:      log,
		want:     map[int]bool{0: true},
		resident: make(map[int]entry),
	}
	f, err := session.Frame(0)
	if f == nil {
		return nil, err
	}
	if err != nil {
		w.log.Warn("degraded frame", slog.Any("error", err))
	}
	w.insertLocked(f)
	if async {
		w.reqs = make(chan int, capacity)
		w.done = make(chan struct{})
		go w.decodeLoop()
	}
	return w, nil
}

// decodeLoop serves decode requests. It is the only session user once
// started.
func (w *Window) decodeLoop() {
	for {
		select {
		case <-w.done:
			return
		case idx := <-w.reqs:
			f, err := w.session.Frame(idx)
			if err != nil {
				w.log.Warn("decode", slog.Int("frame", idx), slog.Any("error", err))
			}
			if f == nil {
				continue
			}
			w.mu.Lock()
			if !w.closed && w.want[idx] {
				w.insertLocked(f)
			}
			w.mu.Unlock()
		}
	}
}

// Preload moves the window head to from and ensures the count frames
// at [from, from+count), wrapping at the frame count, are resident or
// requested. count is clamped to the window capacity and the
// animation's frame count.
func (w *Window) Preload(from, count int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	n := w.session.Frames()
	if from < 0 || from >= n {
		return
	}
	if count > n {
		count = n
	}
	if count > w.capacity {
		count = w.capacity
	}
	w.head = from
	w.want = make(map[int]bool, count)
	for i := range count {
		w.want[(from+i)%n] = true
	}
	for i := range count {
		idx := (from + i) % n
		if _, ok := w.resident[idx]; ok {
			continue
		}
		if w.reqs != nil {
			select {
			case w.reqs <- idx:
			default:
				// Worker is saturated; the frame will be
				// requested again on a later tick.
			}
			continue
		}
		w.evictLocked()
		f, err := w.session.Frame(idx)
		if err != nil {
			w.log.Warn("decode", slog.Int("frame", idx), slog.Any("error", err))
		}
		if f != nil {
			w.insertLocked(f)
		}
	}
}

// Get returns the resident frame at index and true, or the nearest
// earlier resident frame and false as a placeholder while the decode
// is pending. It never decodes and never blocks beyond the lock.
func (w *Window) Get(index int) (*decode.Frame, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, false
	}
	if e, ok := w.resident[index]; ok {
		return e.frame, true
	}
	n := w.session.Frames()
	for back := 1; back < n; back++ {
		if e, ok := w.resident[(index-back+n)%n]; ok {
			return e.frame, false
		}
	}
	return nil, false
}

// Resident returns the number of frames currently held.
func (w *Window) Resident() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.resident)
}

// Close releases all resident frames and discards any in-flight
// decode so no frame referring to the session outlives the window.
func (w *Window) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.resident = nil
	w.want = nil
	w.mu.Unlock()
	if w.done != nil {
		close(w.done)
	}
}

// insertLocked makes f resident, evicting if at capacity.
func (w *Window) insertLocked(f *decode.Frame) {
	if _, ok := w.resident[f.Index]; !ok {
		w.evictLocked()
	}
	w.seq++
	w.resident[f.Index] = entry{frame: f, seq: w.seq}
}

// evictLocked removes frames until one slot is free. Victims are
// taken from outside the wanted window first, furthest behind the
// head in playback order, oldest decode first on ties. Frames ahead
// of the head are never evicted before frames behind it.
func (w *Window) evictLocked() {
	n := w.session.Frames()
	for len(w.resident) >= w.capacity {
		victim := w.victimLocked(n, false)
		if victim == -1 {
			victim = w.victimLocked(n, true)
		}
		if victim == -1 {
			return
		}
		delete(w.resident, victim)
	}
}

// victimLocked returns the resident frame furthest behind the head,
// oldest decode first on ties, considering only frames whose wanted
// state matches wanted. The head frame is never a victim. It returns
// -1 if there is no candidate.
func (w *Window) victimLocked(n int, wanted bool) int {
	victim := -1
	var dist int
	var seq uint64
	for idx, e := range w.resident {
		if w.want[idx] != wanted || idx == w.head {
			continue
		}
		d := (w.head - idx + n) % n
		if victim == -1 || d > dist || (d == dist && e.seq < seq) {
			victim, dist, seq = idx, d, e.seq
		}
	}
	return victim
}
