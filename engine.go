// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flipbook

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kortschak/flipbook/decode"
)

// Status is the preparation status of an Engine.
type Status int

const (
	NotPrepared Status = iota
	Preparing
	Ready
	Failed
)

// String returns the name of the status.
func (s Status) String() string {
	switch s {
	case NotPrepared:
		return "not prepared"
	case Preparing:
		return "preparing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// PreconditionError indicates a playback operation invoked before the
// engine was ready for it.
type PreconditionError struct {
	Op     string
	Status Status
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: engine %s", e.Op, e.Status)
}

// Option is an Engine configuration option.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its frame cache.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithPreloadCount sets the frame cache capacity. Values less than
// one select DefaultPreloadCount.
func WithPreloadCount(n int) Option {
	return func(e *Engine) { e.preload = n }
}

// WithTargetSize sets a decode-time scaling target applied to all
// frames.
func WithTargetSize(rect image.Rectangle, fit decode.Fit) Option {
	return func(e *Engine) { e.target = rect; e.fit = fit }
}

// WithAsyncDecode moves frame decoding onto a background worker so
// ticks never block on decoding, at the cost of placeholder frames
// while decodes are in flight.
func WithAsyncDecode(async bool) Option {
	return func(e *Engine) { e.async = async }
}

// WithLoops overrides the animation's own loop count with a number of
// complete passes. Zero keeps the animation's declared looping.
func WithLoops(passes int) Option {
	return func(e *Engine) { e.loops = passes }
}

// Engine is an animated image playback engine. It composes a decode
// session, a bounded frame cache and a playback clock, and is driven
// entirely by an external tick source.
//
// All methods are safe for use from the tick goroutine concurrently
// with control calls from another goroutine.
type Engine struct {
	log     *slog.Logger
	preload int
	target  image.Rectangle
	fit     decode.Fit
	async   bool
	loops   int

	mu         sync.Mutex
	status     Status
	session    *decode.Session
	window     *Window
	clock      *Clock
	current    *decode.Frame
	onChange   func(int)
	cancelTick func()
}

// New returns an Engine configured with the provided options.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:     slog.New(slog.DiscardHandler),
		preload: DefaultPreloadCount,
	}
	for _, o := range opts {
		o(e)
	}
	if e.preload < 1 {
		e.preload = DefaultPreloadCount
	}
	return e
}

// Prepare replaces the engine's content with the animation decoded
// from r. Any previous session, cache and in-flight decode are
// discarded atomically before the new content becomes visible; there
// is never a moment when both are live. On failure the engine is left
// in the Failed state with no content.
func (e *Engine) Prepare(r io.Reader) error {
	e.mu.Lock()
	old := e.window
	e.window = nil
	e.session = nil
	e.clock = nil
	e.current = nil
	e.status = Preparing
	e.mu.Unlock()
	if old != nil {
		old.Close()
	}

	var decodeOpts []decode.Option
	if !e.target.Empty() {
		decodeOpts = append(decodeOpts, decode.WithTargetSize(e.target, e.fit))
	}
	s, err := decode.Open(r, decodeOpts...)
	if err != nil {
		e.fail(err)
		return fmt.Errorf("prepare: %w", err)
	}
	w, err := NewWindow(s, e.preload, e.async, e.log)
	if err != nil {
		e.fail(err)
		return fmt.Errorf("prepare: %w", err)
	}
	c := NewClock(s.Durations(), e.passes(s))

	e.mu.Lock()
	e.session = s
	e.window = w
	e.clock = c
	e.current, _ = w.Get(0)
	e.status = Ready
	e.mu.Unlock()

	w.Preload(0, e.preload)
	e.log.Debug("prepared", slog.Int("frames", s.Frames()), slog.Int("loop_count", s.LoopCount()))
	return nil
}

func (e *Engine) fail(err error) {
	e.mu.Lock()
	e.status = Failed
	e.mu.Unlock()
	e.log.Error("prepare", slog.Any("error", err))
}

// passes translates the session's GIF loop count semantics into a
// whole pass count, honoring any WithLoops override.
func (e *Engine) passes(s *decode.Session) int {
	if e.loops > 0 {
		return e.loops
	}
	switch lc := s.LoopCount(); {
	case lc == 0:
		return 0 // Forever.
	case lc < 0:
		return 1
	default:
		return lc + 1
	}
}

// Status returns the engine's preparation status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// IsAnimatable returns whether the engine holds playable animated
// content with more than one frame.
func (e *Engine) IsAnimatable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == Ready && e.session.Frames() > 1
}

// Playing returns whether playback is currently running.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == Ready && e.clock.State() == Playing
}

// Play starts or resumes playback. Playing unprepared content is a
// *PreconditionError; playing single-frame content is a no-op.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != Ready {
		return &PreconditionError{Op: "play", Status: e.status}
	}
	if e.session.Frames() < 2 {
		return nil
	}
	e.clock.Play()
	return nil
}

// Pause suspends playback retaining the current position.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != Ready {
		return &PreconditionError{Op: "pause", Status: e.status}
	}
	e.clock.Pause()
	return nil
}

// Stop halts playback and rewinds to the first frame.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.status != Ready {
		e.mu.Unlock()
		return &PreconditionError{Op: "stop", Status: e.status}
	}
	changed := e.clock.Index() != 0
	e.clock.Stop()
	e.window.Preload(0, e.preload)
	if f, _ := e.window.Get(0); f != nil {
		e.current = f
	}
	fn := e.onChange
	e.mu.Unlock()
	if changed && fn != nil {
		fn(0)
	}
	return nil
}

// Tick advances playback by elapsed. It is a no-op unless the engine
// is ready and playing. The frame change callback fires only when the
// current index actually changes.
func (e *Engine) Tick(elapsed time.Duration) {
	e.mu.Lock()
	if e.status != Ready || e.clock.State() != Playing {
		e.mu.Unlock()
		return
	}
	changed := e.clock.Tick(elapsed)
	var (
		idx int
		fn  func(int)
	)
	if changed {
		idx = e.clock.Index()
		e.window.Preload(idx, e.preload)
		if f, _ := e.window.Get(idx); f != nil {
			e.current = f
		}
		fn = e.onChange
	}
	e.mu.Unlock()
	if fn != nil {
		fn(idx)
	}
}

// CurrentFrame returns the frame that should be on screen right now,
// or nil if no content is prepared. The returned image must not be
// modified.
func (e *Engine) CurrentFrame() image.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	return e.current.Pix
}

// CurrentIndex returns the current playback frame index.
func (e *Engine) CurrentIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clock == nil {
		return 0
	}
	return e.clock.Index()
}

// OnFrameChange registers fn to be called with the new frame index
// whenever the current frame changes. The callback is invoked without
// the engine lock held.
func (e *Engine) OnFrameChange(fn func(index int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// Attach registers the engine's Tick with the provided tick source,
// detaching any previous source first.
func (e *Engine) Attach(src TickSource) {
	e.Detach()
	cancel := src.Register(e.Tick)
	e.mu.Lock()
	e.cancelTick = cancel
	e.mu.Unlock()
}

// Detach releases the current tick source registration, if any.
func (e *Engine) Detach() {
	e.mu.Lock()
	cancel := e.cancelTick
	e.cancelTick = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close detaches the engine and releases its content.
func (e *Engine) Close() {
	e.Detach()
	e.mu.Lock()
	w := e.window
	e.window = nil
	e.session = nil
	e.clock = nil
	e.current = nil
	e.status = NotPrepared
	e.mu.Unlock()
	if w != nil {
		w.Close()
	}
}
