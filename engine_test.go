// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flipbook

import (
	"bytes"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kortschak/flipbook/decode"
)

func TestEnginePrepareFormatError(t *testing.T) {
	e := New(WithLogger(discard()))
	err := e.Prepare(strings.NewReader("this is not image data"))
	var ferr *decode.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("unexpected error type: %v", err)
	}
	if e.Status() != Failed {
		t.Errorf("unexpected status: got:%v want:%v", e.Status(), Failed)
	}
	if e.CurrentFrame() != nil {
		t.Error("failed engine holds a frame")
	}
}

func TestEnginePreconditions(t *testing.T) {
	e := New(WithLogger(discard()))
	for _, op := range []func() error{e.Play, e.Pause, e.Stop} {
		err := op()
		var perr *PreconditionError
		if !errors.As(err, &perr) {
			t.Errorf("unexpected error type: %v", err)
		}
	}
}

func TestEnginePlayback(t *testing.T) {
	e := New(WithLogger(discard()))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10, 20, 30})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.IsAnimatable() {
		t.Fatal("engine not animatable")
	}
	var visited []int
	e.OnFrameChange(func(i int) { visited = append(visited, i) })
	err = e.Play()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 12 {
		e.Tick(50 * time.Millisecond)
	}
	want := []int{1, 2, 0}
	if !cmp.Equal(visited, want) {
		t.Errorf("unexpected frame sequence:\n%s", cmp.Diff(visited, want))
	}
	f := e.CurrentFrame()
	if f == nil {
		t.Fatal("no current frame")
	}
	if got, want := f.At(4, 4), frameColor(0); got != want {
		t.Errorf("unexpected frame content: got:%v want:%v", got, want)
	}
}

func TestEngineSingleFrame(t *testing.T) {
	e := New(WithLogger(discard()))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.IsAnimatable() {
		t.Error("single frame content reported animatable")
	}
	err = e.Play()
	if err != nil {
		t.Errorf("play on single frame content must be a no-op: %v", err)
	}
	e.Tick(time.Second)
	if e.CurrentIndex() != 0 {
		t.Errorf("unexpected index: got:%d want:0", e.CurrentIndex())
	}
}

func TestEngineStopRewinds(t *testing.T) {
	e := New(WithLogger(discard()))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10, 10, 10})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var last int
	e.OnFrameChange(func(i int) { last = i })
	e.Play()
	e.Tick(150 * time.Millisecond)
	if e.CurrentIndex() != 1 {
		t.Fatalf("unexpected index: got:%d want:1", e.CurrentIndex())
	}
	err = e.Stop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.CurrentIndex() != 0 {
		t.Errorf("stop did not rewind: got:%d", e.CurrentIndex())
	}
	if last != 0 {
		t.Errorf("frame change not notified on rewind: got:%d", last)
	}
	if got, want := e.CurrentFrame().At(4, 4), frameColor(0); got != want {
		t.Errorf("unexpected frame content: got:%v want:%v", got, want)
	}
}

func TestEngineReplace(t *testing.T) {
	e := New(WithLogger(discard()))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10, 10, 10})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Play()
	e.Tick(150 * time.Millisecond)

	// Replacing content must atomically discard the old session.
	err = e.Prepare(bytes.NewReader(testGIF(t, []int{20, 20})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Status() != Ready {
		t.Fatalf("unexpected status: got:%v want:%v", e.Status(), Ready)
	}
	if e.CurrentIndex() != 0 {
		t.Errorf("replacement did not reset position: got:%d", e.CurrentIndex())
	}
	if e.Playing() {
		t.Error("replacement left the clock running")
	}
	if got, want := e.CurrentFrame().At(4, 4), frameColor(0); got != want {
		t.Errorf("unexpected frame content: got:%v want:%v", got, want)
	}
}

func TestEngineLoopsOverride(t *testing.T) {
	e := New(WithLogger(discard()), WithLoops(1))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10, 10})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Play()
	for range 4 {
		e.Tick(100 * time.Millisecond)
	}
	if e.Playing() {
		t.Error("engine still playing after final pass")
	}
	if e.CurrentIndex() != 1 {
		t.Errorf("engine did not hold final frame: got:%d", e.CurrentIndex())
	}
}

type funcTickSource struct {
	fn        func(time.Duration)
	cancelled bool
}

func (s *funcTickSource) Register(fn func(elapsed time.Duration)) (cancel func()) {
	s.fn = fn
	return func() { s.cancelled = true }
}

func TestEngineAttachDetach(t *testing.T) {
	e := New(WithLogger(discard()))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10, 10})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Play()

	first := &funcTickSource{}
	e.Attach(first)
	first.fn(100 * time.Millisecond)
	if e.CurrentIndex() != 1 {
		t.Errorf("tick not delivered: index %d", e.CurrentIndex())
	}

	second := &funcTickSource{}
	e.Attach(second)
	if !first.cancelled {
		t.Error("attaching a new source did not cancel the previous")
	}
	e.Detach()
	if !second.cancelled {
		t.Error("detach did not cancel the source")
	}
}

func TestEnginePreloadCapacity(t *testing.T) {
	e := New(WithLogger(discard()), WithPreloadCount(2))
	err := e.Prepare(bytes.NewReader(testGIF(t, repeat(10, 8))))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Play()
	for range 20 {
		e.Tick(100 * time.Millisecond)
		if n := e.window.Resident(); n > 2 {
			t.Fatalf("capacity exceeded: %d resident", n)
		}
	}
}

func TestEngineTargetSize(t *testing.T) {
	target := image.Rect(0, 0, 4, 4)
	e := New(WithLogger(discard()), WithTargetSize(target, decode.FitStretch))
	err := e.Prepare(bytes.NewReader(testGIF(t, []int{10, 10})))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.CurrentFrame().Bounds(); got != target {
		t.Errorf("unexpected frame bounds: got:%v want:%v", got, target)
	}
}

func TestTicker(t *testing.T) {
	ch := make(chan time.Time)
	var stopped bool
	clk := fakeClock{
		now: time.Unix(0, 0),
		ch:  ch,
		stop: func() {
			stopped = true
		},
	}
	tick := &Ticker{Interval: time.Second, Clock: clk}
	elapsed := make(chan time.Duration)
	cancel := tick.Register(func(d time.Duration) { elapsed <- d })
	ch <- time.Unix(2, 0)
	if d := <-elapsed; d != 2*time.Second {
		t.Errorf("unexpected elapsed time: got:%v want:%v", d, 2*time.Second)
	}
	ch <- time.Unix(3, 0)
	if d := <-elapsed; d != time.Second {
		t.Errorf("unexpected elapsed time: got:%v want:%v", d, time.Second)
	}
	cancel()
	if !stopped {
		t.Error("cancel did not stop the ticker")
	}
	cancel() // Must be idempotent.
}

type fakeClock struct {
	now  time.Time
	ch   <-chan time.Time
	stop func()
}

func (c fakeClock) Now() time.Time { return c.now }

func (c fakeClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	return c.ch, c.stop
}
