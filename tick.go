// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flipbook

import (
	"sync"
	"time"
)

// TickSource delivers periodic elapsed-time callbacks to a playback
// engine. Registration is explicit; there is no ambient global timer.
type TickSource interface {
	// Register starts delivery of ticks to fn and returns a cancel
	// function releasing the registration. fn receives the time
	// elapsed since the previous tick.
	Register(fn func(elapsed time.Duration)) (cancel func())
}

// WallClock provides the time operations used by Ticker, allowing
// substitution in tests.
type WallClock interface {
	Now() time.Time
	// NewTicker returns a channel delivering ticks at the given
	// interval and a function that stops delivery.
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

// SystemClock is the default WallClock backed by the time package.
var SystemClock WallClock = systemClock{}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Ticker is a TickSource driven by a periodic wall clock ticker. The
// zero value ticks at 60Hz on the system clock.
type Ticker struct {
	// Interval is the tick interval. If zero or negative,
	// a 60Hz interval is used.
	Interval time.Duration

	// Clock is the time source. If nil, SystemClock is used.
	Clock WallClock
}

// Register starts a goroutine delivering measured elapsed times to fn
// on each tick until the returned cancel function is called. Cancel
// is idempotent.
func (t *Ticker) Register(fn func(elapsed time.Duration)) (cancel func()) {
	clk := t.Clock
	if clk == nil {
		clk = SystemClock
	}
	interval := t.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}
	ch, stop := clk.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		last := clk.Now()
		for {
			select {
			case <-done:
				return
			case now := <-ch:
				fn(now.Sub(last))
				last = now
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			stop()
			close(done)
		})
	}
}
