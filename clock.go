// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flipbook

import "time"

// State is a playback state.
type State int

const (
	Stopped State = iota
	Paused
	Playing
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "invalid"
	}
}

// Clock accumulates elapsed time from ticks and advances the current
// frame index when the accumulated time covers the current frame's
// display duration. Advancement is wall-clock accurate under
// irregular ticks: a single large tick advances as many whole frames
// as its elapsed time justifies.
//
// Clock is not safe for concurrent use.
type Clock struct {
	durations []time.Duration
	passes    int // 0 means loop forever.

	state     State
	index     int
	accum     time.Duration
	remaining int
}

// NewClock returns a Clock over frames with the given display
// durations. passes is the number of complete passes to play; zero
// plays forever.
func NewClock(durations []time.Duration, passes int) *Clock {
	if passes < 0 {
		passes = 0
	}
	return &Clock{
		durations: durations,
		passes:    passes,
		remaining: passes,
	}
}

// State returns the current playback state.
func (c *Clock) State() State { return c.state }

// Index returns the current frame index.
func (c *Clock) Index() int { return c.index }

// Play starts or resumes playback. It is a no-op when already playing
// or when there are no frames to play.
func (c *Clock) Play() {
	if c.state == Playing || len(c.durations) == 0 {
		return
	}
	c.state = Playing
}

// Pause suspends playback, retaining position and accumulated time.
func (c *Clock) Pause() {
	if c.state != Playing {
		return
	}
	c.state = Paused
}

// Stop halts playback and resets the position, accumulated time and
// remaining pass count.
func (c *Clock) Stop() {
	c.state = Stopped
	c.index = 0
	c.accum = 0
	c.remaining = c.passes
}

// Tick adds elapsed time and advances the frame index by as many
// whole frames as the accumulated time covers, wrapping at the end of
// the animation. When the final pass completes the clock stops,
// holding on the final frame. Tick reports whether the index changed;
// it is a no-op unless playing.
func (c *Clock) Tick(elapsed time.Duration) (changed bool) {
	if c.state != Playing {
		return false
	}
	c.accum += elapsed
	for c.accum >= c.durations[c.index] {
		c.accum -= c.durations[c.index]
		if c.index < len(c.durations)-1 {
			c.index++
			changed = true
			continue
		}
		if c.remaining > 0 {
			c.remaining--
			if c.remaining == 0 {
				// Passes exhausted; hold the final frame.
				c.state = Stopped
				c.accum = 0
				return changed
			}
		}
		c.index = 0
		changed = true
	}
	return changed
}
