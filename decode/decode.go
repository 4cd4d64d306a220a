// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package decode provides lazy frame-at-a-time decoding of animated
// GIF images.
package decode

import (
	"bufio"
	"image"
	"image/color"
	"image/gif"
	"io"
	"time"

	"golang.org/x/image/draw"
)

// IsGIF returns whether the data held by r is a GIF image.
func IsGIF(r ReadPeeker) bool {
	return hasMagic("GIF8?a", r)
}

// ReadPeeker is an io.Reader that can also peek n bytes ahead.
type ReadPeeker interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// AsReadPeeker converts an io.Reader to a ReadPeeker.
func AsReadPeeker(r io.Reader) ReadPeeker {
	if r, ok := r.(ReadPeeker); ok {
		return r
	}
	return bufio.NewReader(r)
}

// hasMagic returns whether r starts with the provided magic bytes.
func hasMagic(magic string, r ReadPeeker) bool {
	b, err := r.Peek(len(magic))
	if err != nil || len(b) != len(magic) {
		return false
	}
	for i, c := range b {
		if magic[i] != c && magic[i] != '?' {
			return false
		}
	}
	return true
}

// GIF frame disposal modes.
const (
	disposalNone      = 1
	restoreBackground = 2
	restorePrevious   = 3
)

const (
	// defaultFrameDuration is used for frames with no usable delay.
	// This follows the convention used by browsers for zero and
	// near-zero GIF delays.
	defaultFrameDuration = 100 * time.Millisecond

	// minFrameDuration is the shortest delay honored as specified.
	minFrameDuration = 20 * time.Millisecond
)

// Frame is a single presentable animation frame. A Frame is immutable
// once returned by a Session; callers must not modify Pix.
type Frame struct {
	// Pix is the fully composited frame image.
	Pix *image.RGBA

	// Duration is the length of time the frame
	// should remain on screen.
	Duration time.Duration

	// Index is the ordinal position of the frame
	// within the animation.
	Index int
}

// Fit specifies how a decoded frame is fitted to a target rectangle.
type Fit int

const (
	// FitContain scales preserving aspect ratio so the
	// complete frame is visible within the target.
	FitContain Fit = iota

	// FitCover scales preserving aspect ratio so the frame
	// completely covers the target, cropping overflow.
	FitCover

	// FitStretch scales to the target ignoring aspect ratio.
	FitStretch
)

// Option is a Session configuration option.
type Option func(*Session)

// WithTargetSize configures a session to scale composited frames to
// rect using the provided fit mode. Scaling uses bilinear
// interpolation and does not affect the decode contract.
func WithTargetSize(rect image.Rectangle, fit Fit) Option {
	return func(s *Session) {
		s.target = rect
		s.fit = fit
	}
}

// Session is a decode cursor over a single animated image. A Session
// retains the minimal disposal context needed to composite frames
// incrementally, so sequential frame requests do not re-decode from
// the start. Requests behind the cursor recomposite from frame zero.
//
// Session values must not be shared between goroutines without
// external synchronisation; at most one goroutine may decode at a
// time.
type Session struct {
	g          *gif.GIF
	bounds     image.Rectangle
	background image.Image

	target image.Rectangle
	fit    Fit

	// Disposal context.
	canvas *image.RGBA
	cursor int
}

// Open returns a Session decoding the animated GIF data held by r.
// Data without a GIF signature results in a *FormatError. Recognized
// but structurally inconsistent data results in a *CorruptError.
func Open(r io.Reader, opts ...Option) (*Session, error) {
	p := AsReadPeeker(r)
	if !IsGIF(p) {
		b, _ := p.Peek(6)
		return nil, &FormatError{Sniff: string(b)}
	}
	g, err := gif.DecodeAll(p)
	if err != nil {
		return nil, &CorruptError{Index: -1, Err: err}
	}
	err = validate(g)
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	s := &Session{
		g:          g,
		bounds:     bounds,
		background: backgroundImage(g),
	}
	for _, o := range opts {
		o(s)
	}
	s.reset()
	return s, nil
}

// validate checks structural metadata consistency following
// decoding.
func validate(g *gif.GIF) error {
	if len(g.Image) == 0 {
		return &CorruptError{Index: -1, Err: errNoFrames}
	}
	if g.Delay != nil && len(g.Image) != len(g.Delay) {
		return &CorruptError{Index: -1, Err: countMismatchError{"delay", len(g.Image), len(g.Delay)}}
	}
	if g.Disposal != nil && len(g.Image) != len(g.Disposal) {
		return &CorruptError{Index: -1, Err: countMismatchError{"disposal", len(g.Image), len(g.Disposal)}}
	}
	if pal, ok := g.Config.ColorModel.(color.Palette); ok && int(g.BackgroundIndex) >= len(pal) {
		return &CorruptError{Index: -1, Err: backgroundIndexError(g.BackgroundIndex)}
	}
	return nil
}

// backgroundImage returns the global background for g, or nil if no
// valid global background is declared.
func backgroundImage(g *gif.GIF) image.Image {
	pal, ok := g.Config.ColorModel.(color.Palette)
	if idx := int(g.BackgroundIndex); ok && idx < len(pal) {
		return &image.Uniform{C: pal[idx]}
	}
	return nil
}

// Frames returns the total number of frames in the animation.
func (s *Session) Frames() int {
	return len(s.g.Image)
}

// LoopCount returns the animation's loop count using [gif.GIF]
// semantics; zero loops forever and -1 plays each frame once.
func (s *Session) LoopCount() int {
	return s.g.LoopCount
}

// Bounds returns the bounds of frames produced by the session.
func (s *Session) Bounds() image.Rectangle {
	if !s.target.Empty() {
		return s.target
	}
	return s.bounds
}

// Durations returns the display duration of every frame in order.
// Durations are always positive; sub-threshold delays are normalized
// to the default frame duration.
func (s *Session) Durations() []time.Duration {
	d := make([]time.Duration, len(s.g.Image))
	for i := range d {
		d[i] = s.duration(i)
	}
	return d
}

func (s *Session) duration(i int) time.Duration {
	if s.g.Delay == nil {
		return defaultFrameDuration
	}
	d := 10 * time.Duration(s.g.Delay[i]) * time.Millisecond
	if d < minFrameDuration {
		return defaultFrameDuration
	}
	return d
}

func (s *Session) disposal(i int) byte {
	if s.g.Disposal == nil {
		return 0
	}
	return s.g.Disposal[i]
}

func (s *Session) reset() {
	s.canvas = image.NewRGBA(s.bounds)
	s.cursor = 0
}

// Frame composites and returns frame index. Indexes outside
// [0, Frames()) result in a *RangeError. A structurally invalid frame
// results in a degraded frame holding the most recently composited
// pixels with the faulty frame's duration and index, returned
// together with a *CorruptError describing the fault, so playback can
// continue rather than abort. Structurally invalid frames between the
// cursor and the requested index leave the composition canvas
// untouched.
func (s *Session) Frame(index int) (*Frame, error) {
	if index < 0 || index >= len(s.g.Image) {
		return nil, &RangeError{Index: index, Frames: len(s.g.Image)}
	}
	if index < s.cursor {
		s.reset()
	}
	var (
		out  *Frame
		derr error
	)
	for s.cursor <= index {
		f := s.cursor
		s.cursor++
		pm := s.g.Image[f]
		if !pm.Bounds().In(s.bounds) {
			if f == index {
				out = &Frame{Pix: s.render(), Duration: s.duration(f), Index: f}
				derr = &CorruptError{Index: f, Err: boundsError{frame: pm.Bounds(), canvas: s.bounds}}
			}
			continue
		}

		var restore *image.RGBA
		if s.disposal(f) == restorePrevious {
			restore = image.NewRGBA(pm.Bounds())
			draw.Copy(restore, restore.Bounds().Min, s.canvas, pm.Bounds(), draw.Src, nil)
		}
		draw.Copy(s.canvas, pm.Bounds().Min, pm, pm.Bounds(), draw.Over, nil)
		if f == index {
			out = &Frame{Pix: s.render(), Duration: s.duration(f), Index: f}
		}
		switch s.disposal(f) {
		case restoreBackground:
			bg := s.background
			if bg == nil {
				if idx := int(s.g.BackgroundIndex); idx < len(pm.Palette) {
					bg = &image.Uniform{C: pm.Palette[idx]}
				} else {
					bg = image.Transparent
				}
			}
			draw.Copy(s.canvas, pm.Bounds().Min, bg, pm.Bounds(), draw.Src, nil)
		case restorePrevious:
			draw.Copy(s.canvas, pm.Bounds().Min, restore, restore.Bounds(), draw.Src, nil)
		}
	}
	return out, derr
}

// render returns a copy of the composition canvas, scaled to the
// session's target size if one is set.
func (s *Session) render() *image.RGBA {
	if s.target.Empty() {
		out := image.NewRGBA(s.bounds)
		draw.Copy(out, s.bounds.Min, s.canvas, s.bounds, draw.Src, nil)
		return out
	}
	out := image.NewRGBA(s.target)
	draw.BiLinear.Scale(out, fitRect(s.target, s.bounds, s.fit), s.canvas, s.bounds, draw.Src, nil)
	return out
}

// fitRect returns the destination rectangle within dst for an image
// with the given src bounds under the provided fit mode.
func fitRect(dst, src image.Rectangle, fit Fit) image.Rectangle {
	if fit == FitStretch || src.Empty() {
		return dst
	}
	rx := float64(dst.Dx()) / float64(src.Dx())
	ry := float64(dst.Dy()) / float64(src.Dy())
	var r float64
	switch fit {
	case FitContain:
		r = min(rx, ry)
	case FitCover:
		r = max(rx, ry)
	default:
		return dst
	}
	w := int(float64(src.Dx()) * r)
	h := int(float64(src.Dy()) * r)
	x := dst.Min.X + (dst.Dx()-w)/2
	y := dst.Min.Y + (dst.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}
