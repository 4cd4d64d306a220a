// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decode

import (
	"errors"
	"fmt"
	"image"
)

// FormatError indicates data lacking a recognizable container
// signature. Callers may fall back to static image decoding.
type FormatError struct {
	// Sniff is the data prefix examined for a signature.
	Sniff string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognized container signature %q", e.Sniff)
}

// CorruptError indicates recognized but malformed image data. An
// Index of -1 refers to container-level metadata; other values refer
// to the faulty frame.
type CorruptError struct {
	Index int
	Err   error
}

func (e *CorruptError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("corrupt image data: %v", e.Err)
	}
	return fmt.Sprintf("corrupt frame %d: %v", e.Index, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// RangeError indicates a frame index outside the decoded frame count.
// It reports a caller precondition violation, not an input fault.
type RangeError struct {
	Index  int
	Frames int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("frame index %d out of range [0,%d)", e.Index, e.Frames)
}

var errNoFrames = errors.New("no frames")

type countMismatchError struct {
	field  string
	frames int
	got    int
}

func (e countMismatchError) Error() string {
	return fmt.Sprintf("mismatched image count and %s count: %d != %d", e.field, e.frames, e.got)
}

type backgroundIndexError byte

func (e backgroundIndexError) Error() string {
	return fmt.Sprintf("global background colour index not in palette: %d", e)
}

type boundsError struct {
	frame  image.Rectangle
	canvas image.Rectangle
}

func (e boundsError) Error() string {
	return fmt.Sprintf("frame bounds %v outside canvas %v", e.frame, e.canvas)
}
