// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errimg renders error messages as images so a presentation
// layer can show a visible failure frame instead of nothing.
package errimg

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/bbrks/wrap/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Face7x13 cell dimensions.
const (
	cellWidth  = 7
	cellHeight = 13
)

// Render returns an image of the error message wrapped into rect
// using [basicfont.Face7x13]. Text that does not fit is truncated.
func Render(err error, rect image.Rectangle, fg, bg color.Color) *image.RGBA {
	img := image.NewRGBA(rect)
	draw.Draw(img, rect, image.NewUniform(bg), image.Point{}, draw.Src)

	cols := rect.Dx() / cellWidth
	rows := rect.Dy() / cellHeight
	if cols < 1 || rows < 1 {
		return img
	}
	wrapper := wrap.NewWrapper()
	wrapper.StripTrailingNewline = true
	wrapper.CutLongWords = true
	lines := strings.Split(wrapper.Wrap(err.Error(), cols), "\n")
	if len(lines) > rows {
		lines = lines[:rows]
	}

	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: basicfont.Face7x13,
	}
	y := rect.Min.Y + cellHeight
	for _, l := range lines {
		d.Dot = fixed.P(rect.Min.X+1, y)
		d.DrawString(strings.TrimSpace(l))
		y += cellHeight
	}
	return img
}
