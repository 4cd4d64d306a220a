// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flipbook

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/kortschak/flipbook/decode"
)

var testPalette = color.Palette{
	color.RGBA{A: 0xff},
	color.RGBA{R: 0xff, A: 0xff},
	color.RGBA{G: 0xff, A: 0xff},
	color.RGBA{B: 0xff, A: 0xff},
	color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

// testGIF returns an encoded animation of n full-canvas frames with
// the provided delays in 10ms units. Frame i is filled with palette
// color i%len(testPalette).
func testGIF(t *testing.T, delays []int) []byte {
	t.Helper()
	rect := image.Rect(0, 0, 8, 8)
	g := &gif.GIF{Config: image.Config{
		ColorModel: testPalette,
		Width:      rect.Dx(),
		Height:     rect.Dy(),
	}}
	for i, d := range delays {
		pm := image.NewPaletted(rect, testPalette)
		idx := uint8(i % len(testPalette))
		for p := range pm.Pix {
			pm.Pix[p] = idx
		}
		g.Image = append(g.Image, pm)
		g.Delay = append(g.Delay, d)
	}
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, g)
	if err != nil {
		t.Fatalf("unexpected error encoding test image: %v", err)
	}
	return buf.Bytes()
}

// testSession returns a decode session over a testGIF animation.
func testSession(t *testing.T, delays []int) *decode.Session {
	t.Helper()
	s, err := decode.Open(bytes.NewReader(testGIF(t, delays)))
	if err != nil {
		t.Fatalf("unexpected error opening test image: %v", err)
	}
	return s
}

// frameColor returns the color frame i of a testGIF animation is
// filled with, in RGBA.
func frameColor(i int) color.Color {
	return color.RGBAModel.Convert(testPalette[i%len(testPalette)])
}

// repeat returns n copies of delay.
func repeat(delay, n int) []int {
	d := make([]int, n)
	for i := range d {
		d[i] = delay
	}
	return d
}
