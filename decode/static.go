// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decode

import (
	"errors"
	"image"
	"io"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeStatic decodes a single static image from r. It is the
// fallback for inputs that Open rejects with a *FormatError.
// Supported formats are GIF, PNG, JPEG, BMP, TIFF and WebP.
func DecodeStatic(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, &FormatError{}
		}
		return nil, &CorruptError{Index: -1, Err: err}
	}
	return img, nil
}
