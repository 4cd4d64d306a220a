// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flipbook provides a duration-accurate animated image
// playback engine with a bounded prefetch frame cache.
//
// The engine is an embeddable object driven by an external tick
// source; it owns no timer of its own. A presentation layer composes
// an [Engine], attaches a [TickSource] and reads [Engine.CurrentFrame]
// on each repaint.
package flipbook
