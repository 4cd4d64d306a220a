// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides flipbook player configuration loading,
// validation and input watching.
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/gocode/gocodec"
	"github.com/BurntSushi/toml"
)

// Player is a flipbook player configuration.
type Player struct {
	// Input is the path of the animated image to play.
	Input string `json:"input,omitempty" toml:"input"`
	// Output is the directory presented frames are written to.
	Output string `json:"output,omitempty" toml:"output"`

	// FPS is the tick rate driving playback.
	FPS float64 `json:"fps,omitempty" toml:"fps"`
	// Loops overrides the animation's declared loop count with a
	// number of complete passes. Zero honors the animation.
	Loops int `json:"loops,omitempty" toml:"loops"`
	// Preload is the frame cache capacity.
	Preload int `json:"preload,omitempty" toml:"preload"`

	// Fit selects how frames are fitted to the target size;
	// one of "contain", "cover" or "stretch".
	Fit string `json:"fit,omitempty" toml:"fit"`
	// Width and Height give the target render size.
	// Zero means the animation's native size.
	Width  int `json:"width,omitempty" toml:"width"`
	Height int `json:"height,omitempty" toml:"height"`

	// Realtime selects wall clock playback rather than
	// simulated ticks.
	Realtime bool `json:"realtime,omitempty" toml:"realtime"`

	LogLevel  *slog.Level `json:"log_level,omitempty" toml:"log_level"`
	AddSource *bool       `json:"log_add_source,omitempty" toml:"log_add_source"`
}

// Default is the configuration used for unset fields.
var Default = Player{
	Output:  "frames",
	FPS:     60,
	Preload: 5,
	Fit:     "contain",
}

// Schema is the schema for a valid player configuration.
const Schema = `
{
	input?:          string & !=""
	output?:         string & !=""
	fps?:            >0 & <=240
	loops?:          int & >=0
	preload?:        int & >0
	fit?:            "contain" | "cover" | "stretch"
	width?:          int & >=0
	height?:         int & >=0
	realtime?:       bool
	log_level?:      _#log_level
	log_add_source?: bool
}

_#log_level: =~"(?i)^(?:debug|info|warn|error)$"
`

// Load reads, validates and defaults the TOML player configuration at
// the provided path.
func Load(path string) (*Player, error) {
	cfg := Default
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if und := md.Undecoded(); len(und) != 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}
	paths, err := Validate(Schema, cfg)
	if err != nil {
		if len(paths) != 0 {
			return nil, fmt.Errorf("invalid config fields %v: %w", paths, err)
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate performs a validation of the provided configuration value,
// returning a list of invalid paths and a CUE errors.Error explaining
// the issues found if the configuration is invalid according to the
// provided schema.
func Validate(schema string, cfg any) (paths [][]string, err error) {
	ctx := cuecontext.New()

	v := ctx.CompileString(schema)
	codec := gocodec.New(ctx, nil)

	w, err := codec.Decode(cfg)
	if err != nil {
		return nil, err
	}

	u := v.Unify(w)
	err = u.Validate(cue.Concrete(true), cue.Final())
	errs := cerrors.Errors(err)
	if len(errs) != 0 {
		paths = make([][]string, 0, len(errs))
		err = cerrors.Append(
			cerrors.Promote(err, ""),
			cerrors.Promote(fmt.Errorf("%s", u), "not concrete"),
		)
	}
	for _, err := range errs {
		p := cerrors.Path(err)
		if p != nil {
			paths = append(paths, p)
		}
	}

	return unique(paths), err
}

// unique sorts and removes duplicate paths.
func unique(paths [][]string) [][]string {
	if len(paths) < 2 {
		return paths
	}
	sort.Slice(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		for n := range min(len(a), len(b)) {
			switch {
			case a[n] < b[n]:
				return true
			case a[n] > b[n]:
				return false
			}
		}
		return len(a) < len(b)
	})
	curr := 0
	for i, p := range paths {
		if equal(p, paths[curr]) {
			continue
		}
		curr++
		paths[curr] = paths[i]
	}
	return paths[:curr+1]
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, e := range a {
		if e != b[i] {
			return false
		}
	}
	return true
}
