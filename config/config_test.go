// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flipbook.toml")
	err := os.WriteFile(path, []byte(text), 0o644)
	if err != nil {
		t.Fatalf("unexpected error writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
input = "cat.gif"
fps = 30.0
preload = 3
fit = "cover"
log_level = "DEBUG"
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	level := slog.LevelDebug
	want := &Player{
		Input:    "cat.gif",
		Output:   "frames",
		FPS:      30,
		Preload:  3,
		Fit:      "cover",
		LogLevel: &level,
	}
	if !cmp.Equal(got, want) {
		t.Errorf("unexpected config:\n%s", cmp.Diff(got, want))
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `input = "cat.gif"`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FPS != Default.FPS || got.Preload != Default.Preload || got.Fit != Default.Fit {
		t.Errorf("defaults not applied: %+v", got)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "bad_fit", text: "input = \"cat.gif\"\nfit = \"tile\""},
		{name: "bad_fps", text: "input = \"cat.gif\"\nfps = -1.0"},
		{name: "bad_preload", text: "input = \"cat.gif\"\npreload = 0"},
		{name: "unknown_key", text: "input = \"cat.gif\"\nspeed = 2"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.text))
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.gif")
	err := os.WriteFile(path, []byte("before"), 0o644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan Change, 1)
	err = Watch(ctx, path, changes, -1, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = os.WriteFile(path, []byte("after"), 0o644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case c := <-changes:
		if c.Err != nil {
			t.Fatalf("unexpected error: %v", c.Err)
		}
		if len(c.Event) == 0 {
			t.Error("change with no events")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change observed")
	}
}
