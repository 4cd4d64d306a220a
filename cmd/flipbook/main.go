// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The flipbook executable plays an animated image, writing each
// presented frame to an output directory as a numbered PNG image.
// Playback is either simulated at a fixed tick rate, or driven by a
// wall clock ticker with optional replay when the input file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/kortschak/flipbook"
	"github.com/kortschak/flipbook/config"
	"github.com/kortschak/flipbook/decode"
	"github.com/kortschak/flipbook/internal/errimg"
	"github.com/kortschak/flipbook/internal/slogext"
	"github.com/kortschak/flipbook/internal/version"
)

// Exit status codes.
const (
	success       = 0
	internalError = 1 << (iota - 1)
	invocationError
)

func main() { os.Exit(Main()) }

func Main() int {
	cfgPath := flag.String("config", "", "path to a TOML configuration file")
	input := flag.String("input", "", "animated image to play")
	output := flag.String("o", "", "directory to write presented frames to")
	fps := flag.Float64("fps", 0, "tick rate for playback")
	loops := flag.Int("loops", 0, "number of complete passes (0 honors the animation)")
	preload := flag.Int("preload", 0, "frame cache capacity")
	fit := flag.String("fit", "", "fit mode (contain, cover or stretch)")
	width := flag.Int("width", 0, "target render width (0 for native)")
	height := flag.Int("height", 0, "target render height (0 for native)")
	realtime := flag.Bool("realtime", false, "drive playback from the wall clock")
	watch := flag.Bool("watch", false, "replay when the input file changes (implies -realtime)")
	logging := flag.String("log", "info", "logging level (debug, info, warn or error)")
	lines := flag.Bool("lines", false, "display source line details in logs")
	v := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *v {
		err := version.Print()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return internalError
		}
		return success
	}

	cfg := config.Default
	if *cfgPath != "" {
		c, err := config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return invocationError
		}
		cfg = *c
	}
	// Flags set on the command line override the file configuration.
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["input"] {
		cfg.Input = *input
	}
	if set["o"] {
		cfg.Output = *output
	}
	if set["fps"] {
		cfg.FPS = *fps
	}
	if set["loops"] {
		cfg.Loops = *loops
	}
	if set["preload"] {
		cfg.Preload = *preload
	}
	if set["fit"] {
		cfg.Fit = *fit
	}
	if set["width"] {
		cfg.Width = *width
	}
	if set["height"] {
		cfg.Height = *height
	}
	if set["realtime"] || *watch {
		cfg.Realtime = *realtime || *watch
	}
	if cfg.Input == "" {
		flag.Usage()
		return invocationError
	}

	var level slog.LevelVar
	err := level.UnmarshalText([]byte(*logging))
	if err != nil {
		flag.Usage()
		return invocationError
	}
	if cfg.LogLevel != nil && !set["log"] {
		level.Set(*cfg.LogLevel)
	}
	addSource := slogext.NewAtomicBool(*lines || (cfg.AddSource != nil && *cfg.AddSource))
	log := slog.New(slogext.GoID{Handler: slogext.NewJSONHandler(os.Stderr, &slogext.HandlerOptions{
		Level:     &level,
		AddSource: addSource,
	})})

	return run(cfg, *watch, log)
}

func run(cfg config.Player, watch bool, log *slog.Logger) int {
	err := os.MkdirAll(cfg.Output, 0o755)
	if err != nil {
		log.Error("output", slog.Any("error", err))
		return internalError
	}

	// Simulated playback of a non-terminating animation would never
	// finish; play a single pass.
	if !cfg.Realtime && cfg.Loops == 0 {
		cfg.Loops = 1
	}

	opts := []flipbook.Option{
		flipbook.WithLogger(log),
		flipbook.WithPreloadCount(cfg.Preload),
		flipbook.WithLoops(cfg.Loops),
		flipbook.WithAsyncDecode(cfg.Realtime),
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, flipbook.WithTargetSize(image.Rect(0, 0, cfg.Width, cfg.Height), fitMode(cfg.Fit)))
	}
	engine := flipbook.New(opts...)
	defer engine.Close()

	var seq int
	writeFrame := func(img image.Image) {
		if img == nil {
			return
		}
		path := filepath.Join(cfg.Output, fmt.Sprintf("frame-%04d.png", seq))
		err := writeImage(path, img)
		if err != nil {
			log.Error("write frame", slog.Any("error", err))
			return
		}
		seq++
	}
	engine.OnFrameChange(func(i int) {
		log.Debug("frame", slog.Int("index", i))
		writeFrame(engine.CurrentFrame())
	})

	err = prepare(engine, cfg.Input)
	if err != nil {
		var ferr *decode.FormatError
		if errors.As(err, &ferr) {
			// Not an animation; fall back to a static image.
			img, serr := decodeStatic(cfg.Input)
			if serr == nil {
				err = writeImage(filepath.Join(cfg.Output, "static.png"), img)
				if err != nil {
					log.Error("write static", slog.Any("error", err))
					return internalError
				}
				log.Info("static image", slog.String("input", cfg.Input))
				return success
			}
			err = serr
		}
		log.Error("prepare", slog.String("input", cfg.Input), slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		werr := writeImage(filepath.Join(cfg.Output, "error.png"),
			errimg.Render(err, image.Rect(0, 0, 256, 64), color.White, color.Black))
		if werr != nil {
			log.Error("write error frame", slog.Any("error", werr))
		}
		return internalError
	}

	writeFrame(engine.CurrentFrame())
	err = engine.Play()
	if err != nil {
		log.Error("play", slog.Any("error", err))
		return internalError
	}
	if !engine.IsAnimatable() {
		log.Info("single frame", slog.String("input", cfg.Input))
		return success
	}

	if cfg.Realtime {
		return play(engine, cfg, watch, log)
	}
	return simulate(engine, cfg, log)
}

// simulate drives the engine with fixed synthetic ticks until
// playback completes.
func simulate(engine *flipbook.Engine, cfg config.Player, log *slog.Logger) int {
	step := time.Duration(float64(time.Second) / cfg.FPS)
	var ticks int
	for engine.Playing() {
		engine.Tick(step)
		ticks++
	}
	log.Info("complete", slog.Int("ticks", ticks), slog.Duration("played", time.Duration(ticks)*step))
	return success
}

// play drives the engine from the wall clock until playback completes
// or interrupt, replaying on input changes when watching.
func play(engine *flipbook.Engine, cfg config.Player, watch bool, log *slog.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	step := time.Duration(float64(time.Second) / cfg.FPS)
	engine.Attach(&flipbook.Ticker{Interval: step})
	defer engine.Detach()

	changes := make(chan config.Change)
	if watch {
		err := config.Watch(ctx, cfg.Input, changes, -1, log)
		if err != nil {
			log.Error("watch", slog.Any("error", err))
			return internalError
		}
	}

	poll := time.NewTicker(50 * time.Millisecond)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return success
		case c := <-changes:
			if c.Err != nil {
				log.Warn("watch", slog.Any("error", c.Err))
				continue
			}
			log.Info("input changed", slog.Any("op", c.Op()))
			err := prepare(engine, cfg.Input)
			if err != nil {
				log.Error("prepare", slog.Any("error", err))
				continue
			}
			err = engine.Play()
			if err != nil {
				log.Error("play", slog.Any("error", err))
			}
		case <-poll.C:
			if !watch && !engine.Playing() {
				return success
			}
		}
	}
}

func prepare(engine *flipbook.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return engine.Prepare(f)
}

func decodeStatic(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode.DecodeStatic(f)
}

func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fitMode(s string) decode.Fit {
	switch s {
	case "cover":
		return decode.FitCover
	case "stretch":
		return decode.FitStretch
	default:
		return decode.FitContain
	}
}
