// Command axiom-pipe wires a small demonstration pipeline end to end:
// a CinemaDNG directory source feeds a bit-depth unpack node, which
// feeds a display sink. It exists to give every package in this module
// a compiled, reachable call site — wiring is hard-coded Go, not parsed
// from any configuration surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	recorder "github.com/Polyrhythm/axiom-recorder"
	"github.com/Polyrhythm/axiom-recorder/buffer"
	"github.com/Polyrhythm/axiom-recorder/frame"
	"github.com/Polyrhythm/axiom-recorder/gpu"
	"github.com/Polyrhythm/axiom-recorder/graph"
	"github.com/Polyrhythm/axiom-recorder/node"
	bitdepth "github.com/Polyrhythm/axiom-recorder/nodes/cpu/bitdepth"
	"github.com/Polyrhythm/axiom-recorder/nodes/io/dngsource"
	"github.com/Polyrhythm/axiom-recorder/params"
	"github.com/Polyrhythm/axiom-recorder/processingcontext"
	"github.com/Polyrhythm/axiom-recorder/sinks/display"
	"github.com/Polyrhythm/axiom-recorder/sinks/filewriter"
)

// loggingRenderer is the stand-in Renderer used when no real window is
// available: it reports progress through the structured logger instead
// of presenting anything, the role a headless CI run needs from a
// windowing backend.
type loggingRenderer struct {
	presented int
}

func (r *loggingRenderer) Present(f *frame.Frame[*buffer.HostBuffer]) error {
	r.presented++
	recorder.Logger().Info("presented frame",
		slog.Int("count", r.presented),
		slog.Uint64("width", f.Interpretation.Width),
		slog.Uint64("height", f.Interpretation.Height))
	return nil
}

func (r *loggingRenderer) Close() {
	recorder.Logger().Info("display closed", slog.Int("total_presented", r.presented))
}

func main() {
	var (
		pattern  = flag.String("input", "", "glob pattern matching CinemaDNG frame files")
		writeDir = flag.String("write-to", "", "when set, write each frame as a numbered TIFF here instead of displaying it")
		loop     = flag.Bool("loop", false, "cycle through the matched frames indefinitely")
		frames   = flag.Int64("frames", -1, "number of frames to pull, or -1 to pull until the source is exhausted")
	)
	flag.Parse()

	if *pattern == "" {
		fmt.Fprintln(os.Stderr, "axiom-pipe: -input is required")
		os.Exit(2)
	}

	if err := run(*pattern, *writeDir, *loop, *frames); err != nil {
		recorder.Logger().Error("pipeline failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(pattern, writeDir string, loop bool, frameLimit int64) error {
	gpuCtx, err := gpu.New(gpu.NullProvider{})
	if err != nil {
		return err
	}
	pc := processingcontext.New(gpuCtx)

	g := graph.New()

	source, err := dngsource.New(pc, params.New(map[string]any{
		"file-pattern":  pattern,
		"internal-loop": loop,
		"cache-frames":  false,
	}))
	if err != nil {
		return err
	}
	g.Add(source)

	unpack, err := bitdepth.New(pc, params.New(map[string]any{
		"input": source,
	}))
	if err != nil {
		return err
	}
	g.Add(unpack)

	if writeDir != "" {
		fw, err := filewriter.New(pc, params.New(map[string]any{
			"input":     unpack,
			"directory": writeDir,
		}))
		if err != nil {
			return err
		}
		g.Add(fw)
		if err := g.Validate(); err != nil {
			return err
		}
		return pullAll(fw, frameLimit)
	}

	renderer := &loggingRenderer{}
	disp, err := display.New(pc, params.New(map[string]any{
		"input":    unpack,
		"mailbox":  false,
		"blocking": true,
	}), renderer)
	if err != nil {
		return err
	}
	g.Add(disp)
	defer disp.Close()
	if err := g.Validate(); err != nil {
		return err
	}
	return pullAll(disp, frameLimit)
}

// pullAll drives sink with a graph.Puller, logging each frame's outcome
// as it completes and halting on the first error. frameLimit, when
// non-negative, cancels the run once that many frames have completed —
// the override an internal-loop source needs, since it never reports a
// Caps.FrameCount for the puller to stop on by itself.
func pullAll(sink node.Node, frameLimit int64) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var completed atomic.Int64
	puller := &graph.Puller{
		Sink:           sink,
		OutputPriority: 0,
		InFlight:       4,
		OnFrame: func(result graph.FrameResult) {
			if result.Err != nil {
				recorder.Logger().Error("frame failed", slog.Uint64("frame", result.FrameNumber), slog.Any("error", result.Err))
				return
			}
			recorder.Logger().Info("frame complete", slog.Uint64("frame", result.FrameNumber))
			if frameLimit >= 0 && completed.Add(1) >= frameLimit {
				cancel()
			}
		},
	}

	return puller.Run(ctx, 0, true)
}
