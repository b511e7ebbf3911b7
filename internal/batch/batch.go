// Package batch drives the watermark pipeline over a directory of images.
//
// Files are processed strictly one at a time in lexicographic name order.
// A failure on one file is recorded and the run moves on; only an
// unreadable input directory aborts the whole batch.
package batch

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/nju-xjk/Photo-Watermark-1/internal/timestamp"
	"github.com/nju-xjk/Photo-Watermark-1/internal/watermark"
)

// jpegQuality is the encode quality for JPEG outputs.
const jpegQuality = 95

// supportedExts are the file extensions eligible for processing. Anything
// else in the input directory is skipped silently, not counted as a failure.
var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// Kind classifies the pipeline stage at which a file failed.
type Kind string

const (
	KindRead   Kind = "read"
	KindRender Kind = "render"
	KindWrite  Kind = "write"
)

// Failure is a terminal per-file error together with its stage. There is
// no retry; a Failure ends that file's processing within the run.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Outcome records how one eligible file fared. Exactly one Outcome is
// produced per eligible file, holding either the written output path or
// the Failure that stopped it.
type Outcome struct {
	Path       string
	OutputPath string
	Source     timestamp.Source
	Err        *Failure
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Result is the accumulated report of a whole run, ordered by input
// filename. It is not modified after Run returns.
type Result struct {
	RunID     string
	Outcomes  []Outcome
	Succeeded int
	Failed    int
}

// Runner processes every supported image in an input directory with one
// shared Renderer, writing outputs under OutputDir.
type Runner struct {
	Renderer  *watermark.Renderer
	OutputDir string
	Log       *slog.Logger
}

// Run enumerates inputDir and watermarks each supported file in order.
// The context is checked between files only; a cancellation returns the
// partial Result alongside the context error. Per-file errors never
// propagate out of Run.
func (r *Runner) Run(ctx context.Context, inputDir string) (*Result, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir %s: %w", inputDir, err)
	}

	res := &Result{RunID: uuid.NewString()}
	log := r.logger().With("run_id", res.RunID)
	log.Info("batch started", "input", inputDir, "output", r.OutputDir)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if entry.IsDir() || !supportedExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		out := r.processFile(log, inputDir, entry.Name())
		res.Outcomes = append(res.Outcomes, out)
		if out.Succeeded() {
			res.Succeeded++
		} else {
			res.Failed++
			log.Error("file failed", "file", entry.Name(), "stage", out.Err.Kind, "error", out.Err.Err)
		}
	}

	log.Info("batch finished", "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

// processFile runs one file through timestamp resolution, rendering and
// write-out. All errors are folded into the returned Outcome.
func (r *Runner) processFile(log *slog.Logger, inputDir, name string) Outcome {
	path := filepath.Join(inputDir, name)
	out := Outcome{Path: path}

	stamp, err := timestamp.Resolve(path)
	if err != nil {
		out.Err = &Failure{Kind: KindRead, Err: err}
		return out
	}
	out.Source = stamp.Source
	if stamp.Source == timestamp.SourceModTime {
		log.Warn("no exif timestamp, using file modification time", "file", name)
	}

	src, err := imaging.Open(path)
	if err != nil {
		out.Err = &Failure{Kind: KindRead, Err: fmt.Errorf("decode %s: %w", name, err)}
		return out
	}

	stamped, err := r.Renderer.Apply(src, stamp.Text())
	if err != nil {
		out.Err = &Failure{Kind: KindRender, Err: fmt.Errorf("render %s: %w", name, err)}
		return out
	}

	// Output directory is created on first write, not up front, so a run
	// with zero successes leaves nothing behind.
	if err := os.MkdirAll(r.OutputDir, 0755); err != nil {
		out.Err = &Failure{Kind: KindWrite, Err: fmt.Errorf("create output dir: %w", err)}
		return out
	}
	outPath := filepath.Join(r.OutputDir, outputName(name))
	if err := saveImage(stamped, src, outPath); err != nil {
		out.Err = &Failure{Kind: KindWrite, Err: fmt.Errorf("save %s: %w", outPath, err)}
		return out
	}

	out.OutputPath = outPath
	log.Info("watermarked", "file", name, "output", filepath.Base(outPath), "date", stamp.Text(), "source", stamp.Source.String())
	return out
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// saveImage writes the stamped image in the format implied by the output
// extension. TIFF outputs from alpha-free sources go through writeRGBTIFF
// so they stay three samples per pixel; the JPEG, PNG and BMP encoders
// already drop the alpha channel for opaque input on their own.
func saveImage(stamped *image.NRGBA, src image.Image, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if (ext == ".tif" || ext == ".tiff") && isOpaque(src) {
		return writeRGBTIFF(path, stamped)
	}
	return imaging.Save(stamped, path, imaging.JPEGQuality(jpegQuality))
}

// isOpaque reports whether the decoded source carries no transparency.
// Three-sample TIFFs decode to fully opaque images, so an opaque source is
// the signal that the output must not gain an alpha channel.
func isOpaque(img image.Image) bool {
	o, ok := img.(interface{ Opaque() bool })
	return ok && o.Opaque()
}

// outputName derives "{stem}_watermark{ext}" from an input filename,
// keeping the original extension so the output stays in the same format.
func outputName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_watermark" + ext
}
