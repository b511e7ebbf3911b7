package batch

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/nju-xjk/Photo-Watermark-1/internal/watermark"
)

func newTestRunner(t *testing.T, outputDir string) *Runner {
	t.Helper()
	style, err := watermark.ParseStyle(24, "white", "bottom-right", 0.8)
	if err != nil {
		t.Fatalf("style: %v", err)
	}
	renderer, err := watermark.NewRenderer(style, "")
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	return &Runner{
		Renderer:  renderer,
		OutputDir: outputDir,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 120, 90))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = 100
		img.Pix[i+1] = 120
		img.Pix[i+2] = 140
		img.Pix[i+3] = 255
	}
	return img
}

func writeJPEG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, testImage(), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, testImage()); err != nil {
		t.Fatal(err)
	}
}

func TestRunIsolatesPerFileFailures(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")

	writeJPEG(t, filepath.Join(inDir, "a.jpg"))
	if err := os.WriteFile(filepath.Join(inDir, "b.jpg"), []byte("definitely not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(inDir, "c.png"))
	if err := os.WriteFile(filepath.Join(inDir, "notes.txt"), []byte("skip me"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := newTestRunner(t, outDir).Run(context.Background(), inDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(res.Outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(res.Outcomes))
	}
	if res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("counts = %d/%d, want 2 succeeded, 1 failed", res.Succeeded, res.Failed)
	}

	// Lexicographic order by filename.
	wantOrder := []string{"a.jpg", "b.jpg", "c.png"}
	for i, o := range res.Outcomes {
		if filepath.Base(o.Path) != wantOrder[i] {
			t.Errorf("outcome %d is %s, want %s", i, filepath.Base(o.Path), wantOrder[i])
		}
	}

	bad := res.Outcomes[1]
	if bad.Succeeded() {
		t.Fatal("corrupt file reported as success")
	}
	if bad.Err.Kind != KindRead {
		t.Errorf("corrupt file failure kind = %s, want read", bad.Err.Kind)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("output dir has %d files, want 2", len(entries))
	}
	if entries[0].Name() != "a_watermark.jpg" || entries[1].Name() != "c_watermark.png" {
		t.Errorf("output names = %s, %s", entries[0].Name(), entries[1].Name())
	}
}

func TestRunOutputsDecodable(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	writePNG(t, filepath.Join(inDir, "photo.png"))

	res, err := newTestRunner(t, outDir).Run(context.Background(), inDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", res.Succeeded)
	}

	f, err := os.Open(res.Outcomes[0].OutputPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	out, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if out.Bounds() != testImage().Bounds() {
		t.Errorf("output bounds %v differ from input %v", out.Bounds(), testImage().Bounds())
	}
	// bottom-right text at opacity 0.8 must have changed pixels near that
	// corner band.
	changed := false
	for y := 50; y < 90 && !changed; y++ {
		for x := 0; x < 120; x++ {
			r, g, b, _ := out.At(x, y).RGBA()
			if r>>8 != 100 || g>>8 != 120 || b>>8 != 140 {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("no watermark pixels found in output")
	}
}

func TestRunAllFailuresLeavesNoOutputDir(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	if err := os.WriteFile(filepath.Join(inDir, "junk.jpg"), []byte("junk"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := newTestRunner(t, outDir).Run(context.Background(), inDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 1 || res.Succeeded != 0 {
		t.Errorf("counts = %d/%d, want 0 succeeded, 1 failed", res.Succeeded, res.Failed)
	}
	if _, err := os.Stat(outDir); !errors.Is(err, os.ErrNotExist) {
		t.Error("output dir was created with zero successes")
	}
}

func TestRunSkipsDirectoriesAndUnsupportedFiles(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	if err := os.Mkdir(filepath.Join(inDir, "nested.jpg"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inDir, "movie.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := newTestRunner(t, outDir).Run(context.Background(), inDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Outcomes) != 0 {
		t.Errorf("got %d outcomes for ineligible entries, want 0", len(res.Outcomes))
	}
}

func TestRunMissingInputDir(t *testing.T) {
	_, err := newTestRunner(t, t.TempDir()).Run(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err == nil {
		t.Error("missing input dir did not error")
	}
}

func TestRunStopsBetweenFilesOnCancel(t *testing.T) {
	inDir := t.TempDir()
	writeJPEG(t, filepath.Join(inDir, "a.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestRunner(t, filepath.Join(t.TempDir(), "out")).Run(ctx, inDir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(res.Outcomes) != 0 {
		t.Errorf("cancelled run still processed %d files", len(res.Outcomes))
	}
}

// tiffSamplesPerPixel reads the SamplesPerPixel tag from a little-endian
// TIFF file's first IFD.
func tiffSamplesPerPixel(t *testing.T, path string) uint16 {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 8 || string(data[:2]) != "II" {
		t.Fatalf("%s is not a little-endian TIFF", path)
	}
	le := binary.LittleEndian
	ifd := le.Uint32(data[4:8])
	n := le.Uint16(data[ifd : ifd+2])
	for i := 0; i < int(n); i++ {
		entry := int(ifd) + 2 + i*12
		if le.Uint16(data[entry:entry+2]) == 277 {
			return le.Uint16(data[entry+8 : entry+10])
		}
	}
	t.Fatalf("%s has no SamplesPerPixel tag", path)
	return 0
}

func TestRunTIFFKeepsThreeSamplesPerPixel(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	inPath := filepath.Join(inDir, "scan.tif")
	if err := writeRGBTIFF(inPath, testImage()); err != nil {
		t.Fatalf("write input tiff: %v", err)
	}
	if got := tiffSamplesPerPixel(t, inPath); got != 3 {
		t.Fatalf("input has %d samples per pixel, want 3", got)
	}

	res, err := newTestRunner(t, outDir).Run(context.Background(), inDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", res.Succeeded)
	}

	outPath := res.Outcomes[0].OutputPath
	if got := tiffSamplesPerPixel(t, outPath); got != 3 {
		t.Errorf("output has %d samples per pixel, want 3 (alpha channel gained)", got)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("decode output tiff: %v", err)
	}
	if out.Bounds() != testImage().Bounds() {
		t.Errorf("output bounds %v differ from input %v", out.Bounds(), testImage().Bounds())
	}
	if _, hasAlpha := out.(*image.NRGBA); hasAlpha {
		t.Error("output decoded with an unassociated alpha channel")
	}
}

func TestRunBMPRoundTrip(t *testing.T) {
	inDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	inPath := filepath.Join(inDir, "shot.bmp")
	f, err := os.Create(inPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, testImage()); err != nil {
		f.Close()
		t.Fatalf("write input bmp: %v", err)
	}
	f.Close()

	res, err := newTestRunner(t, outDir).Run(context.Background(), inDir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", res.Succeeded)
	}
	if got := filepath.Base(res.Outcomes[0].OutputPath); got != "shot_watermark.bmp" {
		t.Errorf("output name = %s", got)
	}

	of, err := os.Open(res.Outcomes[0].OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	defer of.Close()
	out, err := bmp.Decode(of)
	if err != nil {
		t.Fatalf("decode output bmp: %v", err)
	}
	if out.Bounds() != testImage().Bounds() {
		t.Errorf("output bounds %v differ from input %v", out.Bounds(), testImage().Bounds())
	}
	// An opaque source must yield a 24-bit file; 32-bit BMPs decode to NRGBA.
	if _, hasAlpha := out.(*image.NRGBA); hasAlpha {
		t.Error("output gained an alpha channel")
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"photo.jpg", "photo_watermark.jpg"},
		{"IMG_001.JPG", "IMG_001_watermark.JPG"},
		{"scan.tiff", "scan_watermark.tiff"},
		{"pic.with.dots.png", "pic.with.dots_watermark.png"},
	}
	for _, c := range cases {
		if got := outputName(c.in); got != c.want {
			t.Errorf("outputName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
