// Package watermark renders a date-stamp text overlay onto images.
//
// Style validation and the pixel pipeline live together here: a Style is
// resolved once per batch run, a Renderer is built from it, and each image
// passes through Renderer.Apply, which composites the text at the anchor
// point with the configured opacity.
package watermark

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Margin is the fixed pixel padding kept between the text and the nearest
// image edge at every anchor.
const Margin = 20

// Renderer draws watermark text using one font face shared across a run.
// It is built once per batch; the face is sized to the style's font size
// so measurement and drawing always use identical metrics.
type Renderer struct {
	style Style
	face  font.Face
}

// NewRenderer parses the font and builds the face for the given style.
// fontPath names a TTF file to use; when empty the embedded Go Regular
// face is used instead. A corrupt or unreadable font fails here, before
// any image is touched, since the face is shared by the whole batch.
func NewRenderer(style Style, fontPath string) (*Renderer, error) {
	data := goregular.TTF
	if fontPath != "" {
		b, err := os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read font %s: %w", fontPath, err)
		}
		data = b
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(style.FontSize),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}
	return &Renderer{style: style, face: face}, nil
}

// Apply returns a copy of src with text composited at the style's anchor.
// src is never modified. The output is an NRGBA buffer with the source
// dimensions; formats without an alpha channel lose it again at encode.
//
// The text is rendered into an alpha mask at full coverage and the mask is
// then scaled uniformly by the style opacity, so pixels the glyphs never
// touch contribute nothing and opacity 0 leaves the copy pixel-identical
// to the source.
func (r *Renderer) Apply(src image.Image, text string) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("nil source image")
	}
	dst := imaging.Clone(src)
	bounds := dst.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("empty source image")
	}
	if text == "" {
		return dst, nil
	}

	measure := font.Drawer{Face: r.face}
	textW := measure.MeasureString(text).Ceil()
	metrics := r.face.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	at := anchorPoint(r.style.Position, bounds.Dx(), bounds.Dy(), textW, textH)

	mask := image.NewAlpha(bounds)
	drawer := &font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Opaque),
		Face: r.face,
		Dot: fixed.Point26_6{
			X: fixed.I(at.X),
			Y: fixed.I(at.Y) + metrics.Ascent,
		},
	}
	drawer.DrawString(text)

	scaleAlpha(mask, r.style.Opacity)

	draw.DrawMask(dst, bounds, image.NewUniform(r.style.Color), image.Point{}, mask, bounds.Min, draw.Over)
	return dst, nil
}

// anchorPoint maps an anchor to the top-left draw coordinate for a text
// block of textW x textH on an imgW x imgH image. Coordinates that would
// go negative (text larger than the image leaves room for) clamp to zero,
// letting the text run past the far edge instead of failing.
func anchorPoint(p Position, imgW, imgH, textW, textH int) image.Point {
	var x, y int
	switch p {
	case TopLeft:
		x, y = Margin, Margin
	case TopRight:
		x, y = imgW-textW-Margin, Margin
	case TopCenter:
		x, y = (imgW-textW)/2, Margin
	case Center:
		x, y = (imgW-textW)/2, (imgH-textH)/2
	case BottomLeft:
		x, y = Margin, imgH-textH-Margin
	case BottomRight:
		x, y = imgW-textW-Margin, imgH-textH-Margin
	case BottomCenter:
		x, y = (imgW-textW)/2, imgH-textH-Margin
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return image.Point{X: x, Y: y}
}

// scaleAlpha multiplies every mask coverage value by opacity.
func scaleAlpha(mask *image.Alpha, opacity float64) {
	if opacity >= 1.0 {
		return
	}
	for i, a := range mask.Pix {
		mask.Pix[i] = uint8(math.Round(float64(a) * opacity))
	}
}
